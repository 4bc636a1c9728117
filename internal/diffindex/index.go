package diffindex

import (
	"sort"
	"sync"
)

// LineKind tags a hunk line.
type LineKind int

const (
	Context LineKind = iota
	Addition
	Deletion
)

// Line is a single hunk line without its leading marker.
type Line struct {
	Kind LineKind
	Text string
}

// Hunk is a contiguous block of a file diff starting at NewStart in the new
// file.
type Hunk struct {
	NewStart int
	Lines    []Line
}

// Patch is the diff of one file. Hunks of binary patches are ignored.
type Patch struct {
	Path   string
	Binary bool
	Hunks  []Hunk
}

// Index answers line-position queries for a diff.
type Index struct {
	patches []Patch

	once      sync.Once
	positions map[string]map[int]int
	lines     map[string][]int
	binary    map[string]bool
}

// New returns an index over patches. Nothing is computed until the first
// query.
func New(patches []Patch) *Index {
	return &Index{patches: patches}
}

func (x *Index) build() {
	x.once.Do(func() {
		x.positions = make(map[string]map[int]int)
		x.lines = make(map[string][]int)
		x.binary = make(map[string]bool)

		for _, p := range x.patches {
			if p.Binary {
				x.binary[p.Path] = true
				continue
			}
			m, ok := x.positions[p.Path]
			if !ok {
				m = make(map[int]int)
				x.positions[p.Path] = m
			}
			position := -1
			for _, h := range p.Hunks {
				position++
				fileLine := h.NewStart - 1
				for _, l := range h.Lines {
					position++
					if l.Kind == Context || l.Kind == Addition {
						fileLine++
						m[fileLine] = position
					}
				}
			}
		}

		for path, m := range x.positions {
			keys := make([]int, 0, len(m))
			for line := range m {
				keys = append(keys, line)
			}
			sort.Ints(keys)
			x.lines[path] = keys
		}
	})
}

// FileLineToDiffPosition returns a copy of the line to position mapping for
// a file, or nil when the file has no text patch.
func (x *Index) FileLineToDiffPosition(path string) map[int]int {
	x.build()
	m, ok := x.positions[path]
	if !ok {
		return nil
	}
	out := make(map[int]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Position returns the diff position of a line in the new file.
func (x *Index) Position(path string, line int) (int, bool) {
	x.build()
	if x.binary[path] {
		return 0, false
	}
	pos, ok := x.positions[path][line]
	return pos, ok
}

// IsBinary reports whether the file changed as a binary file.
func (x *Index) IsBinary(path string) bool {
	x.build()
	return x.binary[path]
}

// FileChanged reports whether the file appears in the diff.
func (x *Index) FileChanged(path string) bool {
	x.build()
	if x.binary[path] {
		return true
	}
	_, ok := x.positions[path]
	return ok
}

// IsRelated reports whether line is mapped in the diff or lies within
// tolerance lines of a mapped line. Binary files are related everywhere.
func (x *Index) IsRelated(path string, line, tolerance int) bool {
	x.build()
	if x.binary[path] {
		return true
	}
	m, ok := x.positions[path]
	if !ok {
		return false
	}
	if _, ok := m[line]; ok {
		return true
	}
	if tolerance <= 0 {
		return false
	}
	keys := x.lines[path]
	i := sort.SearchInts(keys, line-tolerance)
	return i < len(keys) && keys[i] <= line+tolerance
}

// LastLine returns the largest mapped line of a file.
func (x *Index) LastLine(path string) (int, bool) {
	x.build()
	keys := x.lines[path]
	if len(keys) == 0 {
		return 0, false
	}
	return keys[len(keys)-1], true
}

// Files returns the changed file paths, binary ones included, sorted.
func (x *Index) Files() []string {
	x.build()
	files := make([]string, 0, len(x.positions)+len(x.binary))
	for path := range x.positions {
		files = append(files, path)
	}
	for path := range x.binary {
		if _, ok := x.positions[path]; !ok {
			files = append(files, path)
		}
	}
	sort.Strings(files)
	return files
}

// Patches returns the patches the index was built from.
func (x *Index) Patches() []Patch {
	return x.patches
}

// Patch returns the first patch for path.
func (x *Index) Patch(path string) (Patch, bool) {
	for _, p := range x.patches {
		if p.Path == path {
			return p, true
		}
	}
	return Patch{}, false
}
