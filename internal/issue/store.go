package issue

import (
	"path/filepath"
	"strings"
)

type key struct {
	path        string
	line        int
	column      int
	description string
}

// Store accumulates the issues of one run. It is owned by a single run and
// is not safe for concurrent use.
type Store struct {
	root   string
	issues []Issue
	index  map[key]int
}

// NewStore returns an empty store whose file paths are normalized relative
// to root. An empty root leaves paths untouched apart from cleaning.
func NewStore(root string) *Store {
	if root != "" {
		root = filepath.Clean(root)
	}
	return &Store{
		root:  root,
		index: make(map[key]int),
	}
}

// Root returns the source root paths are made relative to.
func (s *Store) Root() string {
	return s.root
}

// Add inserts the issue or merges it with an existing issue of the same
// identity. It reports whether the store changed.
func (s *Store) Add(is Issue) bool {
	is = s.normalize(is)
	k := key{path: is.FilePath, line: is.Line, column: is.Column, description: is.Description}

	pos, ok := s.index[k]
	if !ok {
		s.index[k] = len(s.issues)
		s.issues = append(s.issues, is)
		return true
	}

	if !replaces(s.issues[pos], is) {
		return false
	}
	s.issues[pos] = is
	return true
}

// replaces decides whether incoming wins over existing for the same identity.
// Two different specific tools never replace each other: the first one wins.
func replaces(existing, incoming Issue) bool {
	if existing.Type == incoming.Type {
		return existing.Tool == ToolGeneric && incoming.Tool != ToolGeneric
	}
	return incoming.Type == TypeError
}

// HasFatal reports whether any stored issue is an error.
func (s *Store) HasFatal() bool {
	for _, is := range s.issues {
		if is.IsFatal() {
			return true
		}
	}
	return false
}

// Len returns the number of stored issues.
func (s *Store) Len() int {
	return len(s.issues)
}

// Snapshot returns a copy of the stored issues in insertion order.
func (s *Store) Snapshot() []Issue {
	out := make([]Issue, len(s.issues))
	copy(out, s.issues)
	return out
}

func (s *Store) normalize(is Issue) Issue {
	if is.Tool == "" {
		is.Tool = ToolGeneric
	}
	is.FilePath = s.RelativePath(is.FilePath)
	return is
}

// RelativePath cleans a path and makes it relative to the store root when it
// lies under it.
func (s *Store) RelativePath(path string) string {
	if path == "" {
		return ""
	}
	path = filepath.Clean(path)
	if s.root != "" && filepath.IsAbs(path) {
		if rel, err := filepath.Rel(s.root, path); err == nil && !strings.HasPrefix(rel, "..") {
			path = rel
		}
	}
	return filepath.ToSlash(path)
}
