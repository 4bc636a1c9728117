package tools

import (
	"encoding/xml"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/dshills/buildlens/internal/diffindex"
	"github.com/dshills/buildlens/internal/issue"
)

const (
	unchangedFileMessage     = "A file without a real change should not be added to pull requests."
	misplacedMessage         = "This constraint is misplaced."
	interfaceBuilderPluginID = "com.apple.InterfaceBuilder.IBCocoaTouchPlugin"
)

var (
	interfaceFileRe = regexp.MustCompile(`(?i)\.(storyboard|xib)$`)
	xmlTagOpenRe    = regexp.MustCompile(`^\s*<([a-zA-Z][a-zA-Z0-9]*)`)
	xmlAttrRe       = regexp.MustCompile(`^\s*([a-zA-Z][a-zA-Z0-9]*)=["']([^"']+)["']\s*`)
)

// ReadXMLTag reads the opening tag at the start of a single line of XML and
// the attributes that follow it. Reading stops at the first text that is
// not a name="value" pair.
func ReadXMLTag(text string) (tag string, attrs map[string]string, ok bool) {
	m := xmlTagOpenRe.FindStringSubmatchIndex(text)
	if m == nil {
		return "", nil, false
	}
	tag = text[m[2]:m[3]]
	attrs = map[string]string{}
	rest := text[m[1]:]
	for {
		a := xmlAttrRe.FindStringSubmatch(rest)
		if a == nil {
			break
		}
		attrs[a[1]] = a[2]
		rest = rest[len(a[0]):]
	}
	return tag, attrs, true
}

// versionOnlyTag returns a comparable form of a line that Interface Builder
// rewrites when a file is merely saved by another Xcode, with the version
// attributes removed.
func versionOnlyTag(text string) (string, bool) {
	tag, attrs, ok := ReadXMLTag(text)
	if !ok {
		return "", false
	}
	switch {
	case tag == "document":
		delete(attrs, "toolsVersion")
		delete(attrs, "systemVersion")
	case tag == "plugIn" && attrs["identifier"] == interfaceBuilderPluginID:
		delete(attrs, "version")
	default:
		return "", false
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(tag)
	for _, k := range keys {
		b.WriteString(" " + k + "=" + attrs[k])
	}
	return b.String(), true
}

// IsVersionOnlyChange reports whether a storyboard or XIB patch only
// changes the Xcode version the file was saved with.
func IsVersionOnlyChange(p diffindex.Patch) bool {
	if p.Binary {
		return false
	}
	pending := map[string]int{}
	changed := 0
	for _, h := range p.Hunks {
		for _, l := range h.Lines {
			if l.Kind == diffindex.Context || strings.TrimSpace(l.Text) == "" {
				continue
			}
			key, ok := versionOnlyTag(l.Text)
			if !ok {
				return false
			}
			changed++
			if l.Kind == diffindex.Addition {
				pending[key]++
			} else {
				pending[key]--
			}
		}
	}
	if changed == 0 {
		return false
	}
	for _, n := range pending {
		if n != 0 {
			return false
		}
	}
	return true
}

// FindUnchangedStoryboards reports storyboards and XIBs of the change whose
// only modification is the Xcode version they were saved with.
func FindUnchangedStoryboards(env *Env) error {
	if env.Diff == nil {
		return errors.Wrap(ErrNoDiff, "finding unchanged storyboards")
	}
	seen := map[string]bool{}
	for _, p := range env.Diff.Patches() {
		if seen[p.Path] || !interfaceFileRe.MatchString(p.Path) {
			continue
		}
		seen[p.Path] = true
		if !IsVersionOnlyChange(p) {
			continue
		}
		line, _ := env.Diff.LastLine(p.Path)
		env.Store.Add(issue.Issue{
			Type:        issue.TypeError,
			Tool:        issue.ToolUnchangedFile,
			Description: unchangedFileMessage,
			FilePath:    p.Path,
			Line:        line,
		})
	}
	return nil
}

// FindMisplacedConstraints reports every element marked misplaced in the
// storyboards and XIBs of the change.
func FindMisplacedConstraints(env *Env) error {
	if env.Diff == nil {
		return errors.Wrap(ErrNoDiff, "finding misplaced constraints")
	}
	for _, path := range env.Diff.Files() {
		if env.Diff.IsBinary(path) || !interfaceFileRe.MatchString(path) {
			continue
		}
		f, err := os.Open(env.Path(path))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.Wrapf(err, "opening %s", path)
		}
		lines, err := MisplacedLines(f)
		f.Close()
		if err != nil {
			return errors.Wrapf(err, "reading %s", path)
		}
		for _, line := range lines {
			env.Store.Add(issue.Issue{
				Type:        issue.TypeWarning,
				Tool:        issue.ToolMisplacedConstraint,
				Description: misplacedMessage,
				FilePath:    path,
				Line:        line,
			})
		}
	}
	return nil
}

// MisplacedLines returns the line of every element with misplaced="YES".
func MisplacedLines(r io.Reader) ([]int, error) {
	dec := xml.NewDecoder(r)
	var out []int
	for {
		line, _ := dec.InputPos()
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "parsing XML")
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, a := range se.Attr {
			if a.Name.Local == "misplaced" && a.Value == "YES" {
				out = append(out, line)
				break
			}
		}
	}
}
