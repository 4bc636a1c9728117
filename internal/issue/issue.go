package issue

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Type classifies an issue.
type Type string

const (
	TypeWarning        Type = "warning"
	TypeError          Type = "error"
	TypeStaticAnalysis Type = "static_analysis"
)

// Tool identifies the analyzer that reported an issue.
type Tool string

const (
	ToolGeneric             Tool = "generic"
	ToolLinker              Tool = "linker"
	ToolAutomaticTests      Tool = "automatic_tests"
	ToolStaticAnalyzer      Tool = "static_analyzer"
	ToolCocoaPods           Tool = "cocoapods"
	ToolLint                Tool = "lint"
	ToolFindBugs            Tool = "findbugs"
	ToolInfer               Tool = "infer"
	ToolMisplacedConstraint Tool = "misplaced_constraint_finder"
	ToolWarningPolicy       Tool = "warning_policy"
	ToolUnchangedFile       Tool = "unchanged_file_finder"
)

// ErrInvalidIssue is returned by Validate.
var ErrInvalidIssue = errors.New("invalid issue")

// Issue is a single normalized diagnostic. A zero Line or Column and an empty
// FilePath mean the value is absent.
type Issue struct {
	Type        Type   `json:"type"`
	Tool        Tool   `json:"tool"`
	Description string `json:"description"`
	FilePath    string `json:"file_path,omitempty"`
	Line        int    `json:"line,omitempty"`
	Column      int    `json:"column,omitempty"`
}

// Validate checks the issue type and the ranges of the optional fields.
func (i Issue) Validate() error {
	switch i.Type {
	case TypeWarning, TypeError, TypeStaticAnalysis:
	default:
		return errors.Wrapf(ErrInvalidIssue, "unknown type %q", i.Type)
	}
	if strings.TrimSpace(i.Description) == "" {
		return errors.Wrap(ErrInvalidIssue, "empty description")
	}
	if i.Line < 0 {
		return errors.Wrapf(ErrInvalidIssue, "line %d must be positive", i.Line)
	}
	if i.Column < 0 {
		return errors.Wrapf(ErrInvalidIssue, "column %d must be positive", i.Column)
	}
	if i.Column > 0 && i.Line == 0 {
		return errors.Wrap(ErrInvalidIssue, "column set without a line")
	}
	return nil
}

// IsFatal reports whether the issue fails a build.
func (i Issue) IsFatal() bool {
	return i.Type == TypeError
}

// Location renders the issue position as path[:line[:column]].
func (i Issue) Location() string {
	if i.FilePath == "" {
		return "<process>"
	}
	switch {
	case i.Line > 0 && i.Column > 0:
		return fmt.Sprintf("%s:%d:%d", i.FilePath, i.Line, i.Column)
	case i.Line > 0:
		return fmt.Sprintf("%s:%d", i.FilePath, i.Line)
	default:
		return i.FilePath
	}
}

// DisplayName turns a tool label into a title, e.g. "automatic_tests" into
// "Automatic Tests".
func (t Tool) DisplayName() string {
	parts := strings.Split(string(t), "_")
	for n, p := range parts {
		if p == "" {
			continue
		}
		parts[n] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// DisplayName is the label used in review comments.
func (t Type) DisplayName() string {
	switch t {
	case TypeWarning:
		return "Warning"
	case TypeError:
		return "Error"
	case TypeStaticAnalysis:
		return "Static Analysis"
	default:
		return string(t)
	}
}
