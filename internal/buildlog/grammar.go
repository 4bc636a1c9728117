package buildlog

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dshills/buildlens/internal/issue"
)

// UnknownPath marks a diagnostic that is not tied to a file.
const UnknownPath = "<unknown>"

const testFailureSuffix = " - FAIL"

var (
	diagnosticWithColumnRe = regexp.MustCompile(`^(.+):(\d+):(\d+): (fatal error|error|warning): (.+)$`)
	diagnosticRe           = regexp.MustCompile(`^(.+):(\d+): (fatal error|error|warning): (.+)$`)

	undefinedSymbolsRe = regexp.MustCompile(`^Undefined symbols for architecture (.*):$`)
	symbolReferenceRe  = regexp.MustCompile(`^  "(.+)", referenced from:$`)
	objectReferenceRe  = regexp.MustCompile(`^      [\w\-$.]+ in (.+\.o)$`)
)

const objcClassPrefix = "_OBJC_CLASS_$_"

// Diagnostic is a parsed compiler diagnostic line.
type Diagnostic struct {
	Path        string
	Line        int
	Column      int
	Type        issue.Type
	Message     string
	TestFailure bool
}

// Issue converts the diagnostic into an issue. Test failures are attributed
// to the automatic tests tool, and the unknown path yields a process-level
// issue.
func (d Diagnostic) Issue() issue.Issue {
	is := issue.Issue{
		Type:        d.Type,
		Tool:        issue.ToolGeneric,
		Description: d.Message,
	}
	if d.TestFailure {
		is.Tool = issue.ToolAutomaticTests
	}
	if d.Path != UnknownPath {
		is.FilePath = d.Path
		is.Line = d.Line
		is.Column = d.Column
	}
	return is
}

// ParseDiagnostic matches PATH:LINE[:COL]: SEVERITY: MESSAGE.
func ParseDiagnostic(line string) (Diagnostic, bool) {
	var path, lineNum, col, severity, message string
	if m := diagnosticWithColumnRe.FindStringSubmatch(line); m != nil {
		path, lineNum, col, severity, message = m[1], m[2], m[3], m[4], m[5]
	} else if m := diagnosticRe.FindStringSubmatch(line); m != nil {
		path, lineNum, severity, message = m[1], m[2], m[3], m[4]
	} else {
		return Diagnostic{}, false
	}

	d := Diagnostic{Path: path, Message: message, Type: issue.TypeWarning}
	d.Line, _ = strconv.Atoi(lineNum)
	if col != "" {
		d.Column, _ = strconv.Atoi(col)
	}
	if severity != "warning" {
		d.Type = issue.TypeError
	}
	if strings.HasSuffix(message, testFailureSuffix) {
		d.TestFailure = true
		d.Message = strings.TrimSuffix(message, testFailureSuffix)
	}
	return d, true
}

// LinkerLineKind classifies a line of linker output.
type LinkerLineKind int

const (
	LinkerOther LinkerLineKind = iota
	LinkerUndefinedSymbols
	LinkerSymbol
	LinkerReference
	LinkerSuggestion
)

// LinkerLine is a classified line of an undefined-symbols block.
type LinkerLine struct {
	Kind   LinkerLineKind
	Arch   string
	Symbol string
	Object string
}

// ParseLinkerLine classifies one line of linker output. Symbol names have
// the Objective-C class prefix removed.
func ParseLinkerLine(line string) LinkerLine {
	if m := undefinedSymbolsRe.FindStringSubmatch(line); m != nil {
		return LinkerLine{Kind: LinkerUndefinedSymbols, Arch: m[1]}
	}
	if m := symbolReferenceRe.FindStringSubmatch(line); m != nil {
		return LinkerLine{Kind: LinkerSymbol, Symbol: strings.Replace(m[1], objcClassPrefix, "", 1)}
	}
	if m := objectReferenceRe.FindStringSubmatch(line); m != nil {
		return LinkerLine{Kind: LinkerReference, Object: m[1]}
	}
	if strings.Contains(line, "(maybe you meant:") {
		return LinkerLine{Kind: LinkerSuggestion}
	}
	return LinkerLine{Kind: LinkerOther}
}
