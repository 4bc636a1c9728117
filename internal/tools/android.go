package tools

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/dshills/buildlens/internal/buildlog"
	"github.com/dshills/buildlens/internal/issue"
)

// Report locations, relative to the Android project directory except for
// Infer's, which is relative to the source directory.
const (
	LintReportFile     = "build/outputs/lint-results.xml"
	FindBugsReportFile = "build/reports/findbugs/findbugs.xml"
	InferReportFile    = "infer-out/report.json"
)

// findBugsMaxErrorRank is the highest FindBugs rank reported as an error.
const findBugsMaxErrorRank = 4

// Android runs Gradle-based analyzers on an Android project.
type Android struct{}

func (Android) Name() string { return "android" }

func (a Android) Run(ctx context.Context, env *Env, step Step) error {
	project := step.Project
	if project == "" {
		project = "."
	}
	var (
		cmd    buildlog.Command
		report string
		parse  func(r io.Reader, project string) ([]issue.Issue, error)
	)
	switch step.Action {
	case "lint":
		cmd = buildlog.Command{Name: "./gradlew", Args: []string{"--stacktrace", "lint"}}
		report = filepath.Join(project, LintReportFile)
		parse = func(r io.Reader, _ string) ([]issue.Issue, error) { return ParseLintReport(r) }
	case "findbugs":
		cmd = buildlog.Command{Name: "./gradlew", Args: []string{"--stacktrace", "findbugs"}}
		report = filepath.Join(project, FindBugsReportFile)
		parse = ParseFindBugsReport
	case "infer":
		cmd = buildlog.Command{Name: "infer", Args: []string{"--", "./gradlew", "build"}}
		report = InferReportFile
		parse = func(r io.Reader, _ string) ([]issue.Issue, error) { return ParseInferReport(r) }
	default:
		return unknownAction("android", step.Action, "lint", "findbugs", "infer")
	}

	env.MarkExecuted()
	if env.AndroidHome != "" {
		cmd.Env = []string{"ANDROID_HOME=" + env.AndroidHome}
	}
	if err := env.mustRun(ctx, cmd); err != nil {
		return err
	}

	f, err := os.Open(env.Path(report))
	if err != nil {
		return errors.Wrapf(err, "opening %s report", step.Action)
	}
	defer f.Close()
	issues, err := parse(f, project)
	if err != nil {
		return errors.Wrapf(err, "%s report %s", step.Action, report)
	}
	for _, is := range issues {
		env.Store.Add(is)
	}
	env.logger().InfoContext(ctx, "android report read", "action", step.Action, "issues", len(issues))
	return nil
}

type lintReport struct {
	Issues []struct {
		Severity  string `xml:"severity,attr"`
		Message   string `xml:"message,attr"`
		Locations []struct {
			File string `xml:"file,attr"`
			Line string `xml:"line,attr"`
		} `xml:"location"`
	} `xml:"issue"`
}

// ParseLintReport reads an Android lint XML report. Error and Fatal
// severities are errors, anything else is a warning.
func ParseLintReport(r io.Reader) ([]issue.Issue, error) {
	var report lintReport
	if err := xml.NewDecoder(r).Decode(&report); err != nil {
		return nil, errors.Wrap(err, "decoding lint report")
	}
	out := make([]issue.Issue, 0, len(report.Issues))
	for _, li := range report.Issues {
		is := issue.Issue{
			Type:        issue.TypeWarning,
			Tool:        issue.ToolLint,
			Description: li.Message,
		}
		if li.Severity == "Error" || li.Severity == "Fatal" {
			is.Type = issue.TypeError
		}
		if len(li.Locations) > 0 {
			is.FilePath = li.Locations[0].File
			is.Line = atoi(li.Locations[0].Line)
		}
		out = append(out, is)
	}
	return out, nil
}

type findBugsReport struct {
	Bugs []struct {
		Rank        string `xml:"rank,attr"`
		LongMessage string `xml:"LongMessage"`
		SourceLines []struct {
			SourcePath string `xml:"sourcepath,attr"`
			Start      string `xml:"start,attr"`
		} `xml:"SourceLine"`
	} `xml:"BugInstance"`
}

// ParseFindBugsReport reads a FindBugs XML report. Source paths are
// relative to the project's Java source root.
func ParseFindBugsReport(r io.Reader, project string) ([]issue.Issue, error) {
	var report findBugsReport
	if err := xml.NewDecoder(r).Decode(&report); err != nil {
		return nil, errors.Wrap(err, "decoding findbugs report")
	}
	out := make([]issue.Issue, 0, len(report.Bugs))
	for _, b := range report.Bugs {
		is := issue.Issue{
			Type:        issue.TypeError,
			Tool:        issue.ToolFindBugs,
			Description: strings.TrimSpace(b.LongMessage),
		}
		if atoi(b.Rank) > findBugsMaxErrorRank {
			is.Type = issue.TypeWarning
		}
		if len(b.SourceLines) > 0 {
			is.FilePath = filepath.Join(project, "src", "main", "java", b.SourceLines[0].SourcePath)
			is.Line = atoi(b.SourceLines[0].Start)
		}
		out = append(out, is)
	}
	return out, nil
}

type inferBug struct {
	Qualifier string      `json:"qualifier"`
	File      string      `json:"file"`
	Line      json.Number `json:"line"`
}

// ParseInferReport reads Infer's JSON report.
func ParseInferReport(r io.Reader) ([]issue.Issue, error) {
	var bugs []inferBug
	if err := json.NewDecoder(r).Decode(&bugs); err != nil {
		return nil, errors.Wrap(err, "decoding infer report")
	}
	out := make([]issue.Issue, 0, len(bugs))
	for _, b := range bugs {
		out = append(out, issue.Issue{
			Type:        issue.TypeStaticAnalysis,
			Tool:        issue.ToolInfer,
			Description: b.Qualifier,
			FilePath:    b.File,
			Line:        atoi(b.Line.String()),
		})
	}
	return out, nil
}

// atoi reads a leading decimal number, zero when there is none.
func atoi(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}
