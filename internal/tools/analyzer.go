package tools

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"howett.net/plist"

	"github.com/dshills/buildlens/internal/issue"
)

// analyzerReport is the plist the clang static analyzer writes per
// translation unit.
type analyzerReport struct {
	ClangVersion string               `plist:"clang_version"`
	Files        []string             `plist:"files"`
	Diagnostics  []analyzerDiagnostic `plist:"diagnostics"`
}

type analyzerDiagnostic struct {
	Description string `plist:"description"`
	Location    struct {
		File   int `plist:"file"`
		Line   int `plist:"line"`
		Column int `plist:"col"`
	} `plist:"location"`
}

// ParseAnalyzerReport converts one analyzer plist into issues. Plists that
// are not analyzer reports, or hold no diagnostics, yield nothing.
func ParseAnalyzerReport(data []byte) ([]issue.Issue, error) {
	var report analyzerReport
	if _, err := plist.Unmarshal(data, &report); err != nil {
		return nil, errors.Wrap(err, "decoding analyzer report")
	}
	if report.ClangVersion == "" || len(report.Files) == 0 {
		return nil, nil
	}
	var out []issue.Issue
	for _, d := range report.Diagnostics {
		if d.Location.File < 0 || d.Location.File >= len(report.Files) {
			continue
		}
		out = append(out, issue.Issue{
			Type:        issue.TypeWarning,
			Tool:        issue.ToolStaticAnalyzer,
			Description: d.Description,
			FilePath:    report.Files[d.Location.File],
			Line:        d.Location.Line,
			Column:      d.Location.Column,
		})
	}
	return out, nil
}

// AddAnalyzerReports adds every analyzer diagnostic written under the work
// directory for a project.
func AddAnalyzerReports(env *Env, project string) error {
	base := strings.TrimSuffix(filepath.Base(project), filepath.Ext(project))
	var paths []string
	for _, intermediates := range []string{"Intermediates", "Intermediates.noindex"} {
		root := filepath.Join(env.WorkDir, "Build", intermediates, base+".build")
		found, err := analyzerPlists(root)
		if err != nil {
			return err
		}
		paths = append(paths, found...)
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "reading %s", path)
		}
		issues, err := ParseAnalyzerReport(data)
		if err != nil {
			env.logger().Warn("skipping unreadable analyzer report", "path", path, "error", err)
			continue
		}
		for _, is := range issues {
			env.Store.Add(is)
		}
	}
	return nil
}

// analyzerPlists finds the plists below a StaticAnalyzer directory.
func analyzerPlists(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".plist" {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		for _, part := range strings.Split(filepath.Dir(rel), string(filepath.Separator)) {
			if part == "StaticAnalyzer" {
				out = append(out, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "searching analyzer reports in %s", root)
	}
	return out, nil
}
