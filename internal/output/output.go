package output

import (
	"io"
	"os"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/dshills/buildlens/internal/correlator"
	"github.com/dshills/buildlens/internal/issue"
)

// ErrUnknownFormat is returned by GetWriter.
var ErrUnknownFormat = errors.New("unsupported output format")

// Formats lists the accepted format names.
var Formats = []string{"text", "json", "markdown", "sarif"}

// Writer writes a report in a specific format.
type Writer interface {
	Write(w io.Writer, report *correlator.Report) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown":
		return &MarkdownWriter{}, nil
	case "sarif":
		return &SARIFWriter{}, nil
	default:
		return nil, errors.WithHint(errors.Wrapf(ErrUnknownFormat, "%q", format), "use text, json, markdown or sarif")
	}
}

// WriteReport writes the report to the specified output (file path or stdout).
func WriteReport(report *correlator.Report, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	var w io.Writer
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return errors.Wrap(err, "creating output file")
		}
		defer f.Close()
		w = f
	} else {
		w = os.Stdout
	}

	return writer.Write(w, report)
}

// SortIssues orders issues by file path and then line, keeping the
// collection order of equal keys. Issues without a path come first.
func SortIssues(issues []issue.Issue) []issue.Issue {
	out := append([]issue.Issue(nil), issues...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FilePath != out[j].FilePath {
			return out[i].FilePath < out[j].FilePath
		}
		return out[i].Line < out[j].Line
	})
	return out
}
