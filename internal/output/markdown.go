package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/buildlens/internal/correlator"
	"github.com/dshills/buildlens/internal/issue"
)

// IssueMarkdown renders the comment body of one issue, for example
// "**Static Analyzer Warning:** Value stored to 'x' is never read".
func IssueMarkdown(is issue.Issue) string {
	tool := is.Tool
	if tool == "" {
		tool = issue.ToolGeneric
	}
	return fmt.Sprintf("**%s %s:** %s", tool.DisplayName(), is.Type.DisplayName(), is.Description)
}

// FileLinker returns the web URL of a file, or "" when the file cannot be
// linked, for example because the head commit does not contain it.
type FileLinker func(path string) string

// Summary renders issues as one comment, grouped by file. Issues must
// already be sorted with SortIssues. A nil linker renders plain paths.
func Summary(issues []issue.Issue, link FileLinker) string {
	var b strings.Builder
	previous := ""
	var url string
	for _, is := range issues {
		if is.FilePath == "" {
			b.WriteString("\n")
			url = ""
		} else if is.FilePath != previous {
			url = ""
			if link != nil {
				url = link(is.FilePath)
			}
			if url != "" {
				fmt.Fprintf(&b, "\n[%s](%s):\n", is.FilePath, url)
			} else {
				fmt.Fprintf(&b, "\n%s:\n", is.FilePath)
			}
		}
		b.WriteString("- ")
		if is.Line > 0 {
			if url != "" {
				fmt.Fprintf(&b, "[line %d](%s#L%d): ", is.Line, url, is.Line)
			} else {
				fmt.Fprintf(&b, "line %d: ", is.Line)
			}
		}
		b.WriteString(IssueMarkdown(is))
		b.WriteString("\n")
		previous = is.FilePath
	}
	return strings.TrimSpace(b.String())
}

// MarkdownWriter outputs a comment-friendly markdown report.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, report *correlator.Report) error {
	ew := &errWriter{w: w}
	counts := report.Counts()

	ew.printf("## buildlens report\n\n")
	ew.printf("| Type | Count |\n")
	ew.printf("|------|-------|\n")
	for _, t := range []issue.Type{issue.TypeError, issue.TypeWarning, issue.TypeStaticAnalysis} {
		ew.printf("| %s | %d |\n", t.DisplayName(), counts[t])
	}
	ew.printf("| **Total** | **%d** |\n\n", len(report.Issues))

	if len(report.Issues) == 0 {
		ew.println("No issues found. :white_check_mark:")
		return ew.err
	}

	ew.println(Summary(SortIssues(report.Issues), nil))
	if report.HeadCommit != "" {
		ew.printf("\n*Built %s", shortCommit(report.HeadCommit))
		if report.Filtered {
			ew.printf(", %d of %d issues related to the change", len(report.Issues), report.Collected)
		}
		ew.printf("*\n")
	}
	return ew.err
}

func shortCommit(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
