package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/buildlens/internal/correlator"
	"github.com/dshills/buildlens/internal/issue"
)

// TextWriter outputs a human-readable report grouped by file.
type TextWriter struct{}

type textStyles struct {
	title   lipgloss.Style
	path    lipgloss.Style
	muted   lipgloss.Style
	error   lipgloss.Style
	warning lipgloss.Style
	note    lipgloss.Style
	ok      lipgloss.Style
}

// newTextStyles binds the styles to w so that color is only emitted when w
// is a terminal.
func newTextStyles(w io.Writer) textStyles {
	r := lipgloss.NewRenderer(w)
	return textStyles{
		title:   r.NewStyle().Bold(true),
		path:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("69")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("241")),
		error:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		warning: r.NewStyle().Foreground(lipgloss.Color("220")),
		note:    r.NewStyle().Foreground(lipgloss.Color("45")),
		ok:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("46")),
	}
}

func (s textStyles) forType(t issue.Type) lipgloss.Style {
	switch t {
	case issue.TypeError:
		return s.error
	case issue.TypeWarning:
		return s.warning
	default:
		return s.note
	}
}

func (t *TextWriter) Write(w io.Writer, report *correlator.Report) error {
	ew := &errWriter{w: w}
	st := newTextStyles(w)

	ew.printf("%s", st.title.Render("buildlens report"))
	if report.RunID != 0 {
		ew.printf(" %s", st.muted.Render(fmt.Sprintf("run %d", report.RunID)))
	}
	ew.println("")
	if report.HeadCommit != "" {
		ew.printf("Commit: %s\n", report.HeadCommit)
	}
	ew.println(strings.Repeat("─", 60))

	counts := report.Counts()
	ew.printf("Issues: %d", len(report.Issues))
	if len(report.Issues) > 0 {
		ew.printf(" (%d errors, %d warnings, %d static analysis)",
			counts[issue.TypeError], counts[issue.TypeWarning], counts[issue.TypeStaticAnalysis])
	}
	if report.Filtered {
		ew.printf(" related to the change, %d collected, %d lines around changes", report.Collected, report.Tolerance)
	}
	ew.println("")
	ew.println(strings.Repeat("─", 60))

	if len(report.Issues) == 0 {
		ew.printf("\n%s\n", st.ok.Render("No issues found."))
	} else {
		previous := "\x00"
		for _, is := range SortIssues(report.Issues) {
			if is.FilePath != previous {
				name := is.FilePath
				if name == "" {
					name = "(no file)"
				}
				ew.printf("\n%s\n", st.path.Render(name))
				previous = is.FilePath
			}
			pos := ""
			if is.Line > 0 {
				pos = fmt.Sprintf("%d", is.Line)
				if is.Column > 0 {
					pos += fmt.Sprintf(":%d", is.Column)
				}
			}
			ew.printf("  %-8s %s %s\n",
				pos,
				st.forType(is.Type).Render(fmt.Sprintf("%-15s", is.Type.DisplayName())),
				st.muted.Render("["+string(is.Tool)+"]"))
			for _, line := range wrapText(is.Description, 70) {
				ew.printf("      %s\n", line)
			}
		}
	}

	if len(report.Timings) > 0 {
		ew.printf("\n%s\n", strings.Repeat("─", 60))
		for _, e := range report.Timings {
			status := ""
			if e.Failed {
				status = st.error.Render(" failed")
			}
			ew.printf("  %-50s %8s%s\n", e.Label, e.Duration.Round(10*time.Millisecond), status)
		}
	}

	ew.printf("\n%s\n", strings.Repeat("─", 60))
	if report.Failed() {
		ew.printf("Result: %s\n", st.error.Render("FAILED"))
	} else {
		ew.printf("Result: %s\n", st.ok.Render("passed"))
	}
	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
