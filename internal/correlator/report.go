package correlator

import (
	"github.com/dshills/buildlens/internal/issue"
	"github.com/dshills/buildlens/internal/telemetry"
)

// Report is the outcome of a run.
type Report struct {
	Version    string            `json:"version,omitempty"`
	RunID      int64             `json:"run_id,string"`
	HeadCommit string            `json:"head_commit,omitempty"`
	Tolerance  int               `json:"lines_around_related"`
	Filtered   bool              `json:"filtered"`
	Issues     []issue.Issue     `json:"issues"`
	Collected  int               `json:"collected"`
	Fatal      bool              `json:"fatal"`
	Timings    []telemetry.Entry `json:"timings,omitempty"`
}

// Failed reports whether any reported issue blocks the change. Warnings and
// static analysis results do not.
func (r *Report) Failed() bool {
	for _, is := range r.Issues {
		if is.IsFatal() {
			return true
		}
	}
	return false
}

// Counts returns the number of reported issues per type.
func (r *Report) Counts() map[issue.Type]int {
	out := map[issue.Type]int{}
	for _, is := range r.Issues {
		out[is.Type]++
	}
	return out
}
