package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/dshills/buildlens/internal/correlator"
)

// JSONWriter outputs the full report as JSON.
type JSONWriter struct{}

func (j *JSONWriter) Write(w io.Writer, report *correlator.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling JSON")
	}
	_, err = w.Write(data)
	if err != nil {
		return errors.Wrap(err, "writing JSON")
	}
	_, err = fmt.Fprintln(w)
	return err
}
