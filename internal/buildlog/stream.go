package buildlog

import (
	"bufio"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
)

// LineFunc handles one line of a stream. Returning an error stops delivery.
type LineFunc func(s Stream, line string) error

type lineMsg struct {
	text string
	err  error
}

// Multiplex reads stdout and stderr concurrently and calls fn with one line
// at a time from whichever stream is ready. Lines of one stream keep their
// order. fn is always called from the caller's goroutine. After fn returns an
// error the remaining output is drained and discarded, and that error is
// returned once both streams are exhausted.
func Multiplex(stdout, stderr io.Reader, fn LineFunc) error {
	outCh := readLines(stdout)
	errCh := readLines(stderr)

	var firstErr error
	for outCh != nil || errCh != nil {
		var (
			msg lineMsg
			ok  bool
			s   Stream
		)
		select {
		case msg, ok = <-outCh:
			s = Stdout
			if !ok {
				outCh = nil
				continue
			}
		case msg, ok = <-errCh:
			s = Stderr
			if !ok {
				errCh = nil
				continue
			}
		}

		if firstErr != nil {
			continue
		}
		if msg.err != nil {
			firstErr = errors.Wrapf(msg.err, "reading %s", s)
			continue
		}
		if err := fn(s, msg.text); err != nil {
			firstErr = err
		}
	}
	return firstErr
}

func readLines(r io.Reader) chan lineMsg {
	ch := make(chan lineMsg)
	if r == nil {
		close(ch)
		return ch
	}
	go func() {
		defer close(ch)
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadString('\n')
			if line != "" {
				ch <- lineMsg{text: strings.TrimRight(line, "\r\n")}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				ch <- lineMsg{err: err}
				return
			}
		}
	}()
	return ch
}
