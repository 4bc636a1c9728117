package buildlog

import (
	"bufio"
	"io"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/dshills/buildlens/internal/issue"
)

// ErrOrphanReference is returned when a linker reference line appears
// before any undefined symbol was announced.
var ErrOrphanReference = errors.New("linker reference without an undefined symbol")

// Stream identifies the pipe a line came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Sink receives parsed issues.
type Sink interface {
	Add(is issue.Issue) bool
}

type parserState int

const (
	stateOut parserState = iota
	stateUndefinedSymbols
)

type symbolGroup struct {
	symbol  string
	objects []string
}

// Parser is the state machine for one build invocation. It is not safe for
// concurrent use; Multiplex guarantees a single caller.
type Parser struct {
	sink     Sink
	log      *slog.Logger
	state    parserState
	pending  *symbolGroup
	newFatal bool
}

// NewParser returns a parser emitting into sink.
func NewParser(sink Sink, log *slog.Logger) *Parser {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Parser{sink: sink, log: log}
}

// NewFatalFound reports whether an error-class diagnostic or a linker error
// was emitted by this parser.
func (p *Parser) NewFatalFound() bool {
	return p.newFatal
}

// ProcessLine handles one line. Standard error lines are only logged.
func (p *Parser) ProcessLine(s Stream, line string) error {
	line = strings.TrimRight(line, " \t\r\n")
	if s == Stderr {
		p.log.Error(line, "stream", s.String())
		return nil
	}

	if d, ok := ParseDiagnostic(line); ok {
		p.log.Warn(line)
		if d.Type == issue.TypeError {
			p.newFatal = true
		}
		p.sink.Add(d.Issue())
		p.Flush()
		return nil
	}

	p.log.Debug(line)
	return p.processLinkerLine(line)
}

func (p *Parser) processLinkerLine(line string) error {
	ll := ParseLinkerLine(line)
	switch p.state {
	case stateOut:
		if ll.Kind == LinkerUndefinedSymbols {
			p.state = stateUndefinedSymbols
			p.pending = nil
		}
	case stateUndefinedSymbols:
		switch ll.Kind {
		case LinkerSymbol:
			p.emitPending()
			p.pending = &symbolGroup{symbol: ll.Symbol}
		case LinkerReference:
			if p.pending == nil {
				return errors.Wrapf(ErrOrphanReference, "object file %s", ll.Object)
			}
			p.pending.objects = append(p.pending.objects, ll.Object)
		case LinkerSuggestion:
		default:
			p.Flush()
			return p.processLinkerLine(line)
		}
	}
	return nil
}

// Flush emits any pending undefined symbol and returns to the normal state.
// Call it when the stream ends.
func (p *Parser) Flush() {
	p.emitPending()
	p.state = stateOut
}

func (p *Parser) emitPending() {
	g := p.pending
	p.pending = nil
	if g == nil || len(g.objects) == 0 {
		return
	}
	p.sink.Add(issue.Issue{
		Type:        issue.TypeError,
		Tool:        issue.ToolLinker,
		Description: "Cannot find symbol " + g.symbol + " referenced in " + strings.Join(g.objects, ", "),
	})
	p.newFatal = true
}

// Consume parses a saved log as standard output and flushes at the end.
func (p *Parser) Consume(r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			if perr := p.ProcessLine(Stdout, line); perr != nil {
				return perr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "reading build log")
		}
	}
	p.Flush()
	return nil
}
