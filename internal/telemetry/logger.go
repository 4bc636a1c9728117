package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/trace"
)

// Options configures NewLogger.
type Options struct {
	// Level is the console level name (debug, info, warn, error). Empty
	// means info.
	Level string
	// Console receives console output. Nil means stderr.
	Console io.Writer
	// File, when set, receives every record at debug level.
	File string
}

// ParseLevel converts a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var lvl slog.Level
	if strings.TrimSpace(name) == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return 0, errors.WithHint(
			errors.Wrapf(err, "log level %q", name),
			"use debug, info, warn or error",
		)
	}
	return lvl, nil
}

// NewLogger builds the run logger. The returned close function releases the
// log file and is safe to call when no file was opened.
func NewLogger(opts Options) (*slog.Logger, func() error, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: lvl}),
	}
	closeFn := func() error { return nil }

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, errors.Wrap(err, "creating log directory")
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "opening log file %s", opts.File)
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
		closeFn = f.Close
	}

	return slog.New(NewTraceHandler(fanout(handlers))), closeFn, nil
}

// TraceHandler adds the trace and span IDs of the active span to records.
type TraceHandler struct {
	slog.Handler
}

func NewTraceHandler(h slog.Handler) *TraceHandler {
	return &TraceHandler{Handler: h}
}

func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithGroup(name)}
}

// fanoutHandler sends each record to every handler enabled for its level.
type fanoutHandler []slog.Handler

func fanout(handlers []slog.Handler) slog.Handler {
	if len(handlers) == 1 {
		return handlers[0]
	}
	return fanoutHandler(handlers)
}

func (f fanoutHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
