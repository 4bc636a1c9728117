package telemetry

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "buildlens"

// Entry is one measured step.
type Entry struct {
	Label    string        `json:"label"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration_ns"`
	Seconds  float64       `json:"seconds"`
	Failed   bool          `json:"failed,omitempty"`
}

// Timer measures labeled work as trace spans and keeps a record of every
// finished span.
type Timer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	rec      *recorder
}

// NewTimer returns a timer backed by its own tracer provider.
func NewTimer() *Timer {
	rec := &recorder{}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(rec),
	)
	return &Timer{
		provider: provider,
		tracer:   provider.Tracer(tracerName),
		rec:      rec,
	}
}

// Measure runs fn inside a span named label. fn's error is returned
// unchanged and marks the entry as failed.
func (t *Timer) Measure(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	ctx, span := t.tracer.Start(ctx, label, trace.WithAttributes(attribute.String("buildlens.label", label)))
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Entries returns the finished measurements in completion order.
func (t *Timer) Entries() []Entry {
	return t.rec.entries()
}

// Export writes the finished measurements to path as JSON.
func (t *Timer) Export(path string) error {
	entries := t.Entries()
	var total time.Duration
	for _, e := range entries {
		total += e.Duration
	}
	doc := struct {
		Entries []Entry `json:"entries"`
		Total   float64 `json:"total_seconds"`
	}{Entries: entries, Total: total.Seconds()}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding timings")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "writing timings to %s", path)
	}
	return nil
}

// Shutdown flushes and stops the tracer provider.
func (t *Timer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

// recorder is a span processor keeping one Entry per ended span.
type recorder struct {
	mu   sync.Mutex
	list []Entry
}

func (r *recorder) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (r *recorder) OnEnd(s sdktrace.ReadOnlySpan) {
	d := s.EndTime().Sub(s.StartTime())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = append(r.list, Entry{
		Label:    s.Name(),
		Start:    s.StartTime(),
		Duration: d,
		Seconds:  d.Seconds(),
		Failed:   s.Status().Code == codes.Error,
	})
}

func (r *recorder) Shutdown(context.Context) error   { return nil }
func (r *recorder) ForceFlush(context.Context) error { return nil }

func (r *recorder) entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.list))
	copy(out, r.list)
	return out
}
