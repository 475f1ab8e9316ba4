package logsvc

import (
	"context"
	"log/slog"
	"sync"
)

// Record is one captured log record.
type Record struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// Recorder is a slog.Handler that captures records in memory so tests can
// assert on emitted log output, including attached error causes.
type Recorder struct {
	mu      sync.Mutex
	records []Record
	bound   []slog.Attr
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Enabled implements slog.Handler; the recorder captures every level.
func (r *Recorder) Enabled(context.Context, slog.Level) bool { return true }

// Handle implements slog.Handler.
func (r *Recorder) Handle(_ context.Context, rec slog.Record) error {
	attrs := make(map[string]any, rec.NumAttrs()+len(r.bound))
	for _, a := range r.bound {
		attrs[a.Key] = a.Value.Any()
	}
	rec.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	r.mu.Lock()
	r.records = append(r.records, Record{
		Level:   rec.Level,
		Message: rec.Message,
		Attrs:   attrs,
	})
	r.mu.Unlock()
	return nil
}

// WithAttrs implements slog.Handler. The returned handler shares the record
// buffer with the receiver.
func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &boundRecorder{parent: r, attrs: attrs}
}

// WithGroup implements slog.Handler. Groups are flattened; the recorder only
// exists for assertions, not for rendering.
func (r *Recorder) WithGroup(string) slog.Handler { return r }

// Records returns a copy of all captured records.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// AtLevel returns the captured records at the given level.
func (r *Recorder) AtLevel(level slog.Level) []Record {
	var out []Record
	for _, rec := range r.Records() {
		if rec.Level == level {
			out = append(out, rec)
		}
	}
	return out
}

// boundRecorder carries WithAttrs attributes while writing into the parent
// recorder's buffer.
type boundRecorder struct {
	parent *Recorder
	attrs  []slog.Attr
}

func (b *boundRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (b *boundRecorder) Handle(ctx context.Context, rec slog.Record) error {
	clone := rec.Clone()
	for _, a := range b.attrs {
		clone.AddAttrs(a)
	}
	return b.parent.Handle(ctx, clone)
}

func (b *boundRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(b.attrs)+len(attrs))
	merged = append(merged, b.attrs...)
	merged = append(merged, attrs...)
	return &boundRecorder{parent: b.parent, attrs: merged}
}

func (b *boundRecorder) WithGroup(string) slog.Handler { return b }
