package pagecache

import "sync/atomic"

// Tracer observes page cache events. Implementations must be safe for
// concurrent use. A nil Tracer is valid and means no tracing.
//
// The tracer is the injectable flush-tracking capability: instead of
// wrapping the cache in spies, callers hand implementations a Tracer and
// assert on its counters.
type Tracer interface {
	// Mapped is called when a file is mapped into the cache.
	Mapped(path string)

	// Unmapped is called when a handle is closed.
	Unmapped(path string)

	// Flushed is called once per forced per-handle flush.
	Flushed(path string)
}

// CountingTracer is a Tracer that counts events. Used by tests to verify
// flush behavior across lifecycle transitions.
type CountingTracer struct {
	maps    atomic.Int64
	unmaps  atomic.Int64
	flushes atomic.Int64
}

// NewCountingTracer returns a zeroed CountingTracer.
func NewCountingTracer() *CountingTracer { return &CountingTracer{} }

// Mapped implements Tracer.
func (t *CountingTracer) Mapped(string) { t.maps.Add(1) }

// Unmapped implements Tracer.
func (t *CountingTracer) Unmapped(string) { t.unmaps.Add(1) }

// Flushed implements Tracer.
func (t *CountingTracer) Flushed(string) { t.flushes.Add(1) }

// Maps returns the number of Map calls observed.
func (t *CountingTracer) Maps() int64 { return t.maps.Load() }

// Unmaps returns the number of handle closes observed.
func (t *CountingTracer) Unmaps() int64 { return t.unmaps.Load() }

// Flushes returns the number of forced flushes observed.
func (t *CountingTracer) Flushes() int64 { return t.flushes.Load() }

var _ Tracer = (*CountingTracer)(nil)
