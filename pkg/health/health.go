// Package health tracks the panicked/healthy state of one database instance.
//
// Background activity (checkpointing, transaction appliers) reports fatal
// conditions through Panic; lifecycle code consults the monitor through
// AssertHealthy before performing operations that must not run against a
// possibly corrupt instance, such as the shutdown flush sweep.
package health

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrPanicked is the default wrapper for assertion failures when the caller
// does not supply its own.
var ErrPanicked = errors.New("database has panicked")

// Health is the contract lifecycle code depends on. Tests substitute their
// own implementations to simulate checkpoint failures during shutdown.
type Health interface {
	// Panic marks the instance unhealthy. It never returns an error and
	// never propagates the cause as a panic; the cause is surfaced later
	// by AssertHealthy.
	Panic(cause error)

	// AssertHealthy returns nil when healthy. When panicked it returns the
	// stored cause wrapped by wrap, or by ErrPanicked when wrap is nil.
	AssertHealthy(wrap func(cause error) error) error

	// IsHealthy reports whether the instance is healthy.
	IsHealthy() bool

	// Heal resets the instance to healthy. The database lifecycle calls
	// this unconditionally at the start of a start transition.
	Heal()
}

// PanicListener is notified once when the monitor transitions to panicked.
type PanicListener func(cause error)

// Monitor is the standard Health implementation. The first panic sticks:
// later Panic calls never overwrite the original cause.
type Monitor struct {
	mu        sync.Mutex
	panicked  bool
	cause     error
	log       *slog.Logger
	listeners []PanicListener
}

// NewMonitor returns a healthy monitor. The logger may be nil.
func NewMonitor(log *slog.Logger, listeners ...PanicListener) *Monitor {
	return &Monitor{log: log, listeners: listeners}
}

// Panic records the cause and marks the instance panicked. Subsequent calls
// are ignored so the original cause is preserved.
func (m *Monitor) Panic(cause error) {
	m.mu.Lock()
	if m.panicked {
		m.mu.Unlock()
		return
	}
	m.panicked = true
	m.cause = cause
	listeners := m.listeners
	m.mu.Unlock()

	if m.log != nil {
		m.log.Error("database panic", "cause", cause)
	}
	for _, l := range listeners {
		l(cause)
	}
}

// AssertHealthy implements Health.
func (m *Monitor) AssertHealthy(wrap func(cause error) error) error {
	m.mu.Lock()
	panicked, cause := m.panicked, m.cause
	m.mu.Unlock()

	if !panicked {
		return nil
	}
	if wrap != nil {
		return wrap(cause)
	}
	return fmt.Errorf("%w: %w", ErrPanicked, cause)
}

// IsHealthy implements Health.
func (m *Monitor) IsHealthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.panicked
}

// Cause returns the recorded panic cause, or nil when healthy.
func (m *Monitor) Cause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cause
}

// Heal resets the monitor to healthy, discarding any recorded cause, so
// that a panic recorded while the instance was down cannot prevent it from
// coming back up.
func (m *Monitor) Heal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicked = false
	m.cause = nil
}

var _ Health = (*Monitor)(nil)
