package database

import (
	"fmt"
	"log/slog"
)

// Component is one internal component of a database instance, started and
// stopped by the lifecycle in dependency order.
type Component interface {
	Name() string
	Start() error
	Stop() error
}

// componentFuncs adapts a pair of functions into a Component.
type componentFuncs struct {
	name  string
	start func() error
	stop  func() error
}

// newComponent builds a Component from start/stop functions. Either
// function may be nil.
func newComponent(name string, start, stop func() error) Component {
	return &componentFuncs{name: name, start: start, stop: stop}
}

func (c *componentFuncs) Name() string { return c.name }

func (c *componentFuncs) Start() error {
	if c.start == nil {
		return nil
	}
	return c.start()
}

func (c *componentFuncs) Stop() error {
	if c.stop == nil {
		return nil
	}
	return c.stop()
}

// life drives an ordered set of components through start and stop.
//
// StartAll starts components in registration order, collecting the ones
// that came up. On failure it stops those in reverse order and returns the
// original failure untouched; the caller decides how to log and wrap it.
// StopAll tears down in reverse order unconditionally: a failing stop never
// prevents the remaining components from stopping.
type life struct {
	log        *slog.Logger
	components []Component
	started    []Component
}

func newLife(log *slog.Logger) *life {
	return &life{log: log}
}

func (l *life) add(c Component) {
	l.components = append(l.components, c)
}

// startAll starts every component in order. On failure the already-started
// components are rolled back and the component's original error returned.
func (l *life) startAll() error {
	for _, c := range l.components {
		if l.log != nil {
			l.log.Debug("starting component", "component", c.Name())
		}
		if err := c.Start(); err != nil {
			l.rollback()
			return fmt.Errorf("component %s: %w", c.Name(), err)
		}
		l.started = append(l.started, c)
	}
	return nil
}

// rollback stops the started components in reverse order, ignoring their
// stop errors: the original start failure is the one that matters.
func (l *life) rollback() {
	for i := len(l.started) - 1; i >= 0; i-- {
		c := l.started[i]
		if err := c.Stop(); err != nil && l.log != nil {
			l.log.Debug("component stop failed during rollback", "component", c.Name(), "error", err)
		}
	}
	l.started = nil
}

// stopAll stops every started component in reverse order. All components
// are stopped even when one fails; the first stop error is returned.
func (l *life) stopAll() error {
	var firstErr error
	for i := len(l.started) - 1; i >= 0; i-- {
		c := l.started[i]
		if l.log != nil {
			l.log.Debug("stopping component", "component", c.Name())
		}
		if err := c.Stop(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("component %s: %w", c.Name(), err)
			} else if l.log != nil {
				l.log.Warn("component stop failed", "component", c.Name(), "error", err)
			}
		}
	}
	l.started = nil
	return firstErr
}
