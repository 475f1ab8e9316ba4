package database

import (
	"errors"
	"fmt"
	"reflect"
)

// Lifecycle state errors.
var (
	// ErrAlreadyStarted is returned by Start on a started instance.
	ErrAlreadyStarted = errors.New("database already started")

	// ErrNotStarted is returned by Stop on an instance that is not started.
	ErrNotStarted = errors.New("database not started")

	// ErrDropped is returned by any transition attempted on a dropped
	// instance. Dropped is terminal.
	ErrDropped = errors.New("database has been dropped")
)

// StartupError wraps the first component-initialization failure of a failed
// Start. It is surfaced only after every already-started component has been
// rolled back, with the root cause reachable through Unwrap.
type StartupError struct {
	Cause error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("database start failed: %v", e.Cause)
}

func (e *StartupError) Unwrap() error { return e.Cause }

// ShutdownError wraps a health-assertion or flush failure encountered
// during Stop. It is surfaced only after all components have been torn
// down.
type ShutdownError struct {
	Cause error
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("database shutdown failed: %v", e.Cause)
}

func (e *ShutdownError) Unwrap() error { return e.Cause }

// UnsatisfiedDependencyError is returned when resolving a service type that
// was never registered. Resolution never falls back to defaults.
type UnsatisfiedDependencyError struct {
	Type reflect.Type
}

func (e *UnsatisfiedDependencyError) Error() string {
	return fmt.Sprintf("unsatisfied dependency: no %s registered", e.Type)
}
