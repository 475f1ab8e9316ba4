package database

import (
	"reflect"
	"sync"
)

// DependencyResolver is a typed service registry for one database instance.
//
// It is populated during Start and queried by collaborators and tests.
// Lookups are by exact type: resolving a type that was never registered
// returns an UnsatisfiedDependencyError, never a default. Registrations
// survive Stop and Drop so the resolver remains inspectable after the
// instance is gone.
type DependencyResolver struct {
	mu       sync.RWMutex
	services map[reflect.Type]any
}

// NewDependencyResolver returns an empty resolver.
func NewDependencyResolver() *DependencyResolver {
	return &DependencyResolver{services: make(map[reflect.Type]any)}
}

// Register stores instance under the type T. A later registration of the
// same type replaces the earlier one.
func Register[T any](r *DependencyResolver, instance T) {
	key := reflect.TypeOf((*T)(nil)).Elem()
	r.mu.Lock()
	r.services[key] = instance
	r.mu.Unlock()
}

// Resolve returns the instance registered under the type T.
func Resolve[T any](r *DependencyResolver) (T, error) {
	key := reflect.TypeOf((*T)(nil)).Elem()
	r.mu.RLock()
	instance, ok := r.services[key]
	r.mu.RUnlock()

	if !ok {
		var zero T
		return zero, &UnsatisfiedDependencyError{Type: key}
	}
	return instance.(T), nil
}

// Satisfied reports whether the type T has a registration.
func Satisfied[T any](r *DependencyResolver) bool {
	key := reflect.TypeOf((*T)(nil)).Elem()
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.services[key]
	return ok
}
