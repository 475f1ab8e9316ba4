// Package metrics holds the process-wide Prometheus registry and the
// metric interfaces consumed by the storage kernel.
//
// Metrics are optional: components accept nil metric implementations and
// skip collection entirely. Call InitRegistry once at startup to enable
// collection; the Prometheus-backed implementations live in the prometheus
// subpackage.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the process-wide registry, enabling metric
// collection. Safe to call more than once; later calls are no-ops.
func InitRegistry() {
	mu.Lock()
	defer mu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
}

// IsEnabled reports whether metrics collection is enabled.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the process-wide registry, or nil when metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// CheckpointMetrics observes checkpointer activity. A nil value disables
// collection.
type CheckpointMetrics interface {
	// RecordCheckpoint records one completed checkpoint attempt.
	RecordCheckpoint(database string, duration time.Duration, failed bool)
}
