// Package prometheus provides Prometheus-backed implementations of the
// metric interfaces in pkg/metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/verticedb/vertice/pkg/metrics"
	"github.com/verticedb/vertice/pkg/pagecache"
)

// pageCacheTracer implements pagecache.Tracer on Prometheus counters.
type pageCacheTracer struct {
	mappedFiles prometheus.Gauge
	maps        prometheus.Counter
	unmaps      prometheus.Counter
	flushes     prometheus.Counter
}

// NewPageCacheTracer creates a Prometheus-backed page cache tracer.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// the page cache treats as tracing disabled.
func NewPageCacheTracer() pagecache.Tracer {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &pageCacheTracer{
		mappedFiles: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "vertice_pagecache_mapped_files",
			Help: "Number of files currently mapped into the page cache",
		}),
		maps: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "vertice_pagecache_maps_total",
			Help: "Total number of files mapped into the page cache",
		}),
		unmaps: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "vertice_pagecache_unmaps_total",
			Help: "Total number of page cache handles closed",
		}),
		flushes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "vertice_pagecache_flushes_total",
			Help: "Total number of forced per-handle flushes",
		}),
	}
}

func (t *pageCacheTracer) Mapped(string) {
	t.mappedFiles.Inc()
	t.maps.Inc()
}

func (t *pageCacheTracer) Unmapped(string) {
	t.mappedFiles.Dec()
	t.unmaps.Inc()
}

func (t *pageCacheTracer) Flushed(string) {
	t.flushes.Inc()
}

// checkpointMetrics implements metrics.CheckpointMetrics.
type checkpointMetrics struct {
	checkpoints *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewCheckpointMetrics creates Prometheus-backed checkpoint metrics.
//
// Returns nil if metrics are not enabled.
func NewCheckpointMetrics() metrics.CheckpointMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &checkpointMetrics{
		checkpoints: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "vertice_checkpoints_total",
			Help: "Total number of checkpoint attempts by outcome",
		}, []string{"database", "outcome"}),
		duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vertice_checkpoint_duration_seconds",
			Help:    "Checkpoint flush sweep duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"database"}),
	}
}

func (m *checkpointMetrics) RecordCheckpoint(database string, duration time.Duration, failed bool) {
	outcome := "success"
	if failed {
		outcome = "failure"
	}
	m.checkpoints.WithLabelValues(database, outcome).Inc()
	m.duration.WithLabelValues(database).Observe(duration.Seconds())
}
