package database

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/verticedb/vertice/pkg/health"
	"github.com/verticedb/vertice/pkg/metrics"
)

// checkpointer periodically forces the instance's dirty state to durable
// storage: a flush sweep over the mapped store files, a transaction-log
// force, and an id-generator checkpoint.
//
// A checkpoint never runs against an unhealthy instance, and a checkpoint
// failure panics the health monitor instead of being swallowed: the next
// stop will then skip its flush sweep.
type checkpointer struct {
	database string
	interval time.Duration

	coordinator *PageCacheCoordinator
	health      health.Health
	log         *slog.Logger
	metrics     metrics.CheckpointMetrics

	// force is the extra work beyond the flush sweep (tx log force, id
	// checkpoints), supplied by the database.
	force func() error

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

func newCheckpointer(
	database string,
	interval time.Duration,
	coordinator *PageCacheCoordinator,
	h health.Health,
	log *slog.Logger,
	m metrics.CheckpointMetrics,
	force func() error,
) *checkpointer {
	return &checkpointer{
		database:    database,
		interval:    interval,
		coordinator: coordinator,
		health:      h,
		log:         log,
		metrics:     m,
		force:       force,
	}
}

func (c *checkpointer) Name() string { return "checkpointer" }

// Start launches the background loop. An interval of zero disables
// background checkpointing; Checkpoint can still be invoked directly.
func (c *checkpointer) Start() error {
	if c.interval <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})

	go c.loop(c.stopCh, c.doneCh)
	return nil
}

func (c *checkpointer) loop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if err := c.Checkpoint(); err != nil {
				c.log.Error("background checkpoint failed", "error", err)
			}
		}
	}
}

// Checkpoint performs one synchronous checkpoint. It is skipped entirely
// when the instance is unhealthy, and a failure marks the instance
// panicked.
func (c *checkpointer) Checkpoint() error {
	if err := c.health.AssertHealthy(nil); err != nil {
		return fmt.Errorf("checkpoint skipped: %w", err)
	}

	start := time.Now()
	err := c.coordinator.FlushAllMapped()
	if err == nil && c.force != nil {
		err = c.force()
	}

	if c.metrics != nil {
		c.metrics.RecordCheckpoint(c.database, time.Since(start), err != nil)
	}
	if err != nil {
		c.health.Panic(err)
		return err
	}

	c.log.Debug("checkpoint complete", "duration", time.Since(start))
	return nil
}

// Stop terminates the background loop and waits for it to exit.
func (c *checkpointer) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	stopCh, doneCh := c.stopCh, c.doneCh
	c.mu.Unlock()

	close(stopCh)
	<-doneCh
	return nil
}
