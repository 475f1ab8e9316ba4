package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Logging.Format)
	assert.Equal(t, DefaultLogOutput, cfg.Logging.Output)
	assert.Equal(t, DefaultDatabasesRoot, cfg.Store.DatabasesRoot)
	assert.Equal(t, DefaultTransactionLogsRoot, cfg.Store.TransactionLogsRoot)
	assert.Equal(t, DefaultDatabaseName, cfg.Store.DefaultDatabase)
	assert.Equal(t, DefaultPageSize, cfg.PageCache.PageSize)
	assert.Equal(t, DefaultCheckpointInterval, cfg.Checkpoint.Interval)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, DefaultMetricsPort, cfg.Metrics.Port)
	assert.False(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Checkpoint.Disabled)
}

func TestApplyDefaultsPreservesSetValues(t *testing.T) {
	cfg := &Config{}
	cfg.Logging.Level = "DEBUG"
	cfg.Store.DefaultDatabase = "graph"
	cfg.Checkpoint.Interval = time.Minute

	ApplyDefaults(cfg)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "graph", cfg.Store.DefaultDatabase)
	assert.Equal(t, time.Minute, cfg.Checkpoint.Interval)

	// Unset siblings still receive defaults
	assert.Equal(t, DefaultLogFormat, cfg.Logging.Format)
	assert.Equal(t, DefaultDatabasesRoot, cfg.Store.DatabasesRoot)
}
