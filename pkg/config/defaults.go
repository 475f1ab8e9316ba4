package config

import (
	"time"

	"github.com/verticedb/vertice/internal/bytesize"
)

// Default values applied when the config file leaves a field unset.
const (
	DefaultLogLevel  = "INFO"
	DefaultLogFormat = "text"
	DefaultLogOutput = "stdout"

	DefaultDatabasesRoot       = "/var/lib/vertice/databases"
	DefaultTransactionLogsRoot = "/var/lib/vertice/transactions"
	DefaultDatabaseName        = "vertice"

	DefaultPageSize = bytesize.ByteSize(8 * 1024)

	DefaultCheckpointInterval = 15 * time.Minute
	DefaultShutdownTimeout    = 30 * time.Second
	DefaultMetricsPort        = 9090
)

// ApplyDefaults fills in default values for any unset fields.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyStoreDefaults(&cfg.Store)
	applyPageCacheDefaults(&cfg.PageCache)
	applyCheckpointDefaults(&cfg.Checkpoint)
	applyMetricsDefaults(&cfg.Metrics)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = DefaultLogLevel
	}
	if cfg.Format == "" {
		cfg.Format = DefaultLogFormat
	}
	if cfg.Output == "" {
		cfg.Output = DefaultLogOutput
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.DatabasesRoot == "" {
		cfg.DatabasesRoot = DefaultDatabasesRoot
	}
	if cfg.TransactionLogsRoot == "" {
		cfg.TransactionLogsRoot = DefaultTransactionLogsRoot
	}
	if cfg.DefaultDatabase == "" {
		cfg.DefaultDatabase = DefaultDatabaseName
	}
}

func applyPageCacheDefaults(cfg *PageCacheConfig) {
	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}
}

func applyCheckpointDefaults(cfg *CheckpointConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultCheckpointInterval
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

// GetDefaultConfig returns a fully populated default configuration.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
