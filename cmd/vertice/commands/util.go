package commands

import (
	"fmt"

	"github.com/verticedb/vertice/internal/logger"
	"github.com/verticedb/vertice/pkg/config"
	"github.com/verticedb/vertice/pkg/database"
	"github.com/verticedb/vertice/pkg/layout"
	"github.com/verticedb/vertice/pkg/metrics"
	verticeprom "github.com/verticedb/vertice/pkg/metrics/prometheus"
	"github.com/verticedb/vertice/pkg/pagecache"
)

// InitLogger configures the process logger from the loaded configuration.
func InitLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// getConfigSource describes where the configuration came from for startup
// logging.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "built-in defaults"
}

// resolveDatabaseName picks the database to operate on: the positional
// argument when given, otherwise the configured default.
func resolveDatabaseName(cfg *config.Config, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Store.DefaultDatabase
}

// buildPageCache constructs the shared mmap page cache, wiring the
// Prometheus tracer when metrics are enabled.
func buildPageCache(cfg *config.Config) pagecache.PageCache {
	return pagecache.NewMmap(pagecache.MmapConfig{
		PageSize: int(cfg.PageCache.PageSize.Uint64()),
		Tracer:   verticeprom.NewPageCacheTracer(),
	})
}

// buildDatabase assembles a database instance for name from the loaded
// configuration and the given page cache.
func buildDatabase(cfg *config.Config, cache pagecache.PageCache, name string) (*database.Database, error) {
	db, err := database.New(database.Config{
		Layout:             layout.Of(cfg.Store.DatabasesRoot, cfg.Store.TransactionLogsRoot, name),
		PageCache:          cache,
		LogHandler:         logger.Handler(),
		CheckpointInterval: cfg.Checkpoint.EffectiveInterval(),
		CheckpointMetrics:  verticeprom.NewCheckpointMetrics(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assemble database %q: %w", name, err)
	}
	return db, nil
}

// initMetrics sets up the process-wide metrics registry when enabled.
func initMetrics(cfg *config.Config) {
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}
}
