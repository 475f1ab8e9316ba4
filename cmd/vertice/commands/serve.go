package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/verticedb/vertice/internal/logger"
	"github.com/verticedb/vertice/pkg/config"
	"github.com/verticedb/vertice/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve [database]",
	Short: "Start the default database and keep it running",
	Long: `Start a database instance and keep it running until interrupted.

The instance's store files are mapped into the page cache, its transaction
log is opened, and background checkpointing runs on the configured interval.
On SIGINT or SIGTERM the instance is stopped gracefully: a healthy instance
flushes its store files before releasing them.

Examples:
  # Serve the configured default database
  vertice serve

  # Serve a specific database
  vertice serve graph

  # Serve with a custom config file
  vertice serve --config /etc/vertice/config.yaml

  # Override the log level for one run
  VERTICE_LOGGING_LEVEL=DEBUG vertice serve`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	initMetrics(cfg)

	cache := buildPageCache(cfg)
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Error("page cache close error", "error", err)
		}
	}()

	name := resolveDatabaseName(cfg, args)
	db, err := buildDatabase(cfg, cache, name)
	if err != nil {
		return err
	}

	if err := db.Start(); err != nil {
		return fmt.Errorf("failed to start database %q: %w", name, err)
	}
	logger.Info("Database serving",
		"database", name,
		"id", db.DatabaseID(),
		"databases_root", cfg.Store.DatabasesRoot,
		"transaction_logs_root", cfg.Store.TransactionLogsRoot,
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Metrics endpoint, when enabled
	if srv := metrics.NewServer(cfg.Metrics.Port); srv != nil {
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// Hot-reload of the log level when the config file changes
	if path := getConfigSource(GetConfigFile()); path != "built-in defaults" {
		watcher := config.NewWatcher(path, func(updated *config.Config) {
			logger.SetLevel(updated.Logging.Level)
		})
		if err := watcher.Start(); err != nil {
			logger.Warn("config hot-reload unavailable", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutdown signal received", "signal", sig.String())
	cancel()

	done := make(chan error, 1)
	go func() { done <- db.Stop() }()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer stopCancel()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("database %q shutdown failed: %w", name, err)
		}
	case <-stopCtx.Done():
		return fmt.Errorf("shutdown timed out after %s", cfg.ShutdownTimeout)
	case sig := <-sigCh:
		return fmt.Errorf("forced shutdown on second signal %s", sig)
	}

	logger.Info("Database stopped", "database", name)
	return nil
}
