// Package registry manages the named database instances of one server
// process.
//
// All instances share a single page cache; each instance owns its own
// directories, store files and transaction log. The registry provides
// thread-safe open/lookup/drop of instances and an ordered shutdown of
// everything it holds.
//
// Example usage:
//
//	reg, _ := registry.New(registry.Config{
//	    PageCache:           cache,
//	    DatabasesRoot:       "/var/lib/vertice/databases",
//	    TransactionLogsRoot: "/var/lib/vertice/transactions",
//	})
//
//	db, _ := reg.Open("graph")
//	defer reg.StopAll()
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/verticedb/vertice/pkg/database"
	"github.com/verticedb/vertice/pkg/layout"
	"github.com/verticedb/vertice/pkg/metrics"
	"github.com/verticedb/vertice/pkg/pagecache"
)

// ErrNotFound is returned when looking up a database the registry does not
// hold.
var ErrNotFound = errors.New("database not registered")

// Config configures a Registry.
type Config struct {
	// PageCache is the cache shared by every instance. Required.
	PageCache pagecache.PageCache

	// DatabasesRoot is the directory holding one subdirectory per
	// database. Required.
	DatabasesRoot string

	// TransactionLogsRoot is the directory holding one transaction-log
	// subdirectory per database. Required; may equal DatabasesRoot.
	TransactionLogsRoot string

	// LogHandler receives every instance's log records. May be nil.
	LogHandler slog.Handler

	// CheckpointInterval is applied to every instance. Zero disables
	// background checkpointing.
	CheckpointInterval time.Duration

	// CheckpointMetrics observes every instance's checkpointer. May be nil.
	CheckpointMetrics metrics.CheckpointMetrics
}

// Registry holds the database instances of one process.
type Registry struct {
	cfg Config

	mu        sync.RWMutex
	databases map[string]*database.Database
}

// New creates an empty registry.
func New(cfg Config) (*Registry, error) {
	if cfg.PageCache == nil {
		return nil, errors.New("page cache is required")
	}
	if cfg.DatabasesRoot == "" || cfg.TransactionLogsRoot == "" {
		return nil, errors.New("databases root and transaction logs root are required")
	}

	return &Registry{
		cfg:       cfg,
		databases: make(map[string]*database.Database),
	}, nil
}

// Open returns the started instance for name, assembling and starting it on
// first use. Opening an already-running database returns the existing
// instance.
func (r *Registry) Open(name string) (*database.Database, error) {
	if name == "" {
		return nil, errors.New("cannot open database with empty name")
	}

	r.mu.Lock()
	db, ok := r.databases[name]
	if !ok {
		var err error
		db, err = database.New(database.Config{
			Layout:             layout.Of(r.cfg.DatabasesRoot, r.cfg.TransactionLogsRoot, name),
			PageCache:          r.cfg.PageCache,
			LogHandler:         r.cfg.LogHandler,
			CheckpointInterval: r.cfg.CheckpointInterval,
			CheckpointMetrics:  r.cfg.CheckpointMetrics,
		})
		if err != nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("assemble database %q: %w", name, err)
		}
		r.databases[name] = db
	}
	r.mu.Unlock()

	if err := db.Start(); err != nil && !errors.Is(err, database.ErrAlreadyStarted) {
		return nil, fmt.Errorf("start database %q: %w", name, err)
	}
	return db, nil
}

// Get returns the instance for name without starting it.
func (r *Registry) Get(name string) (*database.Database, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	db, ok := r.databases[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return db, nil
}

// Names returns the registered database names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.databases))
	for name := range r.databases {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Drop permanently deletes the named database and removes it from the
// registry. The instance may be running or stopped.
func (r *Registry) Drop(name string) error {
	r.mu.Lock()
	db, ok := r.databases[name]
	if ok {
		delete(r.databases, name)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err := db.Drop(); err != nil {
		return fmt.Errorf("drop database %q: %w", name, err)
	}
	return nil
}

// StopAll stops every running instance. All instances are stopped even when
// one fails; the first error is returned.
func (r *Registry) StopAll() error {
	r.mu.RLock()
	databases := make([]*database.Database, 0, len(r.databases))
	for _, db := range r.databases {
		databases = append(databases, db)
	}
	r.mu.RUnlock()

	var firstErr error
	for _, db := range databases {
		err := db.Stop()
		if err != nil && !errors.Is(err, database.ErrNotStarted) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
