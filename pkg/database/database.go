// Package database implements the lifecycle of a single database instance:
// starting and stopping its internal components, coordinating its footprint
// in the shared page cache, and the destructive drop and truncate
// transitions.
package database

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verticedb/vertice/pkg/health"
	"github.com/verticedb/vertice/pkg/idgen"
	"github.com/verticedb/vertice/pkg/layout"
	"github.com/verticedb/vertice/pkg/logsvc"
	"github.com/verticedb/vertice/pkg/metrics"
	"github.com/verticedb/vertice/pkg/pagecache"
	"github.com/verticedb/vertice/pkg/txlog"
)

// State is the lifecycle state of a database instance.
type State int

const (
	// StateUninitialized is the state before the first Start.
	StateUninitialized State = iota

	// StateStarted means the instance is running.
	StateStarted

	// StateStopped means the instance was started and then stopped. It can
	// be started again.
	StateStopped

	// StateDropped is terminal: the instance's files are gone and no
	// further transition is accepted.
	StateDropped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateDropped:
		return "dropped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// metadataMagic prefixes the identity record at the head of the metadata
// store.
const metadataMagic = "VMDS"

// Config configures one database instance.
type Config struct {
	// Layout describes where the instance lives on disk. Required.
	Layout layout.DatabaseLayout

	// PageCache is the shared page cache. Required.
	PageCache pagecache.PageCache

	// LogHandler receives the instance's log records. When nil, records go
	// to a text handler on stderr.
	LogHandler slog.Handler

	// Health overrides the instance's health monitor. When nil a fresh
	// monitor is used, or one registered in Dependencies.
	Health health.Health

	// IDFactory overrides the id-generator factory. When nil the file
	// factory is used, or one registered in Dependencies.
	IDFactory idgen.Factory

	// CheckpointInterval is the background checkpoint period. Zero disables
	// background checkpointing.
	CheckpointInterval time.Duration

	// CheckpointMetrics observes checkpointer activity. May be nil.
	CheckpointMetrics metrics.CheckpointMetrics

	// Dependencies seeds the instance's dependency resolver. Registrations
	// made here are visible through the instance's resolver and may
	// override the Health and IDFactory defaults.
	Dependencies *DependencyResolver
}

// Database is one database instance. All lifecycle transitions are
// serialized; a Database is safe for concurrent use.
type Database struct {
	mu sync.Mutex

	cfg         Config
	layout      layout.DatabaseLayout
	cache       pagecache.PageCache
	logSvc      *logsvc.Service
	log         *slog.Logger
	health      health.Health
	resolver    *DependencyResolver
	coordinator *PageCacheCoordinator
	idFactory   idgen.Factory

	state      State
	life       *life
	chk        *checkpointer
	databaseID uuid.UUID

	// auxMu guards the transaction log and the id generators, which the
	// background checkpointer touches concurrently with Truncate.
	auxMu      sync.Mutex
	txLog      *txlog.Log
	generators map[string]idgen.Generator
	genOrder   []string
}

// New builds a database instance in the uninitialized state. Nothing
// touches the disk until Start.
func New(cfg Config) (*Database, error) {
	if cfg.PageCache == nil {
		return nil, errors.New("page cache is required")
	}
	if cfg.Layout.Name() == "" {
		return nil, errors.New("database layout is required")
	}

	resolver := cfg.Dependencies
	if resolver == nil {
		resolver = NewDependencyResolver()
	}

	svc := logsvc.New(cfg.Layout.Name(), cfg.LogHandler)

	h := cfg.Health
	if h == nil {
		if injected, err := Resolve[health.Health](resolver); err == nil {
			h = injected
		} else {
			h = health.NewMonitor(svc.Logger())
		}
	}

	factory := cfg.IDFactory
	if factory == nil {
		if injected, err := Resolve[idgen.Factory](resolver); err == nil {
			factory = injected
		} else {
			factory = idgen.NewFileFactory()
		}
	}

	return &Database{
		cfg:         cfg,
		layout:      cfg.Layout,
		cache:       cfg.PageCache,
		logSvc:      svc,
		log:         svc.Logger(),
		health:      h,
		resolver:    resolver,
		coordinator: NewPageCacheCoordinator(cfg.PageCache),
		idFactory:   factory,
	}, nil
}

// Start brings the instance up: directories are created, store files
// mapped, id generators and the transaction log opened, and the
// checkpointer launched. The health monitor is healed first so a panic
// recorded while the instance was down cannot prevent it from starting.
//
// On a component failure every already-started component is rolled back in
// reverse order, a single warning is logged, and a StartupError carrying
// the original failure is returned. The instance stays stoppable and
// droppable.
func (db *Database) Start() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	switch db.state {
	case StateDropped:
		return ErrDropped
	case StateStarted:
		return ErrAlreadyStarted
	}

	db.health.Heal()
	db.log.Info("starting database")

	Register[pagecache.PageCache](db.resolver, db.cache)
	Register[*logsvc.Service](db.resolver, db.logSvc)
	Register[health.Health](db.resolver, db.health)
	Register[idgen.Factory](db.resolver, db.idFactory)

	l := newLife(db.log)
	l.add(newComponent("storage", db.startStorage, db.stopStorage))
	l.add(newComponent("id-generators", db.startIDGenerators, db.stopIDGenerators))
	l.add(newComponent("transaction-log", db.startTransactionLog, db.stopTransactionLog))

	chk := newCheckpointer(
		db.layout.Name(),
		db.cfg.CheckpointInterval,
		db.coordinator,
		db.health,
		db.log,
		db.cfg.CheckpointMetrics,
		db.forceAuxiliaryState,
	)
	l.add(chk)

	if err := l.startAll(); err != nil {
		db.log.Warn("exception occurred while starting the database, rolling back already started components", "error", err)
		return &StartupError{Cause: err}
	}

	Register[*txlog.Log](db.resolver, db.txLog)

	db.life = l
	db.chk = chk
	db.state = StateStarted
	db.log.Info("database started", "id", db.databaseID)
	return nil
}

// Stop takes the instance down. When healthy, every store file handle this
// instance owns is forced to durable storage exactly once before teardown;
// the shared cache's global flush is never used. When the health monitor
// has panicked the flush sweep is skipped entirely, but every component is
// still stopped, and a ShutdownError carrying the panic cause is returned.
func (db *Database) Stop() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.state == StateDropped {
		return ErrDropped
	}
	if db.state != StateStarted {
		return ErrNotStarted
	}

	db.log.Info("stopping database")

	healthErr := db.health.AssertHealthy(func(cause error) error {
		return &ShutdownError{Cause: cause}
	})

	var flushErr error
	if healthErr == nil {
		if err := db.coordinator.FlushAllMapped(); err != nil {
			db.health.Panic(err)
			flushErr = &ShutdownError{Cause: err}
		}
	} else {
		db.log.Warn("skipping shutdown flush, database is not healthy", "error", healthErr)
	}

	stopErr := db.life.stopAll()

	db.life = nil
	db.chk = nil
	db.state = StateStopped
	db.log.Info("database stopped")

	switch {
	case healthErr != nil:
		return healthErr
	case flushErr != nil:
		return flushErr
	default:
		return stopErr
	}
}

// Drop permanently removes the instance: its database directory and its
// transaction-log directory are deleted with everything inside. No page is
// ever flushed on the way down; mapped files are marked delete-on-close and
// unmapped, so the cache discards their dirty pages. Drop works from any
// non-dropped state and is terminal.
func (db *Database) Drop() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.state == StateDropped {
		return ErrDropped
	}

	db.log.Info("dropping database")

	if db.state == StateStarted {
		// The checkpointer goes down first so no background flush can race
		// with the delete-on-close teardown.
		if err := db.chk.Stop(); err != nil {
			db.log.Warn("checkpointer stop failed during drop", "error", err)
		}
		if err := db.coordinator.DeleteOnCloseAndUnmap(db.coordinator.MappedPaths()); err != nil {
			db.log.Warn("failed to unmap store files during drop", "error", err)
		}
		if err := db.life.stopAll(); err != nil {
			db.log.Warn("component stop failed during drop", "error", err)
		}
		db.life = nil
		db.chk = nil
	}

	var firstErr error
	if err := DeleteDirectory(db.layout.DatabaseDirectory()); err != nil {
		firstErr = err
	}
	if err := DeleteDirectory(db.layout.TransactionLogsDirectory()); err != nil && firstErr == nil {
		firstErr = err
	}

	db.state = StateDropped
	db.log.Info("database dropped")
	return firstErr
}

// Truncate resets the instance's data while preserving its shape: both
// directories survive, and every file name present before the call is
// present after it, recreated empty where its content was discarded. The
// metadata store and the id files are retained with their content, so the
// instance keeps its identity and its allocated id ranges. Discarded files
// are never flushed; mapped ones are dropped through delete-on-close.
// Truncate works on both started and stopped instances.
func (db *Database) Truncate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.state == StateDropped {
		return ErrDropped
	}

	db.log.Info("truncating database")

	dbDir := db.layout.DatabaseDirectory()
	txDir := db.layout.TransactionLogsDirectory()
	flat := dbDir == txDir

	dbNames, err := listFileNames(dbDir)
	if err != nil {
		return err
	}
	var txNames []string
	if !flat {
		if txNames, err = listFileNames(txDir); err != nil {
			return err
		}
	}

	retained := RetainedFiles(db.layout)
	started := db.state == StateStarted

	if started {
		// Pause background checkpointing while files disappear underneath
		// the coordinator.
		if err := db.chk.Stop(); err != nil {
			return fmt.Errorf("pause checkpointer: %w", err)
		}
		defer func() {
			if err := db.chk.Start(); err != nil {
				db.log.Warn("checkpointer restart failed after truncate", "error", err)
			}
		}()

		var victims []string
		for _, path := range db.coordinator.MappedPaths() {
			if _, ok := retained[path]; !ok {
				victims = append(victims, path)
			}
		}
		if err := db.coordinator.DeleteOnCloseAndUnmap(victims); err != nil {
			return fmt.Errorf("unmap store files: %w", err)
		}

		db.auxMu.Lock()
		if err := db.txLog.Close(); err != nil {
			db.auxMu.Unlock()
			return fmt.Errorf("close transaction log: %w", err)
		}
		db.auxMu.Unlock()
	}

	if err := db.removeUnretained(dbDir, dbNames, retained); err != nil {
		return err
	}
	if !flat {
		if err := db.removeUnretained(txDir, txNames, retained); err != nil {
			return err
		}
	}

	if started {
		log, err := txlog.Open(txDir)
		if err != nil {
			return fmt.Errorf("reopen transaction log: %w", err)
		}
		db.auxMu.Lock()
		db.txLog = log
		db.auxMu.Unlock()
		Register[*txlog.Log](db.resolver, log)
	}

	if err := recreateMissingFiles(dbDir, dbNames); err != nil {
		return err
	}
	if !flat {
		if err := recreateMissingFiles(txDir, txNames); err != nil {
			return err
		}
	}

	if started {
		for _, path := range db.layout.RecordStoreFiles() {
			if _, ok := db.coordinator.Handle(path); ok {
				continue
			}
			if _, err := db.coordinator.MapFile(path, pagecache.WithCreate()); err != nil {
				return fmt.Errorf("remap %s: %w", path, err)
			}
		}
	}

	if err := EnsureDirectoryExists(dbDir); err != nil {
		return err
	}
	if err := EnsureDirectoryExists(txDir); err != nil {
		return err
	}

	db.log.Info("database truncated")
	return nil
}

// removeUnretained deletes the listed files inside dir, skipping retained
// paths. Files already gone are ignored.
func (db *Database) removeUnretained(dir string, names []string, retained map[string]struct{}) error {
	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, ok := retained[path]; ok {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return nil
}

// Checkpoint forces the instance's dirty state to durable storage now,
// independent of the background schedule.
func (db *Database) Checkpoint() error {
	db.mu.Lock()
	chk := db.chk
	db.mu.Unlock()

	if chk == nil {
		return ErrNotStarted
	}
	return chk.Checkpoint()
}

// Layout returns the instance's on-disk layout.
func (db *Database) Layout() layout.DatabaseLayout { return db.layout }

// LogService returns the instance's log service. The same value is
// resolvable from the dependency resolver once the instance has started.
func (db *Database) LogService() *logsvc.Service { return db.logSvc }

// Health returns the instance's health monitor.
func (db *Database) Health() health.Health { return db.health }

// DependencyResolver returns the instance's service registry.
func (db *Database) DependencyResolver() *DependencyResolver { return db.resolver }

// State returns the current lifecycle state.
func (db *Database) State() State {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state
}

// IsStarted reports whether the instance is running.
func (db *Database) IsStarted() bool { return db.State() == StateStarted }

// DatabaseID returns the instance's logical identity, read from the
// metadata store at start. It is the zero UUID before the first start, and
// it survives stop, restart and truncate.
func (db *Database) DatabaseID() uuid.UUID {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.databaseID
}

// startStorage creates the instance's directories, maps every record store
// into the page cache and loads the identity record.
func (db *Database) startStorage() error {
	if err := EnsureDirectoryExists(db.layout.DatabaseDirectory()); err != nil {
		return err
	}
	if err := EnsureDirectoryExists(db.layout.TransactionLogsDirectory()); err != nil {
		return err
	}

	for _, path := range db.layout.RecordStoreFiles() {
		if _, err := db.coordinator.MapFile(path, pagecache.WithCreate()); err != nil {
			return fmt.Errorf("map %s: %w", path, err)
		}
	}

	return db.loadIdentity()
}

func (db *Database) stopStorage() error {
	return db.coordinator.UnmapAll()
}

// loadIdentity reads the identity record from the metadata store, minting
// and writing a fresh one when the store is new.
func (db *Database) loadIdentity() error {
	pf, ok := db.coordinator.Handle(db.layout.MetadataStoreFile())
	if !ok {
		return errors.New("metadata store not mapped")
	}

	var buf [20]byte
	n, err := pf.ReadAt(buf[:], 0)
	if err == nil && n == len(buf) && string(buf[0:4]) == metadataMagic {
		copy(db.databaseID[:], buf[4:20])
		return nil
	}

	id := uuid.New()
	copy(buf[0:4], metadataMagic)
	copy(buf[4:20], id[:])
	if _, err := pf.WriteAt(buf[:], 0); err != nil {
		return fmt.Errorf("write identity record: %w", err)
	}
	db.databaseID = id
	return nil
}

// startIDGenerators opens a generator for every id file. On failure the
// generators opened so far are closed before the error is returned.
func (db *Database) startIDGenerators() error {
	db.auxMu.Lock()
	defer db.auxMu.Unlock()

	generators := make(map[string]idgen.Generator)
	var order []string
	for _, path := range db.layout.IDFiles() {
		gen, err := db.idFactory.Open(path)
		if err != nil {
			for _, p := range order {
				_ = generators[p].Close()
			}
			return fmt.Errorf("open id generator %s: %w", path, err)
		}
		generators[path] = gen
		order = append(order, path)
	}

	db.generators = generators
	db.genOrder = order
	return nil
}

func (db *Database) stopIDGenerators() error {
	db.auxMu.Lock()
	defer db.auxMu.Unlock()

	var firstErr error
	for _, path := range db.genOrder {
		if err := db.generators[path].Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close id generator %s: %w", path, err)
		}
	}
	db.generators = nil
	db.genOrder = nil
	return firstErr
}

func (db *Database) startTransactionLog() error {
	log, err := txlog.Open(db.layout.TransactionLogsDirectory())
	if err != nil {
		return fmt.Errorf("open transaction log: %w", err)
	}

	db.auxMu.Lock()
	db.txLog = log
	db.auxMu.Unlock()
	return nil
}

func (db *Database) stopTransactionLog() error {
	db.auxMu.Lock()
	defer db.auxMu.Unlock()

	if db.txLog == nil {
		return nil
	}
	err := db.txLog.Close()
	db.txLog = nil
	return err
}

// forceAuxiliaryState is the checkpointer's hook for durability work beyond
// the store file flush sweep: the transaction log is forced and every id
// generator checkpoints its high water mark.
func (db *Database) forceAuxiliaryState() error {
	db.auxMu.Lock()
	defer db.auxMu.Unlock()

	if db.txLog != nil {
		if err := db.txLog.Force(); err != nil {
			return fmt.Errorf("force transaction log: %w", err)
		}
	}
	for _, path := range db.genOrder {
		if err := db.generators[path].Checkpoint(); err != nil {
			return fmt.Errorf("checkpoint id generator %s: %w", path, err)
		}
	}
	return nil
}
