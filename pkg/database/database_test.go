package database

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verticedb/vertice/pkg/health"
	"github.com/verticedb/vertice/pkg/idgen"
	"github.com/verticedb/vertice/pkg/layout"
	"github.com/verticedb/vertice/pkg/logsvc"
	"github.com/verticedb/vertice/pkg/pagecache"
	"github.com/verticedb/vertice/pkg/pagecache/memory"
	"github.com/verticedb/vertice/pkg/txlog"
)

// guardedCache wraps the in-memory cache and counts cache-wide flushes,
// which lifecycle code must never trigger.
type guardedCache struct {
	*memory.Cache
	globalFlushes atomic.Int64
}

func (g *guardedCache) FlushAndForce() error {
	g.globalFlushes.Add(1)
	return g.Cache.FlushAndForce()
}

// failingIDFactory fails every Open, simulating a component that cannot
// come up during start.
type failingIDFactory struct {
	err error
}

func (f failingIDFactory) Open(string) (idgen.Generator, error) {
	return nil, f.err
}

type testEnv struct {
	db       *Database
	layout   layout.DatabaseLayout
	cache    *guardedCache
	tracer   *pagecache.CountingTracer
	recorder *logsvc.Recorder
}

// newTestDatabase builds a database on the in-memory page cache with
// separate database and transaction-log roots, mirroring a deployment where
// the two live on different volumes.
func newTestDatabase(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	root := t.TempDir()
	tracer := pagecache.NewCountingTracer()
	cache := &guardedCache{Cache: memory.New(tracer)}
	t.Cleanup(func() { _ = cache.Close() })

	recorder := logsvc.NewRecorder()
	cfg := Config{
		Layout:     layout.Of(filepath.Join(root, "databases"), filepath.Join(root, "transactions"), "graph"),
		PageCache:  cache,
		LogHandler: recorder,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	db, err := New(cfg)
	require.NoError(t, err)

	return &testEnv{
		db:       db,
		layout:   cfg.Layout,
		cache:    cache,
		tracer:   tracer,
		recorder: recorder,
	}
}

func mustStart(t *testing.T, db *Database) {
	t.Helper()
	require.NoError(t, db.Start())
}

func fileNames(t *testing.T, dir string) []string {
	t.Helper()
	names, err := listFileNames(dir)
	require.NoError(t, err)
	return names
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Layout: layout.OfFlat("/data/graph")})
	assert.Error(t, err)

	_, err = New(Config{PageCache: memory.New(nil)})
	assert.Error(t, err)
}

func TestStartHealsHealthMonitor(t *testing.T) {
	env := newTestDatabase(t, nil)

	env.db.Health().Panic(errors.New("crash before start"))
	require.False(t, env.db.Health().IsHealthy())

	mustStart(t, env.db)

	assert.True(t, env.db.Health().IsHealthy())
	assert.Equal(t, StateStarted, env.db.State())
}

func TestStartTwiceReturnsAlreadyStarted(t *testing.T) {
	env := newTestDatabase(t, nil)
	mustStart(t, env.db)

	assert.ErrorIs(t, env.db.Start(), ErrAlreadyStarted)
}

func TestStopWithoutStartReturnsNotStarted(t *testing.T) {
	env := newTestDatabase(t, nil)

	assert.ErrorIs(t, env.db.Stop(), ErrNotStarted)
}

func TestHealthyStopFlushesEachStoreExactlyOnce(t *testing.T) {
	env := newTestDatabase(t, nil)
	mustStart(t, env.db)

	stores := int64(len(env.layout.RecordStoreFiles()))
	require.Equal(t, stores, env.tracer.Maps())

	require.NoError(t, env.db.Stop())

	assert.Equal(t, stores, env.tracer.Flushes())
	assert.Equal(t, env.tracer.Maps(), env.tracer.Unmaps())
	assert.Zero(t, env.cache.globalFlushes.Load(), "shutdown must never use the cache-wide flush")
	assert.Equal(t, StateStopped, env.db.State())
}

func TestUnhealthyStopSkipsFlushButStopsEverything(t *testing.T) {
	env := newTestDatabase(t, nil)
	mustStart(t, env.db)

	log, err := Resolve[*txlog.Log](env.db.DependencyResolver())
	require.NoError(t, err)

	cause := errors.New("store corrupted by failed applier")
	env.db.Health().Panic(cause)

	err = env.db.Stop()
	require.Error(t, err)

	var shutdown *ShutdownError
	require.ErrorAs(t, err, &shutdown)
	assert.ErrorIs(t, err, cause)

	assert.Zero(t, env.tracer.Flushes(), "a panicked database must not flush on the way down")
	assert.Equal(t, env.tracer.Maps(), env.tracer.Unmaps(), "every handle must still be released")
	assert.Equal(t, StateStopped, env.db.State())

	_, err = log.Append([]byte("late entry"))
	assert.ErrorIs(t, err, txlog.ErrLogClosed, "transaction log must be closed despite the failed health check")
}

func TestFailedStartRollsBackStartedComponents(t *testing.T) {
	cause := errors.New("id file unreadable")
	env := newTestDatabase(t, func(cfg *Config) {
		cfg.IDFactory = failingIDFactory{err: cause}
	})

	err := env.db.Start()
	require.Error(t, err)

	var startup *StartupError
	require.ErrorAs(t, err, &startup)
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, env.tracer.Maps(), env.tracer.Unmaps(), "rolled-back storage must not leak mapped handles")
	assert.NotEqual(t, StateStarted, env.db.State())
	assert.ErrorIs(t, env.db.Stop(), ErrNotStarted)

	warnings := env.recorder.AtLevel(slog.LevelWarn)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "rolling back")
}

func TestDropRemovesBothDirectories(t *testing.T) {
	env := newTestDatabase(t, nil)
	mustStart(t, env.db)

	require.DirExists(t, env.layout.DatabaseDirectory())
	require.DirExists(t, env.layout.TransactionLogsDirectory())

	require.NoError(t, env.db.Drop())

	assert.NoDirExists(t, env.layout.DatabaseDirectory())
	assert.NoDirExists(t, env.layout.TransactionLogsDirectory())
	assert.Equal(t, StateDropped, env.db.State())
}

func TestDropWithoutStartRemovesDirectories(t *testing.T) {
	env := newTestDatabase(t, nil)

	require.NoError(t, os.MkdirAll(env.layout.DatabaseDirectory(), 0755))
	require.NoError(t, os.MkdirAll(env.layout.TransactionLogsDirectory(), 0755))
	require.NoError(t, os.WriteFile(env.layout.File("leftover"), []byte("x"), 0644))

	require.NoError(t, env.db.Drop())

	assert.NoDirExists(t, env.layout.DatabaseDirectory())
	assert.NoDirExists(t, env.layout.TransactionLogsDirectory())
}

func TestDropNeverFlushes(t *testing.T) {
	env := newTestDatabase(t, nil)
	mustStart(t, env.db)

	pf, ok := env.db.coordinator.Handle(env.layout.File(layout.NodeStore))
	require.True(t, ok)
	_, err := pf.WriteAt([]byte("doomed records"), 0)
	require.NoError(t, err)

	require.NoError(t, env.db.Drop())

	assert.Zero(t, env.tracer.Flushes())
	assert.Zero(t, env.cache.globalFlushes.Load())
}

func TestDroppedIsTerminal(t *testing.T) {
	env := newTestDatabase(t, nil)
	mustStart(t, env.db)
	require.NoError(t, env.db.Drop())

	assert.ErrorIs(t, env.db.Start(), ErrDropped)
	assert.ErrorIs(t, env.db.Stop(), ErrDropped)
	assert.ErrorIs(t, env.db.Truncate(), ErrDropped)
	assert.ErrorIs(t, env.db.Drop(), ErrDropped)
}

func TestTruncatePreservesDirectoriesAndFileNames(t *testing.T) {
	env := newTestDatabase(t, nil)
	mustStart(t, env.db)

	log, err := Resolve[*txlog.Log](env.db.DependencyResolver())
	require.NoError(t, err)
	_, err = log.Append([]byte("discarded by truncate"))
	require.NoError(t, err)

	pf, ok := env.db.coordinator.Handle(env.layout.File(layout.NodeStore))
	require.True(t, ok)
	_, err = pf.WriteAt([]byte("node records"), 0)
	require.NoError(t, err)

	dbNamesBefore := fileNames(t, env.layout.DatabaseDirectory())
	txNamesBefore := fileNames(t, env.layout.TransactionLogsDirectory())

	require.NoError(t, env.db.Truncate())

	assert.DirExists(t, env.layout.DatabaseDirectory())
	assert.DirExists(t, env.layout.TransactionLogsDirectory())
	assert.ElementsMatch(t, dbNamesBefore, fileNames(t, env.layout.DatabaseDirectory()))
	assert.ElementsMatch(t, txNamesBefore, fileNames(t, env.layout.TransactionLogsDirectory()))
	assert.Zero(t, env.tracer.Flushes(), "truncate must discard, never flush")
	assert.Equal(t, StateStarted, env.db.State())

	for _, path := range env.layout.RecordStoreFiles() {
		_, ok := env.db.coordinator.Handle(path)
		assert.True(t, ok, "store %s must be mapped again after truncate", path)
	}

	fresh, err := Resolve[*txlog.Log](env.db.DependencyResolver())
	require.NoError(t, err)
	assert.Zero(t, fresh.EntryCount(), "transaction log must be empty after truncate")
	assert.NotEqual(t, log.LogID(), fresh.LogID())
}

func TestTruncateOnStoppedInstance(t *testing.T) {
	env := newTestDatabase(t, nil)
	mustStart(t, env.db)
	require.NoError(t, env.db.Stop())

	dbNamesBefore := fileNames(t, env.layout.DatabaseDirectory())
	txNamesBefore := fileNames(t, env.layout.TransactionLogsDirectory())

	require.NoError(t, env.db.Truncate())

	assert.ElementsMatch(t, dbNamesBefore, fileNames(t, env.layout.DatabaseDirectory()))
	assert.ElementsMatch(t, txNamesBefore, fileNames(t, env.layout.TransactionLogsDirectory()))

	// The recreated empty files must not prevent a restart.
	mustStart(t, env.db)
	require.NoError(t, env.db.Stop())
}

func TestDatabaseIDStableAcrossTruncateAndRestart(t *testing.T) {
	env := newTestDatabase(t, nil)

	assert.Equal(t, uuid.Nil, env.db.DatabaseID())

	mustStart(t, env.db)
	id := env.db.DatabaseID()
	require.NotEqual(t, uuid.Nil, id)

	require.NoError(t, env.db.Truncate())
	assert.Equal(t, id, env.db.DatabaseID())

	require.NoError(t, env.db.Stop())
	mustStart(t, env.db)
	assert.Equal(t, id, env.db.DatabaseID())
}

func TestResolverExposesLifecycleServices(t *testing.T) {
	env := newTestDatabase(t, nil)
	mustStart(t, env.db)

	svc, err := Resolve[*logsvc.Service](env.db.DependencyResolver())
	require.NoError(t, err)
	assert.Same(t, env.db.LogService(), svc)

	h, err := Resolve[health.Health](env.db.DependencyResolver())
	require.NoError(t, err)
	assert.Equal(t, env.db.Health(), h)

	cache, err := Resolve[pagecache.PageCache](env.db.DependencyResolver())
	require.NoError(t, err)
	assert.NotNil(t, cache)

	log, err := Resolve[*txlog.Log](env.db.DependencyResolver())
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestInjectedDependenciesOverrideDefaults(t *testing.T) {
	deps := NewDependencyResolver()
	monitor := health.NewMonitor(nil)
	Register[health.Health](deps, monitor)

	env := newTestDatabase(t, func(cfg *Config) {
		cfg.Dependencies = deps
	})

	assert.Equal(t, health.Health(monitor), env.db.Health())
	assert.Same(t, deps, env.db.DependencyResolver())
}

func TestCheckpointFlushesEachStoreOnce(t *testing.T) {
	env := newTestDatabase(t, nil)
	mustStart(t, env.db)

	require.NoError(t, env.db.Checkpoint())

	assert.Equal(t, int64(len(env.layout.RecordStoreFiles())), env.tracer.Flushes())
	assert.Zero(t, env.cache.globalFlushes.Load())
}

func TestCheckpointOnStoppedInstance(t *testing.T) {
	env := newTestDatabase(t, nil)

	assert.ErrorIs(t, env.db.Checkpoint(), ErrNotStarted)
}

func TestCheckpointSkippedWhenUnhealthy(t *testing.T) {
	env := newTestDatabase(t, nil)
	mustStart(t, env.db)

	env.db.Health().Panic(errors.New("applier failure"))

	assert.Error(t, env.db.Checkpoint())
	assert.Zero(t, env.tracer.Flushes())
}

func TestBackgroundCheckpointing(t *testing.T) {
	env := newTestDatabase(t, func(cfg *Config) {
		cfg.CheckpointInterval = 10 * time.Millisecond
	})
	mustStart(t, env.db)

	assert.Eventually(t, func() bool {
		return env.tracer.Flushes() > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, env.db.Stop())
}

func TestRestartAfterStop(t *testing.T) {
	env := newTestDatabase(t, nil)
	mustStart(t, env.db)
	require.NoError(t, env.db.Stop())

	mustStart(t, env.db)
	assert.Equal(t, StateStarted, env.db.State())
	require.NoError(t, env.db.Stop())
}

func TestFlatLayoutTruncate(t *testing.T) {
	root := t.TempDir()
	tracer := pagecache.NewCountingTracer()
	cache := memory.New(tracer)
	t.Cleanup(func() { _ = cache.Close() })

	db, err := New(Config{
		Layout:     layout.OfFlat(filepath.Join(root, "graph")),
		PageCache:  cache,
		LogHandler: logsvc.NewRecorder(),
	})
	require.NoError(t, err)
	mustStart(t, db)

	namesBefore := fileNames(t, db.Layout().DatabaseDirectory())
	require.NoError(t, db.Truncate())
	assert.ElementsMatch(t, namesBefore, fileNames(t, db.Layout().DatabaseDirectory()))
	require.NoError(t, db.Stop())
}
