package pagecache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*MmapCache, *CountingTracer) {
	t.Helper()
	tracer := NewCountingTracer()
	c := NewMmap(MmapConfig{PageSize: 4096, Tracer: tracer})
	t.Cleanup(func() { _ = c.Close() })
	return c, tracer
}

func TestMapCreatesFile(t *testing.T) {
	c, tracer := newTestCache(t)
	path := filepath.Join(t.TempDir(), "store.db")

	pf, err := c.Map(path, WithCreate())
	require.NoError(t, err)

	assert.Equal(t, path, pf.Path())
	assert.FileExists(t, path)
	assert.EqualValues(t, 1, tracer.Maps())
}

func TestMapMissingFileWithoutCreateFails(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.Map(filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}

func TestMapSamePathTwiceFails(t *testing.T) {
	c, _ := newTestCache(t)
	path := filepath.Join(t.TempDir(), "store.db")

	_, err := c.Map(path, WithCreate())
	require.NoError(t, err)

	_, err = c.Map(path, WithCreate())
	assert.ErrorIs(t, err, ErrAlreadyMapped)
}

func TestWriteReadRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	path := filepath.Join(t.TempDir(), "store.db")

	pf, err := c.Map(path, WithCreate())
	require.NoError(t, err)

	payload := []byte("node record payload")
	n, err := pf.WriteAt(payload, 128)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	buf := make([]byte, len(payload))
	n, err = pf.ReadAt(buf, 128)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, buf)
}

func TestWriteGrowsMapping(t *testing.T) {
	c, _ := newTestCache(t)
	path := filepath.Join(t.TempDir(), "store.db")

	pf, err := c.Map(path, WithCreate())
	require.NoError(t, err)

	// Far past the initial single page.
	payload := []byte("grown")
	_, err = pf.WriteAt(payload, 64*1024)
	require.NoError(t, err)

	buf := make([]byte, len(payload))
	_, err = pf.ReadAt(buf, 64*1024)
	require.NoError(t, err)
	assert.Equal(t, payload, buf)
}

func TestFlushAndForcePersists(t *testing.T) {
	c, tracer := newTestCache(t)
	path := filepath.Join(t.TempDir(), "store.db")

	pf, err := c.Map(path, WithCreate())
	require.NoError(t, err)

	payload := []byte("durable")
	_, err = pf.WriteAt(payload, 0)
	require.NoError(t, err)

	require.NoError(t, pf.FlushAndForce())
	assert.EqualValues(t, 1, tracer.Flushes())

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, onDisk[:len(payload)])
}

func TestDeleteOnCloseRemovesFileWithoutFlush(t *testing.T) {
	c, tracer := newTestCache(t)
	path := filepath.Join(t.TempDir(), "store.db")

	pf, err := c.Map(path, WithCreate())
	require.NoError(t, err)
	assert.False(t, pf.IsDeleteOnClose())

	pf.SetDeleteOnClose(true)
	assert.True(t, pf.IsDeleteOnClose())

	require.NoError(t, pf.Close())

	assert.NoFileExists(t, path)
	assert.EqualValues(t, 0, tracer.Flushes())
	assert.EqualValues(t, 1, tracer.Unmaps())
}

func TestCloseKeepsFile(t *testing.T) {
	c, _ := newTestCache(t)
	path := filepath.Join(t.TempDir(), "store.db")

	pf, err := c.Map(path, WithCreate())
	require.NoError(t, err)
	require.NoError(t, pf.Close())

	assert.FileExists(t, path)

	// The path can be mapped again after close.
	_, err = c.Map(path)
	assert.NoError(t, err)
}

func TestOperationsAfterCloseFail(t *testing.T) {
	c, _ := newTestCache(t)
	path := filepath.Join(t.TempDir(), "store.db")

	pf, err := c.Map(path, WithCreate())
	require.NoError(t, err)
	require.NoError(t, pf.Close())

	_, err = pf.WriteAt([]byte("x"), 0)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = pf.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, pf.FlushAndForce(), ErrClosed)
}

func TestCacheWideFlushTouchesEveryHandle(t *testing.T) {
	c, tracer := newTestCache(t)
	dir := t.TempDir()

	for _, name := range []string{"a.db", "b.db", "c.db"} {
		_, err := c.Map(filepath.Join(dir, name), WithCreate())
		require.NoError(t, err)
	}

	require.NoError(t, c.FlushAndForce())
	assert.EqualValues(t, 3, tracer.Flushes())
}

func TestCacheCloseUnmapsAll(t *testing.T) {
	tracer := NewCountingTracer()
	c := NewMmap(MmapConfig{Tracer: tracer})
	dir := t.TempDir()

	_, err := c.Map(filepath.Join(dir, "a.db"), WithCreate())
	require.NoError(t, err)
	_, err = c.Map(filepath.Join(dir, "b.db"), WithCreate())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.EqualValues(t, 2, tracer.Unmaps())

	_, err = c.Map(filepath.Join(dir, "c.db"), WithCreate())
	assert.ErrorIs(t, err, ErrClosed)
}
