package memory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verticedb/vertice/pkg/pagecache"
)

func TestMapCreateAndRoundTrip(t *testing.T) {
	c := New(nil)
	path := filepath.Join(t.TempDir(), "store.db")

	pf, err := c.Map(path, pagecache.WithCreate())
	require.NoError(t, err)
	assert.FileExists(t, path)

	payload := []byte("hello")
	_, err = pf.WriteAt(payload, 10)
	require.NoError(t, err)

	buf := make([]byte, len(payload))
	_, err = pf.ReadAt(buf, 10)
	require.NoError(t, err)
	assert.Equal(t, payload, buf)
}

func TestFlushWritesThrough(t *testing.T) {
	tracer := pagecache.NewCountingTracer()
	c := New(tracer)
	path := filepath.Join(t.TempDir(), "store.db")

	pf, err := c.Map(path, pagecache.WithCreate())
	require.NoError(t, err)

	_, err = pf.WriteAt([]byte("durable"), 0)
	require.NoError(t, err)

	// Nothing on disk until the forced flush.
	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, onDisk)

	require.NoError(t, pf.FlushAndForce())
	assert.EqualValues(t, 1, tracer.Flushes())

	onDisk, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), onDisk)
}

func TestDeleteOnCloseDiscardsWithoutFlush(t *testing.T) {
	tracer := pagecache.NewCountingTracer()
	c := New(tracer)
	path := filepath.Join(t.TempDir(), "store.db")

	pf, err := c.Map(path, pagecache.WithCreate())
	require.NoError(t, err)

	_, err = pf.WriteAt([]byte("doomed"), 0)
	require.NoError(t, err)

	pf.SetDeleteOnClose(true)
	require.NoError(t, pf.Close())

	assert.NoFileExists(t, path)
	assert.EqualValues(t, 0, tracer.Flushes())
}

func TestMapExistingFileLoadsContents(t *testing.T) {
	c := New(nil)
	path := filepath.Join(t.TempDir(), "store.db")
	require.NoError(t, os.WriteFile(path, []byte("existing"), 0644))

	pf, err := c.Map(path)
	require.NoError(t, err)

	buf := make([]byte, 8)
	_, err = pf.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("existing"), buf)
}

func TestDoubleMapFails(t *testing.T) {
	c := New(nil)
	path := filepath.Join(t.TempDir(), "store.db")

	_, err := c.Map(path, pagecache.WithCreate())
	require.NoError(t, err)
	_, err = c.Map(path)
	assert.ErrorIs(t, err, pagecache.ErrAlreadyMapped)
}
