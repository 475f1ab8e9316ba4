// Package memory provides an in-memory PageCache implementation.
//
// File contents are buffered in heap memory and only written to disk on an
// explicit per-handle FlushAndForce. The files themselves still exist on
// disk (Map creates them when asked to), so directory-level lifecycle
// operations behave exactly as with the mmap cache. Intended for tests.
package memory

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/verticedb/vertice/pkg/pagecache"
)

// Cache is an in-memory pagecache.PageCache.
type Cache struct {
	mu     sync.Mutex
	tracer pagecache.Tracer
	files  map[string]*memFile
	closed bool
}

// New creates an empty in-memory page cache. The tracer may be nil.
func New(tracer pagecache.Tracer) *Cache {
	return &Cache{
		tracer: tracer,
		files:  make(map[string]*memFile),
	}
}

// Map implements pagecache.PageCache.
func (c *Cache) Map(path string, opts ...pagecache.MapOption) (pagecache.PagedFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, pagecache.ErrClosed
	}
	if _, ok := c.files[path]; ok {
		return nil, fmt.Errorf("%w: %s", pagecache.ErrAlreadyMapped, path)
	}

	cfg := pagecache.ApplyOptions(opts)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if !cfg.Create {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		if err := os.WriteFile(path, nil, 0644); err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		data = nil
	}

	mf := &memFile{cache: c, path: path, data: data}
	c.files[path] = mf

	if c.tracer != nil {
		c.tracer.Mapped(path)
	}
	return mf, nil
}

// FlushAndForce implements pagecache.PageCache.
func (c *Cache) FlushAndForce() error {
	for _, mf := range c.snapshot() {
		if err := mf.FlushAndForce(); err != nil {
			return err
		}
	}
	return nil
}

// Close implements pagecache.PageCache.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var firstErr error
	for _, mf := range c.snapshot() {
		if err := mf.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Cache) snapshot() []*memFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*memFile, 0, len(c.files))
	for _, mf := range c.files {
		out = append(out, mf)
	}
	return out
}

func (c *Cache) forget(path string) {
	c.mu.Lock()
	delete(c.files, path)
	c.mu.Unlock()
}

// memFile is one buffered file.
type memFile struct {
	cache *Cache
	path  string

	mu            sync.Mutex
	data          []byte
	deleteOnClose bool
	closed        bool
}

func (m *memFile) Path() string { return m.path }

func (m *memFile) ReadAt(buf []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, pagecache.ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(buf, m.data[off:])
	if n < len(buf) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memFile) WriteAt(buf []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, pagecache.ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if end := off + int64(len(buf)); end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	return copy(m.data[off:], buf), nil
}

// FlushAndForce writes the buffer back to the underlying file and syncs it.
func (m *memFile) FlushAndForce() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return pagecache.ErrClosed
	}
	f, err := os.OpenFile(m.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", m.path, err)
	}
	if _, err := f.Write(m.data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", m.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", m.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", m.path, err)
	}

	if t := m.cache.tracer; t != nil {
		t.Flushed(m.path)
	}
	return nil
}

func (m *memFile) SetDeleteOnClose(v bool) {
	m.mu.Lock()
	m.deleteOnClose = v
	m.mu.Unlock()
}

func (m *memFile) IsDeleteOnClose() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteOnClose
}

// Close drops the buffer. A file marked delete-on-close is removed from
// disk; its buffered writes are discarded, never flushed.
func (m *memFile) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	deleteOnClose := m.deleteOnClose
	m.mu.Unlock()

	var err error
	if deleteOnClose {
		if rmErr := os.Remove(m.path); rmErr != nil && !os.IsNotExist(rmErr) {
			err = fmt.Errorf("remove %s: %w", m.path, rmErr)
		}
	}

	m.cache.forget(m.path)
	if t := m.cache.tracer; t != nil {
		t.Unmapped(m.path)
	}
	return err
}

var (
	_ pagecache.PageCache = (*Cache)(nil)
	_ pagecache.PagedFile = (*memFile)(nil)
)
