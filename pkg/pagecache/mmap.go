package pagecache

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultPageSize is the page granularity used when none is configured.
const DefaultPageSize = 8192

// MmapConfig configures the memory-mapped page cache.
type MmapConfig struct {
	// PageSize is the mapping granularity in bytes. Files grow in page
	// multiples. Zero means DefaultPageSize.
	PageSize int

	// Tracer observes map/unmap/flush events. May be nil.
	Tracer Tracer
}

// MmapCache is a PageCache backed by mmap'd files. Dirty pages are written
// back by the OS asynchronously; FlushAndForce on a handle issues a
// synchronous msync so the force is durable before it returns.
type MmapCache struct {
	mu       sync.Mutex
	pageSize int
	tracer   Tracer
	files    map[string]*mmapFile
	closed   bool
}

// NewMmap creates an empty memory-mapped page cache.
func NewMmap(cfg MmapConfig) *MmapCache {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &MmapCache{
		pageSize: pageSize,
		tracer:   cfg.Tracer,
		files:    make(map[string]*mmapFile),
	}
}

// Map implements PageCache.
func (c *MmapCache) Map(path string, opts ...MapOption) (PagedFile, error) {
	cfg := ApplyOptions(opts)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if _, ok := c.files[path]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyMapped, path)
	}

	flags := os.O_RDWR
	if cfg.Create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	// Grow to at least one page; mmap of a zero-length region fails.
	size := roundUp(info.Size(), int64(c.pageSize))
	if size == 0 {
		size = int64(c.pageSize)
	}
	if size != info.Size() {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("truncate %s: %w", path, err)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	mf := &mmapFile{
		cache: c,
		path:  path,
		file:  f,
		data:  data,
		size:  size,
	}
	c.files[path] = mf

	if c.tracer != nil {
		c.tracer.Mapped(path)
	}
	return mf, nil
}

// FlushAndForce implements PageCache. It forces every mapped file in the
// cache regardless of which database instance owns it.
func (c *MmapCache) FlushAndForce() error {
	for _, mf := range c.snapshot() {
		if err := mf.FlushAndForce(); err != nil {
			return err
		}
	}
	return nil
}

// Close implements PageCache.
func (c *MmapCache) Close() error {
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

func (c *MmapCache) snapshot() []*mmapFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*mmapFile, 0, len(c.files))
	for _, mf := range c.files {
		out = append(out, mf)
	}
	return out
}

func (c *MmapCache) forget(path string) {
	c.mu.Lock()
	delete(c.files, path)
	c.mu.Unlock()
}

func roundUp(n, multiple int64) int64 {
	if multiple <= 0 {
		return n
	}
	rem := n % multiple
	if rem == 0 {
		return n
	}
	return n + multiple - rem
}

// mmapFile is one mapped store file.
type mmapFile struct {
	cache *MmapCache
	path  string

	mu            sync.Mutex
	file          *os.File
	data          []byte
	size          int64
	deleteOnClose bool
	closed        bool
}

// Path implements PagedFile.
func (m *mmapFile) Path() string { return m.path }

// ReadAt implements PagedFile.
func (m *mmapFile) ReadAt(buf []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= m.size {
		return 0, io.EOF
	}
	n := copy(buf, m.data[off:m.size])
	if n < len(buf) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements PagedFile. The mapped region grows in page multiples
// when the write extends past the current size.
func (m *mmapFile) WriteAt(buf []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if err := m.ensureSpace(off + int64(len(buf))); err != nil {
		return 0, err
	}
	n := copy(m.data[off:], buf)
	return n, nil
}

// ensureSpace grows the file and remaps it so at least needed bytes are
// addressable. Caller must hold m.mu.
func (m *mmapFile) ensureSpace(needed int64) error {
	if needed <= m.size {
		return nil
	}
	newSize := m.size
	for newSize < needed {
		newSize *= 2
	}
	newSize = roundUp(newSize, int64(m.cache.pageSize))

	if err := unix.Munmap(m.data); err != nil {
		return fmt.Errorf("munmap %s: %w", m.path, err)
	}
	if err := m.file.Truncate(newSize); err != nil {
		return fmt.Errorf("truncate %s: %w", m.path, err)
	}
	data, err := unix.Mmap(int(m.file.Fd()), 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap %s: %w", m.path, err)
	}
	m.data = data
	m.size = newSize
	return nil
}

// FlushAndForce implements PagedFile.
func (m *mmapFile) FlushAndForce() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync %s: %w", m.path, err)
	}
	if t := m.cache.tracer; t != nil {
		t.Flushed(m.path)
	}
	return nil
}

// SetDeleteOnClose implements PagedFile.
func (m *mmapFile) SetDeleteOnClose(v bool) {
	m.mu.Lock()
	m.deleteOnClose = v
	m.mu.Unlock()
}

// IsDeleteOnClose implements PagedFile.
func (m *mmapFile) IsDeleteOnClose() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteOnClose
}

// Close implements PagedFile. A file marked delete-on-close is removed from
// disk without any flush; its dirty pages are discarded with the mapping.
func (m *mmapFile) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	deleteOnClose := m.deleteOnClose
	m.mu.Unlock()

	var firstErr error
	if err := unix.Munmap(m.data); err != nil {
		firstErr = fmt.Errorf("munmap %s: %w", m.path, err)
	}
	if err := m.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close %s: %w", m.path, err)
	}
	if deleteOnClose {
		if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("remove %s: %w", m.path, err)
		}
	}

	m.cache.forget(m.path)
	if t := m.cache.tracer; t != nil {
		t.Unmapped(m.path)
	}
	return firstErr
}

var (
	_ PageCache = (*MmapCache)(nil)
	_ PagedFile = (*mmapFile)(nil)
)
