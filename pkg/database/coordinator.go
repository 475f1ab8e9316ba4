package database

import (
	"fmt"
	"sync"

	"github.com/verticedb/vertice/pkg/pagecache"
)

// PageCacheCoordinator tracks the page cache handles mapped on behalf of
// one database instance.
//
// The underlying page cache is shared across instances; the coordinator's
// bookkeeping is what keeps flush sweeps and deletions instance-local. It
// only ever forces individual handles it owns, never the cache-wide
// FlushAndForce entry point.
type PageCacheCoordinator struct {
	cache pagecache.PageCache

	mu      sync.Mutex
	order   []string
	handles map[string]pagecache.PagedFile
}

// NewPageCacheCoordinator wraps the shared page cache with instance-scoped
// handle tracking.
func NewPageCacheCoordinator(cache pagecache.PageCache) *PageCacheCoordinator {
	return &PageCacheCoordinator{
		cache:   cache,
		handles: make(map[string]pagecache.PagedFile),
	}
}

// MapFile maps path into the page cache and records the handle as owned by
// this instance.
func (c *PageCacheCoordinator) MapFile(path string, opts ...pagecache.MapOption) (pagecache.PagedFile, error) {
	pf, err := c.cache.Map(path, opts...)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if _, ok := c.handles[path]; !ok {
		c.order = append(c.order, path)
	}
	c.handles[path] = pf
	c.mu.Unlock()
	return pf, nil
}

// Handle returns the owned handle for path, if mapped.
func (c *PageCacheCoordinator) Handle(path string) (pagecache.PagedFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pf, ok := c.handles[path]
	return pf, ok
}

// MappedPaths returns the paths of all owned handles in mapping order.
func (c *PageCacheCoordinator) MappedPaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// FlushAllMapped forces every owned handle to durable storage, each exactly
// once. Handles belonging to other instances on the same cache are never
// touched.
func (c *PageCacheCoordinator) FlushAllMapped() error {
	for _, pf := range c.snapshot() {
		if err := pf.FlushAndForce(); err != nil {
			return fmt.Errorf("flush %s: %w", pf.Path(), err)
		}
	}
	return nil
}

// DeleteOnCloseAndUnmap marks the owned handles for the given paths as
// delete-on-close and unmaps them. No flush is issued: the deletion is
// cache-mediated. Paths without an owned handle are skipped.
func (c *PageCacheCoordinator) DeleteOnCloseAndUnmap(paths []string) error {
	var firstErr error
	for _, path := range paths {
		c.mu.Lock()
		pf, ok := c.handles[path]
		c.mu.Unlock()
		if !ok {
			continue
		}
		pf.SetDeleteOnClose(true)
		if err := c.close(path, pf); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// UnmapAll closes every owned handle without marking it for deletion.
func (c *PageCacheCoordinator) UnmapAll() error {
	var firstErr error
	for _, pf := range c.snapshot() {
		if err := c.close(pf.Path(), pf); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *PageCacheCoordinator) snapshot() []pagecache.PagedFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]pagecache.PagedFile, 0, len(c.order))
	for _, path := range c.order {
		if pf, ok := c.handles[path]; ok {
			out = append(out, pf)
		}
	}
	return out
}

// close closes pf and drops it from the ownership records.
func (c *PageCacheCoordinator) close(path string, pf pagecache.PagedFile) error {
	err := pf.Close()

	c.mu.Lock()
	delete(c.handles, path)
	for i, p := range c.order {
		if p == path {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	return err
}
