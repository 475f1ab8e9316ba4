// Package pagecache defines the page cache contract the database lifecycle
// consumes, plus a memory-mapped implementation.
//
// The cache is multiplexed across database instances: a single PageCache may
// hold files belonging to several databases. Instance-scoped bookkeeping
// (which handles belong to which database) is NOT done here; that is the
// job of the per-database coordinator in pkg/database. The lifecycle only
// ever forces individual handles, never the cache-wide FlushAndForce, so
// one instance's shutdown cannot flush another instance's dirty pages.
package pagecache

import (
	"errors"
)

// Cache errors.
var (
	// ErrClosed is returned when operations are attempted on a closed cache
	// or handle.
	ErrClosed = errors.New("page cache closed")

	// ErrNotMapped is returned when a path is not mapped.
	ErrNotMapped = errors.New("file not mapped")

	// ErrAlreadyMapped is returned when a path is mapped twice.
	ErrAlreadyMapped = errors.New("file already mapped")
)

// PageCache maps store files into memory and hands out per-file handles.
type PageCache interface {
	// Map opens the file at path and returns a handle for it. Mapping the
	// same path twice returns ErrAlreadyMapped; handles are exclusive.
	Map(path string, opts ...MapOption) (PagedFile, error)

	// FlushAndForce flushes every mapped file in the cache, across all
	// database instances. Lifecycle code must never call this: it would
	// force pages belonging to other instances. It exists for global
	// maintenance tooling only.
	FlushAndForce() error

	// Close unmaps every remaining file and releases the cache.
	Close() error
}

// PagedFile is a single file mapped into the page cache.
type PagedFile interface {
	// Path returns the file's path as given to Map.
	Path() string

	// ReadAt reads len(buf) bytes from the mapped region at off.
	ReadAt(buf []byte, off int64) (int, error)

	// WriteAt writes buf at off, growing the mapped region as needed.
	WriteAt(buf []byte, off int64) (int, error)

	// FlushAndForce forces every dirty page of this file to durable
	// storage and blocks until the force completes.
	FlushAndForce() error

	// SetDeleteOnClose marks the file for deletion when the handle is
	// closed. The deletion is cache-mediated: no flush is issued for a
	// file that is about to be deleted.
	SetDeleteOnClose(bool)

	// IsDeleteOnClose reports whether the file is marked for deletion.
	IsDeleteOnClose() bool

	// Close unmaps the file, deleting it first when marked delete-on-close.
	Close() error
}

// MapOptions carries the resolved options of one Map call.
type MapOptions struct {
	// Create makes Map create the file when it does not exist.
	Create bool
}

// MapOption configures a single Map call.
type MapOption func(*MapOptions)

// WithCreate makes Map create the file when it does not exist.
func WithCreate() MapOption {
	return func(o *MapOptions) { o.Create = true }
}

// ApplyOptions resolves a Map call's options. Exported so PageCache
// implementations outside this package can honor them.
func ApplyOptions(opts []MapOption) MapOptions {
	var cfg MapOptions
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}
