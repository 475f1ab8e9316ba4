// Package idgen allocates record ids for store files.
//
// Every record store has a sibling .id file holding the high water mark of
// allocated ids. Generators are opened by a Factory during database start;
// the factory is an injection point so tests can substitute failing
// implementations.
package idgen

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

// Factory opens id generators for store id files.
type Factory interface {
	// Open returns a generator backed by the id file at path, creating the
	// file when it does not exist.
	Open(path string) (Generator, error)
}

// Generator allocates ids for one store file.
type Generator interface {
	// NextID returns the next unused id.
	NextID() uint64

	// HighID returns the current high water mark.
	HighID() uint64

	// Checkpoint persists the high water mark to the id file.
	Checkpoint() error

	// Close checkpoints and releases the generator.
	Close() error
}

// FileFactory is the standard Factory, backed by flat id files holding the
// high water mark as a little-endian uint64.
type FileFactory struct{}

// NewFileFactory returns a FileFactory.
func NewFileFactory() *FileFactory { return &FileFactory{} }

// Open implements Factory.
func (f *FileFactory) Open(path string) (Generator, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open id file %s: %w", path, err)
	}

	var buf [8]byte
	var highID uint64
	n, err := file.ReadAt(buf[:], 0)
	switch {
	case n == len(buf):
		highID = binary.LittleEndian.Uint64(buf[:])
	case err != nil && n == 0:
		// New or empty file; high water mark starts at zero.
	default:
		file.Close()
		return nil, fmt.Errorf("id file %s is truncated", path)
	}

	return &fileGenerator{path: path, file: file, highID: highID}, nil
}

type fileGenerator struct {
	path string

	mu     sync.Mutex
	file   *os.File
	highID uint64
	closed bool
}

func (g *fileGenerator) NextID() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.highID++
	return g.highID
}

func (g *fileGenerator) HighID() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.highID
}

func (g *fileGenerator) Checkpoint() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkpointLocked()
}

func (g *fileGenerator) checkpointLocked() error {
	if g.closed {
		return fmt.Errorf("id generator %s is closed", g.path)
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], g.highID)
	if _, err := g.file.WriteAt(buf[:], 0); err != nil {
		return fmt.Errorf("write id file %s: %w", g.path, err)
	}
	if err := g.file.Sync(); err != nil {
		return fmt.Errorf("sync id file %s: %w", g.path, err)
	}
	return nil
}

func (g *fileGenerator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	err := g.checkpointLocked()
	g.closed = true
	if closeErr := g.file.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("close id file %s: %w", g.path, closeErr)
	}
	return err
}

var (
	_ Factory   = (*FileFactory)(nil)
	_ Generator = (*fileGenerator)(nil)
)
