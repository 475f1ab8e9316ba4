// Package txlog implements the transaction log of a database instance.
//
// The log is an mmap-backed append-only file living in the instance's
// transaction-log directory. Appends go to the mapped region and are made
// durable by Force (a synchronous msync); on open the log is replayed to
// find the next append position and validate integrity.
//
// File format:
//
//	Header (64 bytes):
//	  - Magic: "VTXL" (4 bytes)
//	  - Version: uint16 (2 bytes)
//	  - Entry count: uint32 (4 bytes)
//	  - Next write offset: uint64 (8 bytes)
//	  - Log ID: 16 bytes (UUID)
//	  - Reserved: 30 bytes
//
//	Entries (variable):
//	  - Payload length: uint32 (4 bytes)
//	  - Sequence number: uint64 (8 bytes)
//	  - Payload: variable
package txlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"sync"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Log errors.
var (
	ErrCorrupted       = errors.New("transaction log corrupted")
	ErrVersionMismatch = errors.New("transaction log version mismatch")
	ErrLogClosed       = errors.New("transaction log closed")
)

const (
	logMagic     = "VTXL"
	logVersion   = uint16(1)
	headerSize   = 64
	initialSize  = 16 * 1024 * 1024
	growthFactor = 2

	// FileName is the log file's name inside the transaction-log directory.
	FileName = "vertice.txlog"
)

type header struct {
	entryCount uint32
	nextOffset uint64
	logID      uuid.UUID
}

// Log is an append-only transaction log for one database instance.
type Log struct {
	path string

	mu     sync.Mutex
	file   *os.File
	data   []byte
	size   uint64
	hdr    header
	closed bool
}

// Open opens or creates the transaction log inside dir. The directory is
// created when missing.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create transaction log directory: %w", err)
	}

	// An empty file is a fresh log: truncation recreates log files by name
	// with no content.
	path := filepath.Join(dir, FileName)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return recoverLog(path)
	}
	return createLog(path)
}

func createLog(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	if err := f.Truncate(initialSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate log file: %w", err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, initialSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap log file: %w", err)
	}

	l := &Log{
		path: path,
		file: f,
		data: data,
		size: initialSize,
		hdr: header{
			nextOffset: headerSize,
			logID:      uuid.New(),
		},
	}
	l.writeHeader()
	return l, nil
}

func recoverLog(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	size := uint64(info.Size())
	if size < headerSize {
		f.Close()
		return nil, ErrCorrupted
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap log file: %w", err)
	}

	l := &Log{path: path, file: f, data: data, size: size}

	if string(data[0:4]) != logMagic {
		l.closeMapping()
		return nil, ErrCorrupted
	}
	if binary.LittleEndian.Uint16(data[4:6]) != logVersion {
		l.closeMapping()
		return nil, ErrVersionMismatch
	}
	l.hdr.entryCount = binary.LittleEndian.Uint32(data[6:10])
	l.hdr.nextOffset = binary.LittleEndian.Uint64(data[10:18])
	copy(l.hdr.logID[:], data[18:34])

	if l.hdr.nextOffset < headerSize || l.hdr.nextOffset > size {
		l.closeMapping()
		return nil, ErrCorrupted
	}
	return l, nil
}

// LogID returns the log's identity, assigned at creation and stable across
// reopen.
func (l *Log) LogID() uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hdr.logID
}

// EntryCount returns the number of appended entries.
func (l *Log) EntryCount() uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hdr.entryCount
}

// Append writes payload as the next log entry and returns its sequence
// number. The entry is in the mapped region after Append returns; call
// Force to make it durable.
func (l *Log) Append(payload []byte) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrLogClosed
	}

	entrySize := uint64(4 + 8 + len(payload))
	if err := l.ensureSpace(entrySize); err != nil {
		return 0, err
	}

	seq := uint64(l.hdr.entryCount) + 1
	off := l.hdr.nextOffset

	binary.LittleEndian.PutUint32(l.data[off:], uint32(len(payload)))
	off += 4
	binary.LittleEndian.PutUint64(l.data[off:], seq)
	off += 8
	copy(l.data[off:], payload)
	off += uint64(len(payload))

	l.hdr.nextOffset = off
	l.hdr.entryCount++
	l.writeHeader()

	return seq, nil
}

// Replay invokes fn for every entry in order. Replay stops and returns the
// first error fn returns.
func (l *Log) Replay(fn func(seq uint64, payload []byte) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLogClosed
	}

	off := uint64(headerSize)
	for off < l.hdr.nextOffset {
		if off+12 > l.size {
			return ErrCorrupted
		}
		length := uint64(binary.LittleEndian.Uint32(l.data[off:]))
		seq := binary.LittleEndian.Uint64(l.data[off+4:])
		off += 12
		if off+length > l.size {
			return ErrCorrupted
		}
		payload := make([]byte, length)
		copy(payload, l.data[off:off+length])
		off += length

		if err := fn(seq, payload); err != nil {
			return err
		}
	}
	return nil
}

// Force makes every appended entry durable before returning.
func (l *Log) Force() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLogClosed
	}
	if err := unix.Msync(l.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync log file: %w", err)
	}
	return nil
}

// Close forces pending entries and releases the mapping.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	_ = unix.Msync(l.data, unix.MS_SYNC)
	return l.closeMapping()
}

// closeMapping unmaps and closes the file. Caller must hold l.mu or have
// exclusive access.
func (l *Log) closeMapping() error {
	l.closed = true
	var firstErr error
	if l.data != nil {
		if err := unix.Munmap(l.data); err != nil {
			firstErr = fmt.Errorf("munmap log file: %w", err)
		}
		l.data = nil
	}
	if l.file != nil {
		if err := l.file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close log file: %w", err)
		}
		l.file = nil
	}
	return firstErr
}

// ensureSpace grows the mapping so needed more bytes fit. Caller must hold
// l.mu.
func (l *Log) ensureSpace(needed uint64) error {
	if l.hdr.nextOffset+needed <= l.size {
		return nil
	}

	newSize := l.size * growthFactor
	for l.hdr.nextOffset+needed > newSize {
		newSize *= growthFactor
	}

	if err := unix.Munmap(l.data); err != nil {
		return fmt.Errorf("munmap log file: %w", err)
	}
	if err := l.file.Truncate(int64(newSize)); err != nil {
		return fmt.Errorf("truncate log file: %w", err)
	}
	data, err := unix.Mmap(int(l.file.Fd()), 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap log file: %w", err)
	}
	l.data = data
	l.size = newSize
	return nil
}

// writeHeader serializes the header into the mapped region. Caller must
// hold l.mu.
func (l *Log) writeHeader() {
	copy(l.data[0:4], logMagic)
	binary.LittleEndian.PutUint16(l.data[4:6], logVersion)
	binary.LittleEndian.PutUint32(l.data[6:10], l.hdr.entryCount)
	binary.LittleEndian.PutUint64(l.data[10:18], l.hdr.nextOffset)
	copy(l.data[18:34], l.hdr.logID[:])
}
