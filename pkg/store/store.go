// Package store persists the value stream of a record/replay session.
//
// A log is a Header followed by the body. Recording appends to a Sink, one
// Write per flushed buffer. Replaying reads the body back through a Source,
// which can also be positioned at any logical (uncompressed) offset so that a
// session can travel back to a checkpoint.
package store

import (
	"errors"
	"fmt"
	"io"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// Sink is the append-only side of a log.
type Sink interface {
	io.Writer
	Header() Header
	Close() error
}

// Source is the random-access side of a log.
type Source interface {
	io.Reader
	Header() Header
	// Seek positions the next Read at a logical body offset.
	Seek(offset int64) error
	// Offset returns the logical offset of the next Read.
	Offset() int64
	// Size returns the logical body size.
	Size() int64
	Close() error
}

// Memory is an in-memory log body usable both as a Sink and as a Source.
// Writes always append; reads start at offset 0 and follow Seek.
type Memory struct {
	header Header
	data   []byte
	off    int64
	writes int
	closed bool
}

// NewMemory returns a memory log whose body starts out as body.
func NewMemory(h Header, body []byte) *Memory {
	return &Memory{header: h, data: append([]byte(nil), body...)}
}

func (m *Memory) Header() Header { return m.header }

func (m *Memory) Write(p []byte) (int, error) {
	if m.closed {
		return 0, ErrClosed
	}
	m.data = append(m.data, p...)
	m.writes++
	return len(p), nil
}

func (m *Memory) Read(p []byte) (int, error) {
	if m.closed {
		return 0, ErrClosed
	}
	if m.off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.off:])
	m.off += int64(n)
	return n, nil
}

func (m *Memory) Seek(offset int64) error {
	if offset < 0 || offset > int64(len(m.data)) {
		return fmt.Errorf("seek to %d outside body of %d bytes", offset, len(m.data))
	}
	m.off = offset
	return nil
}

func (m *Memory) Offset() int64 { return m.off }

func (m *Memory) Size() int64 { return int64(len(m.data)) }

// Bytes returns the body written so far.
func (m *Memory) Bytes() []byte { return m.data }

// Writes returns the number of Write calls, one per flushed buffer.
func (m *Memory) Writes() int { return m.writes }

// Close marks the store closed. The body stays readable through Bytes.
func (m *Memory) Close() error {
	m.closed = true
	return nil
}

// Reopen clears the closed flag and rewinds, so a test can replay what it
// just recorded.
func (m *Memory) Reopen() *Memory {
	m.closed = false
	m.off = 0
	return m
}

type discard struct {
	header Header
	n      int64
}

// Discard returns a Sink that drops everything written to it. It backs a
// recording session that has no log target.
func Discard(h Header) Sink {
	return &discard{header: h}
}

func (d *discard) Header() Header { return d.header }

func (d *discard) Write(p []byte) (int, error) {
	d.n += int64(len(p))
	return len(p), nil
}

func (d *discard) Close() error { return nil }
