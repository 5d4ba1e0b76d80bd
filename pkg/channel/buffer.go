// Package channel implements the staging buffer shared by the record and
// replay sides of a session.
//
// A Buffer has two cursors. While recording, position is where the next value
// is appended and limit is the flush threshold. While replaying, position is
// the next unread byte and limit is the end of the data loaded so far.
// Values are copied in and out whole; the caller flushes or refills before a
// value would cross limit.
//
// The backing array is never smaller than MaxValueSize, so a buffer whose
// capacity is below the widest value still holds one value at a time.
package channel

import (
	"errors"
	"fmt"
	"io"
)

const (
	// MaxValueSize is the widest fixed-size value the protocol emits.
	MaxValueSize = 8

	// DefaultCapacity is used when no capacity is configured.
	DefaultCapacity = 64 * 1024
)

// ErrValueTooLarge is returned when a refill asks for more bytes than the
// buffer can hold.
var ErrValueTooLarge = errors.New("value larger than channel buffer")

// Buffer is a fixed-size staging region with a position and a limit cursor.
type Buffer struct {
	data     []byte
	capacity int
	pos      int
	limit    int
}

// NewRecordBuffer returns an empty buffer ready for appending. A capacity of
// zero or less selects DefaultCapacity.
func NewRecordBuffer(capacity int) *Buffer {
	b := newBuffer(capacity)
	b.limit = b.capacity
	return b
}

// NewReplayBuffer returns a buffer with no data loaded; the first Take must
// be preceded by a Refill.
func NewReplayBuffer(capacity int) *Buffer {
	return newBuffer(capacity)
}

func newBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		data:     make([]byte, max(capacity, MaxValueSize)),
		capacity: capacity,
	}
}

// Capacity returns the configured size of the staging region.
func (b *Buffer) Capacity() int { return b.capacity }

// Position returns the current cursor.
func (b *Buffer) Position() int { return b.pos }

// Limit returns the limit cursor.
func (b *Buffer) Limit() int { return b.limit }

// Fits reports whether n more bytes can be appended or taken without
// crossing limit.
func (b *Buffer) Fits(n int) bool { return b.pos+n <= b.limit }

// Unread returns the number of loaded bytes not yet taken.
func (b *Buffer) Unread() int { return b.limit - b.pos }

// Remaining returns the free space of a record buffer before limit.
func (b *Buffer) Remaining() int { return max(b.limit-b.pos, 0) }

// Put appends p and reports whether limit has been reached. A value wider
// than the whole capacity may be put into an empty buffer; it lands in the
// slack, limit moves to the end of it until the next Reset, and the buffer
// reports full.
func (b *Buffer) Put(p []byte) (full bool) {
	if !b.Fits(len(p)) {
		if b.pos != 0 || len(p) > len(b.data) {
			panic(fmt.Sprintf("channel: put of %d bytes at %d/%d", len(p), b.pos, b.limit))
		}
		b.limit = len(p)
	}
	b.pos += copy(b.data[b.pos:], p)
	return b.pos >= b.limit
}

// Pending returns the bytes appended since the last Reset.
func (b *Buffer) Pending() []byte { return b.data[:b.pos] }

// Reset moves position back to the start of a record buffer and restores
// limit to the capacity.
func (b *Buffer) Reset() {
	b.pos = 0
	b.limit = b.capacity
}

// Take returns the next n bytes and advances position. The slice aliases the
// buffer and is only valid until the next Refill. The caller must have
// checked Fits.
func (b *Buffer) Take(n int) []byte {
	if !b.Fits(n) {
		panic(fmt.Sprintf("channel: take of %d bytes at %d/%d", n, b.pos, b.limit))
	}
	p := b.data[b.pos : b.pos+n]
	b.pos += n
	return p
}

// Refill moves the unread bytes to the start of the buffer and reads from r
// until at least need bytes are available. It reads up to the capacity (or
// need, if larger) in one go, so a refill loads the next chunk of the stream
// rather than just the pending value. It returns the number of bytes read
// from r; when r runs out before need bytes are available it returns
// io.ErrUnexpectedEOF.
func (b *Buffer) Refill(r io.Reader, need int) (int, error) {
	if need > len(b.data) {
		return 0, fmt.Errorf("%w: need %d, capacity %d", ErrValueTooLarge, need, len(b.data))
	}
	kept := copy(b.data, b.data[b.pos:b.limit])
	b.pos = 0
	b.limit = kept
	if kept >= need {
		return 0, nil
	}

	end := max(b.capacity, need)
	n, err := io.ReadAtLeast(r, b.data[kept:end], need-kept)
	b.limit += n
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return n, io.ErrUnexpectedEOF
		}
		return n, err
	}
	return n, nil
}

// Discard drops all unread bytes.
func (b *Buffer) Discard() {
	b.pos = 0
	b.limit = 0
}
