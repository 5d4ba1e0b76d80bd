package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// HeaderSize is the encoded size of a log header.
const HeaderSize = 48

// Version is the log format version written by this package.
const Version uint32 = 1

var headerMagic = [8]byte{'R', 'E', 'V', 'D', 'B', 'L', 'O', 'G'}

// Byte order markers stored in the header.
const (
	LittleEndian byte = 'L'
	BigEndian    byte = 'B'
)

var (
	// ErrBadMagic is returned when a file does not start with a log header.
	ErrBadMagic = errors.New("not a revdb log")

	// ErrHeaderMismatch is returned when a log was written by an incompatible
	// format version or on a host with a different value layout.
	ErrHeaderMismatch = errors.New("log header does not match this host")
)

// Header describes a log. Values in the body are stored in the byte order
// and word size of the recording host, so both are kept here and checked
// before replaying.
type Header struct {
	Version     uint32
	Compression CompressionType
	ByteOrder   byte
	WordSize    uint8
	SessionID   uuid.UUID
	Created     time.Time
}

// NewHeader returns a header for a new recording on this host.
func NewHeader(compression CompressionType) Header {
	return Header{
		Version:     Version,
		Compression: compression,
		ByteOrder:   hostByteOrder(),
		WordSize:    strconv.IntSize / 8,
		SessionID:   uuid.New(),
		Created:     time.Now().UTC(),
	}
}

func hostByteOrder() byte {
	if binary.NativeEndian.Uint16([]byte{1, 0}) == 1 {
		return LittleEndian
	}
	return BigEndian
}

// MarshalBinary encodes the header into HeaderSize bytes.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	copy(buf[0:8], headerMagic[:])
	binary.LittleEndian.PutUint32(buf[8:12], h.Version)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.Compression))
	buf[16] = h.ByteOrder
	buf[17] = h.WordSize
	// 18:24 reserved
	copy(buf[24:40], h.SessionID[:])
	binary.LittleEndian.PutUint64(buf[40:48], uint64(h.Created.UnixNano()))
	return buf, nil
}

// UnmarshalBinary decodes a header produced by MarshalBinary.
func (h *Header) UnmarshalBinary(buf []byte) error {
	if len(buf) < HeaderSize || !bytes.Equal(buf[0:8], headerMagic[:]) {
		return ErrBadMagic
	}
	h.Version = binary.LittleEndian.Uint32(buf[8:12])
	h.Compression = CompressionType(binary.LittleEndian.Uint32(buf[12:16]))
	h.ByteOrder = buf[16]
	h.WordSize = buf[17]
	copy(h.SessionID[:], buf[24:40])
	h.Created = time.Unix(0, int64(binary.LittleEndian.Uint64(buf[40:48]))).UTC()
	return nil
}

// Compatible checks that the log can be replayed on this host.
func (h Header) Compatible() error {
	if h.Version != Version {
		return fmt.Errorf("%w: format version %d, expected %d", ErrHeaderMismatch, h.Version, Version)
	}
	if h.ByteOrder != hostByteOrder() {
		return fmt.Errorf("%w: byte order %q", ErrHeaderMismatch, h.ByteOrder)
	}
	if h.WordSize != strconv.IntSize/8 {
		return fmt.Errorf("%w: word size %d", ErrHeaderMismatch, h.WordSize)
	}
	if h.Compression != NoCompression && h.Compression != ZstdCompression {
		return fmt.Errorf("%w: %s", ErrHeaderMismatch, h.Compression)
	}
	return nil
}
