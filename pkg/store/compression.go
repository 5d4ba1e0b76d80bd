package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// CompressionType defines the compression algorithm applied to a log body
type CompressionType uint32

const (
	// NoCompression stores the value stream as is
	NoCompression CompressionType = iota
	// ZstdCompression stores one Zstandard frame per flush
	ZstdCompression
)

var (
	// DefaultCompression is the default compression algorithm
	DefaultCompression = NoCompression

	// encoder and decoder for zstd are reusable and thread-safe
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// ErrCorruptFrame is returned when a compressed frame fails its checksum or
// cannot be decoded.
var ErrCorruptFrame = errors.New("corrupt log frame")

// frameHeaderSize is rawLen u32 | compLen u32 | crc32 u32.
const frameHeaderSize = 12

// String returns the name used in configuration and CLI output
func (c CompressionType) String() string {
	switch c {
	case NoCompression:
		return "none"
	case ZstdCompression:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint32(c))
	}
}

// ParseCompression maps a configuration value to a CompressionType
func ParseCompression(s string) (CompressionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "raw":
		return NoCompression, nil
	case "zstd":
		return ZstdCompression, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

// CompressData compresses a byte slice using the specified compression algorithm
func CompressData(data []byte, compressionType CompressionType) []byte {
	if compressionType == NoCompression {
		return data
	}
	return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)))
}

// DecompressData decompresses a byte slice using the specified compression algorithm
func DecompressData(data []byte, compressionType CompressionType) ([]byte, error) {
	if compressionType == NoCompression {
		return data, nil
	}
	return zstdDecoder.DecodeAll(data, nil)
}

// NewCompressedWriter returns a writer that compresses data before writing.
// The returned writer must be closed with CloseCompressedWriter.
func NewCompressedWriter(w io.Writer, compressionType CompressionType) (io.Writer, error) {
	if compressionType == NoCompression {
		return w, nil
	}
	return zstd.NewWriter(w)
}

// NewCompressedReader returns a reader that decompresses data after reading
func NewCompressedReader(r io.Reader, compressionType CompressionType) (io.Reader, error) {
	if compressionType == NoCompression {
		return r, nil
	}
	return zstd.NewReader(r)
}

// CloseCompressedWriter closes the compressed writer if needed
func CloseCompressedWriter(w io.Writer) error {
	if zw, ok := w.(*zstd.Encoder); ok {
		return zw.Close()
	}
	return nil
}

// encodeFrame compresses raw into a self-checking frame.
func encodeFrame(raw []byte) []byte {
	compressed := CompressData(raw, ZstdCompression)
	frame := make([]byte, frameHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(raw)))
	binary.LittleEndian.PutUint32(frame[4:8], uint32(len(compressed)))
	binary.LittleEndian.PutUint32(frame[8:12], crc32.ChecksumIEEE(raw))
	copy(frame[frameHeaderSize:], compressed)
	return frame
}

// decodeFrame decompresses the payload of a frame and verifies its checksum.
func decodeFrame(payload []byte, rawLen int, sum uint32) ([]byte, error) {
	raw, err := DecompressData(payload, ZstdCompression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
	}
	if len(raw) != rawLen {
		return nil, fmt.Errorf("%w: decoded %d bytes, expected %d", ErrCorruptFrame, len(raw), rawLen)
	}
	if crc32.ChecksumIEEE(raw) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptFrame)
	}
	return raw, nil
}
