package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	lru "github.com/hashicorp/golang-lru"
)

// FileSink appends a log body to a file.
type FileSink struct {
	file   *os.File
	path   string
	header Header
	size   int64
}

// CreateFile creates or truncates path and writes a fresh header using the
// given compression.
func CreateFile(path string, compression CompressionType) (*FileSink, error) {
	return CreateFileWithHeader(path, NewHeader(compression))
}

// CreateFileWithHeader creates or truncates path and writes h.
func CreateFileWithHeader(path string, h Header) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}

	hdr, err := h.MarshalBinary()
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Write(hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("write log header: %w", err)
	}

	return &FileSink{file: f, path: path, header: h}, nil
}

// Header returns the header written at creation.
func (fs *FileSink) Header() Header { return fs.header }

// Path returns the file path.
func (fs *FileSink) Path() string { return fs.path }

// Size returns the logical number of body bytes written.
func (fs *FileSink) Size() int64 { return fs.size }

// Write appends p. With zstd compression each call becomes one frame.
func (fs *FileSink) Write(p []byte) (int, error) {
	if fs.file == nil {
		return 0, ErrClosed
	}

	out := p
	if fs.header.Compression == ZstdCompression {
		out = encodeFrame(p)
	}
	if _, err := fs.file.Write(out); err != nil {
		return 0, err
	}
	fs.size += int64(len(p))
	return len(p), nil
}

// Close syncs and closes the file. It is safe to call more than once.
func (fs *FileSink) Close() error {
	if fs.file == nil {
		return nil
	}
	f := fs.file
	fs.file = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// frame locates one compressed flush inside the file.
type frame struct {
	start   int64 // logical offset of the first byte
	rawLen  int
	fileOff int64 // offset of the compressed payload
	compLen int
	sum     uint32
}

// SourceOptions contains options for opening a log for replay
type SourceOptions struct {
	// FrameCacheSize is the number of decoded zstd frames kept in memory.
	FrameCacheSize int
}

// DefaultSourceOptions returns default options for OpenFile
func DefaultSourceOptions() SourceOptions {
	return SourceOptions{
		FrameCacheSize: 16,
	}
}

// FileSource reads a log body back from a file.
type FileSource struct {
	file      *os.File
	path      string
	header    Header
	raw       *io.SectionReader
	frames    []frame
	cache     *lru.Cache
	size      int64
	off       int64
	truncated bool
}

// OpenFile opens a log for replay with default options.
func OpenFile(path string) (*FileSource, error) {
	return OpenFileWithOptions(path, DefaultSourceOptions())
}

// OpenFileWithOptions opens a log for replay. The header must be compatible
// with this host.
func OpenFileWithOptions(path string, options SourceOptions) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	src, err := newFileSource(f, path, options)
	if err != nil {
		f.Close()
		return nil, err
	}
	return src, nil
}

func newFileSource(f *os.File, path string, options SourceOptions) (*FileSource, error) {
	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, hdr); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrBadMagic
		}
		return nil, err
	}

	src := &FileSource{file: f, path: path}
	if err := src.header.UnmarshalBinary(hdr); err != nil {
		return nil, err
	}
	if err := src.header.Compatible(); err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	if src.header.Compression == NoCompression {
		src.size = info.Size() - HeaderSize
		src.raw = io.NewSectionReader(f, HeaderSize, src.size)
		return src, nil
	}

	if options.FrameCacheSize <= 0 {
		options.FrameCacheSize = DefaultSourceOptions().FrameCacheSize
	}
	src.cache, err = lru.New(options.FrameCacheSize)
	if err != nil {
		return nil, err
	}
	if err := src.scanFrames(info.Size()); err != nil {
		return nil, err
	}
	return src, nil
}

// scanFrames builds the frame table. A partial frame at the end of the file
// (a recording that died mid-flush) is dropped; replay then diverges at that
// point.
func (s *FileSource) scanFrames(fileSize int64) error {
	var fh [frameHeaderSize]byte
	off := int64(HeaderSize)
	for off < fileSize {
		if off+frameHeaderSize > fileSize {
			s.truncated = true
			return nil
		}
		if _, err := s.file.ReadAt(fh[:], off); err != nil {
			return err
		}
		fr := frame{
			start:   s.size,
			rawLen:  int(binary.LittleEndian.Uint32(fh[0:4])),
			compLen: int(binary.LittleEndian.Uint32(fh[4:8])),
			sum:     binary.LittleEndian.Uint32(fh[8:12]),
			fileOff: off + frameHeaderSize,
		}
		if fr.fileOff+int64(fr.compLen) > fileSize {
			s.truncated = true
			return nil
		}
		s.frames = append(s.frames, fr)
		s.size += int64(fr.rawLen)
		off = fr.fileOff + int64(fr.compLen)
	}
	return nil
}

// Header returns the log header.
func (s *FileSource) Header() Header { return s.header }

// Path returns the file path.
func (s *FileSource) Path() string { return s.path }

// Size returns the logical body size.
func (s *FileSource) Size() int64 { return s.size }

// Offset returns the logical offset of the next Read.
func (s *FileSource) Offset() int64 { return s.off }

// Frames returns the number of compressed frames, or 0 for a raw log.
func (s *FileSource) Frames() int { return len(s.frames) }

// Truncated reports whether a partial trailing frame was dropped on open.
func (s *FileSource) Truncated() bool { return s.truncated }

// Seek positions the next Read at a logical body offset.
func (s *FileSource) Seek(offset int64) error {
	if offset < 0 || offset > s.size {
		return fmt.Errorf("seek to %d outside body of %d bytes", offset, s.size)
	}
	s.off = offset
	return nil
}

// Read reads from the current logical offset.
func (s *FileSource) Read(p []byte) (int, error) {
	if s.file == nil {
		return 0, ErrClosed
	}
	if s.off >= s.size {
		return 0, io.EOF
	}

	if s.raw != nil {
		n, err := s.raw.ReadAt(p, s.off)
		s.off += int64(n)
		if err == io.EOF && n > 0 {
			err = nil
		}
		return n, err
	}

	idx := sort.Search(len(s.frames), func(i int) bool {
		return s.frames[i].start+int64(s.frames[i].rawLen) > s.off
	})
	data, err := s.frameData(idx)
	if err != nil {
		return 0, err
	}
	n := copy(p, data[s.off-s.frames[idx].start:])
	s.off += int64(n)
	return n, nil
}

func (s *FileSource) frameData(idx int) ([]byte, error) {
	if v, ok := s.cache.Get(idx); ok {
		return v.([]byte), nil
	}

	fr := s.frames[idx]
	payload := make([]byte, fr.compLen)
	if _, err := s.file.ReadAt(payload, fr.fileOff); err != nil {
		return nil, err
	}
	raw, err := decodeFrame(payload, fr.rawLen, fr.sum)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", idx, err)
	}
	s.cache.Add(idx, raw)
	return raw, nil
}

// Close closes the file. It is safe to call more than once.
func (s *FileSource) Close() error {
	if s.file == nil {
		return nil
	}
	f := s.file
	s.file = nil
	return f.Close()
}
