package recorder

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/willibrandon/revdb/pkg/store"
)

// IndexSuffix is appended to a log path to name its checkpoint index
const IndexSuffix = ".idx"

// IndexPath returns the index path that belongs to a log
func IndexPath(logPath string) string {
	return logPath + IndexSuffix
}

// ErrIndexMismatch is returned when an index belongs to a different recording
var ErrIndexMismatch = errors.New("checkpoint index belongs to another recording")

// indexMeta is the first line of an index file
type indexMeta struct {
	SessionID  uuid.UUID `json:"session"`
	TotalSteps uint64    `json:"total_steps"`
	Count      int       `json:"count"`
}

// IndexFileOptions contains options for writing an index file
type IndexFileOptions struct {
	CompressionType store.CompressionType
}

// DefaultIndexFileOptions returns default options for index files
func DefaultIndexFileOptions() IndexFileOptions {
	return IndexFileOptions{
		CompressionType: store.ZstdCompression,
	}
}

// WriteIndexFile writes ix to path as JSON lines, one checkpoint per line.
// The first byte of the file names the compression of the rest.
func WriteIndexFile(path string, ix *Index, options IndexFileOptions) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	bufWriter := bufio.NewWriter(f)
	if err := bufWriter.WriteByte(byte(options.CompressionType)); err != nil {
		return err
	}

	writer, err := store.NewCompressedWriter(bufWriter, options.CompressionType)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(writer)
	meta := indexMeta{SessionID: ix.SessionID, TotalSteps: ix.TotalSteps, Count: ix.Len()}
	if err := enc.Encode(meta); err != nil {
		return err
	}
	for _, c := range ix.Checkpoints() {
		if err := enc.Encode(c); err != nil {
			return err
		}
	}

	if err := store.CloseCompressedWriter(writer); err != nil {
		return err
	}
	if err := bufWriter.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// ReadIndexFile loads an index written by WriteIndexFile
func ReadIndexFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bufReader := bufio.NewReader(f)
	marker, err := bufReader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}

	reader, err := store.NewCompressedReader(bufReader, store.CompressionType(marker))
	if err != nil {
		return nil, err
	}
	if closer, ok := reader.(interface{ Close() }); ok {
		defer closer.Close()
	}

	dec := json.NewDecoder(reader)
	var meta indexMeta
	if err := dec.Decode(&meta); err != nil {
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}

	ix := NewIndex(meta.SessionID)
	ix.TotalSteps = meta.TotalSteps
	for {
		var c Checkpoint
		if err := dec.Decode(&c); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read index %s: %w", path, err)
		}
		ix.Add(c)
	}
	return ix, nil
}

// LoadIndexFor reads the index next to a log and checks that it belongs to
// the recording with the given session id. A missing index is not an error:
// the returned index then only holds the origin.
func LoadIndexFor(logPath string, sessionID uuid.UUID) (*Index, error) {
	ix, err := ReadIndexFile(IndexPath(logPath))
	if errors.Is(err, os.ErrNotExist) {
		return NewIndex(sessionID), nil
	}
	if err != nil {
		return nil, err
	}
	if ix.SessionID != sessionID {
		return nil, fmt.Errorf("%w: index %s, log %s", ErrIndexMismatch, ix.SessionID, sessionID)
	}
	return ix, nil
}
