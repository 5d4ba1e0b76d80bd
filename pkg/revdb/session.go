// Package revdb records the non-deterministic values of one execution into a
// binary log and substitutes them on a later execution of the same program.
//
// Instrumented code wraps every value that may differ between runs (clock
// reads, random numbers, addresses, syscall results, scheduling choices) in
// EmitAndBind. While recording the real value is computed and appended to the
// log; while replaying the computation is skipped and the logged value is
// returned instead. Both runs must make the same sequence of emit calls.
//
// A Session is not safe for concurrent use. The host must ensure that only
// one goroutine drives it at a time.
package revdb

import (
	"fmt"
	"log/slog"

	"github.com/willibrandon/revdb/pkg/channel"
	"github.com/willibrandon/revdb/pkg/recorder"
	"github.com/willibrandon/revdb/pkg/store"
)

// Mode is fixed when a session is created.
type Mode int

const (
	// ModeRecording captures real values into the log
	ModeRecording Mode = iota
	// ModeReplaying substitutes logged values for real computation
	ModeReplaying
)

// String returns the string representation of the Mode
func (m Mode) String() string {
	switch m {
	case ModeRecording:
		return "recording"
	case ModeReplaying:
		return "replaying"
	default:
		return "unknown"
	}
}

// Handle identifies a host object to the unique id allocator, for example an
// arena index. NoHandle stands for a missing object.
type Handle uint64

// NoHandle is the zero Handle.
const NoHandle Handle = 0

// Stats counts transport activity.
type Stats struct {
	Flushes      int
	Fetches      int
	BytesFlushed int64
	BytesFetched int64
}

// Session is the state of one recording or replay.
type Session struct {
	mode Mode
	buf  *channel.Buffer
	sink store.Sink
	src  store.Source

	// flushed is the number of body bytes handed to sink.
	flushed int64

	stepCount uint64
	stepBreak uint64
	idCount   uint64
	idBreak   uint64

	uids    map[Handle]uint64
	tracked map[uint64][]func(Handle)

	index              *recorder.Index
	indexPath          string
	checkpointInterval uint64

	hooks      Hooks
	fatal      func(error)
	logger     *slog.Logger
	traceEmits bool

	stats  Stats
	closed bool
}

// NewRecorder returns a session that appends to sink.
func NewRecorder(sink store.Sink, opts ...Option) *Session {
	options := buildOptions(opts)
	s := newSession(ModeRecording, options)
	s.sink = sink
	s.buf = channel.NewRecordBuffer(options.BufferSize)
	s.index = recorder.NewIndex(sink.Header().SessionID)

	s.logger.Debug("revdb: recording", "session", sink.Header().SessionID,
		"buffer", s.buf.Capacity(), "compression", sink.Header().Compression)
	return s
}

// NewReplayer returns a session that reads from src. When an index path is
// configured the checkpoint index is loaded from it.
func NewReplayer(src store.Source, opts ...Option) (*Session, error) {
	if err := src.Header().Compatible(); err != nil {
		return nil, err
	}

	options := buildOptions(opts)
	s := newSession(ModeReplaying, options)
	s.src = src
	s.buf = channel.NewReplayBuffer(options.BufferSize)

	id := src.Header().SessionID
	if options.IndexPath != "" {
		ix, err := recorder.ReadIndexFile(options.IndexPath)
		switch {
		case err == nil && ix.SessionID != id:
			return nil, fmt.Errorf("%w: index %s, log %s", recorder.ErrIndexMismatch, ix.SessionID, id)
		case err == nil:
			s.index = ix
		default:
			s.logger.Debug("revdb: no checkpoint index", "path", options.IndexPath, "err", err)
		}
	}
	if s.index == nil {
		s.index = recorder.NewIndex(id)
	}

	s.logger.Debug("revdb: replaying", "session", id, "size", src.Size(),
		"checkpoints", s.index.Len(), "total_steps", s.index.TotalSteps)
	return s, nil
}

func newSession(mode Mode, options Options) *Session {
	return &Session{
		mode:               mode,
		idCount:            1,
		uids:               make(map[Handle]uint64),
		tracked:            make(map[uint64][]func(Handle)),
		indexPath:          options.IndexPath,
		checkpointInterval: options.CheckpointInterval,
		hooks:              options.Hooks,
		fatal:              options.Fatal,
		logger:             options.Logger,
		traceEmits:         options.TraceEmits,
	}
}

// Mode returns the session mode.
func (s *Session) Mode() Mode { return s.mode }

// Replaying reports whether the session substitutes logged values.
func (s *Session) Replaying() bool { return s.mode == ModeReplaying }

// Stats returns transport counters.
func (s *Session) Stats() Stats { return s.stats }

// Index returns the checkpoint index.
func (s *Session) Index() *recorder.Index { return s.index }

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Offset returns the logical log offset of the next emitted value.
func (s *Session) Offset() int64 {
	if s.mode == ModeReplaying {
		return s.src.Offset() - int64(s.buf.Unread())
	}
	return s.flushed + int64(s.buf.Position())
}

// Teardown ends the session. A recording flushes its trailing buffer, writes
// the checkpoint index and closes the log; a replay closes the log.
func (s *Session) Teardown() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true

	if s.mode == ModeReplaying {
		s.logger.Debug("revdb: replay done", "steps", s.stepCount, "fetches", s.stats.Fetches)
		return s.src.Close()
	}

	s.flush()
	s.index.TotalSteps = s.stepCount

	var indexErr error
	if s.indexPath != "" {
		indexErr = recorder.WriteIndexFile(s.indexPath, s.index, recorder.DefaultIndexFileOptions())
		if indexErr != nil {
			indexErr = fmt.Errorf("write checkpoint index: %w", indexErr)
		}
	}

	s.logger.Debug("revdb: recording done", "steps", s.stepCount, "bytes", s.flushed,
		"flushes", s.stats.Flushes, "checkpoints", s.index.Len())

	if err := s.sink.Close(); err != nil {
		return fmt.Errorf("close log: %w", err)
	}
	return indexErr
}

// fail ends the session through the fatal handler. It does not return.
func (s *Session) fail(err error) {
	s.fatal(err)
	panic(err)
}
