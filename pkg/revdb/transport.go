package revdb

import (
	"fmt"
	"runtime"
	"strings"
)

// flush hands the occupied region of the buffer to the sink and resets it.
// A failed write leaves a log with a lost tail, so it is fatal.
func (s *Session) flush() {
	p := s.buf.Pending()
	if len(p) == 0 {
		return
	}
	n, err := s.sink.Write(p)
	if err != nil || n != len(p) {
		if err == nil {
			err = fmt.Errorf("short write: %d of %d bytes", n, len(p))
		}
		s.fail(fmt.Errorf("%w: %w", ErrFlushFailed, err))
	}
	s.flushed += int64(n)
	s.stats.Flushes++
	s.stats.BytesFlushed += int64(n)
	s.buf.Reset()
	s.logger.Debug("revdb: flush", "bytes", n, "offset", s.flushed)
}

// fetch refills the buffer until at least need bytes are unread. Running out
// of log is a divergence.
func (s *Session) fetch(need int) {
	offset := s.Offset()
	n, err := s.buf.Refill(s.src, need)
	s.stats.BytesFetched += int64(n)
	if err != nil {
		file, line := callerOutside()
		s.fail(&DivergenceError{File: file, Line: line, Need: need, Offset: offset, Err: err})
	}
	s.stats.Fetches++
	s.logger.Debug("revdb: fetch", "need", need, "bytes", n, "offset", offset)
}

// callerOutside returns the first stack frame that is not in this package's
// own source, which is the instrumented call site that diverged.
func callerOutside() (string, int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var last runtime.Frame
	for {
		frame, more := frames.Next()
		last = frame
		if !ownFrame(frame) {
			return frame.File, frame.Line
		}
		if !more {
			break
		}
	}
	return last.File, last.Line
}

func ownFrame(frame runtime.Frame) bool {
	if !strings.HasPrefix(frame.Function, packagePath+".") {
		return false
	}
	return !strings.HasSuffix(frame.File, "_test.go")
}

const packagePath = "github.com/willibrandon/revdb/pkg/revdb"
