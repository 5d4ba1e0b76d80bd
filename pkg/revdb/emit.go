package revdb

import (
	"math"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// Value is a fixed-width value that can cross the channel. Values are copied
// as their in-memory byte image, so a log is only replayable on a host with
// the same byte order and word size.
type Value interface {
	constraints.Integer | constraints.Float | ~bool
}

func valueBytes[T Value](p *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), unsafe.Sizeof(*p))
}

// record appends p, flushing first when it does not fit and afterwards when
// the buffer is full.
func (s *Session) record(p []byte) {
	if !s.buf.Fits(len(p)) {
		s.flush()
	}
	if s.buf.Put(p) {
		s.flush()
	}
}

// next returns the next n bytes of the log, fetching first when fewer are
// unread.
func (s *Session) next(n int) []byte {
	if !s.buf.Fits(n) {
		s.fetch(n)
	}
	return s.buf.Take(n)
}

// EmitValue appends v to the log while recording. While replaying v is
// ignored and the logged copy is skipped so later reads stay aligned.
func EmitValue[T Value](s *Session, v T) {
	if s.mode == ModeReplaying {
		s.next(int(unsafe.Sizeof(v)))
		return
	}
	s.record(valueBytes(&v))
	if s.traceEmits {
		s.trace("emit", v)
	}
}

// EmitAndBind is the core primitive of instrumented code. While recording it
// calls fallback, stores the result in out and appends it to the log. While
// replaying fallback is not called; the next logged value is stored in out
// instead. out may be nil. The bound value is returned.
//
// fallback must be safe to skip: whatever it does besides producing its
// result will not happen on replay.
func EmitAndBind[T Value](s *Session, out *T, fallback func() T) T {
	var v T
	if s.mode == ModeReplaying {
		copy(valueBytes(&v), s.next(int(unsafe.Sizeof(v))))
	} else {
		v = fallback()
		s.record(valueBytes(&v))
	}
	if out != nil {
		*out = v
	}
	if s.traceEmits {
		s.trace("bind", v)
	}
	return v
}

// EmitVoid runs fn only while recording. Nothing is logged.
func (s *Session) EmitVoid(fn func()) {
	if s.mode == ModeRecording {
		fn()
	}
}

// EmitBytes is EmitAndBind for a variable-length byte string. The length is
// logged as a uint64 followed by the bytes, streamed through the buffer in
// pieces.
func EmitBytes(s *Session, fallback func() []byte) []byte {
	if s.mode == ModeRecording {
		p := fallback()
		n := uint64(len(p))
		s.record(valueBytes(&n))
		s.recordStream(p)
		if s.traceEmits {
			s.trace("bytes", len(p))
		}
		return p
	}

	var n uint64
	copy(valueBytes(&n), s.next(8))
	if remaining := s.src.Size() - s.Offset(); n > uint64(remaining) {
		file, line := callerOutside()
		s.fail(&DivergenceError{File: file, Line: line, Need: int(min(n, math.MaxInt32)),
			Offset: s.Offset(), Err: errLengthPastEnd})
	}
	p := make([]byte, n)
	s.replayStream(p)
	if s.traceEmits {
		s.trace("bytes", len(p))
	}
	return p
}

// EmitString is EmitBytes for strings.
func EmitString(s *Session, fallback func() string) string {
	return string(EmitBytes(s, func() []byte { return []byte(fallback()) }))
}

func (s *Session) recordStream(p []byte) {
	for len(p) > 0 {
		if s.buf.Remaining() == 0 {
			s.flush()
		}
		n := min(len(p), s.buf.Remaining())
		if s.buf.Put(p[:n]) {
			s.flush()
		}
		p = p[n:]
	}
}

func (s *Session) replayStream(p []byte) {
	for len(p) > 0 {
		if s.buf.Unread() == 0 {
			s.fetch(1)
		}
		n := copy(p, s.buf.Take(min(len(p), s.buf.Unread())))
		p = p[n:]
	}
}

const (
	outcomeOK    byte = 0
	outcomeError byte = 1
)

// Outcome is the result of a call whose success or failure must be the same
// on replay.
type Outcome[T Value] struct {
	Value T
	Err   error
}

// EmitCall runs fn while recording and logs its outcome: a tag byte, then the
// value on success or the error text on failure. While replaying fn is not
// called and the logged outcome is returned; a logged error comes back as a
// *ReplayedError with the same text.
func EmitCall[T Value](s *Session, fn func() (T, error)) (T, error) {
	o := emitOutcome(s, fn)
	return o.Value, o.Err
}

func emitOutcome[T Value](s *Session, fn func() (T, error)) Outcome[T] {
	var o Outcome[T]
	if s.mode == ModeRecording {
		o.Value, o.Err = fn()
		tag := outcomeOK
		if o.Err != nil {
			tag = outcomeError
		}
		s.record([]byte{tag})
		if o.Err != nil {
			msg := o.Err.Error()
			EmitString(s, func() string { return msg })
			return o
		}
		s.record(valueBytes(&o.Value))
		return o
	}

	switch tag := s.next(1)[0]; tag {
	case outcomeOK:
		copy(valueBytes(&o.Value), s.next(int(unsafe.Sizeof(o.Value))))
	case outcomeError:
		o.Err = &ReplayedError{Msg: EmitString(s, nil)}
	default:
		file, line := callerOutside()
		s.fail(&DivergenceError{File: file, Line: line, Need: 1, Offset: s.Offset() - 1,
			Err: errBadOutcomeTag})
	}
	return o
}

// trace logs an emitted value with the instrumented call site.
func (s *Session) trace(kind string, v any) {
	file, line := callerOutside()
	s.logger.Debug("revdb: "+kind, "value", v, "site", file, "line", line,
		"offset", s.Offset(), "mode", s.mode)
}
