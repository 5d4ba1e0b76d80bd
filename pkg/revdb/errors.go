package revdb

import (
	"errors"
	"fmt"
)

var (
	// ErrReplayDivergence means the log does not match this run of the
	// program: it ran out, or a value had an impossible encoding.
	ErrReplayDivergence = errors.New("replay divergence")

	// ErrFlushFailed means the log could not be written. A recording with a
	// lost tail cannot be replayed, so this is fatal.
	ErrFlushFailed = errors.New("flush failed")

	// ErrNotReplaying is returned by replay-only control commands.
	ErrNotReplaying = errors.New("session is not replaying")

	// ErrInvalidTime is returned by ChangeTime for targets outside the
	// recorded timeline.
	ErrInvalidTime = errors.New("invalid target time")

	// ErrClosed is returned by Teardown on a session already torn down.
	ErrClosed = errors.New("session closed")
)

var (
	errLengthPastEnd = errors.New("logged length runs past end of log")
	errBadOutcomeTag = errors.New("bad outcome tag")
)

// DivergenceError reports where a replay stopped matching its log.
type DivergenceError struct {
	File   string
	Line   int
	Need   int   // bytes the call site asked for
	Offset int64 // logical log offset of the read
	Err    error
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("%v at %s:%d: need %d bytes at log offset %d: %v",
		ErrReplayDivergence, e.File, e.Line, e.Need, e.Offset, e.Err)
}

func (e *DivergenceError) Is(target error) bool { return target == ErrReplayDivergence }

func (e *DivergenceError) Unwrap() error { return e.Err }

// ReplayedError stands in for an error that a call returned while recording.
// Only the text survives the log.
type ReplayedError struct {
	Msg string
}

func (e *ReplayedError) Error() string { return e.Msg }
