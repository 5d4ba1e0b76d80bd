package revdb

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/willibrandon/revdb/pkg/recorder"
)

// ValueSelector names a control plane scalar for GetValue.
type ValueSelector byte

const (
	SelectCurrentStep ValueSelector = 'c'
	SelectTotalSteps  ValueSelector = 't'
	SelectBreakpoint  ValueSelector = 'b'
	SelectNextID      ValueSelector = 'u'
	SelectOffset      ValueSelector = 'o'
)

// GetValue returns the scalar named by sel, or -1 for an unknown selector.
func (s *Session) GetValue(sel ValueSelector) int64 {
	switch sel {
	case SelectCurrentStep:
		return int64(s.stepCount)
	case SelectTotalSteps:
		return int64(max(s.index.TotalSteps, s.stepCount))
	case SelectBreakpoint:
		return int64(s.stepBreak)
	case SelectNextID:
		return int64(s.idCount)
	case SelectOffset:
		return s.Offset()
	default:
		return -1
	}
}

// ChangeTimeMode says how ChangeTime interprets its target.
type ChangeTimeMode byte

const (
	// ChangeTimeGoto moves to an absolute step.
	ChangeTimeGoto ChangeTimeMode = 'g'
	// ChangeTimeForward moves the given number of steps forward.
	ChangeTimeForward ChangeTimeMode = 'f'
	// ChangeTimeBackward moves the given number of steps backward.
	ChangeTimeBackward ChangeTimeMode = 'b'
)

// ChangeTime moves a replay to another step of the recorded timeline.
//
// A target behind the current step rewinds to the latest checkpoint at or
// before it: the unread buffer is discarded, the log is repositioned and the
// counters are restored. resume is then called with that checkpoint so the
// host can restore its own state (the State captured by the Snapshot hook)
// and run forward. A target ahead of the current step leaves the position
// alone and resume gets the current position. Either way the breakpoint
// target is set to the destination step, so the Breakpoint hook fires on
// arrival. When the session is already at the destination, which happens for
// a target on a checkpoint step or at the current step, the hook runs right
// after resume.
//
// No emit may be in progress across the call.
func (s *Session) ChangeTime(mode ChangeTimeMode, t int64, resume func(recorder.Checkpoint)) error {
	if s.mode != ModeReplaying {
		return ErrNotReplaying
	}

	var target int64
	switch mode {
	case ChangeTimeGoto:
		target = t
	case ChangeTimeForward:
		target = int64(s.stepCount) + t
	case ChangeTimeBackward:
		target = int64(s.stepCount) - t
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidTime, byte(mode))
	}
	if target < 0 {
		return fmt.Errorf("%w: step %d", ErrInvalidTime, target)
	}
	if total := s.index.TotalSteps; total > 0 && uint64(target) > total {
		return fmt.Errorf("%w: step %d past end of recording (%d steps)", ErrInvalidTime, target, total)
	}

	cp := recorder.Checkpoint{Step: s.stepCount, Offset: s.Offset(), UniqueID: s.idCount}
	if uint64(target) < s.stepCount {
		var ok bool
		cp, ok = s.index.Before(uint64(target))
		if !ok {
			return fmt.Errorf("%w: no checkpoint before step %d", ErrInvalidTime, target)
		}
		if err := s.rewind(cp); err != nil {
			return err
		}
	}

	s.stepBreak = uint64(target)
	arrived := s.stepCount == s.stepBreak
	s.logger.Debug("revdb: change time", "mode", string(rune(mode)), "target", target,
		"from_step", cp.Step, "offset", cp.Offset)
	if resume != nil {
		resume(cp)
	}
	if arrived {
		s.breakpoint()
	}
	return nil
}

func (s *Session) rewind(cp recorder.Checkpoint) error {
	if err := s.src.Seek(cp.Offset); err != nil {
		return fmt.Errorf("seek to checkpoint %s: %w", cp, err)
	}
	s.buf.Discard()
	s.stepCount = cp.Step
	s.idCount = cp.UniqueID
	s.forgetIDsFrom(cp.UniqueID)
	s.updateIDBreak(cp.UniqueID)
	return nil
}

// SetBreakpoint sets the step at which the Breakpoint hook runs. Zero or a
// negative step disables it.
func (s *Session) SetBreakpoint(step int64) {
	if step <= 0 {
		s.stepBreak = 0
		return
	}
	s.stepBreak = uint64(step)
}

// TrackObject calls notify with the handle of the object that gets unique id
// uid, each time that id is allocated.
func (s *Session) TrackObject(uid uint64, notify func(Handle)) {
	s.tracked[uid] = append(s.tracked[uid], notify)
	s.updateIDBreak(s.idCount)
}

// IdentityHash returns a hash for h that is the same on record and replay.
// It is derived from the stamped unique id when there is one, and from the
// handle value otherwise.
func (s *Session) IdentityHash(h Handle) uint64 {
	var b [9]byte
	if id, ok := s.uids[h]; ok {
		b[0] = 'u'
		binary.LittleEndian.PutUint64(b[1:], id)
	} else {
		b[0] = 'a'
		binary.LittleEndian.PutUint64(b[1:], uint64(h))
	}
	return xxhash.Sum64(b[:])
}
