package revdb

import "github.com/willibrandon/revdb/pkg/recorder"

// StopPoint marks one recordable step. It runs the breakpoint hook when the
// step count reaches the breakpoint target, and adds a checkpoint every
// CheckpointInterval steps. Steps are never logged; they are recounted on
// replay.
func (s *Session) StopPoint() {
	s.stepCount++
	if s.checkpointInterval > 0 && s.stepCount%s.checkpointInterval == 0 {
		s.checkpoint()
	}
	if s.stepCount == s.stepBreak {
		s.breakpoint()
	}
}

// Steps returns the number of stop points seen.
func (s *Session) Steps() uint64 { return s.stepCount }

func (s *Session) checkpoint() {
	cp := recorder.Checkpoint{
		Step:     s.stepCount,
		Offset:   s.Offset(),
		UniqueID: s.idCount,
	}
	if s.hooks.Snapshot != nil {
		cp.State = s.hooks.Snapshot(s)
	}
	s.index.Add(cp)
}

func (s *Session) breakpoint() {
	if s.hooks.Breakpoint != nil {
		s.hooks.Breakpoint(s)
		return
	}
	s.logger.Info("revdb: breakpoint", "step", s.stepCount, "offset", s.Offset())
}
