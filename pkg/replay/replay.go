// Package replay drives a replaying program back and forth in time.
package replay

import (
	"errors"
	"fmt"

	"github.com/willibrandon/revdb/pkg/debugger"
	"github.com/willibrandon/revdb/pkg/recorder"
	"github.com/willibrandon/revdb/pkg/revdb"
)

// Program is a replayable program that the Navigator runs one step at a
// time.
type Program interface {
	// Step runs one step and ends it with a stop point on s. It returns
	// false, without a stop point, when the program has finished.
	Step(s *revdb.Session) bool

	// Snapshot captures the program state at a checkpoint.
	Snapshot() []byte

	// Restore puts the program back in the state captured at cp. The origin
	// checkpoint has no state and means the initial state.
	Restore(cp recorder.Checkpoint) error
}

// StopReason says why the navigator stopped.
type StopReason int

const (
	// StopFinished means the program ran to its end
	StopFinished StopReason = iota
	// StopBreakpoint means a step breakpoint was reached
	StopBreakpoint
	// StopObject means a tracked object was allocated
	StopObject
	// StopTarget means a requested step was reached
	StopTarget
)

// String returns the string representation of the StopReason
func (r StopReason) String() string {
	switch r {
	case StopFinished:
		return "finished"
	case StopBreakpoint:
		return "breakpoint"
	case StopObject:
		return "object"
	case StopTarget:
		return "target"
	default:
		return "unknown"
	}
}

// ErrNotAttached is returned when the navigator has no session.
var ErrNotAttached = errors.New("navigator has no session")

// Navigator moves a replay with continue, step and go-to commands.
type Navigator struct {
	program     Program
	breakpoints *debugger.BreakpointManager
	session     *revdb.Session
	finished    bool
	hit         bool
	objectHit   bool
	object      revdb.Handle
}

// NewNavigator creates a navigator. Its Hooks must be installed on the
// replay session, which is then passed to Attach.
func NewNavigator(program Program, breakpoints *debugger.BreakpointManager) *Navigator {
	if breakpoints == nil {
		breakpoints = debugger.NewBreakpointManager()
	}
	return &Navigator{program: program, breakpoints: breakpoints}
}

// Hooks returns the session hooks the navigator relies on.
func (n *Navigator) Hooks() revdb.Hooks {
	return revdb.Hooks{
		Breakpoint: func(*revdb.Session) { n.hit = true },
		Snapshot:   func(*revdb.Session) []byte { return n.program.Snapshot() },
	}
}

// Attach binds the navigator to a replay session.
func (n *Navigator) Attach(s *revdb.Session) error {
	if !s.Replaying() {
		return revdb.ErrNotReplaying
	}
	n.session = s
	return nil
}

// Breakpoints returns the breakpoint set.
func (n *Navigator) Breakpoints() *debugger.BreakpointManager { return n.breakpoints }

// CurrentStep returns the current stop point count.
func (n *Navigator) CurrentStep() uint64 {
	if n.session == nil {
		return 0
	}
	return n.session.Steps()
}

// Finished reports whether the program has run to its end.
func (n *Navigator) Finished() bool { return n.finished }

// LastObject returns the handle of the object that caused the last
// StopObject.
func (n *Navigator) LastObject() revdb.Handle { return n.object }

// Continue runs until an enabled breakpoint is reached or the program ends.
func (n *Navigator) Continue() (StopReason, error) {
	if n.session == nil {
		return StopFinished, ErrNotAttached
	}

	n.rearm()
	for !n.finished {
		n.hit = false
		n.objectHit = false
		if !n.program.Step(n.session) {
			n.finished = true
			break
		}
		if n.objectHit {
			n.rearm()
			return StopObject, nil
		}
		if n.hit && n.breakpoints.CheckStep(n.session.Steps()) {
			n.rearm()
			return StopBreakpoint, nil
		}
	}
	n.session.Logger().Debug("revdb: replay finished", "steps", n.session.Steps())
	return StopFinished, nil
}

func (n *Navigator) rearm() {
	n.breakpoints.Arm(n.session, n.onObject)
}

func (n *Navigator) onObject(uid uint64, h revdb.Handle) {
	n.objectHit = true
	n.object = h
	n.session.Logger().Debug("revdb: object breakpoint", "uid", uid, "step", n.session.Steps())
}

// ReplayForward runs to the end of the program, ignoring breakpoints.
func (n *Navigator) ReplayForward() error {
	if n.session == nil {
		return ErrNotAttached
	}
	n.session.SetBreakpoint(0)
	for !n.finished {
		if !n.program.Step(n.session) {
			n.finished = true
		}
	}
	return nil
}

// GoTo moves to the end of the given step. Moving back restores the
// program from the latest checkpoint at or before it and replays forward.
func (n *Navigator) GoTo(step uint64) (StopReason, error) {
	if n.session == nil {
		return StopFinished, ErrNotAttached
	}

	before := n.session.Steps()
	var restoreErr error
	err := n.session.ChangeTime(revdb.ChangeTimeGoto, int64(step), func(cp recorder.Checkpoint) {
		if cp.Step < before {
			restoreErr = n.program.Restore(cp)
			n.finished = false
		}
	})
	if err != nil {
		return StopFinished, err
	}
	if restoreErr != nil {
		return StopFinished, fmt.Errorf("restore program: %w", restoreErr)
	}

	for n.session.Steps() < step {
		if !n.program.Step(n.session) {
			n.finished = true
			return StopFinished, nil
		}
	}
	n.rearm()
	return StopTarget, nil
}

// StepForward moves count steps forward.
func (n *Navigator) StepForward(count uint64) (StopReason, error) {
	return n.GoTo(n.CurrentStep() + count)
}

// StepBackward moves count steps backward.
func (n *Navigator) StepBackward(count uint64) (StopReason, error) {
	current := n.CurrentStep()
	if count > current {
		return StopFinished, fmt.Errorf("%w: cannot step back %d from step %d", revdb.ErrInvalidTime, count, current)
	}
	return n.GoTo(current - count)
}
