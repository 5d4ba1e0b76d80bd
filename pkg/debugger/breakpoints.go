// Package debugger keeps the breakpoints of a replay and arms them on a
// session.
package debugger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/willibrandon/revdb/pkg/revdb"
)

// BreakpointType defines the type of breakpoint
type BreakpointType int

const (
	// StepBreakpoint breaks when a stop point count is reached
	StepBreakpoint BreakpointType = iota
	// ObjectBreakpoint breaks when an object with a unique id is allocated
	ObjectBreakpoint
)

// String returns the string representation of the BreakpointType
func (t BreakpointType) String() string {
	switch t {
	case StepBreakpoint:
		return "step"
	case ObjectBreakpoint:
		return "object"
	default:
		return "unknown"
	}
}

// Breakpoint represents a point to stop at during replay
type Breakpoint struct {
	ID       int
	Type     BreakpointType
	Step     uint64 // For StepBreakpoint
	UniqueID uint64 // For ObjectBreakpoint
	Enabled  bool
	Hits     int
}

func (bp *Breakpoint) String() string {
	state := "enabled"
	if !bp.Enabled {
		state = "disabled"
	}
	if bp.Type == ObjectBreakpoint {
		return fmt.Sprintf("#%d object uid:%d (%s, %d hits)", bp.ID, bp.UniqueID, state, bp.Hits)
	}
	return fmt.Sprintf("#%d step %d (%s, %d hits)", bp.ID, bp.Step, state, bp.Hits)
}

// BreakpointManager manages breakpoints for a replay
type BreakpointManager struct {
	breakpoints []*Breakpoint
	nextID      int
	tracked     map[uint64]bool
}

// NewBreakpointManager creates a new breakpoint manager
func NewBreakpointManager() *BreakpointManager {
	return &BreakpointManager{
		breakpoints: make([]*Breakpoint, 0),
		nextID:      1,
		tracked:     make(map[uint64]bool),
	}
}

// AddBreakpoint adds a breakpoint. The location is a step number ("42" or
// "step:42") or a unique object id ("uid:7").
func (bm *BreakpointManager) AddBreakpoint(location string) (*Breakpoint, error) {
	bp := &Breakpoint{Enabled: true}

	kind, value, found := strings.Cut(location, ":")
	if !found {
		kind, value = "step", location
	}

	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid breakpoint %q: %w", location, err)
	}

	switch kind {
	case "step":
		if n == 0 {
			return nil, fmt.Errorf("invalid breakpoint %q: steps start at 1", location)
		}
		bp.Type = StepBreakpoint
		bp.Step = n
	case "uid":
		if n == 0 {
			return nil, fmt.Errorf("invalid breakpoint %q: unique ids start at 1", location)
		}
		bp.Type = ObjectBreakpoint
		bp.UniqueID = n
	default:
		return nil, fmt.Errorf("invalid breakpoint kind %q", kind)
	}

	bp.ID = bm.nextID
	bm.nextID++
	bm.breakpoints = append(bm.breakpoints, bp)
	return bp, nil
}

// GetBreakpoints returns all breakpoints
func (bm *BreakpointManager) GetBreakpoints() []*Breakpoint {
	return bm.breakpoints
}

// RemoveBreakpoint removes a breakpoint by ID
func (bm *BreakpointManager) RemoveBreakpoint(id int) error {
	for i, bp := range bm.breakpoints {
		if bp.ID == id {
			bm.breakpoints = append(bm.breakpoints[:i], bm.breakpoints[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("breakpoint %d not found", id)
}

// EnableBreakpoint enables a breakpoint by ID
func (bm *BreakpointManager) EnableBreakpoint(id int) error {
	bp := bm.find(id)
	if bp == nil {
		return fmt.Errorf("breakpoint %d not found", id)
	}
	bp.Enabled = true
	return nil
}

// DisableBreakpoint disables a breakpoint by ID
func (bm *BreakpointManager) DisableBreakpoint(id int) error {
	bp := bm.find(id)
	if bp == nil {
		return fmt.Errorf("breakpoint %d not found", id)
	}
	bp.Enabled = false
	return nil
}

func (bm *BreakpointManager) find(id int) *Breakpoint {
	for _, bp := range bm.breakpoints {
		if bp.ID == id {
			return bp
		}
	}
	return nil
}

// NextStep returns the smallest enabled step breakpoint after step.
func (bm *BreakpointManager) NextStep(step uint64) (uint64, bool) {
	var next uint64
	found := false
	for _, bp := range bm.breakpoints {
		if !bp.Enabled || bp.Type != StepBreakpoint || bp.Step <= step {
			continue
		}
		if !found || bp.Step < next {
			next = bp.Step
			found = true
		}
	}
	return next, found
}

// CheckStep records a hit on every enabled step breakpoint at step and
// reports whether there was one.
func (bm *BreakpointManager) CheckStep(step uint64) bool {
	hit := false
	for _, bp := range bm.breakpoints {
		if bp.Enabled && bp.Type == StepBreakpoint && bp.Step == step {
			bp.Hits++
			hit = true
		}
	}
	return hit
}

// CheckObject records a hit on every enabled object breakpoint for uid and
// reports whether there was one.
func (bm *BreakpointManager) CheckObject(uid uint64) bool {
	hit := false
	for _, bp := range bm.breakpoints {
		if bp.Enabled && bp.Type == ObjectBreakpoint && bp.UniqueID == uid {
			bp.Hits++
			hit = true
		}
	}
	return hit
}

// Arm sets the session breakpoint target to the next step breakpoint after
// the current step, and tracks the ids of object breakpoints. onObject runs
// when a tracked object is allocated and an enabled breakpoint still wants
// it.
func (bm *BreakpointManager) Arm(s *revdb.Session, onObject func(uid uint64, h revdb.Handle)) {
	next, ok := bm.NextStep(s.Steps())
	if !ok {
		next = 0
	}
	s.SetBreakpoint(int64(next))

	for _, bp := range bm.breakpoints {
		if bp.Type != ObjectBreakpoint || bm.tracked[bp.UniqueID] {
			continue
		}
		uid := bp.UniqueID
		bm.tracked[uid] = true
		s.TrackObject(uid, func(h revdb.Handle) {
			if bm.CheckObject(uid) && onObject != nil {
				onObject(uid, h)
			}
		})
	}
}
