// Package recorder keeps the checkpoint index of a recording: where in the
// log each checkpointed stop point starts, so a replay can travel back to it.
package recorder

import (
	"sort"

	"github.com/google/uuid"
)

// Index is the ordered set of checkpoints of one recording
type Index struct {
	SessionID  uuid.UUID
	TotalSteps uint64

	checkpoints []Checkpoint
}

// NewIndex returns an index holding only the origin checkpoint
func NewIndex(sessionID uuid.UUID) *Index {
	return &Index{
		SessionID:   sessionID,
		checkpoints: []Checkpoint{Origin()},
	}
}

// Add inserts a checkpoint, replacing any existing one for the same step
func (ix *Index) Add(c Checkpoint) {
	n := len(ix.checkpoints)
	if n == 0 || ix.checkpoints[n-1].Step < c.Step {
		ix.checkpoints = append(ix.checkpoints, c)
		return
	}

	i := sort.Search(n, func(i int) bool { return ix.checkpoints[i].Step >= c.Step })
	if i < n && ix.checkpoints[i].Step == c.Step {
		ix.checkpoints[i] = c
		return
	}
	ix.checkpoints = append(ix.checkpoints, Checkpoint{})
	copy(ix.checkpoints[i+1:], ix.checkpoints[i:])
	ix.checkpoints[i] = c
}

// Before returns the latest checkpoint at or before step
func (ix *Index) Before(step uint64) (Checkpoint, bool) {
	i := sort.Search(len(ix.checkpoints), func(i int) bool { return ix.checkpoints[i].Step > step })
	if i == 0 {
		return Checkpoint{}, false
	}
	return ix.checkpoints[i-1], true
}

// Checkpoints returns all checkpoints ordered by step
func (ix *Index) Checkpoints() []Checkpoint {
	return ix.checkpoints
}

// Len returns the number of checkpoints
func (ix *Index) Len() int {
	return len(ix.checkpoints)
}

// Clear drops every checkpoint except the origin
func (ix *Index) Clear() {
	ix.checkpoints = []Checkpoint{Origin()}
	ix.TotalSteps = 0
}
