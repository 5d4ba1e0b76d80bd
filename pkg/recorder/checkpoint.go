package recorder

import (
	"fmt"
)

// Checkpoint represents a stop point in the recorded timeline that a replay
// can be positioned at and resumed from
type Checkpoint struct {
	// Step is the stop point count at the checkpoint.
	Step uint64 `json:"step"`
	// Offset is the logical log offset of the next value after Step.
	Offset int64 `json:"offset"`
	// UniqueID is the next unique object id at Step.
	UniqueID uint64 `json:"uid"`
	// State is an optional host snapshot taken at Step.
	State []byte `json:"state,omitempty"`
}

// Origin is the checkpoint every timeline starts from
func Origin() Checkpoint {
	return Checkpoint{Step: 0, Offset: 0, UniqueID: 1}
}

// String returns a human-readable representation of the checkpoint
func (c Checkpoint) String() string {
	return fmt.Sprintf("Checkpoint{Step: %d, Offset: %d, UID: %d, State: %d bytes}",
		c.Step, c.Offset, c.UniqueID, len(c.State))
}
