package revdb

import "math"

// AllocateID gives h the next unique id and stamps it in the side table.
// Allocation is not logged: replay recomputes the same ids as long as
// objects are allocated in the same order.
//
// When the id is the unique id break target, or h is NoHandle, the
// UniqueIDBreak hook may pick a later id, and objects tracked with
// TrackObject under the final id are notified.
func (s *Session) AllocateID(h Handle) uint64 {
	id := s.idCount
	if id == s.idBreak || h == NoHandle {
		id = s.uniqueIDBreak(h, id)
	}
	s.idCount = id + 1
	if h != NoHandle {
		s.uids[h] = id
	}
	return id
}

// UniqueID returns the id stamped on h.
func (s *Session) UniqueID(h Handle) (uint64, bool) {
	id, ok := s.uids[h]
	return id, ok
}

func (s *Session) uniqueIDBreak(h Handle, proposed uint64) uint64 {
	id := proposed
	if s.hooks.UniqueIDBreak != nil {
		id = s.hooks.UniqueIDBreak(s, h, proposed)
		if id < proposed {
			s.logger.Warn("revdb: unique id hook went backwards", "proposed", proposed, "got", id)
			id = proposed
		}
	}
	if h != NoHandle {
		for _, notify := range s.tracked[id] {
			notify(h)
		}
	}
	s.updateIDBreak(id + 1)
	return id
}

// updateIDBreak moves the break target to the smallest tracked id not below
// next.
func (s *Session) updateIDBreak(next uint64) {
	target := uint64(math.MaxUint64)
	for id := range s.tracked {
		if id >= next && id < target {
			target = id
		}
	}
	if target == math.MaxUint64 {
		target = 0
	}
	s.idBreak = target
}

// forgetIDsFrom drops side table entries for ids at or above first. Used
// when traveling back in time to before those objects existed.
func (s *Session) forgetIDsFrom(first uint64) {
	for h, id := range s.uids {
		if id >= first {
			delete(s.uids, h)
		}
	}
}
