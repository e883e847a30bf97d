package fusion

import (
	"fmt"
	"sync"

	"github.com/banshee-data/mapfuse/internal/trace"
)

// SubmapState is the owned, mutable accumulator state for one submap. The
// engine creates one lazily on the first packet naming an unseen submap id
// and serializes all access through mu: one packet's full update list is
// atomic with respect to any concurrent apply or finalize. Different submaps
// share nothing and merge in parallel.
//
// Finalize output is a pure function of the two accumulators plus the
// skeleton field; there is no other hidden state.
type SubmapState struct {
	ID string

	mu      sync.Mutex
	occ     *OccupancyAccumulator
	sem     *SemanticsAccumulator
	skel    SkeletonState
	applied int
}

func newSubmapState(id string, h *trace.Header) *SubmapState {
	return &SubmapState{
		ID:  id,
		occ: NewOccupancyAccumulator(h.NVox),
		sem: NewSemanticsAccumulator(h.NVox, h.NClasses),
	}
}

// apply dispatches one packet's payload to the accumulator matching its
// layer tag. Decode has already pinned payload kind to layer, so the default
// case is unreachable for packets produced by the trace package.
func (s *SubmapState) apply(p *trace.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch payload := p.Payload.(type) {
	case trace.GeometryDelta:
		err = s.occ.Apply(payload)
	case trace.SemanticsDelta:
		err = s.sem.Apply(payload)
	case trace.SkeletonPayload:
		s.skel.Apply(p, payload)
	default:
		err = &InvariantViolation{
			Op:     "dispatch",
			Reason: fmt.Sprintf("payload %T reached the accumulators undecoded", p.Payload),
		}
	}
	if err == nil {
		s.applied++
	}
	return err
}

// finalize builds the snapshot under the state lock.
func (s *SubmapState) finalize(h *trace.Header) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	lq, occ := s.occ.Finalize(h.LmaxQ)
	snap := &Snapshot{
		SubmapID:       s.ID,
		FormatVersion:  h.FormatVersion,
		NVox:           h.NVox,
		LmaxQ:          h.LmaxQ,
		QScale:         h.QScale,
		NClasses:       h.NClasses,
		Lq:             lq,
		Occ:            occ,
		Labels:         s.sem.Finalize(),
		Skeleton:       s.skel.Raw,
		PacketsApplied: s.applied,
	}
	snap.Fingerprint = Fingerprint(snap)
	return snap
}

// PacketsApplied reports how many packets have been folded into this submap.
func (s *SubmapState) PacketsApplied() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}
