package fusion

import (
	"fmt"

	"github.com/banshee-data/mapfuse/internal/trace"
)

// SemanticsAccumulator counts per-voxel, per-class votes. Vote counting is
// commutative, so the accumulated histogram is order-independent; the argmax
// decode happens once in Finalize with ties broken toward the smallest class
// id so the decoded label is order-independent too.
type SemanticsAccumulator struct {
	nVox     int
	nClasses int
	votes    map[int32]map[uint16]int64
}

// NewSemanticsAccumulator creates an accumulator for nVox voxels and
// nClasses semantic classes.
func NewSemanticsAccumulator(nVox, nClasses int) *SemanticsAccumulator {
	return &SemanticsAccumulator{
		nVox:     nVox,
		nClasses: nClasses,
		votes:    make(map[int32]map[uint16]int64),
	}
}

// Apply folds one semantics delta in. Every observation is validated before
// any vote is counted: one out-of-range class id or voxel index rejects the
// whole packet with a ValidationError and leaves the histogram untouched.
func (a *SemanticsAccumulator) Apply(d trace.SemanticsDelta) error {
	for i, idx := range d.Indices {
		if idx < 0 || int(idx) >= a.nVox {
			return &ValidationError{
				Field:  "payload.indices",
				Reason: fmt.Sprintf("voxel index %d outside [0,%d)", idx, a.nVox),
			}
		}
		if int(d.Classes[i]) >= a.nClasses {
			return &ValidationError{
				Field:  "payload.sem",
				Reason: fmt.Sprintf("class id %d outside [0,%d)", d.Classes[i], a.nClasses),
			}
		}
	}
	for i, idx := range d.Indices {
		// A zero weight contributes nothing; recording it would let a
		// voteless class win argmax at an otherwise untouched voxel.
		w := d.WeightAt(i)
		if w == 0 {
			continue
		}
		m := a.votes[idx]
		if m == nil {
			m = make(map[uint16]int64)
			a.votes[idx] = m
		}
		m[d.Classes[i]] += w
	}
	return nil
}

// Finalize decodes per-voxel labels by argmax over vote counts. Ties resolve
// to the smallest class id, never to insertion order, so equal-vote classes
// decode identically under every packet permutation. Unobserved voxels
// report label 0.
func (a *SemanticsAccumulator) Finalize() []uint16 {
	labels := make([]uint16, a.nVox)
	for idx, m := range a.votes {
		var best uint16
		var bestVotes int64 = -1
		for c, v := range m {
			if v > bestVotes || (v == bestVotes && c < best) {
				best, bestVotes = c, v
			}
		}
		labels[idx] = best
	}
	return labels
}

// Votes returns a copy of the vote histogram for one voxel, or nil when the
// voxel was never observed.
func (a *SemanticsAccumulator) Votes(idx int32) map[uint16]int64 {
	m := a.votes[idx]
	if m == nil {
		return nil
	}
	out := make(map[uint16]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Observed reports how many voxels have at least one vote entry.
func (a *SemanticsAccumulator) Observed() int { return len(a.votes) }
