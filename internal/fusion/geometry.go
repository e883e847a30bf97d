package fusion

import (
	"fmt"
	"math"

	"github.com/banshee-data/mapfuse/internal/trace"
)

// OccupancyAccumulator folds quantized log-odds deltas into per-voxel raw
// sums. Accumulation is exact int64 addition with no clamping, which is what
// makes the fold commutative and associative; the clamp happens exactly once
// in Finalize. Entries exist only for voxels that received at least one
// delta.
//
// The accumulator is deliberately wider than the 16-bit wire deltas. A raw
// sum escaping int32 range would take an unrealistic packet volume, so it is
// treated as a fatal invariant violation rather than wrapped.
type OccupancyAccumulator struct {
	nVox int
	raw  map[int32]int64
}

// NewOccupancyAccumulator creates an accumulator for a submap of nVox voxels.
func NewOccupancyAccumulator(nVox int) *OccupancyAccumulator {
	return &OccupancyAccumulator{nVox: nVox, raw: make(map[int32]int64)}
}

// Apply folds one geometry delta in. Repeated indices accumulate, both
// within one delta and across deltas. A voxel index outside [0, n_vox)
// returns a ValidationError before any counter is modified, so a rejected
// delta leaves the accumulator untouched.
func (a *OccupancyAccumulator) Apply(d trace.GeometryDelta) error {
	for _, idx := range d.Indices {
		if idx < 0 || int(idx) >= a.nVox {
			return &ValidationError{
				Field:  "payload.indices",
				Reason: fmt.Sprintf("voxel index %d outside [0,%d)", idx, a.nVox),
			}
		}
	}
	for i, idx := range d.Indices {
		sum := a.raw[idx] + int64(d.DeltaQ[i])
		if sum > math.MaxInt32 || sum < math.MinInt32 {
			return &InvariantViolation{
				Op:     "occupancy accumulate",
				Reason: fmt.Sprintf("raw log-odds overflow at voxel %d: %d", idx, sum),
			}
		}
		a.raw[idx] = sum
	}
	return nil
}

// Finalize applies the terminal clamp and decodes occupancy bits. The
// returned slices are dense over the full voxel range; voxels that never
// received a delta report zero log-odds and an unset occupancy bit.
// Finalize does not modify the accumulator and may be called repeatedly.
func (a *OccupancyAccumulator) Finalize(clampBound int32) (lq []int32, occ []uint8) {
	lq = make([]int32, a.nVox)
	occ = make([]uint8, a.nVox)
	for idx, raw := range a.raw {
		c := raw
		if c > int64(clampBound) {
			c = int64(clampBound)
		} else if c < int64(-clampBound) {
			c = int64(-clampBound)
		}
		lq[idx] = int32(c)
		if c > 0 {
			occ[idx] = 1
		}
	}
	return lq, occ
}

// RawLogOdds returns a copy of the unclamped accumulator map.
func (a *OccupancyAccumulator) RawLogOdds() map[int32]int64 {
	out := make(map[int32]int64, len(a.raw))
	for k, v := range a.raw {
		out[k] = v
	}
	return out
}

// Touched reports how many voxels have received at least one delta.
func (a *OccupancyAccumulator) Touched() int { return len(a.raw) }
