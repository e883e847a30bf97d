package l2occ

import (
	"github.com/banshee-data/mapfuse/internal/fusion"
)

// Type aliases re-export the geometry accumulator from the fusion package.
// Callers import from l2occ while the implementation shares a package with
// the engine and snapshot code.

// Accumulator folds quantized log-odds deltas with exact integer addition.
type Accumulator = fusion.OccupancyAccumulator

// ValidationError rejects a delta whose voxel index is out of range.
type ValidationError = fusion.ValidationError

// InvariantViolation reports fatal accumulator overflow.
type InvariantViolation = fusion.InvariantViolation

// Constructor re-exports.

// New creates an accumulator for a submap with the given voxel count.
var New = fusion.NewOccupancyAccumulator
