package l3sem

import (
	"github.com/banshee-data/mapfuse/internal/fusion"
)

// Type aliases re-export the semantics accumulator from the fusion package.

// Accumulator counts per-voxel, per-class semantic votes.
type Accumulator = fusion.SemanticsAccumulator

// ValidationError rejects a delta carrying an out-of-range class id or
// voxel index.
type ValidationError = fusion.ValidationError

// Constructor re-exports.

// New creates an accumulator for the given voxel and class counts.
var New = fusion.NewSemanticsAccumulator
