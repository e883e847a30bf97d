package l1skel

import (
	"github.com/banshee-data/mapfuse/internal/fusion"
)

// State re-exports the last-write-wins skeleton holder from the fusion
// package.
type State = fusion.SkeletonState
