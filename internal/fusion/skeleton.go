package fusion

import (
	"encoding/json"

	"github.com/banshee-data/mapfuse/internal/trace"
)

// SkeletonState holds the last-applied skeleton payload for a submap. The
// merge rule is replace-only: whichever packet is applied last wins, so this
// layer is order-dependent and excluded from the convergence guarantee and
// from the snapshot fingerprint. That gap is inherited from the trace
// format, not papered over here.
type SkeletonState struct {
	Raw     json.RawMessage // nil until the first skeleton packet
	RobotID int
	Version int64
	Stamp   int64
}

// Apply unconditionally replaces the stored skeleton with the packet's
// payload.
func (s *SkeletonState) Apply(p *trace.Packet, payload trace.SkeletonPayload) {
	s.Raw = payload.Raw
	s.RobotID = p.RobotID
	s.Version = p.Version
	s.Stamp = p.Stamp
}

// Empty reports whether any skeleton packet has been applied.
func (s *SkeletonState) Empty() bool { return s.Raw == nil }
