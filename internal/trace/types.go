package trace

import (
	"encoding/json"
	"fmt"
)

// Layer identifies which submap layer a packet updates.
type Layer int

// Layer tags. The wire format carries either the numeric form (1, 2, 3) or
// the symbolic form ("L1", "L2", "L3"); both normalize to these constants.
const (
	LayerSkeleton  Layer = 1 // replace-only pose skeleton, non-convergent
	LayerGeometry  Layer = 2 // quantized log-odds occupancy deltas
	LayerSemantics Layer = 3 // per-class semantic votes
)

func (l Layer) String() string {
	switch l {
	case LayerSkeleton:
		return "L1"
	case LayerGeometry:
		return "L2"
	case LayerSemantics:
		return "L3"
	}
	return fmt.Sprintf("Layer(%d)", int(l))
}

// Payload kind strings as they appear on the wire.
const (
	KindSkeleton = "L1_skeleton"
	KindOccDelta = "L2_occ_delta"
	KindSemDelta = "L3_sem_delta"
)

// Header carries the trace-wide parameters. It is immutable once loaded and
// every submap in the trace shares it.
type Header struct {
	FormatVersion string // e.g. "0.1.0"
	NVox          int    // voxels per submap
	LmaxQ         int32  // quantized clamp bound for log-odds
	QScale        int    // integer quantization scale (positive)
	NClasses      int    // semantic class count (positive)
	CRC           uint32 // checksum over the canonical encoding minus "crc"
}

// Packet is one self-contained observation update for one layer of one
// submap. Packets are immutable after decode.
type Packet struct {
	SubmapID string // numeric wire IDs are normalized to decimal strings
	RobotID  int
	Layer    Layer
	Version  int64 // informational monotonic counter, not used for ordering
	Stamp    int64 // producer timestamp
	Payload  Payload
	CRC      uint32
}

// Payload is the closed variant over the three layer payloads. Exactly the
// types SkeletonPayload, GeometryDelta and SemanticsDelta implement it.
type Payload interface {
	Kind() string
}

// SkeletonPayload is an opaque structured blob. The merge rule for it is
// replace-only, so the engine never looks inside; Raw preserves the exact
// wire bytes for re-export.
type SkeletonPayload struct {
	Raw json.RawMessage
}

// Kind implements Payload.
func (SkeletonPayload) Kind() string { return KindSkeleton }

// GeometryDelta is a sparse list of (voxel index, quantized log-odds delta)
// pairs. Indices may repeat; repeats accumulate.
type GeometryDelta struct {
	Indices []int32
	DeltaQ  []int16
}

// Kind implements Payload.
func (GeometryDelta) Kind() string { return KindOccDelta }

// SemanticsDelta is a sparse list of (voxel index, class id, weight)
// observations. Weights is nil when the trace omits it, meaning weight 1 for
// every observation.
type SemanticsDelta struct {
	Indices []int32
	Classes []uint16
	Weights []uint16
}

// Kind implements Payload.
func (SemanticsDelta) Kind() string { return KindSemDelta }

// WeightAt returns the weight of observation i, defaulting to 1 when the
// trace carried no weights array.
func (d SemanticsDelta) WeightAt(i int) int64 {
	if d.Weights == nil {
		return 1
	}
	return int64(d.Weights[i])
}

// ParseLayer normalizes the two layer-tag encodings seen in traces: JSON
// numbers (1, 2, 3) and symbolic strings ("L1".."L3", case-insensitive).
func ParseLayer(v interface{}) (Layer, error) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, fmt.Errorf("non-integer layer %q", t.String())
		}
		switch n {
		case 1, 2, 3:
			return Layer(n), nil
		}
		return 0, fmt.Errorf("unknown layer %d", n)
	case string:
		switch t {
		case "L1", "l1":
			return LayerSkeleton, nil
		case "L2", "l2":
			return LayerGeometry, nil
		case "L3", "l3":
			return LayerSemantics, nil
		}
		return 0, fmt.Errorf("unknown layer %q", t)
	}
	return 0, fmt.Errorf("layer has kind %T, want number or string", v)
}
