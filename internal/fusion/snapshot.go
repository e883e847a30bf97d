package fusion

import "encoding/json"

// Snapshot is the immutable finalized view of one submap: the terminally
// clamped log-odds, decoded occupancy bits and semantic labels, plus the
// header parameters that produced them. The geometry and semantics fields
// and the fingerprint are byte-identical for every permutation of the same
// packet set; the skeleton field is last-write-wins and exempt.
type Snapshot struct {
	SubmapID      string `json:"submap_id"`
	FormatVersion string `json:"format_version"`
	NVox          int    `json:"n_vox"`
	LmaxQ         int32  `json:"lmax_q"`
	QScale        int    `json:"q_scale"`
	NClasses      int    `json:"n_classes"`

	Lq     []int32  `json:"lq"`        // clamped log-odds, dense over n_vox
	Occ    []uint8  `json:"occ_bin"`   // 1 iff clamped log-odds > 0
	Labels []uint16 `json:"sem_label"` // argmax labels, ties to smallest id

	Skeleton json.RawMessage `json:"skeleton,omitempty"` // excluded from fingerprint

	PacketsApplied int    `json:"packets_applied"`
	Fingerprint    string `json:"fingerprint"`
}
