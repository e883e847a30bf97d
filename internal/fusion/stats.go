package fusion

import (
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates quick-look statistics for one snapshot, mirroring what
// the trace tooling prints after a merge.
type Summary struct {
	SubmapID       string  `json:"submap_id"`
	MeanOccupancy  float64 `json:"mean_occupancy"`
	LqMean         float64 `json:"lq_mean"`
	LqStdDev       float64 `json:"lq_stddev"`
	DistinctLabels int     `json:"distinct_labels"`
	PacketsApplied int     `json:"packets_applied"`
}

// Summarize computes snapshot statistics. StdDev reports zero for snapshots
// with fewer than two voxels.
func Summarize(snap *Snapshot) Summary {
	occ := make([]float64, len(snap.Occ))
	for i, v := range snap.Occ {
		occ[i] = float64(v)
	}
	lq := make([]float64, len(snap.Lq))
	for i, v := range snap.Lq {
		lq[i] = float64(v)
	}

	seen := make(map[uint16]struct{})
	for _, l := range snap.Labels {
		seen[l] = struct{}{}
	}

	s := Summary{
		SubmapID:       snap.SubmapID,
		DistinctLabels: len(seen),
		PacketsApplied: snap.PacketsApplied,
	}
	if len(occ) > 0 {
		s.MeanOccupancy = stat.Mean(occ, nil)
		s.LqMean = stat.Mean(lq, nil)
	}
	if len(lq) > 1 {
		s.LqStdDev = stat.StdDev(lq, nil)
	}
	return s
}
