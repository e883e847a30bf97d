package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	t.Parallel()

	snap := &Snapshot{
		SubmapID:       "m1",
		Lq:             []int32{0, 10, -2, 0},
		Occ:            []uint8{0, 1, 0, 0},
		Labels:         []uint16{0, 1, 0, 1},
		PacketsApplied: 7,
	}

	s := Summarize(snap)
	assert.Equal(t, "m1", s.SubmapID)
	assert.InDelta(t, 0.25, s.MeanOccupancy, 1e-12)
	assert.InDelta(t, 2.0, s.LqMean, 1e-12)
	assert.Greater(t, s.LqStdDev, 0.0)
	assert.Equal(t, 2, s.DistinctLabels)
	assert.Equal(t, 7, s.PacketsApplied)
}

func TestSummarize_EmptySnapshot(t *testing.T) {
	t.Parallel()

	s := Summarize(&Snapshot{SubmapID: "empty"})
	assert.Zero(t, s.MeanOccupancy)
	assert.Zero(t, s.LqMean)
	assert.Zero(t, s.LqStdDev)
	assert.Zero(t, s.DistinctLabels)
}

func TestSummarize_SingleVoxelHasZeroStdDev(t *testing.T) {
	t.Parallel()

	s := Summarize(&Snapshot{Lq: []int32{5}, Occ: []uint8{1}, Labels: []uint16{0}})
	assert.InDelta(t, 5.0, s.LqMean, 1e-12)
	assert.Zero(t, s.LqStdDev)
}
