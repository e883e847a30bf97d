// Package testutil provides shared fixtures for fusion and trace tests:
// header and packet builders plus deterministic shuffling for
// order-independence checks.
package testutil

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"github.com/banshee-data/mapfuse/internal/trace"
)

// Header builds a trace header with the given geometry parameters and a
// quantization scale of 100.
func Header(nVox int, lmaxQ int32, nClasses int) *trace.Header {
	return &trace.Header{
		FormatVersion: "0.1.0",
		NVox:          nVox,
		LmaxQ:         lmaxQ,
		QScale:        100,
		NClasses:      nClasses,
	}
}

// GeometryPacket builds a layer-2 packet carrying the given sparse deltas.
func GeometryPacket(t *testing.T, submapID string, version int64, indices []int32, deltas []int16) *trace.Packet {
	t.Helper()
	if len(indices) != len(deltas) {
		t.Fatalf("GeometryPacket: %d indices but %d deltas", len(indices), len(deltas))
	}
	return &trace.Packet{
		SubmapID: submapID,
		RobotID:  0,
		Layer:    trace.LayerGeometry,
		Version:  version,
		Stamp:    1000 + version,
		Payload:  trace.GeometryDelta{Indices: indices, DeltaQ: deltas},
	}
}

// SemanticsPacket builds a layer-3 packet. weights may be nil for implicit
// weight 1.
func SemanticsPacket(t *testing.T, submapID string, version int64, indices []int32, classes []uint16, weights []uint16) *trace.Packet {
	t.Helper()
	if len(indices) != len(classes) {
		t.Fatalf("SemanticsPacket: %d indices but %d classes", len(indices), len(classes))
	}
	return &trace.Packet{
		SubmapID: submapID,
		RobotID:  0,
		Layer:    trace.LayerSemantics,
		Version:  version,
		Stamp:    1000 + version,
		Payload:  trace.SemanticsDelta{Indices: indices, Classes: classes, Weights: weights},
	}
}

// SkeletonPacket builds a layer-1 packet with an opaque text payload.
func SkeletonPacket(t *testing.T, submapID string, version int64, text string) *trace.Packet {
	t.Helper()
	raw, err := json.Marshal(map[string]string{
		"kind": trace.KindSkeleton,
		"text": text,
	})
	if err != nil {
		t.Fatalf("SkeletonPacket: %v", err)
	}
	return &trace.Packet{
		SubmapID: submapID,
		RobotID:  0,
		Layer:    trace.LayerSkeleton,
		Version:  version,
		Stamp:    1000 + version,
		Payload:  trace.SkeletonPayload{Raw: raw},
	}
}

// Shuffled returns a seeded pseudorandom permutation of packets without
// modifying the input.
func Shuffled(seed int64, packets []*trace.Packet) []*trace.Packet {
	out := make([]*trace.Packet, len(packets))
	copy(out, packets)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Permutations returns every ordering of packets. Factorial; keep inputs
// small.
func Permutations(packets []*trace.Packet) [][]*trace.Packet {
	if len(packets) <= 1 {
		cp := make([]*trace.Packet, len(packets))
		copy(cp, packets)
		return [][]*trace.Packet{cp}
	}
	var out [][]*trace.Packet
	for i := range packets {
		rest := make([]*trace.Packet, 0, len(packets)-1)
		rest = append(rest, packets[:i]...)
		rest = append(rest, packets[i+1:]...)
		for _, tail := range Permutations(rest) {
			perm := append([]*trace.Packet{packets[i]}, tail...)
			out = append(out, perm)
		}
	}
	return out
}

// WireLine encodes a packet to its JSONL wire form with a valid CRC.
func WireLine(t *testing.T, p *trace.Packet) []byte {
	t.Helper()
	obj, err := trace.EncodePacket(p)
	if err != nil {
		t.Fatalf("WireLine: %v", err)
	}
	b, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("WireLine: %v", err)
	}
	return b
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// SubmapIDs formats a deterministic sequence of submap identifiers.
func SubmapIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("s%02d", i)
	}
	return out
}
