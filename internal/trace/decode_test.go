package trace

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wireObject(t *testing.T, p *Packet) map[string]interface{} {
	t.Helper()
	obj, err := EncodePacket(p)
	require.NoError(t, err)
	// Round-trip through JSON so field values carry the same kinds the
	// reader sees on a real trace line.
	b, err := json.Marshal(obj)
	require.NoError(t, err)
	parsed, err := ParseObject(b)
	require.NoError(t, err)
	return parsed
}

func TestDecodePacket_GeometryRoundTrip(t *testing.T) {
	t.Parallel()

	in := &Packet{
		SubmapID: "3",
		RobotID:  1,
		Layer:    LayerGeometry,
		Version:  42,
		Stamp:    1700000000042,
		Payload:  GeometryDelta{Indices: []int32{2, 2, 4}, DeltaQ: []int16{7, 9, -30}},
	}
	obj := wireObject(t, in)
	require.NoError(t, VerifyCRC(obj))

	got, err := DecodePacket(obj)
	require.NoError(t, err)
	assert.Equal(t, "3", got.SubmapID)
	assert.Equal(t, LayerGeometry, got.Layer)
	assert.Equal(t, in.Payload, got.Payload)
}

func TestDecodePacket_SemanticsWithWeights(t *testing.T) {
	t.Parallel()

	in := &Packet{
		SubmapID: "s",
		Layer:    LayerSemantics,
		Version:  1,
		Stamp:    5,
		Payload:  SemanticsDelta{Indices: []int32{0, 1}, Classes: []uint16{1, 0}, Weights: []uint16{3, 1}},
	}
	obj := wireObject(t, in)
	got, err := DecodePacket(obj)
	require.NoError(t, err)
	delta := got.Payload.(SemanticsDelta)
	assert.Equal(t, int64(3), delta.WeightAt(0))
	assert.Equal(t, int64(1), delta.WeightAt(1))
}

func TestDecodePacket_WeightDefaultsToOne(t *testing.T) {
	t.Parallel()

	in := &Packet{
		SubmapID: "s",
		Layer:    LayerSemantics,
		Version:  1,
		Stamp:    5,
		Payload:  SemanticsDelta{Indices: []int32{9}, Classes: []uint16{2}},
	}
	got, err := DecodePacket(wireObject(t, in))
	require.NoError(t, err)
	delta := got.Payload.(SemanticsDelta)
	assert.Nil(t, delta.Weights)
	assert.Equal(t, int64(1), delta.WeightAt(0))
}

func TestDecodePacket_SymbolicLayerTag(t *testing.T) {
	t.Parallel()

	obj := wireObject(t, &Packet{
		SubmapID: "s",
		Layer:    LayerGeometry,
		Version:  1,
		Stamp:    1,
		Payload:  GeometryDelta{Indices: []int32{0}, DeltaQ: []int16{1}},
	})
	// Rewrite the numeric tag into the symbolic form some producers emit.
	obj["layer"] = "L2"
	_, err := AttachCRC(obj)
	require.NoError(t, err)

	got, err := DecodePacket(obj)
	require.NoError(t, err)
	assert.Equal(t, LayerGeometry, got.Layer)
}

func TestDecodePacket_LayerPayloadMismatch(t *testing.T) {
	t.Parallel()

	obj := wireObject(t, &Packet{
		SubmapID: "s",
		Layer:    LayerGeometry,
		Version:  1,
		Stamp:    1,
		Payload:  GeometryDelta{Indices: []int32{0}, DeltaQ: []int16{1}},
	})
	obj["layer"] = json.Number("3")

	_, err := DecodePacket(obj)
	var schema *SchemaError
	require.True(t, errors.As(err, &schema), "want SchemaError, got %v", err)
	assert.Equal(t, "payload.kind", schema.Field)
}

func TestDecodePacket_UnknownKind(t *testing.T) {
	t.Parallel()

	obj, err := ParseObject([]byte(`{"type":"packet","submap_id":"s","robot_id":0,"layer":2,"version":1,"stamp":1,"crc":0,"payload":{"kind":"L9_mystery"}}`))
	require.NoError(t, err)
	_, err = DecodePacket(obj)
	var schema *SchemaError
	require.True(t, errors.As(err, &schema))
	assert.Equal(t, "payload.kind", schema.Field)
}

func TestDecodePacket_LengthMismatch(t *testing.T) {
	t.Parallel()

	obj := wireObject(t, &Packet{
		SubmapID: "s",
		Layer:    LayerGeometry,
		Version:  1,
		Stamp:    1,
		Payload:  GeometryDelta{Indices: []int32{0, 1}, DeltaQ: []int16{1, 2}},
	})
	payload := obj["payload"].(map[string]interface{})
	payload["delta_q"] = arrayObject(PackInt16([]int16{1}))

	_, err := DecodePacket(obj)
	var schema *SchemaError
	require.True(t, errors.As(err, &schema))
	assert.Equal(t, "payload.delta_q", schema.Field)
}

func TestDecodePacket_NumericSubmapID(t *testing.T) {
	t.Parallel()

	obj := wireObject(t, &Packet{
		SubmapID: "17",
		Layer:    LayerSkeleton,
		Version:  1,
		Stamp:    1,
		Payload:  SkeletonPayload{Raw: json.RawMessage(`{"kind":"L1_skeleton","text":"x"}`)},
	})
	// The encoder writes all-digit ids back as wire integers.
	_, isNumber := obj["submap_id"].(json.Number)
	assert.True(t, isNumber)

	got, err := DecodePacket(obj)
	require.NoError(t, err)
	assert.Equal(t, "17", got.SubmapID)
}

func TestDecodeHeader_Validation(t *testing.T) {
	t.Parallel()

	valid := `{"type":"header","format_version":"0.1.0","n_vox":5,"lmax_q":10,"q_scale":100,"n_classes":2,"crc":0}`

	cases := []struct {
		name  string
		line  string
		field string
	}{
		{"missing format_version", `{"type":"header","n_vox":5,"lmax_q":10,"q_scale":100,"n_classes":2,"crc":0}`, "format_version"},
		{"negative n_vox", `{"type":"header","format_version":"0.1.0","n_vox":-1,"lmax_q":10,"q_scale":100,"n_classes":2,"crc":0}`, "n_vox"},
		{"zero q_scale", `{"type":"header","format_version":"0.1.0","n_vox":5,"lmax_q":10,"q_scale":0,"n_classes":2,"crc":0}`, "q_scale"},
		{"zero n_classes", `{"type":"header","format_version":"0.1.0","n_vox":5,"lmax_q":10,"q_scale":100,"n_classes":0,"crc":0}`, "n_classes"},
		{"string n_vox", `{"type":"header","format_version":"0.1.0","n_vox":"5","lmax_q":10,"q_scale":100,"n_classes":2,"crc":0}`, "n_vox"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			obj, err := ParseObject([]byte(tc.line))
			require.NoError(t, err)
			_, err = DecodeHeader(obj)
			var schema *SchemaError
			require.True(t, errors.As(err, &schema), "want SchemaError, got %v", err)
			assert.Equal(t, tc.field, schema.Field)
		})
	}

	obj, err := ParseObject([]byte(valid))
	require.NoError(t, err)
	h, err := DecodeHeader(obj)
	require.NoError(t, err)
	assert.Equal(t, 5, h.NVox)
	assert.Equal(t, int32(10), h.LmaxQ)
	assert.Equal(t, 2, h.NClasses)
}
