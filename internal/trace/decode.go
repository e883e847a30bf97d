package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Record type discriminators carried in the "type" field of each trace line.
const (
	TypeHeader = "header"
	TypePacket = "packet"
)

// ParseObject decodes one JSONL line into a generic object with numbers kept
// as json.Number so the canonical encoding sees the exact wire literals.
func ParseObject(line []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, &SchemaError{Field: "(document)", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return obj, nil
}

// RecordType returns the "type" discriminator of a parsed trace line.
func RecordType(obj map[string]interface{}) (string, error) {
	t, ok := obj["type"].(string)
	if !ok {
		return "", &SchemaError{Field: "type", Reason: "missing or not a string"}
	}
	switch t {
	case TypeHeader, TypePacket:
		return t, nil
	}
	return "", &SchemaError{Field: "type", Reason: fmt.Sprintf("unknown record type %q", t)}
}

func fieldInt(obj map[string]interface{}, name string) (int64, error) {
	raw, ok := obj[name]
	if !ok {
		return 0, &SchemaError{Field: name, Reason: "missing"}
	}
	num, ok := raw.(json.Number)
	if !ok {
		return 0, &SchemaError{Field: name, Reason: fmt.Sprintf("has kind %T, want integer", raw)}
	}
	v, err := num.Int64()
	if err != nil {
		return 0, &SchemaError{Field: name, Reason: fmt.Sprintf("not an integer: %s", num.String())}
	}
	return v, nil
}

func fieldString(obj map[string]interface{}, name string) (string, error) {
	raw, ok := obj[name]
	if !ok {
		return "", &SchemaError{Field: name, Reason: "missing"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &SchemaError{Field: name, Reason: fmt.Sprintf("has kind %T, want string", raw)}
	}
	return s, nil
}

// fieldArray re-marshals a payload subobject into the b64z Array form.
func fieldArray(payload map[string]interface{}, name string) (Array, error) {
	raw, ok := payload[name]
	if !ok {
		return Array{}, &SchemaError{Field: "payload." + name, Reason: "missing"}
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return Array{}, &SchemaError{Field: "payload." + name, Reason: err.Error()}
	}
	var a Array
	if err := json.Unmarshal(b, &a); err != nil {
		return Array{}, &SchemaError{Field: "payload." + name, Reason: fmt.Sprintf("not a b64z array: %v", err)}
	}
	return a, nil
}

// DecodeHeader validates the shape of a header object and returns the typed
// Header. Integrity must be checked separately with VerifyCRC.
func DecodeHeader(obj map[string]interface{}) (*Header, error) {
	fv, err := fieldString(obj, "format_version")
	if err != nil {
		return nil, err
	}
	nVox, err := fieldInt(obj, "n_vox")
	if err != nil {
		return nil, err
	}
	if nVox < 0 {
		return nil, &SchemaError{Field: "n_vox", Reason: fmt.Sprintf("negative voxel count %d", nVox)}
	}
	lmaxQ, err := fieldInt(obj, "lmax_q")
	if err != nil {
		return nil, err
	}
	if lmaxQ < 0 || lmaxQ > math.MaxInt32 {
		return nil, &SchemaError{Field: "lmax_q", Reason: fmt.Sprintf("clamp bound %d out of range", lmaxQ)}
	}
	qScale, err := fieldInt(obj, "q_scale")
	if err != nil {
		return nil, err
	}
	if qScale <= 0 {
		return nil, &SchemaError{Field: "q_scale", Reason: fmt.Sprintf("quantization scale %d, must be positive", qScale)}
	}
	nClasses, err := fieldInt(obj, "n_classes")
	if err != nil {
		return nil, err
	}
	if nClasses <= 0 {
		return nil, &SchemaError{Field: "n_classes", Reason: fmt.Sprintf("class count %d, must be positive", nClasses)}
	}
	crc, err := fieldInt(obj, "crc")
	if err != nil {
		return nil, err
	}
	return &Header{
		FormatVersion: fv,
		NVox:          int(nVox),
		LmaxQ:         int32(lmaxQ),
		QScale:        int(qScale),
		NClasses:      int(nClasses),
		CRC:           uint32(crc),
	}, nil
}

// DecodePacket validates the shape of a packet object, normalizes the layer
// tag and decodes the payload into its closed variant. Integrity must be
// checked separately with VerifyCRC.
func DecodePacket(obj map[string]interface{}) (*Packet, error) {
	submapID, err := decodeSubmapID(obj)
	if err != nil {
		return nil, err
	}
	robotID, err := fieldInt(obj, "robot_id")
	if err != nil {
		return nil, err
	}
	layerRaw, ok := obj["layer"]
	if !ok {
		return nil, &SchemaError{Field: "layer", Reason: "missing"}
	}
	layer, err := ParseLayer(layerRaw)
	if err != nil {
		return nil, &SchemaError{Field: "layer", Reason: err.Error()}
	}
	version, err := fieldInt(obj, "version")
	if err != nil {
		return nil, err
	}
	stamp, err := fieldInt(obj, "stamp")
	if err != nil {
		return nil, err
	}
	crc, err := fieldInt(obj, "crc")
	if err != nil {
		return nil, err
	}
	payloadRaw, ok := obj["payload"].(map[string]interface{})
	if !ok {
		return nil, &SchemaError{Field: "payload", Reason: "missing or not an object"}
	}
	payload, err := decodePayload(layer, payloadRaw)
	if err != nil {
		return nil, err
	}
	return &Packet{
		SubmapID: submapID,
		RobotID:  int(robotID),
		Layer:    layer,
		Version:  version,
		Stamp:    stamp,
		Payload:  payload,
		CRC:      uint32(crc),
	}, nil
}

// decodeSubmapID accepts both identifier forms the trace variants use:
// strings and integers. Integers normalize to their decimal string.
func decodeSubmapID(obj map[string]interface{}) (string, error) {
	raw, ok := obj["submap_id"]
	if !ok {
		return "", &SchemaError{Field: "submap_id", Reason: "missing"}
	}
	switch t := raw.(type) {
	case string:
		if t == "" {
			return "", &SchemaError{Field: "submap_id", Reason: "empty"}
		}
		return t, nil
	case json.Number:
		if _, err := t.Int64(); err != nil {
			return "", &SchemaError{Field: "submap_id", Reason: fmt.Sprintf("not an integer: %s", t.String())}
		}
		return t.String(), nil
	}
	return "", &SchemaError{Field: "submap_id", Reason: fmt.Sprintf("has kind %T, want string or integer", raw)}
}

func decodePayload(layer Layer, payload map[string]interface{}) (Payload, error) {
	kind, err := fieldString(payload, "kind")
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindSkeleton:
		if layer != LayerSkeleton {
			return nil, &SchemaError{Field: "payload.kind", Reason: fmt.Sprintf("kind %q under layer %s", kind, layer)}
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, &SchemaError{Field: "payload", Reason: err.Error()}
		}
		return SkeletonPayload{Raw: raw}, nil

	case KindOccDelta:
		if layer != LayerGeometry {
			return nil, &SchemaError{Field: "payload.kind", Reason: fmt.Sprintf("kind %q under layer %s", kind, layer)}
		}
		idxArr, err := fieldArray(payload, "indices")
		if err != nil {
			return nil, err
		}
		deltaArr, err := fieldArray(payload, "delta_q")
		if err != nil {
			return nil, err
		}
		indices, err := idxArr.UnpackInt32()
		if err != nil {
			return nil, &SchemaError{Field: "payload.indices", Reason: err.Error()}
		}
		deltas, err := deltaArr.UnpackInt16()
		if err != nil {
			return nil, &SchemaError{Field: "payload.delta_q", Reason: err.Error()}
		}
		if len(indices) != len(deltas) {
			return nil, &SchemaError{Field: "payload.delta_q", Reason: fmt.Sprintf("length %d, want %d to match indices", len(deltas), len(indices))}
		}
		return GeometryDelta{Indices: indices, DeltaQ: deltas}, nil

	case KindSemDelta:
		if layer != LayerSemantics {
			return nil, &SchemaError{Field: "payload.kind", Reason: fmt.Sprintf("kind %q under layer %s", kind, layer)}
		}
		idxArr, err := fieldArray(payload, "indices")
		if err != nil {
			return nil, err
		}
		semArr, err := fieldArray(payload, "sem")
		if err != nil {
			return nil, err
		}
		indices, err := idxArr.UnpackInt32()
		if err != nil {
			return nil, &SchemaError{Field: "payload.indices", Reason: err.Error()}
		}
		classes, err := semArr.UnpackUint16()
		if err != nil {
			return nil, &SchemaError{Field: "payload.sem", Reason: err.Error()}
		}
		if len(indices) != len(classes) {
			return nil, &SchemaError{Field: "payload.sem", Reason: fmt.Sprintf("length %d, want %d to match indices", len(classes), len(indices))}
		}
		var weights []uint16
		if _, ok := payload["weights"]; ok {
			wArr, err := fieldArray(payload, "weights")
			if err != nil {
				return nil, err
			}
			weights, err = wArr.UnpackUint16()
			if err != nil {
				return nil, &SchemaError{Field: "payload.weights", Reason: err.Error()}
			}
			if len(weights) != len(indices) {
				return nil, &SchemaError{Field: "payload.weights", Reason: fmt.Sprintf("length %d, want %d to match indices", len(weights), len(indices))}
			}
		}
		return SemanticsDelta{Indices: indices, Classes: classes, Weights: weights}, nil
	}
	return nil, &SchemaError{Field: "payload.kind", Reason: fmt.Sprintf("unknown kind %q", kind)}
}
