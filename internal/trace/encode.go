package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Encoding to the generic object form used for CRC attachment and JSONL
// output. The inverse of decode.go.

func num(v int64) json.Number { return json.Number(strconv.FormatInt(v, 10)) }

func arrayObject(a Array) map[string]interface{} {
	shape := make([]interface{}, len(a.Shape))
	for i, d := range a.Shape {
		shape[i] = num(int64(d))
	}
	return map[string]interface{}{
		"codec": a.Codec,
		"dtype": a.Dtype,
		"shape": shape,
		"data":  a.Data,
	}
}

// EncodeHeader builds the wire object for a header and attaches its CRC.
func EncodeHeader(h *Header) (map[string]interface{}, error) {
	obj := map[string]interface{}{
		"type":           TypeHeader,
		"format_version": h.FormatVersion,
		"n_vox":          num(int64(h.NVox)),
		"lmax_q":         num(int64(h.LmaxQ)),
		"q_scale":        num(int64(h.QScale)),
		"n_classes":      num(int64(h.NClasses)),
	}
	return AttachCRC(obj)
}

// EncodePacket builds the wire object for a packet and attaches its CRC.
func EncodePacket(p *Packet) (map[string]interface{}, error) {
	payload, err := encodePayload(p.Payload)
	if err != nil {
		return nil, err
	}
	obj := map[string]interface{}{
		"type":      TypePacket,
		"submap_id": encodeSubmapID(p.SubmapID),
		"robot_id":  num(int64(p.RobotID)),
		"layer":     num(int64(p.Layer)),
		"version":   num(p.Version),
		"stamp":     num(p.Stamp),
		"payload":   payload,
	}
	return AttachCRC(obj)
}

// encodeSubmapID writes all-digit identifiers back as wire integers so a
// decoded-and-reencoded packet keeps its original canonical form.
func encodeSubmapID(id string) interface{} {
	if v, err := strconv.ParseInt(id, 10, 64); err == nil {
		return num(v)
	}
	return id
}

func encodePayload(p Payload) (map[string]interface{}, error) {
	switch t := p.(type) {
	case SkeletonPayload:
		dec := json.NewDecoder(bytes.NewReader(t.Raw))
		dec.UseNumber()
		var obj map[string]interface{}
		if err := dec.Decode(&obj); err != nil {
			return nil, fmt.Errorf("skeleton payload is not an object: %w", err)
		}
		return obj, nil
	case GeometryDelta:
		return map[string]interface{}{
			"kind":    KindOccDelta,
			"indices": arrayObject(PackInt32(t.Indices)),
			"delta_q": arrayObject(PackInt16(t.DeltaQ)),
		}, nil
	case SemanticsDelta:
		obj := map[string]interface{}{
			"kind":    KindSemDelta,
			"indices": arrayObject(PackInt32(t.Indices)),
			"sem":     arrayObject(PackUint16(t.Classes)),
		}
		if t.Weights != nil {
			obj["weights"] = arrayObject(PackUint16(t.Weights))
		}
		return obj, nil
	}
	return nil, fmt.Errorf("unsupported payload %T", p)
}
