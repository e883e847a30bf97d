package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"sort"
)

// Canonical encoding: key-sorted, separator-free JSON with minimal string
// escaping. Checksums and fingerprints are computed over this form so that
// independent implementations reproduce them byte for byte. Numbers must be
// carried as json.Number (decode with UseNumber) so their wire literal is
// preserved rather than round-tripped through float64.

// CanonicalBytes serializes a decoded JSON value into its canonical form.
// Object keys are emitted in lexicographic order with "," and ":" separators
// and no whitespace.
func CanonicalBytes(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(t.String())
	case string:
		writeCanonicalString(buf, t)
	case []interface{}:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, k)
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canonical encoding: unsupported kind %T", v)
	}
	return nil
}

// writeCanonicalString escapes only what JSON requires: quote, backslash and
// control characters. Non-ASCII runes pass through as UTF-8.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// Checksum computes the CRC-32 (IEEE polynomial, the zlib variant) of the
// canonical encoding of obj with its own "crc" field excluded.
func Checksum(obj map[string]interface{}) (uint32, error) {
	var saved interface{}
	_, had := obj["crc"]
	if had {
		saved = obj["crc"]
		delete(obj, "crc")
	}
	b, err := CanonicalBytes(obj)
	if had {
		obj["crc"] = saved
	}
	if err != nil {
		return 0, err
	}
	return crc32.ChecksumIEEE(b), nil
}

// AttachCRC computes and sets the "crc" field in place, returning obj for
// chaining. Any previous value is overwritten.
func AttachCRC(obj map[string]interface{}) (map[string]interface{}, error) {
	crc, err := Checksum(obj)
	if err != nil {
		return nil, err
	}
	obj["crc"] = json.Number(fmt.Sprintf("%d", crc))
	return obj, nil
}

// VerifyCRC recomputes the checksum of obj and compares it to the declared
// "crc" field. It returns a SchemaError when the field is missing or
// malformed and an IntegrityError on mismatch.
func VerifyCRC(obj map[string]interface{}) error {
	raw, ok := obj["crc"]
	if !ok {
		return &SchemaError{Field: "crc", Reason: "missing"}
	}
	num, ok := raw.(json.Number)
	if !ok {
		return &SchemaError{Field: "crc", Reason: fmt.Sprintf("has kind %T, want integer", raw)}
	}
	declared, err := num.Int64()
	if err != nil || declared < 0 || declared > 0xFFFFFFFF {
		return &SchemaError{Field: "crc", Reason: fmt.Sprintf("not an unsigned 32-bit integer: %s", num.String())}
	}
	computed, err := Checksum(obj)
	if err != nil {
		return err
	}
	if uint32(declared) != computed {
		return &IntegrityError{Declared: uint32(declared), Computed: computed}
	}
	return nil
}
