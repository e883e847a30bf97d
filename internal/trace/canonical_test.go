package trace

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalBytes_KeyOrderAndSeparators(t *testing.T) {
	t.Parallel()

	obj := map[string]interface{}{
		"zulu":  json.Number("3"),
		"alpha": json.Number("1"),
		"mike":  []interface{}{json.Number("1"), "x", true, nil},
	}
	b, err := CanonicalBytes(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":1,"mike":[1,"x",true,null],"zulu":3}`, string(b))
}

func TestCanonicalBytes_InsertionOrderIrrelevant(t *testing.T) {
	t.Parallel()

	// Two decodes of the same object with different wire key order must
	// canonicalize identically.
	a, err := ParseObject([]byte(`{"n_vox":5,"lmax_q":10,"format_version":"0.1.0"}`))
	require.NoError(t, err)
	b, err := ParseObject([]byte(`{"format_version":"0.1.0","lmax_q":10,"n_vox":5}`))
	require.NoError(t, err)

	ca, err := CanonicalBytes(a)
	require.NoError(t, err)
	cb, err := CanonicalBytes(b)
	require.NoError(t, err)
	assert.Equal(t, ca, cb)
}

func TestCanonicalBytes_NumberLiteralsPreserved(t *testing.T) {
	t.Parallel()

	obj, err := ParseObject([]byte(`{"big":12345678901234,"neg":-7,"small":0}`))
	require.NoError(t, err)
	b, err := CanonicalBytes(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"big":12345678901234,"neg":-7,"small":0}`, string(b))
}

func TestCanonicalBytes_StringEscaping(t *testing.T) {
	t.Parallel()

	b, err := CanonicalBytes(map[string]interface{}{
		"s": "a\"b\\c\nd\tef<>&é",
	})
	require.NoError(t, err)
	// Only quote, backslash and control characters escape; UTF-8 and the
	// HTML-sensitive characters pass through verbatim.
	assert.Equal(t, `{"s":"a\"b\\c\nd\tef<>&é"}`, string(b))
}

func TestAttachAndVerifyCRC_RoundTrip(t *testing.T) {
	t.Parallel()

	obj, err := ParseObject([]byte(`{"type":"header","format_version":"0.1.0","n_vox":5,"lmax_q":10,"q_scale":100,"n_classes":2}`))
	require.NoError(t, err)
	_, err = AttachCRC(obj)
	require.NoError(t, err)
	assert.NoError(t, VerifyCRC(obj))
}

func TestVerifyCRC_DetectsMutation(t *testing.T) {
	t.Parallel()

	obj, err := ParseObject([]byte(`{"type":"header","format_version":"0.1.0","n_vox":5,"lmax_q":10,"q_scale":100,"n_classes":2}`))
	require.NoError(t, err)
	_, err = AttachCRC(obj)
	require.NoError(t, err)

	// One changed byte in the canonical encoding must fail verification.
	obj["n_vox"] = json.Number("6")
	err = VerifyCRC(obj)
	var integrity *IntegrityError
	require.True(t, errors.As(err, &integrity), "want IntegrityError, got %v", err)
	assert.NotEqual(t, integrity.Declared, integrity.Computed)
}

func TestVerifyCRC_MissingOrMalformed(t *testing.T) {
	t.Parallel()

	var schema *SchemaError

	obj, err := ParseObject([]byte(`{"type":"header"}`))
	require.NoError(t, err)
	err = VerifyCRC(obj)
	require.True(t, errors.As(err, &schema))
	assert.Equal(t, "crc", schema.Field)

	obj, err = ParseObject([]byte(`{"type":"header","crc":"nope"}`))
	require.NoError(t, err)
	require.True(t, errors.As(VerifyCRC(obj), &schema))

	obj, err = ParseObject([]byte(`{"type":"header","crc":-3}`))
	require.NoError(t, err)
	require.True(t, errors.As(VerifyCRC(obj), &schema))
}

func TestChecksum_ExcludesOwnCRCField(t *testing.T) {
	t.Parallel()

	with, err := ParseObject([]byte(`{"a":1,"crc":999}`))
	require.NoError(t, err)
	without, err := ParseObject([]byte(`{"a":1}`))
	require.NoError(t, err)

	c1, err := Checksum(with)
	require.NoError(t, err)
	c2, err := Checksum(without)
	require.NoError(t, err)
	assert.Equal(t, c2, c1)

	// Checksum must not clobber the declared value.
	assert.Equal(t, json.Number("999"), with["crc"])
}
