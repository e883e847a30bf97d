package trace

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
)

// Array is the wire form of a dense numeric array: little-endian C-order
// bytes, zlib-compressed, base64-encoded. The codec tag is always "b64z".
type Array struct {
	Codec string `json:"codec"`
	Dtype string `json:"dtype"`
	Shape []int  `json:"shape"`
	Data  string `json:"data"`
}

const arrayCodec = "b64z"

// Supported dtypes. Traces carry voxel indices as int32, geometry deltas as
// int16 and class ids/weights as uint16.
const (
	DtypeInt16  = "int16"
	DtypeInt32  = "int32"
	DtypeUint16 = "uint16"
	DtypeUint8  = "uint8"
)

func dtypeSize(dtype string) (int, error) {
	switch dtype {
	case DtypeUint8:
		return 1, nil
	case DtypeInt16, DtypeUint16:
		return 2, nil
	case DtypeInt32:
		return 4, nil
	}
	return 0, fmt.Errorf("unsupported dtype %q", dtype)
}

func packArray(dtype string, raw []byte, n int) Array {
	var comp bytes.Buffer
	zw := zlib.NewWriter(&comp)
	zw.Write(raw) //nolint:errcheck // bytes.Buffer writes cannot fail
	zw.Close()    //nolint:errcheck
	return Array{
		Codec: arrayCodec,
		Dtype: dtype,
		Shape: []int{n},
		Data:  base64.StdEncoding.EncodeToString(comp.Bytes()),
	}
}

// PackInt32 encodes a slice of int32 values as a b64z array.
func PackInt32(vals []int32) Array {
	raw := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(raw[4*i:], uint32(v))
	}
	return packArray(DtypeInt32, raw, len(vals))
}

// PackInt16 encodes a slice of int16 values as a b64z array.
func PackInt16(vals []int16) Array {
	raw := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(v))
	}
	return packArray(DtypeInt16, raw, len(vals))
}

// PackUint16 encodes a slice of uint16 values as a b64z array.
func PackUint16(vals []uint16) Array {
	raw := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(raw[2*i:], v)
	}
	return packArray(DtypeUint16, raw, len(vals))
}

// unpack decodes the compressed payload and checks it against the declared
// shape and dtype width.
func (a Array) unpack() ([]byte, int, error) {
	if a.Codec != arrayCodec {
		return nil, 0, fmt.Errorf("unsupported codec %q (expected %q)", a.Codec, arrayCodec)
	}
	size, err := dtypeSize(a.Dtype)
	if err != nil {
		return nil, 0, err
	}
	n := 1
	for _, d := range a.Shape {
		if d < 0 {
			return nil, 0, fmt.Errorf("negative shape dimension %d", d)
		}
		n *= d
	}
	comp, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		return nil, 0, fmt.Errorf("bad base64 data: %w", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(comp))
	if err != nil {
		return nil, 0, fmt.Errorf("bad zlib stream: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, 0, fmt.Errorf("decompress failed: %w", err)
	}
	if len(raw) != n*size {
		return nil, 0, fmt.Errorf("payload is %d bytes, shape %v dtype %s needs %d", len(raw), a.Shape, a.Dtype, n*size)
	}
	return raw, n, nil
}

// UnpackInt32 decodes the array into int32 values. Narrower integer dtypes
// widen losslessly; this is how index arrays written as int16 load.
func (a Array) UnpackInt32() ([]int32, error) {
	raw, n, err := a.unpack()
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	switch a.Dtype {
	case DtypeInt32:
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(raw[4*i:]))
		}
	case DtypeInt16:
		for i := range out {
			out[i] = int32(int16(binary.LittleEndian.Uint16(raw[2*i:])))
		}
	case DtypeUint16:
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint16(raw[2*i:]))
		}
	case DtypeUint8:
		for i := range out {
			out[i] = int32(raw[i])
		}
	default:
		return nil, fmt.Errorf("unsupported dtype %q", a.Dtype)
	}
	return out, nil
}

// UnpackInt16 decodes an int16 array. Only the exact dtype is accepted since
// geometry deltas are defined as 16-bit on the wire.
func (a Array) UnpackInt16() ([]int16, error) {
	if a.Dtype != DtypeInt16 {
		return nil, fmt.Errorf("dtype %q, want %q", a.Dtype, DtypeInt16)
	}
	raw, n, err := a.unpack()
	if err != nil {
		return nil, err
	}
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return out, nil
}

// UnpackUint16 decodes a uint16 array, widening uint8 losslessly.
func (a Array) UnpackUint16() ([]uint16, error) {
	raw, n, err := a.unpack()
	if err != nil {
		return nil, err
	}
	out := make([]uint16, n)
	switch a.Dtype {
	case DtypeUint16:
		for i := range out {
			out[i] = binary.LittleEndian.Uint16(raw[2*i:])
		}
	case DtypeUint8:
		for i := range out {
			out[i] = uint16(raw[i])
		}
	default:
		return nil, fmt.Errorf("dtype %q, want %q or %q", a.Dtype, DtypeUint16, DtypeUint8)
	}
	return out, nil
}
