package trace

import (
	"bufio"
	"fmt"
	"io"
)

// maxLineBytes bounds a single trace line. Packets carrying compressed
// arrays for large submaps stay well under this.
const maxLineBytes = 16 * 1024 * 1024

// Record is one decoded trace line. Exactly one of Header or Packet is set.
type Record struct {
	Line   int // 1-based line number in the stream
	Header *Header
	Packet *Packet
}

// Reader streams records out of a JSONL trace. Each record is CRC-verified
// and shape-validated before it is returned; a bad line yields an error for
// that line only and the reader continues on the next Next call, so callers
// choose between lenient and strict handling.
type Reader struct {
	s    *bufio.Scanner
	line int
}

// NewReader wraps r, which must produce one JSON object per line.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &Reader{s: s}
}

// Next returns the next record, io.EOF at end of stream, or a typed error
// (SchemaError, IntegrityError) for a bad line. Blank lines are skipped.
func (r *Reader) Next() (*Record, error) {
	for r.s.Scan() {
		r.line++
		line := r.s.Bytes()
		if len(trimSpace(line)) == 0 {
			continue
		}
		rec, err := r.decodeLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		return rec, nil
	}
	if err := r.s.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (r *Reader) decodeLine(line []byte) (*Record, error) {
	obj, err := ParseObject(line)
	if err != nil {
		return nil, err
	}
	if err := VerifyCRC(obj); err != nil {
		return nil, err
	}
	typ, err := RecordType(obj)
	if err != nil {
		return nil, err
	}
	rec := &Record{Line: r.line}
	switch typ {
	case TypeHeader:
		h, err := DecodeHeader(obj)
		if err != nil {
			return nil, err
		}
		rec.Header = h
	case TypePacket:
		p, err := DecodePacket(obj)
		if err != nil {
			return nil, err
		}
		rec.Packet = p
	}
	return rec, nil
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && (b[start] == ' ' || b[start] == '\t' || b[start] == '\r' || b[start] == '\n') {
		start++
	}
	for end > start && (b[end-1] == ' ' || b[end-1] == '\t' || b[end-1] == '\r' || b[end-1] == '\n') {
		end--
	}
	return b[start:end]
}
