package trace

import (
	"bufio"
	"encoding/json"
	"io"
)

// Writer emits a JSONL trace. CRCs are attached by the Encode* helpers, so
// the writer only serializes and frames.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteHeader encodes h with its CRC and writes it as one line.
func (t *Writer) WriteHeader(h *Header) error {
	obj, err := EncodeHeader(h)
	if err != nil {
		return err
	}
	return t.writeObject(obj)
}

// WritePacket encodes p with its CRC and writes it as one line.
func (t *Writer) WritePacket(p *Packet) error {
	obj, err := EncodePacket(p)
	if err != nil {
		return err
	}
	return t.writeObject(obj)
}

// writeObject marshals one object per line. The line format need not be
// canonical: the CRC is always recomputed over the canonical form after
// decode, so any valid JSON framing of the same values verifies.
func (t *Writer) writeObject(obj map[string]interface{}) error {
	b, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	if _, err := t.w.Write(b); err != nil {
		return err
	}
	return t.w.WriteByte('\n')
}

// Flush flushes buffered lines to the underlying writer.
func (t *Writer) Flush() error {
	return t.w.Flush()
}
