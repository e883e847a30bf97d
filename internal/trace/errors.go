package trace

import "fmt"

// SchemaError reports a missing or malformed required field. The record is
// dropped before it reaches any accumulator.
type SchemaError struct {
	Field  string // first missing/malformed field, in document order of checks
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: field %q: %s", e.Field, e.Reason)
}

// IntegrityError reports a checksum mismatch between the declared CRC and the
// CRC recomputed over the canonical encoding. The record is dropped, never
// partially applied.
type IntegrityError struct {
	Declared uint32
	Computed uint32
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity error: declared crc %d, computed %d", e.Declared, e.Computed)
}
