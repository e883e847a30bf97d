// Package trace owns the wire model for submap fusion traces.
//
// Responsibilities: the Header and Packet records, canonical JSON encoding,
// CRC-32 integrity checking, shape validation, the b64z dense-array codec,
// and streaming JSONL trace readers/writers.
//
// Dependency rule: trace knows nothing about accumulators or storage. It
// hands fully-decoded, integrity-checked packets to the fusion engine and
// contains no merge logic.
package trace
