// Package l2occ owns Layer 2 (Geometry) of the submap fusion data model.
//
// Responsibilities: commutative integer log-odds accumulation with a single
// terminal clamp, and occupancy-bit decoding.
//
// Dependency rule: L2 may depend on the trace wire model, never on the
// orchestrator or storage.
package l2occ
