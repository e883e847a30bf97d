// Package l3sem owns Layer 3 (Semantics) of the submap fusion data model.
//
// Responsibilities: commutative per-class vote accumulation and the
// deterministic argmax decode with smallest-class-id tie-breaking.
//
// Dependency rule: L3 may depend on the trace wire model, never on the
// orchestrator or storage.
package l3sem
