// Package fusion owns the commutative merge engine for multi-robot submap
// reconstruction.
//
// Delta packets for the geometry and semantics layers fold into per-submap
// accumulator state under rules chosen so the finalized result is
// byte-identical for every arrival order of the same packet set: exact
// integer accumulation with a single terminal clamp for occupancy log-odds,
// and per-class vote counting with a deterministic argmax decode for
// semantic labels. The skeleton layer is last-write-wins and sits outside
// the convergence guarantee.
//
// The layer-numbered subpackages l1skel, l2occ and l3sem re-export the
// per-layer accumulator types; the implementation lives here so the engine,
// snapshot and fingerprint code share one package.
package fusion
