// Package l1skel owns Layer 1 (Skeleton) of the submap fusion data model.
//
// The skeleton merge rule is replace-only: last write wins. The layer is
// explicitly excluded from the order-independence guarantee and from the
// snapshot fingerprint.
package l1skel
