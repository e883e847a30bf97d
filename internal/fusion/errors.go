package fusion

import "fmt"

// ValidationError reports a well-formed value that is out of domain, e.g. a
// class id at or beyond n_classes or a voxel index beyond n_vox. The policy
// is packet-granular: one bad observation rejects the whole packet, applied
// before any counter is touched so rejection never leaves partial state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

// InvariantViolation reports a condition that must be structurally impossible
// given valid inputs, such as accumulator overflow. It is fatal: the
// enclosing merge aborts and is never retried.
type InvariantViolation struct {
	Op     string
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Reason)
}
