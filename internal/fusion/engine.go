package fusion

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/banshee-data/mapfuse/internal/monitoring"
	"github.com/banshee-data/mapfuse/internal/trace"
)

// Mode selects the engine's failure policy for bad packets.
type Mode int

const (
	// ModeLenient drops individual bad packets, reports them and keeps
	// merging. This is the default.
	ModeLenient Mode = iota
	// ModeStrict fails the whole merge on the first bad packet.
	ModeStrict
)

// SubmitStatus is the outcome of submitting one record.
type SubmitStatus int

const (
	StatusAccepted SubmitStatus = iota
	StatusRejected
)

// Result reports whether a submitted record was accepted, with the rejection
// reason when it was not.
type Result struct {
	Status SubmitStatus
	Reason string
}

func accepted() Result { return Result{Status: StatusAccepted} }

func rejected(reason string) Result {
	return Result{Status: StatusRejected, Reason: reason}
}

// Accepted reports whether the record was accepted.
func (r Result) Accepted() bool { return r.Status == StatusAccepted }

// Engine is the fusion orchestrator. It routes validated packets to the
// per-submap accumulator state matching their submap id, creating state
// lazily, and produces finalized snapshots on demand.
//
// Packets submitted before the header arrive are buffered and folded in when
// SubmitHeader is called; Finalize is unavailable until then because the
// clamp bound and class count come from the header.
//
// Packets are expected exactly once each. The additive layers are not
// idempotent, so the engine performs no deduplication; at-most-once delivery
// is the transport's contract.
type Engine struct {
	mode Mode

	mu      sync.RWMutex
	header  *trace.Header
	submaps map[string]*SubmapState
	pending []*trace.Packet
	dropped int
	failed  error
}

// NewEngine creates an engine with the given failure policy.
func NewEngine(mode Mode) *Engine {
	return &Engine{
		mode:    mode,
		submaps: make(map[string]*SubmapState),
	}
}

// SubmitHeader installs the trace-wide parameters and drains any packets
// buffered before the header arrived. Submitting the same header again is
// accepted and a no-op; a conflicting header is rejected since the header is
// immutable for the trace's duration.
func (e *Engine) SubmitHeader(h *trace.Header) Result {
	e.mu.Lock()
	if e.failed != nil {
		err := e.failed
		e.mu.Unlock()
		return rejected(err.Error())
	}
	if e.header != nil {
		same := *e.header == *h
		e.mu.Unlock()
		if same {
			return accepted()
		}
		return rejected("conflicting header for an already-initialized merge")
	}
	e.header = h
	buffered := e.pending
	e.pending = nil
	e.mu.Unlock()

	for _, p := range buffered {
		if res := e.Submit(p); !res.Accepted() && e.Err() != nil {
			return rejected(res.Reason)
		}
	}
	return accepted()
}

// Submit routes one packet. Before the header arrives packets are buffered
// and reported accepted; domain validation against header parameters happens
// when they are folded in. In lenient mode a bad packet is dropped, counted
// and reported; in strict mode it fails the merge. An InvariantViolation is
// fatal in either mode.
func (e *Engine) Submit(p *trace.Packet) Result {
	e.mu.Lock()
	if e.failed != nil {
		err := e.failed
		e.mu.Unlock()
		return rejected(err.Error())
	}
	if e.header == nil {
		e.pending = append(e.pending, p)
		e.mu.Unlock()
		return accepted()
	}
	state := e.submaps[p.SubmapID]
	if state == nil {
		state = newSubmapState(p.SubmapID, e.header)
		e.submaps[p.SubmapID] = state
	}
	e.mu.Unlock()

	if err := state.apply(p); err != nil {
		return e.reject(p, err)
	}
	return accepted()
}

func (e *Engine) reject(p *trace.Packet, err error) Result {
	var inv *InvariantViolation
	fatal := errors.As(err, &inv) || e.mode == ModeStrict

	e.mu.Lock()
	e.dropped++
	if fatal && e.failed == nil {
		e.failed = err
	}
	e.mu.Unlock()

	monitoring.Logf("[Engine] dropped packet submap=%s robot=%d layer=%s version=%d: %v",
		p.SubmapID, p.RobotID, p.Layer, p.Version, err)
	return rejected(err.Error())
}

// Finalize produces the snapshot for one submap. It requires the header and
// at least one applied packet for the submap, and fails once the merge has
// been aborted.
func (e *Engine) Finalize(submapID string) (*Snapshot, error) {
	e.mu.RLock()
	header := e.header
	failed := e.failed
	state := e.submaps[submapID]
	e.mu.RUnlock()

	if failed != nil {
		return nil, failed
	}
	if header == nil {
		return nil, fmt.Errorf("cannot finalize %q: header not yet received", submapID)
	}
	if state == nil {
		return nil, fmt.Errorf("cannot finalize %q: no packets applied for submap", submapID)
	}
	return state.finalize(header), nil
}

// FinalizeAll produces snapshots for every known submap, keyed by submap id.
func (e *Engine) FinalizeAll() (map[string]*Snapshot, error) {
	out := make(map[string]*Snapshot)
	for _, id := range e.Submaps() {
		snap, err := e.Finalize(id)
		if err != nil {
			return nil, err
		}
		out[id] = snap
	}
	return out, nil
}

// Submaps returns the known submap ids in sorted order.
func (e *Engine) Submaps() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.submaps))
	for id := range e.submaps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Header returns the installed header, or nil before SubmitHeader.
func (e *Engine) Header() *trace.Header {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.header
}

// Dropped reports how many packets have been rejected since creation.
func (e *Engine) Dropped() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dropped
}

// Err returns the fatal error that aborted the merge, or nil while the merge
// is live.
func (e *Engine) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.failed
}
