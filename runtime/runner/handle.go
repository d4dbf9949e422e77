package runner

import (
	"iter"
	"sync"
	"time"

	"github.com/arrowctl/agentrun/context/assembler"
	"github.com/arrowctl/agentrun/runtime/cancelctl"
	"github.com/arrowctl/agentrun/runtime/events"
	"github.com/arrowctl/agentrun/runtime/state"
)

// RunRequest is the caller-supplied payload for a new run. Message is either
// plain text or a structured content-block list; the Runner does not
// interpret it beyond handing it to session.Store and the model adapter.
type RunRequest struct {
	Message        any
	SessionID      string
	AgentID        string
	Priority       int
	ContextOptions assembler.Request
}

// Run is the caller-visible record of one run's identity and lifecycle
// position, matching spec §3's Run entity.
type Run struct {
	RunID       string
	SessionID   string
	Priority    int
	State       state.State
	StopReason  events.StopReason
	EnqueuedAt  time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// runRecord is the Runner's internal, mutable bookkeeping for one run. The
// Runner is the sole mutator; RunHandle and external callers only read
// through the accessor methods below.
type runRecord struct {
	mu  sync.Mutex
	run Run

	stream *events.Stream
	sig    cancelctl.Signal
	cancel func(reason string)
}

func (r *runRecord) setEnqueuedAt(t time.Time) {
	r.mu.Lock()
	r.run.EnqueuedAt = t
	r.mu.Unlock()
}

// setState applies s only if state.Transition allows moving from the
// record's current state; an illegal move is reported as a run.error event
// instead of being applied, per §4.1's InvalidTransition contract.
func (r *runRecord) setState(s state.State) {
	r.mu.Lock()
	next, err := state.Transition(r.run.State, s)
	if err != nil {
		runID := r.run.RunID
		r.mu.Unlock()
		_ = r.stream.Emit(events.NewRunError(runID, err.Error()))
		return
	}
	r.run.State = next
	r.mu.Unlock()
}

func (r *runRecord) setStopReason(reason events.StopReason) {
	r.mu.Lock()
	r.run.StopReason = reason
	r.mu.Unlock()
}

func (r *runRecord) snapshot() Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run
}

// RunHandle is returned from Execute. Events yields the run's event stream
// in strict order; Cancel requests cooperative cancellation.
type RunHandle struct {
	record *runRecord
}

// RunID returns the run's identifier.
func (h *RunHandle) RunID() string { return h.record.run.RunID }

// SessionID returns the session the run is bound to.
func (h *RunHandle) SessionID() string { return h.record.run.SessionID }

// State returns a point-in-time snapshot of the run's lifecycle state.
func (h *RunHandle) State() state.State { return h.record.snapshot().State }

// Snapshot returns a point-in-time copy of the full Run record.
func (h *RunHandle) Snapshot() Run { return h.record.snapshot() }

// Events returns the run's event stream as a range-over-func iterator.
// Iterating consumes the stream; it may only be ranged over once.
func (h *RunHandle) Events() iter.Seq[events.Event] {
	return h.record.stream.Events()
}

// Cancel requests cooperative cancellation of the run with the given reason.
// It returns immediately; the run observes cancellation at its next
// blocking await or cancellation check.
func (h *RunHandle) Cancel(reason string) {
	h.record.cancel(reason)
}
