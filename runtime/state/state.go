// Package state enumerates the legal transitions of a run's lifecycle state
// machine. The machine is stateless: it is a pure function over the State
// enum, and the Runner owns the current state variable for each run.
package state

import "fmt"

// State is a run's lifecycle state.
type State string

const (
	// Pending is the initial state: the run has been accepted but not yet
	// admitted into the queue.
	Pending State = "pending"
	// Queued means the run is waiting for admission under the global
	// concurrency cap.
	Queued State = "queued"
	// Running means the run has been admitted and has acquired its session
	// lock.
	Running State = "running"
	// Completed is a terminal state: the run finished normally.
	Completed State = "completed"
	// Failed is a terminal state: the run ended due to an unrecoverable
	// error.
	Failed State = "failed"
	// Cancelled is a terminal state: the run was cancelled by the caller.
	Cancelled State = "cancelled"
	// Timeout is a terminal state: the run could not acquire its session
	// lock before the configured deadline.
	Timeout State = "timeout"
)

// ErrInvalidTransition is returned by Transition when moving from "from" to
// "to" is not permitted by the state graph.
type ErrInvalidTransition struct {
	From, To State
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

// allowed enumerates the state graph from spec §4.1. Terminal states have no
// outgoing edges.
var allowed = map[State][]State{
	Pending:   {Queued, Failed, Cancelled},
	Queued:    {Running, Cancelled, Timeout},
	Running:   {Completed, Failed, Cancelled, Timeout},
	Completed: nil,
	Failed:    nil,
	Cancelled: nil,
	Timeout:   nil,
}

// Terminal reports whether s has no outgoing transitions.
func (s State) Terminal() bool {
	switch s {
	case Completed, Failed, Cancelled, Timeout:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from "from" to "to" is legal.
func CanTransition(from, to State) bool {
	for _, candidate := range allowed[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Transition returns "to" if the move is legal, or ErrInvalidTransition
// otherwise. The machine holds no state of its own; callers store the
// returned value.
func Transition(from, to State) (State, error) {
	if !CanTransition(from, to) {
		return from, &ErrInvalidTransition{From: from, To: to}
	}
	return to, nil
}
