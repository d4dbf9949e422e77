// Package hooks implements the named lifecycle callback registry consulted
// by the Runner at fixed points in a run's execution.
package hooks

import (
	"context"
	"sync"

	"github.com/arrowctl/agentrun/telemetry"
)

// Name identifies one of the fixed lifecycle hook points.
type Name string

const (
	BeforeRun            Name = "beforeRun"
	AfterContextAssembly Name = "afterContextAssembly"
	BeforeModelCall      Name = "beforeModelCall"
	AfterModelCall       Name = "afterModelCall"
	BeforeToolExecution  Name = "beforeToolExecution"
	AfterToolExecution   Name = "afterToolExecution"
	AfterRun             Name = "afterRun"
	OnError              Name = "onError"
)

// allNames enumerates the fixed hook points handlers may register against.
var allNames = map[Name]struct{}{
	BeforeRun:            {},
	AfterContextAssembly: {},
	BeforeModelCall:      {},
	AfterModelCall:       {},
	BeforeToolExecution:  {},
	AfterToolExecution:   {},
	AfterRun:             {},
	OnError:              {},
}

// Handler is invoked for a hook point with a snapshot ctx describing the
// event. Handlers must not retain references to ctx or any mutable value
// within it after returning.
type Handler func(ctx context.Context, event any) error

// Registry holds, per hook Name, the sequence of registered handlers and
// invokes them in insertion order. Registry is safe for concurrent Register
// calls but Execute is expected to run from the Runner's single goroutine
// per run.
type Registry struct {
	log telemetry.Logger

	mu       sync.RWMutex
	handlers map[Name][]Handler
}

// New constructs an empty Registry. log receives a warning for every handler
// that returns an error; a nil log discards them.
func New(log telemetry.Logger) *Registry {
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	return &Registry{log: log, handlers: make(map[Name][]Handler)}
}

// Register appends handler to the sequence invoked for name. Registering
// against an unrecognized Name is still accepted so callers can add
// forward-compatible hook points without a registry change; Execute simply
// never fires on names nothing emits.
func (r *Registry) Register(name Name, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = append(r.handlers[name], handler)
}

// Execute invokes every handler registered for name in insertion order,
// sequentially, awaiting each. A handler failure is logged and does not
// abort the run or stop later handlers from running.
func (r *Registry) Execute(ctx context.Context, name Name, event any) {
	r.mu.RLock()
	handlers := append([]Handler(nil), r.handlers[name]...)
	r.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			r.log.Warn(ctx, "hook handler failed", "hook", string(name), "error", err)
		}
	}
}

// Known reports whether name is one of the fixed hook points in §6.3.
func Known(name Name) bool {
	_, ok := allNames[name]
	return ok
}
