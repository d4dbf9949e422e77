// Package runner binds the admission queue, session lock manager, state
// machine, turn/tool-round driver, event stream, cancellation controller,
// retry engine, hooks registry, and context assembler into the run
// lifecycle described in spec §4.11.
package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arrowctl/agentrun/context/assembler"
	"github.com/arrowctl/agentrun/context/toolcollect"
	"github.com/arrowctl/agentrun/model"
	"github.com/arrowctl/agentrun/runtime/cancelctl"
	"github.com/arrowctl/agentrun/runtime/events"
	"github.com/arrowctl/agentrun/runtime/hooks"
	"github.com/arrowctl/agentrun/runtime/lock"
	"github.com/arrowctl/agentrun/runtime/queue"
	"github.com/arrowctl/agentrun/runtime/retry"
	"github.com/arrowctl/agentrun/runtime/runid"
	"github.com/arrowctl/agentrun/runtime/state"
	"github.com/arrowctl/agentrun/session"
	"github.com/arrowctl/agentrun/telemetry"
	"github.com/arrowctl/agentrun/toolexec"
)

// ErrRunNotFound is returned by Get when runID names no run the Runner
// currently tracks.
var ErrRunNotFound = errors.New("runner: run not found")

// Orchestrator is the caller-facing surface of a Runner (spec §6.1).
type Orchestrator interface {
	Execute(ctx context.Context, req RunRequest) (*RunHandle, error)
	On(name hooks.Name, h hooks.Handler)
	Configure(partial Config)
	Config() Config
}

// Runner is the default Orchestrator implementation. A Runner owns one
// admission queue and one lock manager shared by every run it starts; each
// run gets its own cancel signal, event stream, driver, and retry attempt
// counter.
type Runner struct {
	sessions session.Store
	modelAd  model.Adapter
	executor toolexec.Executor
	asm      *assembler.Assembler

	queue     *queue.Queue
	locks     *lock.Manager
	cancelCtl *cancelctl.Controller
	retryEng  *retry.Engine
	hooksReg  *hooks.Registry

	log     telemetry.Logger
	metrics telemetry.Metrics

	mu  sync.RWMutex
	cfg Config

	runsMu sync.Mutex
	runs   map[string]*runRecord
}

// Deps bundles the external collaborators a Runner needs. Sessions, Model,
// and Executor implement the §6.4 contracts; Limits reports provider token
// ceilings for the Defaults Resolver and may be nil, in which case
// maxTokens is never capped.
type Deps struct {
	Sessions  session.Store
	Model     model.Adapter
	Executor  toolexec.Executor
	Limits    assembler.ModelLimits
	Bootstrap assembler.BootstrapProvider
	Log       telemetry.Logger
	Metrics   telemetry.Metrics
}

// New constructs a Runner. A zero cfg is replaced with DefaultConfig.
func New(deps Deps, cfg Config) *Runner {
	if cfg.Concurrency.MaxConcurrentRuns == 0 {
		cfg = DefaultConfig()
	}
	log := deps.Log
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = telemetry.NoopMetrics{}
	}

	return &Runner{
		sessions:  deps.Sessions,
		modelAd:   deps.Model,
		executor:  deps.Executor,
		asm:       assembler.New(deps.Sessions, toolSourceAdapter{deps.Executor}, deps.Limits, deps.Bootstrap, systemDefaults(cfg), 0, ""),
		queue:     queue.New(cfg.Concurrency.MaxConcurrentRuns),
		locks:     lock.New(),
		cancelCtl: cancelctl.New(),
		retryEng:  retry.New(retry.Config{MaxRetries: cfg.Retry.MaxRetries, InitialDelay: cfg.Retry.InitialDelay, MaxDelay: cfg.Retry.MaxDelay, BackoffMultiplier: cfg.Retry.BackoffMultiplier, RetryableErrorKinds: cfg.Retry.RetryableErrorKinds}),
		hooksReg:  hooks.New(log),
		log:       log,
		metrics:   metrics,
		cfg:       cfg,
		runs:      make(map[string]*runRecord),
	}
}

// toolSourceAdapter adapts a toolexec.Executor's AvailableTools into the
// assembler's narrower ToolSource contract.
type toolSourceAdapter struct{ executor toolexec.Executor }

func (a toolSourceAdapter) Tools(ctx context.Context, _ string) ([]toolcollect.Tool, error) {
	if a.executor == nil {
		return nil, nil
	}
	specs, err := a.executor.AvailableTools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]toolcollect.Tool, len(specs))
	for i, s := range specs {
		out[i] = toolcollect.Tool{Name: s.Name, Description: s.Description, Schema: s.Schema, RequiredPermissions: s.RequiredPermissions}
	}
	return out, nil
}

// On registers handler for the named lifecycle hook point.
func (r *Runner) On(name hooks.Name, h hooks.Handler) {
	r.hooksReg.Register(name, h)
}

// Configure merges partial over the Runner's current configuration. It
// affects only runs started after the call returns.
func (r *Runner) Configure(partial Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = merge(r.cfg, partial)
}

// Config returns the Runner's current effective configuration.
func (r *Runner) Config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Get returns the tracked run record for runID.
func (r *Runner) Get(runID string) (Run, error) {
	r.runsMu.Lock()
	rec, ok := r.runs[runID]
	r.runsMu.Unlock()
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return rec.snapshot(), nil
}

func (r *Runner) forget(runID string) {
	r.runsMu.Lock()
	delete(r.runs, runID)
	r.runsMu.Unlock()
}

// Execute starts a new run and returns its handle once the run has been
// accepted into the admission queue. The run itself proceeds asynchronously;
// the caller observes its progress via RunHandle.Events.
func (r *Runner) Execute(ctx context.Context, req RunRequest) (*RunHandle, error) {
	cfg := r.Config()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "default"
	}
	agentID := req.AgentID
	if agentID == "" {
		agentID = "default"
	}

	id := runid.New()
	sig := r.cancelCtl.Create(id)

	rec := &runRecord{run: Run{RunID: id, SessionID: sessionID, Priority: req.Priority, State: state.Pending}}
	rec.sig = sig
	rec.cancel = func(reason string) {
		r.cancelCtl.Cancel(id, reason)
		r.queue.Remove(id)
	}
	rec.stream = events.NewStream(cfg.Streaming.BufferSize, sig)

	r.runsMu.Lock()
	r.runs[id] = rec
	r.runsMu.Unlock()

	position := r.queue.Enqueue(id, sessionID, req.Priority)
	rec.setEnqueuedAt(time.Now())
	rec.setState(state.Queued)
	_ = rec.stream.Emit(events.NewRunQueued(id, position))

	runCtx := sig.Context(ctx)
	go r.runLifecycle(runCtx, rec, req, sessionID, agentID, cfg)

	return &RunHandle{record: rec}, nil
}
