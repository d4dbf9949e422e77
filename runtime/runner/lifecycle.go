package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arrowctl/agentrun/context/assembler"
	"github.com/arrowctl/agentrun/model"
	"github.com/arrowctl/agentrun/runtime/cancelctl"
	"github.com/arrowctl/agentrun/runtime/driver"
	"github.com/arrowctl/agentrun/runtime/events"
	"github.com/arrowctl/agentrun/runtime/hooks"
	"github.com/arrowctl/agentrun/runtime/lock"
	"github.com/arrowctl/agentrun/runtime/state"
	"github.com/arrowctl/agentrun/runtime/toolcall"
	"github.com/arrowctl/agentrun/session"
)

// BeforeRunEvent is the payload passed to the beforeRun hook.
type BeforeRunEvent struct {
	RunID     string
	SessionID string
}

// AfterRunEvent is the payload passed to the afterRun hook.
type AfterRunEvent struct {
	RunID  string
	Result events.RunResult
}

// ErrorEvent is the payload passed to the onError hook.
type ErrorEvent struct {
	RunID string
	Err   error
}

// runLifecycle drives one run end-to-end per spec §4.11. It always runs in
// its own goroutine, started by Execute.
func (r *Runner) runLifecycle(ctx context.Context, rec *runRecord, req RunRequest, sessionID, agentID string, cfg Config) {
	var lockHandle *lock.Lock
	defer func() { r.finalize(rec, lockHandle) }()

	sig := rec.sig

	if err := r.queue.AwaitAdmission(ctx, rec.run.RunID, sig); err != nil {
		r.terminateOnError(rec, err)
		return
	}

	acquired, err := r.locks.Acquire(ctx, sessionID, rec.run.RunID, cfg.Limits.QueueTimeout, sig)
	if err != nil {
		if errors.Is(err, lock.ErrAcquireTimeout) {
			rec.setState(state.Timeout)
			rec.setStopReason(events.StopReasonTimeout)
			_ = rec.stream.Emit(events.NewRunError(rec.run.RunID, err.Error()))
			return
		}
		r.terminateOnError(rec, err)
		return
	}
	lockHandle = acquired
	rec.setState(state.Running)
	rec.mu.Lock()
	rec.run.StartedAt = time.Now()
	rec.mu.Unlock()

	history, err := r.sessions.GetMessages(ctx, sessionID)
	if err != nil {
		r.terminateOnError(rec, err)
		return
	}
	var parentID string
	if len(history) > 0 {
		parentID = history[len(history)-1].ID
	}
	userMsg, err := r.sessions.Append(ctx, sessionID, session.Message{SessionID: sessionID, Role: session.RoleUser, Content: req.Message, ParentID: parentID})
	if err != nil {
		r.terminateOnError(rec, err)
		return
	}
	_ = rec.stream.Emit(events.NewRunStarted(rec.run.RunID))

	r.hooksReg.Execute(ctx, hooks.BeforeRun, BeforeRunEvent{RunID: rec.run.RunID, SessionID: sessionID})

	r.turnLoop(ctx, rec, req, sessionID, agentID, cfg, userMsg.ID)
}

func (r *Runner) turnLoop(ctx context.Context, rec *runRecord, req RunRequest, sessionID, agentID string, cfg Config, lastMessageID string) {
	sig := rec.sig
	drv := driver.New(cfg.Limits.MaxTurns, cfg.Limits.MaxToolRounds)

	var extra []model.Message // in-memory overlay used when SaveToSession is false

	for {
		ok, reason := drv.CanContinue()
		if !ok {
			r.completeRun(ctx, rec, events.StopReason(reason), "", nil, nil)
			return
		}
		drv.StartTurn()

		_ = rec.stream.Emit(events.NewContextStart())
		assembledCtx, err := r.asm.Assemble(ctx, assembler.Request{
			SessionID:            sessionID,
			AgentID:              agentID,
			Overrides:            req.ContextOptions.Overrides,
			AdditionalTools:      req.ContextOptions.AdditionalTools,
			SandboxMode:          req.ContextOptions.SandboxMode,
			Permissions:          req.ContextOptions.Permissions,
			ExcludeTools:         req.ContextOptions.ExcludeTools,
			Strategy:             req.ContextOptions.Strategy,
			MaxContextTokens:     req.ContextOptions.MaxContextTokens,
			ReserveTokens:        req.ContextOptions.ReserveTokens,
			CompactionThresholds: req.ContextOptions.CompactionThresholds,
		})
		if err != nil {
			r.terminateOnError(rec, err)
			return
		}
		r.hooksReg.Execute(ctx, hooks.AfterContextAssembly, assembledCtx)
		_ = rec.stream.Emit(events.NewContextComplete(assembledCtx))

		messages := assembledCtx.Messages
		if !cfg.Execution.SaveToSession && len(extra) > 0 {
			messages = append(append([]model.Message(nil), messages...), extra...)
		}

		r.hooksReg.Execute(ctx, hooks.BeforeModelCall, assembledCtx)
		_ = rec.stream.Emit(events.NewModelStart())

		finalResp, err := r.streamModel(ctx, rec, assembledCtx, messages)
		if err != nil {
			r.terminateOnError(rec, err)
			return
		}
		_ = rec.stream.Emit(events.NewModelComplete(finalResp))
		r.hooksReg.Execute(ctx, hooks.AfterModelCall, finalResp)

		calls, err := toolcall.Extract(toRawToolCalls(finalResp.ToolCalls))
		if err != nil {
			r.terminateOnError(rec, err)
			return
		}

		if len(calls) == 0 {
			if _, err := r.persistAssistantMessage(ctx, sessionID, cfg, finalResp.Content, lastMessageID); err != nil {
				r.terminateOnError(rec, err)
				return
			}
			usage := toEventUsage(finalResp.Usage)
			r.completeRun(ctx, rec, events.StopReasonStop, finalResp.Content, usage, assembledCtx)
			return
		}

		ok, reason = drv.CanStartToolRound()
		if !ok {
			r.completeRun(ctx, rec, events.StopReason(reason), finalResp.Content, toEventUsage(finalResp.Usage), assembledCtx)
			return
		}
		drv.StartToolRound()

		assistantMsg, resultMsg, err := r.executeToolRound(ctx, rec, sig, calls, sessionID, agentID, req)
		if err != nil {
			r.terminateOnError(rec, err)
			return
		}
		if cfg.Execution.SaveToSession {
			stored, err := r.sessions.Append(ctx, sessionID, session.Message{SessionID: sessionID, Role: session.RoleToolCall, Content: assistantMsg.Content, ParentID: lastMessageID})
			if err != nil {
				r.terminateOnError(rec, err)
				return
			}
			lastMessageID = stored.ID
			stored, err = r.sessions.Append(ctx, sessionID, session.Message{SessionID: sessionID, Role: session.RoleToolResult, Content: resultMsg.Content, ParentID: lastMessageID})
			if err != nil {
				r.terminateOnError(rec, err)
				return
			}
			lastMessageID = stored.ID
		} else {
			extra = append(extra, assistantMsg, resultMsg)
		}
	}
}

func (r *Runner) persistAssistantMessage(ctx context.Context, sessionID string, cfg Config, content, parentID string) (session.Message, error) {
	if !cfg.Execution.SaveToSession {
		return session.Message{SessionID: sessionID, Role: session.RoleAssistant, Content: content, ParentID: parentID}, nil
	}
	return r.sessions.Append(ctx, sessionID, session.Message{SessionID: sessionID, Role: session.RoleAssistant, Content: content, ParentID: parentID})
}

func (r *Runner) completeRun(ctx context.Context, rec *runRecord, stopReason events.StopReason, message string, usage *events.Usage, assembledCtx *assembler.AssembledContext) {
	rec.setState(state.Completed)
	rec.setStopReason(stopReason)
	rec.mu.Lock()
	rec.run.CompletedAt = time.Now()
	rec.mu.Unlock()

	result := events.RunResult{
		RunID:      rec.run.RunID,
		SessionID:  rec.run.SessionID,
		State:      string(state.Completed),
		StopReason: stopReason,
		Message:    message,
		Usage:      usage,
		Context:    assembledCtx,
	}
	_ = rec.stream.Emit(events.NewRunCompleted(rec.run.RunID, result))
	r.hooksReg.Execute(ctx, hooks.AfterRun, AfterRunEvent{RunID: rec.run.RunID, Result: result})
}

// terminateOnError classifies err as cancellation or failure, emits the
// matching terminal event, and invokes the onError hook.
func (r *Runner) terminateOnError(rec *runRecord, err error) {
	ctx := context.Background()
	if errors.Is(err, cancelctl.ErrCancelled) || errors.Is(err, context.Canceled) {
		rec.setState(state.Cancelled)
		rec.setStopReason(events.StopReasonCancelled)
		reason := rec.sig.Reason()
		if reason == "" {
			reason = err.Error()
		}
		_ = rec.stream.Emit(events.NewRunCancelled(rec.run.RunID, reason))
	} else {
		rec.setState(state.Failed)
		rec.setStopReason(events.StopReasonError)
		_ = rec.stream.Emit(events.NewRunError(rec.run.RunID, err.Error()))
	}
	rec.mu.Lock()
	rec.run.CompletedAt = time.Now()
	rec.mu.Unlock()
	r.hooksReg.Execute(ctx, hooks.OnError, ErrorEvent{RunID: rec.run.RunID, Err: err})
}

// finalize runs step 8 of §4.11: release the lock, free the queue slot,
// clean up the cancel signal, reset retry state, and close the stream.
func (r *Runner) finalize(rec *runRecord, lockHandle *lock.Lock) {
	if lockHandle != nil {
		lockHandle.Release()
	}
	r.queue.Complete(rec.run.RunID)
	r.cancelCtl.Cleanup(rec.run.RunID)
	r.retryEng.Reset(rec.run.RunID)
	rec.stream.Close()
	r.forget(rec.run.RunID)
}

func toRawToolCalls(calls []model.ToolCall) []map[string]any {
	out := make([]map[string]any, len(calls))
	for i, c := range calls {
		out[i] = map[string]any{"id": c.ID, "name": c.Name, "arguments": c.Arguments}
	}
	return out
}

func toEventUsage(u *model.Usage) *events.Usage {
	if u == nil {
		return nil
	}
	return &events.Usage{InputTokens: u.InputTokens, OutputTokens: u.OutputTokens}
}

var errStreamClosedWithoutResponse = errors.New("runner: model adapter closed stream without a final response")

func (r *Runner) streamModel(ctx context.Context, rec *runRecord, assembledCtx *assembler.AssembledContext, messages []model.Message) (*model.Response, error) {
	req := model.Request{
		Model:        assembledCtx.Parameters.ModelID,
		SystemPrompt: assembledCtx.SystemPrompt,
		Messages:     messages,
		Tools:        toModelTools(assembledCtx.Tools),
		Temperature:  assembledCtx.Parameters.Temperature,
		TopP:         assembledCtx.Parameters.TopP,
		TopK:         assembledCtx.Parameters.TopK,
		MaxTokens:    derefInt(assembledCtx.Parameters.MaxTokens),
		Signal:       rec.sig,
	}

	var finalResp *model.Response
	err := r.retryEng.Execute(ctx, rec.run.RunID, rec.sig, func(opCtx context.Context) error {
		finalResp = nil
		seq, err := r.modelAd.Stream(opCtx, req)
		if err != nil {
			return err
		}
		for chunk, chunkErr := range seq {
			if chunkErr != nil {
				return chunkErr
			}
			switch chunk.Type {
			case model.ChunkContent:
				_ = rec.stream.Emit(events.NewModelDelta(chunk.Delta))
			case model.ChunkThinking:
				_ = rec.stream.Emit(events.NewModelThinking(chunk.Delta))
			case model.ChunkResponse:
				finalResp = chunk.Response
			}
		}
		if finalResp == nil {
			return errStreamClosedWithoutResponse
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("model stream: %w", err)
	}
	return finalResp, nil
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
