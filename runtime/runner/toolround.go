package runner

import (
	"context"
	"sync"

	"github.com/arrowctl/agentrun/model"
	"github.com/arrowctl/agentrun/runtime/cancelctl"
	"github.com/arrowctl/agentrun/runtime/events"
	"github.com/arrowctl/agentrun/runtime/hooks"
	"github.com/arrowctl/agentrun/runtime/toolcall"
	"github.com/arrowctl/agentrun/toolerrors"
	"github.com/arrowctl/agentrun/toolexec"
)

// ToolCallEvent is the payload passed to the beforeToolExecution hook.
type ToolCallEvent struct {
	RunID string
	Call  toolcall.Call
}

// ToolResultEvent is the payload passed to the afterToolExecution hook.
type ToolResultEvent struct {
	RunID  string
	Call   toolcall.Call
	Result toolexec.Result
}

// toolOutcome is one call's rendered tool_use / tool_result block pair,
// produced in isolation so the round can execute calls concurrently and
// still reassemble the round's two messages in original call order.
type toolOutcome struct {
	use    map[string]any
	result map[string]any
}

// executeToolRound runs every call in a tool round, honoring the
// configured parallelism cap, and folds the outcomes into a single
// assistant tool-use message and a single user tool-result message —
// mirroring how a multi-tool-call turn is represented on the wire by the
// Anthropic and OpenAI adapters alike.
func (r *Runner) executeToolRound(ctx context.Context, rec *runRecord, sig cancelctl.Signal, calls []toolcall.Call, sessionID, agentID string, req RunRequest) (model.Message, model.Message, error) {
	cfg := r.Config()
	concurrency := cfg.Concurrency.MaxConcurrentToolCalls
	if perRoundCap := cfg.Limits.MaxToolCallsPerRound; perRoundCap > 0 && perRoundCap < concurrency {
		concurrency = perRoundCap
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	outcomes := make([]toolOutcome, len(calls))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, call toolcall.Call) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = r.runOneToolCall(ctx, rec, sig, call, sessionID, agentID, req)
		}(i, call)
	}
	wg.Wait()

	useBlocks := make([]any, len(outcomes))
	resultBlocks := make([]any, len(outcomes))
	for i, o := range outcomes {
		useBlocks[i] = o.use
		resultBlocks[i] = o.result
	}

	assistantMsg := model.Message{Role: "assistant", Content: useBlocks}
	resultMsg := model.Message{Role: "user", Content: resultBlocks}
	return assistantMsg, resultMsg, nil
}

func (r *Runner) runOneToolCall(ctx context.Context, rec *runRecord, sig cancelctl.Signal, call toolcall.Call, sessionID, agentID string, req RunRequest) toolOutcome {
	runID := rec.run.RunID
	_ = rec.stream.Emit(events.NewToolStart(call.ID, call.Name, call.Arguments))
	r.hooksReg.Execute(ctx, hooks.BeforeToolExecution, ToolCallEvent{RunID: runID, Call: call})

	var result toolexec.Result
	execCtx, err := r.executor.CreateContext(ctx, toolexec.ExecContext{
		SessionID:   sessionID,
		RunID:       runID,
		ToolCallID:  call.ID,
		Signal:      sig,
		Permissions: req.ContextOptions.Permissions,
	})
	if err != nil {
		result = toolexec.Result{Error: toolerrors.New(toolerrors.CodeExecutionFailed, false, "create tool context: %v", err)}
	} else {
		result, err = r.executor.Execute(ctx, call.Name, call.Arguments, execCtx)
		if err != nil && result.Error == nil {
			result.Error = toolerrors.New(toolerrors.CodeExecutionFailed, false, "%v", err)
		}
	}

	r.hooksReg.Execute(ctx, hooks.AfterToolExecution, ToolResultEvent{RunID: runID, Call: call, Result: result})

	isError := result.Error != nil
	if isError {
		_ = rec.stream.Emit(events.NewToolError(call.ID, result.Error.Error()))
	} else {
		_ = rec.stream.Emit(events.NewToolComplete(call.ID, events.ToolResult{ToolCallID: call.ID, Result: result.Data}))
	}

	errMsg := ""
	if isError {
		errMsg = result.Error.Error()
	}
	return toolOutcome{
		use: map[string]any{"type": "tool_use", "id": call.ID, "name": call.Name, "input": call.Arguments},
		result: map[string]any{
			"type":        "tool_result",
			"tool_use_id": call.ID,
			"content":     result.Content,
			"is_error":    isError,
			"error":       errMsg,
		},
	}
}
