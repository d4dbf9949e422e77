// Package events defines the discriminated AgentEvent union emitted by a run
// (spec §6.2) and the single-producer single-consumer Stream that delivers
// them to a caller in strict order with backpressure.
package events

// Type tags the concrete payload carried by an Event.
type Type string

const (
	TypeRunQueued     Type = "run.queued"
	TypeRunStarted    Type = "run.started"
	TypeRunCompleted  Type = "run.completed"
	TypeRunError      Type = "run.error"
	TypeRunCancelled  Type = "run.cancelled"
	TypeContextStart  Type = "context.start"
	TypeContextDone   Type = "context.complete"
	TypeModelStart    Type = "model.start"
	TypeModelDelta    Type = "model.delta"
	TypeModelThinking Type = "model.thinking"
	TypeModelComplete Type = "model.complete"
	TypeToolStart     Type = "tool.start"
	TypeToolComplete  Type = "tool.complete"
	TypeToolError     Type = "tool.error"
)

// StopReason explains why a run reached a terminal state.
type StopReason string

const (
	StopReasonStop          StopReason = "stop"
	StopReasonMaxTurns      StopReason = "max_turns"
	StopReasonMaxToolRounds StopReason = "max_tool_rounds"
	StopReasonTimeout       StopReason = "timeout"
	StopReasonCancelled     StopReason = "cancelled"
	StopReasonError         StopReason = "error"
)

// Event is implemented by every concrete event type. Embed Base to inherit
// Type() and Payload().
type Event interface {
	Type() Type
	Payload() any
}

// Base provides the default Event implementation. Field names are
// abbreviated since consumers access payload data through the concrete
// struct, not through Base directly.
type Base struct {
	t Type
	p any
}

// NewBase constructs a Base carrying the given type and payload.
func NewBase(t Type, payload any) Base { return Base{t: t, p: payload} }

func (b Base) Type() Type   { return b.t }
func (b Base) Payload() any { return b.p }

type (
	// RunQueued is emitted once, first in the stream, when a run is
	// admitted into the Admission Queue.
	RunQueued struct {
		Base
		RunID    string
		Position int
	}

	// RunStarted is emitted once the run has acquired its session lock and
	// begun executing turns.
	RunStarted struct {
		Base
		RunID string
	}

	// RunCompleted is the terminal event for a successful run.
	RunCompleted struct {
		Base
		RunID  string
		Result RunResult
	}

	// RunResult summarizes a completed run for the caller.
	RunResult struct {
		RunID      string
		SessionID  string
		State      string
		StopReason StopReason
		Message    string
		Usage      *Usage
		Context    any
	}

	// Usage reports token accounting for a model call.
	Usage struct {
		InputTokens  int
		OutputTokens int
	}

	// RunError is a terminal event for an unrecoverable failure.
	RunError struct {
		Base
		RunID string
		Error string
	}

	// RunCancelled is a terminal event for a cancelled run.
	RunCancelled struct {
		Base
		RunID  string
		Reason string
	}

	// ContextStart marks the beginning of context assembly for a turn.
	ContextStart struct{ Base }

	// ContextComplete carries the assembled context for a turn.
	ContextComplete struct {
		Base
		Context any
	}

	// ModelStart marks the beginning of a model call for a turn.
	ModelStart struct{ Base }

	// ModelDelta streams incremental assistant text.
	ModelDelta struct {
		Base
		Delta string
	}

	// ModelThinking streams incremental reasoning text.
	ModelThinking struct {
		Base
		Delta string
	}

	// ModelComplete carries the finalized model response for a turn.
	ModelComplete struct {
		Base
		Response any
	}

	// ToolStart is emitted before a tool call executes.
	ToolStart struct {
		Base
		ToolCallID string
		ToolName   string
		Arguments  map[string]any
	}

	// ToolComplete is emitted after a tool call succeeds.
	ToolComplete struct {
		Base
		ToolCallID string
		Result     ToolResult
	}

	// ToolError is emitted after a tool call fails. The run continues; the
	// error is folded back into the conversation as a tool result.
	ToolError struct {
		Base
		ToolCallID string
		Error      string
	}

	// ToolResult is the payload carried by ToolComplete and folded into the
	// next turn's messages.
	ToolResult struct {
		ToolCallID string
		Result     any
		Error      string
	}
)

func NewRunQueued(runID string, position int) *RunQueued {
	return &RunQueued{Base: NewBase(TypeRunQueued, nil), RunID: runID, Position: position}
}

func NewRunStarted(runID string) *RunStarted {
	return &RunStarted{Base: NewBase(TypeRunStarted, nil), RunID: runID}
}

func NewRunCompleted(runID string, result RunResult) *RunCompleted {
	return &RunCompleted{Base: NewBase(TypeRunCompleted, result), RunID: runID, Result: result}
}

func NewRunError(runID, msg string) *RunError {
	return &RunError{Base: NewBase(TypeRunError, msg), RunID: runID, Error: msg}
}

func NewRunCancelled(runID, reason string) *RunCancelled {
	return &RunCancelled{Base: NewBase(TypeRunCancelled, reason), RunID: runID, Reason: reason}
}

func NewContextStart() *ContextStart { return &ContextStart{Base: NewBase(TypeContextStart, nil)} }

func NewContextComplete(ctx any) *ContextComplete {
	return &ContextComplete{Base: NewBase(TypeContextDone, ctx), Context: ctx}
}

func NewModelStart() *ModelStart { return &ModelStart{Base: NewBase(TypeModelStart, nil)} }

func NewModelDelta(delta string) *ModelDelta {
	return &ModelDelta{Base: NewBase(TypeModelDelta, delta), Delta: delta}
}

func NewModelThinking(delta string) *ModelThinking {
	return &ModelThinking{Base: NewBase(TypeModelThinking, delta), Delta: delta}
}

func NewModelComplete(resp any) *ModelComplete {
	return &ModelComplete{Base: NewBase(TypeModelComplete, resp), Response: resp}
}

func NewToolStart(id, name string, args map[string]any) *ToolStart {
	return &ToolStart{Base: NewBase(TypeToolStart, args), ToolCallID: id, ToolName: name, Arguments: args}
}

func NewToolComplete(id string, result ToolResult) *ToolComplete {
	return &ToolComplete{Base: NewBase(TypeToolComplete, result), ToolCallID: id, Result: result}
}

func NewToolError(id, msg string) *ToolError {
	return &ToolError{Base: NewBase(TypeToolError, msg), ToolCallID: id, Error: msg}
}
