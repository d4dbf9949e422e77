// Package toolexec defines the ToolExecutor contract used by the runner to
// run model-requested tool calls against an external implementation.
package toolexec

import (
	"context"

	"github.com/arrowctl/agentrun/runtime/cancelctl"
	"github.com/arrowctl/agentrun/toolerrors"
)

// ExecContext carries per-call identity and authorization data into a tool
// invocation.
type ExecContext struct {
	SessionID   string
	UserID      string
	RunID       string
	ToolCallID  string
	Signal      cancelctl.Signal
	Permissions []string
}

// Result is the outcome of a single tool invocation.
type Result struct {
	Content string
	Data    any
	Error   *toolerrors.ToolError
}

// Spec describes a tool's identity, metadata, and permission requirements as
// published by the executor for collection into a run's tool list.
type Spec struct {
	Name                string
	Description         string
	Schema              map[string]any
	RequiredPermissions []string
}

// Executor runs tool calls on behalf of a run and reports the set of tools
// it makes available.
type Executor interface {
	CreateContext(ctx context.Context, opts ExecContext) (ExecContext, error)
	Execute(ctx context.Context, toolName string, arguments map[string]any, execCtx ExecContext) (Result, error)
	AvailableTools(ctx context.Context) ([]Spec, error)
}
