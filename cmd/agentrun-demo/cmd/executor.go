package cmd

import (
	"context"
	"fmt"

	"github.com/arrowctl/agentrun/toolerrors"
	"github.com/arrowctl/agentrun/toolexec"
)

// addExecutor implements toolexec.Executor with a single "add" tool,
// enough to exercise the tool-round scenarios without an external service.
type addExecutor struct{}

func (addExecutor) CreateContext(_ context.Context, opts toolexec.ExecContext) (toolexec.ExecContext, error) {
	return opts, nil
}

func (addExecutor) AvailableTools(context.Context) ([]toolexec.Spec, error) {
	return []toolexec.Spec{{
		Name:        "add",
		Description: "Add two numbers and return the sum.",
		Schema: map[string]any{
			"type":                 "object",
			"required":             []any{"a", "b"},
			"additionalProperties": false,
			"properties": map[string]any{
				"a": map[string]any{"type": "number"},
				"b": map[string]any{"type": "number"},
			},
		},
	}}, nil
}

func (addExecutor) Execute(_ context.Context, toolName string, arguments map[string]any, _ toolexec.ExecContext) (toolexec.Result, error) {
	if toolName != "add" {
		return toolexec.Result{Error: toolerrors.New(toolerrors.CodeNotFound, false, "unknown tool %q", toolName)}, nil
	}
	a, aok := arguments["a"].(float64)
	b, bok := arguments["b"].(float64)
	if !aok || !bok {
		return toolexec.Result{Error: toolerrors.New(toolerrors.CodeInvalidArguments, false, "add requires numeric a and b")}, nil
	}
	sum := a + b
	return toolexec.Result{Content: fmt.Sprintf("%g", sum), Data: sum}, nil
}
