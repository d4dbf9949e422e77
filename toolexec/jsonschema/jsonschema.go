// Package jsonschema wraps a toolexec.Executor so every tool call's
// arguments are validated against the tool's declared JSON Schema before
// dispatch, using github.com/santhosh-tekuri/jsonschema/v6.
package jsonschema

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	schema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/arrowctl/agentrun/toolerrors"
	"github.com/arrowctl/agentrun/toolexec"
)

// Validator compiles and caches one *schema.Schema per tool name and rejects
// tool calls whose arguments do not conform.
type Validator struct {
	next toolexec.Executor

	mu       sync.Mutex
	compiled map[string]*schema.Schema
}

// Wrap returns an Executor that validates arguments against next.AvailableTools'
// declared schemas before delegating execution to next.
func Wrap(next toolexec.Executor) *Validator {
	return &Validator{next: next, compiled: make(map[string]*schema.Schema)}
}

// CreateContext delegates unchanged.
func (v *Validator) CreateContext(ctx context.Context, opts toolexec.ExecContext) (toolexec.ExecContext, error) {
	return v.next.CreateContext(ctx, opts)
}

// AvailableTools delegates unchanged.
func (v *Validator) AvailableTools(ctx context.Context) ([]toolexec.Spec, error) {
	return v.next.AvailableTools(ctx)
}

// Execute validates arguments against toolName's declared schema, returning a
// toolerrors.ToolError result (never a Go error) on a validation failure so
// callers can surface it to the model as a retryable tool_result, then
// delegates to the wrapped executor.
func (v *Validator) Execute(ctx context.Context, toolName string, arguments map[string]any, execCtx toolexec.ExecContext) (toolexec.Result, error) {
	compiled, err := v.schemaFor(ctx, toolName)
	if err != nil {
		return toolexec.Result{}, err
	}
	if compiled != nil {
		if err := compiled.Validate(toAnyMap(arguments)); err != nil {
			return toolexec.Result{Error: toolerrors.New(
				toolerrors.CodeInvalidArguments, true,
				"arguments for tool %q do not match its schema: %v", toolName, err,
			)}, nil
		}
	}
	return v.next.Execute(ctx, toolName, arguments, execCtx)
}

// schemaFor returns the compiled schema for toolName, compiling and caching
// it on first use. A tool with no declared schema (or an empty one) returns a
// nil schema, meaning validation is skipped.
func (v *Validator) schemaFor(ctx context.Context, toolName string) (*schema.Schema, error) {
	v.mu.Lock()
	if s, ok := v.compiled[toolName]; ok {
		v.mu.Unlock()
		return s, nil
	}
	v.mu.Unlock()

	specs, err := v.next.AvailableTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: list available tools: %w", err)
	}
	var raw map[string]any
	for _, s := range specs {
		if s.Name == toolName {
			raw = s.Schema
			break
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.compiled[toolName]; ok {
		return s, nil
	}
	if len(raw) == 0 {
		v.compiled[toolName] = nil
		return nil, nil
	}

	compiler := schema.NewCompiler()
	resourceName := toolName + ".json"
	if err := compiler.AddResource(resourceName, raw); err != nil {
		return nil, fmt.Errorf("jsonschema: add schema resource for tool %q: %w", toolName, err)
	}
	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("jsonschema: compile schema for tool %q: %w", toolName, err)
	}
	v.compiled[toolName] = compiled
	return compiled, nil
}

// toAnyMap round-trips arguments through JSON so the validator sees plain
// map[string]any/[]any/float64 values, matching what schema.Schema.Validate
// expects from a json.Unmarshal'd document rather than Go-typed call
// arguments.
func toAnyMap(arguments map[string]any) any {
	data, err := json.Marshal(arguments)
	if err != nil {
		return arguments
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return arguments
	}
	return out
}

var _ toolexec.Executor = (*Validator)(nil)
