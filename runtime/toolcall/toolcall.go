// Package toolcall extracts and validates tool calls from a model response.
package toolcall

import "fmt"

// Call is a single tool invocation requested by the model.
type Call struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ValidationError reports why a model response's tool calls were rejected.
// The entire batch is rejected together: a single malformed call aborts the
// turn's tool-round execution.
type ValidationError struct {
	Index  int
	CallID string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.CallID != "" {
		return fmt.Sprintf("toolcall: call %q (index %d): %s", e.CallID, e.Index, e.Reason)
	}
	return fmt.Sprintf("toolcall: call at index %d: %s", e.Index, e.Reason)
}

// Extract returns the well-formed tool calls found in raw, or a
// ValidationError describing the first problem encountered. raw is expected
// to already be shaped as a slice of {id, name, arguments} maps, as produced
// by a model adapter's response decoder. An empty or nil raw yields an empty,
// non-nil slice and no error.
func Extract(raw []map[string]any) ([]Call, error) {
	calls := make([]Call, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for i, entry := range raw {
		id, _ := entry["id"].(string)
		if id == "" {
			return nil, &ValidationError{Index: i, Reason: "missing or empty id"}
		}
		if _, dup := seen[id]; dup {
			return nil, &ValidationError{Index: i, CallID: id, Reason: "duplicate id within response"}
		}
		name, _ := entry["name"].(string)
		if name == "" {
			return nil, &ValidationError{Index: i, CallID: id, Reason: "missing or empty name"}
		}
		args, ok := entry["arguments"].(map[string]any)
		if !ok {
			if entry["arguments"] == nil {
				args = map[string]any{}
			} else {
				return nil, &ValidationError{Index: i, CallID: id, Reason: "arguments is not a mapping"}
			}
		}
		seen[id] = struct{}{}
		calls = append(calls, Call{ID: id, Name: name, Arguments: args})
	}
	return calls, nil
}
