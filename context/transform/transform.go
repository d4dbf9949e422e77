// Package transform maps persisted session messages into model-ready
// messages: role mapping, consecutive same-role merging, and alternation
// enforcement.
package transform

import (
	"github.com/arrowctl/agentrun/model"
	"github.com/arrowctl/agentrun/session"
)

// mapRole maps a session.Role to a model role, or "" if the kind is dropped.
func mapRole(r session.Role) string {
	switch r {
	case session.RoleSystem:
		return "system"
	case session.RoleUser, session.RoleToolResult:
		return "user"
	case session.RoleAssistant, session.RoleToolCall, session.RoleCompaction:
		return "assistant"
	default:
		return ""
	}
}

// ToModelMessages runs the full pipeline: map roles (dropping unknown
// kinds), merge consecutive same-role messages, then coalesce any same-role
// runs that merging produced so the result strictly alternates.
func ToModelMessages(messages []session.Message) []model.Message {
	mapped := mapMessages(messages)
	merged := mergeConsecutive(mapped)
	return enforceAlternation(merged)
}

func mapMessages(messages []session.Message) []model.Message {
	out := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		role := mapRole(m.Role)
		if role == "" {
			continue
		}
		out = append(out, model.Message{Role: role, Content: m.Content})
	}
	return out
}

// mergeConsecutive joins adjacent same-role messages: string contents are
// joined with a blank line; any non-string content turns the merge into a
// concatenated block list.
func mergeConsecutive(messages []model.Message) []model.Message {
	if len(messages) == 0 {
		return messages
	}
	out := make([]model.Message, 0, len(messages))
	current := messages[0]
	for _, next := range messages[1:] {
		if next.Role == current.Role {
			current.Content = joinContent(current.Content, next.Content)
			continue
		}
		out = append(out, current)
		current = next
	}
	out = append(out, current)
	return out
}

// joinContent merges two message contents according to the merge rule:
// string+string joins with a blank line; anything else becomes a
// concatenated block list.
func joinContent(a, b any) any {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		if as == "" {
			return bs
		}
		if bs == "" {
			return as
		}
		return as + "\n\n" + bs
	}
	return append(toBlocks(a), toBlocks(b)...)
}

func toBlocks(v any) []any {
	if blocks, ok := v.([]any); ok {
		return blocks
	}
	return []any{v}
}

// enforceAlternation coalesces any same-role runs remaining after merging
// (which can arise only if mergeConsecutive's input already violated
// alternation at construction time) so the output strictly alternates role.
func enforceAlternation(messages []model.Message) []model.Message {
	return mergeConsecutive(messages)
}

// ExtractToolUse returns the tool-use entries embedded in an assistant
// message's content, if any, in the {id, name, arguments} shape produced by
// the model adapter.
func ExtractToolUse(content any) []map[string]any {
	blocks, ok := content.([]any)
	if !ok {
		return nil
	}
	var calls []map[string]any
	for _, b := range blocks {
		block, ok := b.(map[string]any)
		if !ok {
			continue
		}
		if block["type"] == "tool_use" {
			calls = append(calls, block)
		}
	}
	return calls
}

// ExtractToolResult returns the tool-result entries embedded in a user
// message's content, if any.
func ExtractToolResult(content any) []map[string]any {
	blocks, ok := content.([]any)
	if !ok {
		return nil
	}
	var results []map[string]any
	for _, b := range blocks {
		block, ok := b.(map[string]any)
		if !ok {
			continue
		}
		if block["type"] == "tool_result" {
			results = append(results, block)
		}
	}
	return results
}

// ResultForCall scans messages for the tool-result block matching
// toolCallID, returning its content and whether it was found. Used by the
// pair-preserving truncator to decide whether a message is half of a
// tool-call/result pair.
func ResultForCall(messages []model.Message, toolCallID string) (string, bool) {
	for _, m := range messages {
		for _, r := range ExtractToolResult(m.Content) {
			if id, _ := r["tool_call_id"].(string); id == toolCallID {
				content, _ := r["content"].(string)
				return content, true
			}
		}
	}
	return "", false
}

// IsToolRoleText reports whether s looks like role-tagged plain text rather
// than a structured block list, used by callers deciding whether to run
// structured-content helpers at all.
func IsToolRoleText(content any) bool {
	_, ok := content.(string)
	return ok
}
