package transform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arrowctl/agentrun/context/transform"
	"github.com/arrowctl/agentrun/model"
	"github.com/arrowctl/agentrun/session"
)

func TestToModelMessages_RoleMapping(t *testing.T) {
	msgs := []session.Message{
		{Role: session.RoleSystem, Content: "sys"},
		{Role: session.RoleUser, Content: "hi"},
		{Role: session.RoleAssistant, Content: "hello"},
		{Role: session.RoleToolResult, Content: "result"},
	}
	out := transform.ToModelMessages(msgs)
	require := assert.New(t)
	require.Equal("system", out[0].Role)
	require.Equal("user", out[1].Role)
	require.Equal("assistant", out[2].Role)
}

func TestToModelMessages_DropsUnknownKind(t *testing.T) {
	msgs := []session.Message{{Role: session.Role("mystery"), Content: "x"}}
	out := transform.ToModelMessages(msgs)
	assert.Empty(t, out)
}

func TestToModelMessages_MergesConsecutiveSameRole(t *testing.T) {
	msgs := []session.Message{
		{Role: session.RoleUser, Content: "a"},
		{Role: session.RoleToolResult, Content: "b"},
	}
	out := transform.ToModelMessages(msgs)
	require := assert.New(t)
	require.Len(out, 1)
	require.Equal("a\n\nb", out[0].Content)
}

func TestToModelMessages_Alternates(t *testing.T) {
	msgs := []session.Message{
		{Role: session.RoleUser, Content: "u1"},
		{Role: session.RoleAssistant, Content: "a1"},
		{Role: session.RoleUser, Content: "u2"},
	}
	out := transform.ToModelMessages(msgs)
	for i := 1; i < len(out); i++ {
		assert.NotEqual(t, out[i-1].Role, out[i].Role)
	}
}

func TestExtractToolUseAndResult(t *testing.T) {
	content := []any{
		map[string]any{"type": "tool_use", "id": "1", "name": "search"},
		map[string]any{"type": "text", "text": "hi"},
	}
	calls := transform.ExtractToolUse(content)
	assert.Len(t, calls, 1)
	assert.Equal(t, "search", calls[0]["name"])

	resultContent := []any{
		map[string]any{"type": "tool_result", "tool_call_id": "1", "content": "42"},
	}
	results := transform.ExtractToolResult(resultContent)
	assert.Len(t, results, 1)
}

func TestResultForCall(t *testing.T) {
	messages := []model.Message{{
		Role: "user",
		Content: []any{
			map[string]any{"type": "tool_result", "tool_call_id": "abc", "content": "42"},
		},
	}}
	content, found := transform.ResultForCall(messages, "abc")
	assert.True(t, found)
	assert.Equal(t, "42", content)

	_, found = transform.ResultForCall(messages, "missing")
	assert.False(t, found)
}
