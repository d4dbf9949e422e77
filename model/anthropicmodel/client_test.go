package anthropicmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowctl/agentrun/model"
)

func TestNewRequiresClient(t *testing.T) {
	_, err := New(nil, Options{})
	require.Error(t, err)
}

func TestBuildParams_RequiresModelAndMessages(t *testing.T) {
	a := &Adapter{opts: Options{DefaultMaxTokens: 4096}}

	_, err := a.buildParams(model.Request{Messages: []model.Message{{Role: "user", Content: "hi"}}})
	assert.Error(t, err, "missing model should error")

	_, err = a.buildParams(model.Request{Model: "claude-sonnet"})
	assert.Error(t, err, "missing messages should error")
}

func TestBuildParams_FallsBackToDefaultMaxTokens(t *testing.T) {
	a := &Adapter{opts: Options{DefaultMaxTokens: 2048}}
	params, err := a.buildParams(model.Request{
		Model:    "claude-sonnet",
		Messages: []model.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2048, params.MaxTokens)
}

func TestBuildParams_RejectsZeroMaxTokens(t *testing.T) {
	a := &Adapter{}
	_, err := a.buildParams(model.Request{
		Model:    "claude-sonnet",
		Messages: []model.Message{{Role: "user", Content: "hi"}},
	})
	assert.Error(t, err)
}

func TestEncodeMessages_ToolUseAndResultBlocks(t *testing.T) {
	msgs := []model.Message{
		{Role: "user", Content: "search for go"},
		{Role: "tool_call", Content: []any{
			map[string]any{"type": "tool_use", "id": "call-1", "name": "search", "input": map[string]any{"q": "go"}},
		}},
		{Role: "tool_result", Content: []any{
			map[string]any{"type": "tool_result", "tool_use_id": "call-1", "content": "ok", "is_error": false},
		}},
	}
	params, err := encodeMessages(msgs)
	require.NoError(t, err)
	assert.Len(t, params, 3)
}

func TestEncodeMessages_RejectsUnknownRole(t *testing.T) {
	_, err := encodeMessages([]model.Message{{Role: "system", Content: "nope"}})
	assert.Error(t, err)
}

func TestEncodeMessages_RejectsEmptyConversation(t *testing.T) {
	_, err := encodeMessages([]model.Message{{Role: "user", Content: ""}})
	assert.Error(t, err)
}
