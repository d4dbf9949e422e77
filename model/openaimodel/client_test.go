package openaimodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentmodel "github.com/arrowctl/agentrun/model"
)

func TestNewRequiresClient(t *testing.T) {
	_, err := New(nil, Options{})
	require.Error(t, err)
}

func TestBuildParams_RequiresModelAndMessages(t *testing.T) {
	a := &Adapter{opts: Options{DefaultMaxTokens: 4096}}

	_, err := a.buildParams(agentmodel.Request{Messages: []agentmodel.Message{{Role: "user", Content: "hi"}}})
	assert.Error(t, err, "missing model should error")

	_, err = a.buildParams(agentmodel.Request{Model: "gpt-4o"})
	assert.Error(t, err, "missing messages and system prompt should error")
}

func TestBuildParams_FallsBackToDefaultMaxTokens(t *testing.T) {
	a := &Adapter{opts: Options{DefaultMaxTokens: 2048}}
	params, err := a.buildParams(agentmodel.Request{
		Model:    "gpt-4o",
		Messages: []agentmodel.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2048, params.MaxCompletionTokens.Value)
}

func TestBuildParams_SystemPromptAloneIsSufficient(t *testing.T) {
	a := &Adapter{opts: Options{DefaultMaxTokens: 2048}}
	_, err := a.buildParams(agentmodel.Request{Model: "gpt-4o", SystemPrompt: "be terse"})
	assert.NoError(t, err)
}

func TestEncodeMessages_ToolCallAndResultBlocks(t *testing.T) {
	msgs := []agentmodel.Message{
		{Role: "user", Content: "search for go"},
		{Role: "tool_call", Content: []any{
			map[string]any{"type": "tool_use", "id": "call-1", "name": "search", "input": map[string]any{"q": "go"}},
		}},
		{Role: "tool_result", Content: []any{
			map[string]any{"type": "tool_result", "tool_use_id": "call-1", "content": "ok"},
		}},
	}
	params, err := encodeMessages("", msgs)
	require.NoError(t, err)
	assert.Len(t, params, 3)
}

func TestEncodeMessages_RejectsUnknownRole(t *testing.T) {
	_, err := encodeMessages("", []agentmodel.Message{{Role: "developer", Content: "nope"}})
	assert.Error(t, err)
}

func TestEncodeMessages_RejectsEmptyConversation(t *testing.T) {
	_, err := encodeMessages("", nil)
	assert.Error(t, err)
}

func TestEncodeMessages_PrependsSystemPrompt(t *testing.T) {
	params, err := encodeMessages("be terse", []agentmodel.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Len(t, params, 2)
}
