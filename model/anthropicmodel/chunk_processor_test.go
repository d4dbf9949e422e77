package anthropicmodel

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/arrowctl/agentrun/model"
)

func mustEvent(t *testing.T, raw string) sdk.MessageStreamEventUnion {
	t.Helper()
	var ev sdk.MessageStreamEventUnion
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	return ev
}

func TestChunkProcessor_TextDeltaThenResponse(t *testing.T) {
	p := newChunkProcessor()

	chunks, err := p.handle(mustEvent(t, `{
		"type": "content_block_delta",
		"index": 0,
		"delta": {"type": "text_delta", "text": "hello"}
	}`))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, model.ChunkContent, chunks[0].Type)
	assert.Equal(t, "hello", chunks[0].Delta)

	chunks, err = p.handle(mustEvent(t, `{
		"type": "message_delta",
		"delta": {"stop_reason": "end_turn"},
		"usage": {"input_tokens": 10, "output_tokens": 3}
	}`))
	require.NoError(t, err)
	require.Empty(t, chunks)

	chunks, err = p.handle(mustEvent(t, `{"type": "message_stop"}`))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, model.ChunkResponse, chunks[0].Type)
	resp := chunks[0].Response
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, "end_turn", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 10, resp.Usage.InputTokens)
	assert.Equal(t, 3, resp.Usage.OutputTokens)
	assert.Empty(t, resp.ToolCalls)
}

func TestChunkProcessor_ThinkingDelta(t *testing.T) {
	p := newChunkProcessor()
	chunks, err := p.handle(mustEvent(t, `{
		"type": "content_block_delta",
		"index": 0,
		"delta": {"type": "thinking_delta", "thinking": "pondering"}
	}`))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, model.ChunkThinking, chunks[0].Type)
	assert.Equal(t, "pondering", chunks[0].Delta)
}

func TestChunkProcessor_ToolCallAccumulatesAcrossDeltas(t *testing.T) {
	p := newChunkProcessor()

	_, err := p.handle(mustEvent(t, `{
		"type": "content_block_start",
		"index": 0,
		"content_block": {"type": "tool_use", "id": "call-1", "name": "search"}
	}`))
	require.NoError(t, err)

	_, err = p.handle(mustEvent(t, `{
		"type": "content_block_delta",
		"index": 0,
		"delta": {"type": "input_json_delta", "partial_json": "{\"q\":"}
	}`))
	require.NoError(t, err)

	_, err = p.handle(mustEvent(t, `{
		"type": "content_block_delta",
		"index": 0,
		"delta": {"type": "input_json_delta", "partial_json": "\"go\"}"}
	}`))
	require.NoError(t, err)

	chunks, err := p.handle(mustEvent(t, `{"type": "message_stop"}`))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	resp := chunks[0].Response
	require.Len(t, resp.ToolCalls, 1)
	call := resp.ToolCalls[0]
	assert.Equal(t, "call-1", call.ID)
	assert.Equal(t, "search", call.Name)
	assert.Equal(t, "go", call.Arguments["q"])
}

func TestChunkProcessor_MalformedToolArgumentsDecodeEmpty(t *testing.T) {
	p := newChunkProcessor()
	_, err := p.handle(mustEvent(t, `{
		"type": "content_block_start",
		"index": 0,
		"content_block": {"type": "tool_use", "id": "call-1", "name": "search"}
	}`))
	require.NoError(t, err)

	chunks, err := p.handle(mustEvent(t, `{"type": "message_stop"}`))
	require.NoError(t, err)
	resp := chunks[0].Response
	require.Len(t, resp.ToolCalls, 1)
	assert.Empty(t, resp.ToolCalls[0].Arguments)
}
