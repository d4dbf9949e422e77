package openaimodel

import (
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkProcessor_ContentDeltaThenFinalize(t *testing.T) {
	p := newChunkProcessor()

	chunks := p.handle(openai.ChatCompletionChunk{
		Choices: []openai.ChatCompletionChunkChoice{
			{Delta: openai.ChatCompletionChunkChoiceDelta{Content: "hello"}},
		},
	})
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello", chunks[0].Delta)

	p.handle(openai.ChatCompletionChunk{
		Choices: []openai.ChatCompletionChunkChoice{
			{FinishReason: "stop"},
		},
		Usage: openai.CompletionUsage{PromptTokens: 10, CompletionTokens: 3, TotalTokens: 13},
	})

	resp := p.finalize()
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 10, resp.Usage.InputTokens)
	assert.Equal(t, 3, resp.Usage.OutputTokens)
	assert.Empty(t, resp.ToolCalls)
}

func TestChunkProcessor_ToolCallAccumulatesAcrossDeltas(t *testing.T) {
	p := newChunkProcessor()

	p.handle(openai.ChatCompletionChunk{Choices: []openai.ChatCompletionChunkChoice{{
		Delta: openai.ChatCompletionChunkChoiceDelta{ToolCalls: []openai.ChatCompletionChunkChoiceDeltaToolCall{
			{Index: 0, ID: "call-1", Function: openai.ChatCompletionChunkChoiceDeltaToolCallFunction{Name: "search"}},
		}},
	}}})

	p.handle(openai.ChatCompletionChunk{Choices: []openai.ChatCompletionChunkChoice{{
		Delta: openai.ChatCompletionChunkChoiceDelta{ToolCalls: []openai.ChatCompletionChunkChoiceDeltaToolCall{
			{Index: 0, Function: openai.ChatCompletionChunkChoiceDeltaToolCallFunction{Arguments: `{"q":`}},
		}},
	}}})

	p.handle(openai.ChatCompletionChunk{Choices: []openai.ChatCompletionChunkChoice{{
		Delta: openai.ChatCompletionChunkChoiceDelta{ToolCalls: []openai.ChatCompletionChunkChoiceDeltaToolCall{
			{Index: 0, Function: openai.ChatCompletionChunkChoiceDeltaToolCallFunction{Arguments: `"go"}`}},
		}},
	}}})

	resp := p.finalize()
	require.Len(t, resp.ToolCalls, 1)
	call := resp.ToolCalls[0]
	assert.Equal(t, "call-1", call.ID)
	assert.Equal(t, "search", call.Name)
	assert.Equal(t, "go", call.Arguments["q"])
}

func TestChunkProcessor_MalformedToolArgumentsDecodeEmpty(t *testing.T) {
	p := newChunkProcessor()
	p.handle(openai.ChatCompletionChunk{Choices: []openai.ChatCompletionChunkChoice{{
		Delta: openai.ChatCompletionChunkChoiceDelta{ToolCalls: []openai.ChatCompletionChunkChoiceDeltaToolCall{
			{Index: 0, ID: "call-1", Function: openai.ChatCompletionChunkChoiceDeltaToolCallFunction{Name: "search"}},
		}},
	}}})

	resp := p.finalize()
	require.Len(t, resp.ToolCalls, 1)
	assert.Empty(t, resp.ToolCalls[0].Arguments)
}

func TestChunkProcessor_MultipleToolCallsPreserveIndexOrder(t *testing.T) {
	p := newChunkProcessor()
	p.handle(openai.ChatCompletionChunk{Choices: []openai.ChatCompletionChunkChoice{{
		Delta: openai.ChatCompletionChunkChoiceDelta{ToolCalls: []openai.ChatCompletionChunkChoiceDeltaToolCall{
			{Index: 1, ID: "call-2", Function: openai.ChatCompletionChunkChoiceDeltaToolCallFunction{Name: "second"}},
			{Index: 0, ID: "call-1", Function: openai.ChatCompletionChunkChoiceDeltaToolCallFunction{Name: "first"}},
		}},
	}}})

	resp := p.finalize()
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "first", resp.ToolCalls[0].Name)
	assert.Equal(t, "second", resp.ToolCalls[1].Name)
}
