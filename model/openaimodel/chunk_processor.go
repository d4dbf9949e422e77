package openaimodel

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/openai/openai-go"

	agentmodel "github.com/arrowctl/agentrun/model"
)

// chunkProcessor accumulates one Chat Completions stream into the
// model.Chunk sequence the Adapter yields: content deltas as they arrive,
// followed by exactly one ChunkResponse once the stream ends.
type chunkProcessor struct {
	content strings.Builder
	finish  string
	usage   *agentmodel.Usage

	toolCalls map[int64]*toolCallBuffer
}

type toolCallBuffer struct {
	id   string
	name string
	args strings.Builder
}

func newChunkProcessor() *chunkProcessor {
	return &chunkProcessor{toolCalls: make(map[int64]*toolCallBuffer)}
}

// handle translates one streamed chunk into zero or more model.Chunks.
// Tool call fragments and usage are accumulated silently; only content
// deltas are surfaced immediately.
func (p *chunkProcessor) handle(chunk openai.ChatCompletionChunk) []agentmodel.Chunk {
	if chunk.Usage.TotalTokens > 0 {
		p.usage = &agentmodel.Usage{
			InputTokens:  int(chunk.Usage.PromptTokens),
			OutputTokens: int(chunk.Usage.CompletionTokens),
		}
	}

	var out []agentmodel.Chunk
	for _, choice := range chunk.Choices {
		if choice.FinishReason != "" {
			p.finish = choice.FinishReason
		}
		if choice.Delta.Content != "" {
			p.content.WriteString(choice.Delta.Content)
			out = append(out, agentmodel.Chunk{Type: agentmodel.ChunkContent, Delta: choice.Delta.Content})
		}
		for _, tc := range choice.Delta.ToolCalls {
			buf, ok := p.toolCalls[tc.Index]
			if !ok {
				buf = &toolCallBuffer{}
				p.toolCalls[tc.Index] = buf
			}
			if tc.ID != "" {
				buf.id = tc.ID
			}
			if tc.Function.Name != "" {
				buf.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				buf.args.WriteString(tc.Function.Arguments)
			}
		}
	}
	return out
}

// finalize builds the terminal model.Response once the stream has ended.
func (p *chunkProcessor) finalize() *agentmodel.Response {
	return &agentmodel.Response{
		Content:      p.content.String(),
		FinishReason: p.finish,
		Usage:        p.usage,
		ToolCalls:    p.finalizeToolCalls(),
	}
}

func (p *chunkProcessor) finalizeToolCalls() []agentmodel.ToolCall {
	if len(p.toolCalls) == 0 {
		return nil
	}
	indexes := make([]int64, 0, len(p.toolCalls))
	for idx := range p.toolCalls {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	out := make([]agentmodel.ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		buf := p.toolCalls[idx]
		out = append(out, agentmodel.ToolCall{
			ID:        buf.id,
			Name:      buf.name,
			Arguments: decodeArguments(buf.args.String()),
		})
	}
	return out
}

// decodeArguments parses a tool call's accumulated function.arguments
// fragments. An empty or malformed payload decodes to an empty argument map
// rather than failing the whole response.
func decodeArguments(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{}
	}
	return out
}
