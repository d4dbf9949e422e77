package anthropicmodel

import (
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/arrowctl/agentrun/model"
)

// chunkProcessor accumulates one Anthropic streaming response into the
// model.Chunk sequence the Adapter yields: content/thinking deltas as they
// arrive, followed by exactly one ChunkResponse once the message completes.
type chunkProcessor struct {
	content strings.Builder
	usage   *model.Usage
	stop    string

	toolBlocks map[int]*toolBuffer
	toolOrder  []int
}

type toolBuffer struct {
	id        string
	name      string
	fragments []string
}

func newChunkProcessor() *chunkProcessor {
	return &chunkProcessor{toolBlocks: make(map[int]*toolBuffer)}
}

// handle translates one SSE event into zero or more model.Chunks. A
// MessageStopEvent always yields the final ChunkResponse.
func (p *chunkProcessor) handle(event sdk.MessageStreamEventUnion) ([]model.Chunk, error) {
	switch ev := event.AsAny().(type) {
	case sdk.ContentBlockStartEvent:
		idx := int(ev.Index)
		if toolUse, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
			if toolUse.ID == "" {
				return nil, fmt.Errorf("anthropicmodel: tool_use block missing id")
			}
			p.toolBlocks[idx] = &toolBuffer{id: toolUse.ID, name: toolUse.Name}
			p.toolOrder = append(p.toolOrder, idx)
		}
		return nil, nil
	case sdk.ContentBlockDeltaEvent:
		idx := int(ev.Index)
		switch delta := ev.Delta.AsAny().(type) {
		case sdk.TextDelta:
			if delta.Text == "" {
				return nil, nil
			}
			p.content.WriteString(delta.Text)
			return []model.Chunk{{Type: model.ChunkContent, Delta: delta.Text}}, nil
		case sdk.ThinkingDelta:
			if delta.Thinking == "" {
				return nil, nil
			}
			return []model.Chunk{{Type: model.ChunkThinking, Delta: delta.Thinking}}, nil
		case sdk.InputJSONDelta:
			if tb := p.toolBlocks[idx]; tb != nil && delta.PartialJSON != "" {
				tb.fragments = append(tb.fragments, delta.PartialJSON)
			}
			return nil, nil
		default:
			return nil, nil
		}
	case sdk.MessageDeltaEvent:
		p.stop = string(ev.Delta.StopReason)
		p.usage = &model.Usage{
			InputTokens:  int(ev.Usage.InputTokens),
			OutputTokens: int(ev.Usage.OutputTokens),
		}
		return nil, nil
	case sdk.MessageStopEvent:
		resp := &model.Response{
			Content:      p.content.String(),
			FinishReason: p.stop,
			Usage:        p.usage,
			ToolCalls:    p.finalizeToolCalls(),
		}
		return []model.Chunk{{Type: model.ChunkResponse, Response: resp}}, nil
	default:
		return nil, nil
	}
}

func (p *chunkProcessor) finalizeToolCalls() []model.ToolCall {
	if len(p.toolOrder) == 0 {
		return nil
	}
	out := make([]model.ToolCall, 0, len(p.toolOrder))
	for _, idx := range p.toolOrder {
		tb := p.toolBlocks[idx]
		out = append(out, model.ToolCall{
			ID:        tb.id,
			Name:      tb.name,
			Arguments: decodeArguments(strings.Join(tb.fragments, "")),
		})
	}
	return out
}

// decodeArguments parses a tool_use block's accumulated input_json_delta
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
