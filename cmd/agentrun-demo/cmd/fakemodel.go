package cmd

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/arrowctl/agentrun/model"
)

// scriptedModel is a deterministic model.Adapter that replays one of the
// scripted scenarios from the orchestration spec instead of calling a real
// provider. It never touches the network, so the demo binary runs offline by
// default.
type scriptedModel struct {
	scenario string
	turn     int32
}

func (m *scriptedModel) MaxOutputTokens(string) int { return 4096 }

func (m *scriptedModel) Stream(_ context.Context, _ model.Request) (iter.Seq2[model.Chunk, error], error) {
	turn := int(atomic.AddInt32(&m.turn, 1)) - 1

	switch m.scenario {
	case "s5":
		return m.s5Stream(turn), nil
	case "s6":
		return m.s6Stream(turn), nil
	default:
		return m.s1Stream(), nil
	}
}

// s1Stream replays spec S1: two content deltas then a finished response.
func (m *scriptedModel) s1Stream() iter.Seq2[model.Chunk, error] {
	return func(yield func(model.Chunk, error) bool) {
		if !yield(model.Chunk{Type: model.ChunkContent, Delta: "he"}, nil) {
			return
		}
		if !yield(model.Chunk{Type: model.ChunkContent, Delta: "llo"}, nil) {
			return
		}
		yield(model.Chunk{Type: model.ChunkResponse, Response: &model.Response{
			Content:      "hello",
			FinishReason: "stop",
		}}, nil)
	}
}

// s5Stream replays spec S5: a tool call on the first turn, then a final
// answer built from the tool's result on the second.
func (m *scriptedModel) s5Stream(turn int) iter.Seq2[model.Chunk, error] {
	return func(yield func(model.Chunk, error) bool) {
		if turn == 0 {
			yield(model.Chunk{Type: model.ChunkResponse, Response: &model.Response{
				FinishReason: "tool_use",
				ToolCalls:    []model.ToolCall{{ID: "t1", Name: "add", Arguments: map[string]any{"a": 1.0, "b": 2.0}}},
			}}, nil)
			return
		}
		if !yield(model.Chunk{Type: model.ChunkContent, Delta: "3"}, nil) {
			return
		}
		yield(model.Chunk{Type: model.ChunkResponse, Response: &model.Response{
			Content:      "3",
			FinishReason: "stop",
		}}, nil)
	}
}

// s6Stream replays spec S6: the model always asks for another tool call, so
// the run only terminates once the driver's turn budget is exhausted.
func (m *scriptedModel) s6Stream(turn int) iter.Seq2[model.Chunk, error] {
	return func(yield func(model.Chunk, error) bool) {
		yield(model.Chunk{Type: model.ChunkResponse, Response: &model.Response{
			FinishReason: "tool_use",
			ToolCalls: []model.ToolCall{{
				ID:        fmt.Sprintf("t%d", turn),
				Name:      "add",
				Arguments: map[string]any{"a": float64(turn), "b": 1.0},
			}},
		}}, nil)
	}
}
