// Package model defines the ModelAdapter contract that lets the runner drive
// any provider's chat-completion stream through a single interface.
package model

import (
	"context"
	"iter"

	"github.com/arrowctl/agentrun/runtime/cancelctl"
)

// Message is a single role-tagged entry in a model-facing conversation,
// already shaped by context/transform (role merging, alternation).
type Message struct {
	Role    string
	Content any
}

// ToolSpec describes a tool the model may call.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Request bundles everything a provider needs to start a streamed
// completion.
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Tools        []ToolSpec
	Temperature  *float64
	TopP         *float64
	TopK         *int
	MaxTokens    int
	Signal       cancelctl.Signal
}

// ChunkType discriminates the kind of data carried by a Chunk.
type ChunkType string

const (
	ChunkContent  ChunkType = "content"
	ChunkThinking ChunkType = "thinking"
	ChunkResponse ChunkType = "response"
)

// ToolCall is a single tool invocation requested by a finalized response.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Usage reports token accounting for a completed model call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the finalized payload carried by a ChunkResponse chunk.
type Response struct {
	ID           string
	Content      string
	FinishReason string
	Usage        *Usage
	ToolCalls    []ToolCall
}

// Chunk is one element of a model's streamed output. Exactly one of Delta or
// Response is populated, matching Type.
type Chunk struct {
	Type     ChunkType
	Delta    string
	Response *Response
}

// Adapter streams a chat completion from a specific provider/model.
// Implementations must stop promptly once Request.Signal fires.
type Adapter interface {
	Stream(ctx context.Context, req Request) (iter.Seq2[Chunk, error], error)
	// MaxOutputTokens reports the provider's output token ceiling for model,
	// used by the defaults resolver to cap maxTokens.
	MaxOutputTokens(model string) int
}
