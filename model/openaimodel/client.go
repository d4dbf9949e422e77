// Package openaimodel implements model.Adapter against the OpenAI Chat
// Completions API using github.com/openai/openai-go. It mirrors the
// structure of model/anthropicmodel: a thin interface over the SDK client so
// tests can substitute a fake, and a chunk processor that folds streamed
// deltas into the shared model.Chunk sequence.
package openaimodel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	agentmodel "github.com/arrowctl/agentrun/model"
)

// ChatClient captures the subset of the OpenAI SDK client the adapter
// depends on.
type ChatClient interface {
	NewStreaming(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk]
}

// Options configures defaults used when a model.Request under-specifies
// them.
type Options struct {
	// DefaultMaxTokens caps completion length when Request.MaxTokens is zero.
	DefaultMaxTokens int
}

// Adapter implements model.Adapter on top of OpenAI Chat Completions.
type Adapter struct {
	chat ChatClient
	opts Options
}

// New builds an Adapter from an OpenAI chat completions client.
func New(chat ChatClient, opts Options) (*Adapter, error) {
	if chat == nil {
		return nil, errors.New("openaimodel: client is required")
	}
	return &Adapter{chat: chat, opts: opts}, nil
}

// NewFromAPIKey constructs an Adapter using the SDK's default HTTP client
// configured with apiKey.
func NewFromAPIKey(apiKey string, opts Options) (*Adapter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openaimodel: api key is required")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return New(client.Chat.Completions, opts)
}

// MaxOutputTokens implements model.Adapter. The SDK does not expose a
// per-model ceiling, so the adapter reports its configured default.
func (a *Adapter) MaxOutputTokens(string) int {
	return a.opts.DefaultMaxTokens
}

// Stream implements model.Adapter.
func (a *Adapter) Stream(ctx context.Context, req agentmodel.Request) (iter.Seq2[agentmodel.Chunk, error], error) {
	params, err := a.buildParams(req)
	if err != nil {
		return nil, err
	}
	sdkStream := a.chat.NewStreaming(ctx, params)
	if err := sdkStream.Err(); err != nil {
		return nil, fmt.Errorf("openaimodel: start stream: %w", err)
	}
	return func(yield func(agentmodel.Chunk, error) bool) {
		defer func() { _ = sdkStream.Close() }()
		proc := newChunkProcessor()
		for sdkStream.Next() {
			select {
			case <-ctx.Done():
				yield(agentmodel.Chunk{}, ctx.Err())
				return
			default:
			}
			chunks := proc.handle(sdkStream.Current())
			for _, c := range chunks {
				if !yield(c, nil) {
					return
				}
			}
		}
		if err := sdkStream.Err(); err != nil {
			yield(agentmodel.Chunk{}, fmt.Errorf("openaimodel: stream: %w", err))
			return
		}
		if resp := proc.finalize(); resp != nil {
			yield(agentmodel.Chunk{Type: agentmodel.ChunkResponse, Response: resp}, nil)
		}
	}, nil
}

func (a *Adapter) buildParams(req agentmodel.Request) (openai.ChatCompletionNewParams, error) {
	if req.Model == "" {
		return openai.ChatCompletionNewParams{}, errors.New("openaimodel: model identifier is required")
	}
	if len(req.Messages) == 0 && req.SystemPrompt == "" {
		return openai.ChatCompletionNewParams{}, errors.New("openaimodel: messages are required")
	}
	messages, err := encodeMessages(req.SystemPrompt, req.Messages)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.opts.DefaultMaxTokens
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = openai.Float(*req.TopP)
	}
	if len(req.Tools) > 0 {
		params.Tools = encodeTools(req.Tools)
	}
	return params, nil
}

// encodeMessages renders the assembler's message list as Chat Completions
// message params. Block-shaped content produced by runtime/runner (tool_use
// / tool_result maps) is translated into assistant tool_calls and tool role
// messages respectively; plain strings become ordinary user/assistant turns.
func encodeMessages(systemPrompt string, msgs []agentmodel.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if systemPrompt != "" {
		out = append(out, openai.SystemMessage(systemPrompt))
	}
	for _, m := range msgs {
		switch m.Role {
		case "user":
			text, ok := m.Content.(string)
			if !ok {
				return nil, fmt.Errorf("openaimodel: user message content must be text, got %T", m.Content)
			}
			out = append(out, openai.UserMessage(text))
		case "assistant":
			text, _ := m.Content.(string)
			out = append(out, openai.AssistantMessage(text))
		case "tool_call":
			calls, err := toolCallsFromBlocks(m.Content)
			if err != nil {
				return nil, err
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{ToolCalls: calls},
			})
		case "tool_result":
			msgs, err := toolResultsFromBlocks(m.Content)
			if err != nil {
				return nil, err
			}
			out = append(out, msgs...)
		default:
			return nil, fmt.Errorf("openaimodel: unsupported message role %q", m.Role)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("openaimodel: at least one message is required")
	}
	return out, nil
}

func toolCallsFromBlocks(content any) ([]openai.ChatCompletionMessageToolCallParam, error) {
	blocks, ok := content.([]any)
	if !ok {
		return nil, fmt.Errorf("openaimodel: tool_call message content must be a block list, got %T", content)
	}
	out := make([]openai.ChatCompletionMessageToolCallParam, 0, len(blocks))
	for _, raw := range blocks {
		block, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("openaimodel: unsupported tool_call block %T", raw)
		}
		id, _ := block["id"].(string)
		name, _ := block["name"].(string)
		args, err := json.Marshal(block["input"])
		if err != nil {
			return nil, fmt.Errorf("openaimodel: marshal tool arguments: %w", err)
		}
		out = append(out, openai.ChatCompletionMessageToolCallParam{
			ID: id,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      name,
				Arguments: string(args),
			},
		})
	}
	return out, nil
}

func toolResultsFromBlocks(content any) ([]openai.ChatCompletionMessageParamUnion, error) {
	blocks, ok := content.([]any)
	if !ok {
		return nil, fmt.Errorf("openaimodel: tool_result message content must be a block list, got %T", content)
	}
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(blocks))
	for _, raw := range blocks {
		block, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("openaimodel: unsupported tool_result block %T", raw)
		}
		id, _ := block["tool_use_id"].(string)
		out = append(out, openai.ToolMessage(renderToolResultContent(block["content"]), id))
	}
	return out, nil
}

func renderToolResultContent(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	default:
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Sprintf("%v", c)
		}
		return string(data)
	}
}

func encodeTools(specs []agentmodel.ToolSpec) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, s := range specs {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        s.Name,
				Description: openai.String(s.Description),
				Parameters:  openai.FunctionParameters(s.Schema),
			},
		})
	}
	return out
}
