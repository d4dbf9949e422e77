// Package anthropicmodel implements model.Adapter against the Anthropic
// Claude Messages API using github.com/anthropics/anthropic-sdk-go. It
// translates generic model.Request/Response shapes into SDK calls and
// streams back model.Chunk values through a range-over-func iterator.
package anthropicmodel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/arrowctl/agentrun/model"
)

// MessagesClient captures the subset of the Anthropic SDK client the
// adapter depends on, so tests can substitute a fake in place of
// *sdk.MessageService.
type MessagesClient interface {
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Options configures defaults used when a model.Request under-specifies
// them.
type Options struct {
	// DefaultMaxTokens caps completion length when Request.MaxTokens is zero.
	DefaultMaxTokens int
	// DefaultTemperature is used when Request.Temperature is nil.
	DefaultTemperature float64
}

// Adapter implements model.Adapter on top of Anthropic Claude Messages.
type Adapter struct {
	msg  MessagesClient
	opts Options
}

// New builds an Adapter from an Anthropic Messages client.
func New(msg MessagesClient, opts Options) (*Adapter, error) {
	if msg == nil {
		return nil, errors.New("anthropicmodel: client is required")
	}
	return &Adapter{msg: msg, opts: opts}, nil
}

// NewFromAPIKey constructs an Adapter using the SDK's default HTTP client
// configured with apiKey.
func NewFromAPIKey(apiKey string, opts Options) (*Adapter, error) {
	if apiKey == "" {
		return nil, errors.New("anthropicmodel: api key is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&client.Messages, opts)
}

// MaxOutputTokens implements model.Adapter. Anthropic does not expose a
// per-model ceiling through the SDK, so the adapter reports its configured
// default; an empty Options.DefaultMaxTokens means no ceiling is known.
func (a *Adapter) MaxOutputTokens(string) int {
	return a.opts.DefaultMaxTokens
}

// Stream implements model.Adapter.
func (a *Adapter) Stream(ctx context.Context, req model.Request) (iter.Seq2[model.Chunk, error], error) {
	params, err := a.buildParams(req)
	if err != nil {
		return nil, err
	}
	sdkStream := a.msg.NewStreaming(ctx, params)
	if err := sdkStream.Err(); err != nil {
		return nil, fmt.Errorf("anthropicmodel: start stream: %w", err)
	}
	return func(yield func(model.Chunk, error) bool) {
		defer func() { _ = sdkStream.Close() }()
		proc := newChunkProcessor()
		for sdkStream.Next() {
			select {
			case <-ctx.Done():
				yield(model.Chunk{}, ctx.Err())
				return
			default:
			}
			chunks, err := proc.handle(sdkStream.Current())
			if err != nil {
				yield(model.Chunk{}, err)
				return
			}
			for _, c := range chunks {
				if !yield(c, nil) {
					return
				}
			}
		}
		if err := sdkStream.Err(); err != nil {
			yield(model.Chunk{}, fmt.Errorf("anthropicmodel: stream: %w", err))
		}
	}, nil
}

func (a *Adapter) buildParams(req model.Request) (sdk.MessageNewParams, error) {
	if req.Model == "" {
		return sdk.MessageNewParams{}, errors.New("anthropicmodel: model identifier is required")
	}
	if len(req.Messages) == 0 {
		return sdk.MessageNewParams{}, errors.New("anthropicmodel: messages are required")
	}
	msgs, err := encodeMessages(req.Messages)
	if err != nil {
		return sdk.MessageNewParams{}, err
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.opts.DefaultMaxTokens
	}
	if maxTokens <= 0 {
		return sdk.MessageNewParams{}, errors.New("anthropicmodel: max tokens must be positive")
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if temp := effectiveTemperature(req.Temperature, a.opts.DefaultTemperature); temp > 0 {
		params.Temperature = sdk.Float(temp)
	}
	if req.TopP != nil {
		params.TopP = sdk.Float(*req.TopP)
	}
	if req.TopK != nil {
		params.TopK = sdk.Int(int64(*req.TopK))
	}
	if len(req.Tools) > 0 {
		params.Tools = encodeTools(req.Tools)
	}
	return params, nil
}

func effectiveTemperature(requested *float64, fallback float64) float64 {
	if requested != nil {
		return *requested
	}
	return fallback
}

// encodeMessages renders the assembler's already-merged, alternating
// message list as Anthropic message params. Block-shaped content (tool_use
// / tool_result maps produced by runtime/runner) is decoded back into typed
// content blocks; plain strings become a single text block.
func encodeMessages(msgs []model.Message) ([]sdk.MessageParam, error) {
	out := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		blocks, err := encodeContent(m.Content)
		if err != nil {
			return nil, err
		}
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case "user", "tool_result":
			out = append(out, sdk.NewUserMessage(blocks...))
		case "assistant", "tool_call":
			out = append(out, sdk.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("anthropicmodel: unsupported message role %q", m.Role)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("anthropicmodel: at least one message is required")
	}
	return out, nil
}

func encodeContent(content any) ([]sdk.ContentBlockParamUnion, error) {
	switch v := content.(type) {
	case string:
		if v == "" {
			return nil, nil
		}
		return []sdk.ContentBlockParamUnion{sdk.NewTextBlock(v)}, nil
	case []any:
		blocks := make([]sdk.ContentBlockParamUnion, 0, len(v))
		for _, raw := range v {
			block, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("anthropicmodel: unsupported content block %T", raw)
			}
			encoded, err := encodeBlock(block)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, encoded)
		}
		return blocks, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("anthropicmodel: unsupported message content %T", content)
	}
}

func encodeBlock(block map[string]any) (sdk.ContentBlockParamUnion, error) {
	switch block["type"] {
	case "tool_use":
		id, _ := block["id"].(string)
		name, _ := block["name"].(string)
		return sdk.NewToolUseBlock(id, block["input"], name), nil
	case "tool_result":
		id, _ := block["tool_use_id"].(string)
		isError, _ := block["is_error"].(bool)
		content := renderToolResultContent(block["content"])
		return sdk.NewToolResultBlock(id, content, isError), nil
	default:
		return sdk.ContentBlockParamUnion{}, fmt.Errorf("anthropicmodel: unsupported content block type %v", block["type"])
	}
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

func encodeTools(specs []model.ToolSpec) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(specs))
	for _, s := range specs {
		u := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{ExtraFields: s.Schema}, s.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(s.Description)
		}
		out = append(out, u)
	}
	return out
}
