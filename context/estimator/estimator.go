// Package estimator provides heuristic token counting for text, images,
// tool-use/tool-result blocks, messages, system prompts, and tool lists. A
// caller may substitute an exact tokenizer behind the same signatures.
package estimator

import (
	"encoding/json"
	"unicode"
)

// scriptRatio is the characters-per-token ratio for a script class.
type scriptRatio struct {
	charsPerToken float64
}

var (
	latin    = scriptRatio{4}
	cyrillic = scriptRatio{2.5}
	cjk      = scriptRatio{1.5}
)

// classify buckets a rune into one of the three script ratio classes used by
// the estimator.
func classify(r rune) scriptRatio {
	switch {
	case unicode.Is(unicode.Cyrillic, r):
		return cyrillic
	case unicode.Is(unicode.Han, r), unicode.Is(unicode.Hiragana, r), unicode.Is(unicode.Katakana, r), unicode.Is(unicode.Hangul, r):
		return cjk
	default:
		return latin
	}
}

// Text estimates the token count of s by classifying each rune into a
// script bucket and summing fractional token costs at that bucket's
// characters-per-token ratio.
func Text(s string) int {
	if s == "" {
		return 0
	}
	var total float64
	for _, r := range s {
		ratio := classify(r)
		total += 1 / ratio.charsPerToken
	}
	tokens := int(total + 0.999999) // round up: partial tokens still cost a token
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// ImageBand returns the fixed token cost for an image payload of the given
// raw byte length.
func ImageBand(rawLen int) int {
	switch {
	case rawLen <= 10*1024:
		return 85
	case rawLen <= 50*1024:
		return 170
	default:
		return 255
	}
}

// ToolUse estimates a tool-use (tool-call) content block: the tool name, its
// serialized arguments, plus fixed overhead.
func ToolUse(name string, arguments any) int {
	serialized, _ := json.Marshal(arguments)
	return Text(name) + Text(string(serialized)) + 5
}

// ToolResult estimates a tool-result content block: its textual content
// plus fixed overhead.
func ToolResult(content string) int {
	return Text(content) + 5
}

// Message estimates a full message: a fixed role cost, the content cost
// (contentTokens, already computed by the caller for whatever content shape
// the message carries), and message overhead.
func Message(contentTokens int) int {
	return 1 + contentTokens + 4
}

// SystemPrompt estimates a system prompt block: its content plus overhead.
func SystemPrompt(content string) int {
	return Text(content) + 10
}

// ToolSpec is the minimal shape estimator.ToolsTotal needs from a tool
// definition: its name and schema, both serialized for the cost estimate.
type ToolSpec struct {
	Name   string
	Schema any
}

// ToolsTotal estimates the combined cost of a tool list: the sum of each
// tool's name+schema estimate, plus a fixed 20-token overhead when the list
// is non-empty.
func ToolsTotal(tools []ToolSpec) int {
	if len(tools) == 0 {
		return 0
	}
	total := 20
	for _, t := range tools {
		serialized, _ := json.Marshal(t.Schema)
		total += Text(t.Name) + Text(string(serialized))
	}
	return total
}
