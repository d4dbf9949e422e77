// Package truncate implements the three context-window truncation
// strategies: simple, pair-preserving, and sliding.
package truncate

import (
	"github.com/arrowctl/agentrun/context/transform"
	"github.com/arrowctl/agentrun/model"
)

// Strategy names a truncation algorithm.
type Strategy string

const (
	StrategySimple         Strategy = "simple"
	StrategyPairPreserving Strategy = "pair-preserving"
	StrategySliding        Strategy = "sliding"
)

// Input bundles everything a strategy needs to compute a truncated message
// list and its budget accounting.
type Input struct {
	Messages           []model.Message
	Strategy           Strategy
	MaxTokens          int
	ReserveTokens      int
	SystemPromptTokens int
	ToolsTokens        int
	// Estimate computes a single message's token cost. Callers typically
	// supply a closure over estimator.Message + estimator.Text for the
	// message's content shape.
	Estimate func(model.Message) int
}

// Report summarizes what a truncation pass did.
type Report struct {
	RemovedCount   int
	RemovedTokens  int
	OriginalTokens int
	FinalTokens    int
}

// Result is the truncated message list plus its Report.
type Result struct {
	Messages []model.Message
	Report   Report
}

// Budget computes the available token budget for messages:
// maxTokens - systemPromptTokens - toolsTokens - reserveTokens.
func (in Input) Budget() int {
	return in.MaxTokens - in.SystemPromptTokens - in.ToolsTokens - in.ReserveTokens
}

// Run dispatches to the configured strategy.
func Run(in Input) Result {
	switch in.Strategy {
	case StrategyPairPreserving:
		return pairPreserving(in)
	case StrategySliding:
		return sliding(in)
	default:
		return simple(in)
	}
}

func totalTokens(messages []model.Message, estimate func(model.Message) int) int {
	total := 0
	for _, m := range messages {
		total += estimate(m)
	}
	return total
}

// simple drops oldest messages one-by-one until total <= budget, always
// keeping at least one message.
func simple(in Input) Result {
	budget := in.Budget()
	messages := append([]model.Message(nil), in.Messages...)
	original := totalTokens(messages, in.Estimate)
	removed := 0
	removedTokens := 0

	for len(messages) > 1 && totalTokens(messages, in.Estimate) > budget {
		removedTokens += in.Estimate(messages[0])
		messages = messages[1:]
		removed++
	}
	return Result{
		Messages: messages,
		Report: Report{
			RemovedCount:   removed,
			RemovedTokens:  removedTokens,
			OriginalTokens: original,
			FinalTokens:    totalTokens(messages, in.Estimate),
		},
	}
}

// pairPreserving drops unpaired messages oldest-first, the same direction
// simple removes in, skipping any message that is half of a tool-call/
// tool-result pair so a call is never separated from its result.
func pairPreserving(in Input) Result {
	messages := append([]model.Message(nil), in.Messages...)
	original := totalTokens(messages, in.Estimate)
	pairedIDs := toolPairIDs(messages)

	removed := 0
	removedTokens := 0
	for totalTokens(messages, in.Estimate) > in.Budget() && len(messages) > 1 {
		idx := -1
		for i, m := range messages {
			if !messageIsPaired(m, pairedIDs) {
				idx = i
				break
			}
		}
		if idx == -1 {
			break
		}
		removedTokens += in.Estimate(messages[idx])
		messages = append(messages[:idx], messages[idx+1:]...)
		removed++
	}

	return Result{
		Messages: messages,
		Report: Report{
			RemovedCount:   removed,
			RemovedTokens:  removedTokens,
			OriginalTokens: original,
			FinalTokens:    totalTokens(messages, in.Estimate),
		},
	}
}

// toolPairIDs collects every tool-call-id that appears as either a tool-use
// block or a tool-result block, so pairPreserving can recognize members of a
// call/result pair regardless of which side it's looking at.
func toolPairIDs(messages []model.Message) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, m := range messages {
		for _, c := range transform.ExtractToolUse(m.Content) {
			if id, _ := c["id"].(string); id != "" {
				ids[id] = struct{}{}
			}
		}
		for _, r := range transform.ExtractToolResult(m.Content) {
			if id, _ := r["tool_call_id"].(string); id != "" {
				ids[id] = struct{}{}
			}
		}
	}
	return ids
}

func messageIsPaired(m model.Message, pairedIDs map[string]struct{}) bool {
	for _, c := range transform.ExtractToolUse(m.Content) {
		if id, _ := c["id"].(string); id != "" {
			if _, ok := pairedIDs[id]; ok {
				return true
			}
		}
	}
	for _, r := range transform.ExtractToolResult(m.Content) {
		if id, _ := r["tool_call_id"].(string); id != "" {
			if _, ok := pairedIDs[id]; ok {
				return true
			}
		}
	}
	return false
}

// sliding iterates newest-to-oldest, prepending messages while the running
// total stays within budget, and stops at the first message that would
// overflow it.
func sliding(in Input) Result {
	messages := in.Messages
	original := totalTokens(messages, in.Estimate)

	kept := make([]model.Message, 0, len(messages))
	total := 0
	stoppedAt := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		cost := in.Estimate(messages[i])
		if total+cost > in.Budget() && len(kept) > 0 {
			stoppedAt = i + 1
			break
		}
		kept = append([]model.Message{messages[i]}, kept...)
		total += cost
		stoppedAt = i
	}

	removed := stoppedAt
	removedTokens := original - total
	return Result{
		Messages: kept,
		Report: Report{
			RemovedCount:   removed,
			RemovedTokens:  removedTokens,
			OriginalTokens: original,
			FinalTokens:    total,
		},
	}
}
