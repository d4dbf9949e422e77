// Package defaults resolves per-run model parameters through four layered
// sources, later layers winning: system, agent, session, request.
package defaults

import (
	"errors"

	"github.com/arrowctl/agentrun/session"
)

// ErrMissingModelID is returned by Resolve when no layer supplies modelId.
var ErrMissingModelID = errors.New("defaults: modelId is required")

// Params is the set of resolvable model-call parameters.
type Params struct {
	ModelID        string
	Temperature    *float64
	TopP           *float64
	TopK           *int
	MaxTokens      *int
	ThinkingBudget *int
}

// System holds operator-configured baseline defaults.
type System struct {
	Params
}

// Request carries caller-supplied overrides for a single run.
type Request struct {
	Params
}

// merge overlays non-nil/non-empty fields from b onto a, returning the
// result. Later layers always win for any field they set.
func merge(a, b Params) Params {
	if b.ModelID != "" {
		a.ModelID = b.ModelID
	}
	if b.Temperature != nil {
		a.Temperature = b.Temperature
	}
	if b.TopP != nil {
		a.TopP = b.TopP
	}
	if b.TopK != nil {
		a.TopK = b.TopK
	}
	if b.MaxTokens != nil {
		a.MaxTokens = b.MaxTokens
	}
	if b.ThinkingBudget != nil {
		a.ThinkingBudget = b.ThinkingBudget
	}
	return a
}

// agentKeys names the session-metadata keys carrying agent-level defaults,
// tagged with a "default" prefix per spec. sessionKeys names the plain
// session-level default keys.
var (
	agentKeys = map[string]string{
		"modelID": "defaultModelId", "temperature": "defaultTemperature", "topP": "defaultTopP",
		"topK": "defaultTopK", "maxTokens": "defaultMaxTokens", "thinkingBudget": "defaultThinkingBudget",
	}
	sessionKeys = map[string]string{
		"modelID": "modelId", "temperature": "temperature", "topP": "topP",
		"topK": "topK", "maxTokens": "maxTokens", "thinkingBudget": "thinkingBudget",
	}
)

// fromMetadata extracts Params fields from session metadata using the given
// field-name -> metadata-key mapping, ignoring keys of the wrong type.
func fromMetadata(meta session.Metadata, keys map[string]string) Params {
	var p Params
	if v, ok := meta[keys["modelID"]].(string); ok {
		p.ModelID = v
	}
	if v, ok := asFloat(meta[keys["temperature"]]); ok {
		p.Temperature = &v
	}
	if v, ok := asFloat(meta[keys["topP"]]); ok {
		p.TopP = &v
	}
	if v, ok := asInt(meta[keys["topK"]]); ok {
		p.TopK = &v
	}
	if v, ok := asInt(meta[keys["maxTokens"]]); ok {
		p.MaxTokens = &v
	}
	if v, ok := asInt(meta[keys["thinkingBudget"]]); ok {
		p.ThinkingBudget = &v
	}
	return p
}

func asFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Resolve layers system < agent (session metadata keys prefixed "default")
// < session (unprefixed session metadata) < request, then clamps numeric
// constraints and caps maxTokens at maxOutputTokens. It fails hard if no
// layer ultimately supplies a modelId.
func Resolve(sys System, sessionMeta session.Metadata, req Request, maxOutputTokens int) (Params, error) {
	result := sys.Params
	result = merge(result, fromMetadata(sessionMeta, agentKeys))
	result = merge(result, fromMetadata(sessionMeta, sessionKeys))
	result = merge(result, req.Params)

	if result.ModelID == "" {
		return Params{}, ErrMissingModelID
	}

	clamp(&result, maxOutputTokens)
	return result, nil
}

func clamp(p *Params, maxOutputTokens int) {
	if p.Temperature != nil {
		*p.Temperature = clampFloat(*p.Temperature, 0, 1)
	}
	if p.TopP != nil {
		*p.TopP = clampFloat(*p.TopP, 0, 1)
	}
	if p.TopK != nil && *p.TopK < 0 {
		*p.TopK = 0
	}
	if p.ThinkingBudget != nil && *p.ThinkingBudget < 0 {
		*p.ThinkingBudget = 0
	}
	if p.MaxTokens != nil {
		if *p.MaxTokens < 0 {
			*p.MaxTokens = 0
		}
		if maxOutputTokens > 0 && *p.MaxTokens > maxOutputTokens {
			*p.MaxTokens = maxOutputTokens
		}
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
