// Package assembler drives the full per-turn context-assembly pipeline:
// parameter resolution, prompt composition, message transformation, tool
// collection, truncation, compaction detection, and caching.
package assembler

import (
	"context"
	"time"

	"github.com/arrowctl/agentrun/context/assemblycache"
	"github.com/arrowctl/agentrun/context/compaction"
	"github.com/arrowctl/agentrun/context/defaults"
	"github.com/arrowctl/agentrun/context/estimator"
	"github.com/arrowctl/agentrun/context/prompt"
	"github.com/arrowctl/agentrun/context/toolcollect"
	"github.com/arrowctl/agentrun/context/transform"
	"github.com/arrowctl/agentrun/context/truncate"
	"github.com/arrowctl/agentrun/model"
	"github.com/arrowctl/agentrun/session"
)

// BootstrapProvider supplies agent-identity prompt sections and the active
// skills for a session, independent of the session store itself.
type BootstrapProvider interface {
	BootstrapSections(ctx context.Context, agentID string) ([]prompt.Section, error)
	ActiveSkills(ctx context.Context, sessionID, agentID string) ([]prompt.Skill, error)
}

// ModelLimits reports provider-specific bounds used during assembly.
type ModelLimits interface {
	MaxContextTokens(modelID string) int
	MaxOutputTokens(modelID string) int
}

// Metadata describes per-slot token accounting, truncation outcome, and
// compaction advice attached to an AssembledContext.
type Metadata struct {
	SystemPromptTokens int
	ToolsTokens        int
	MessageTokens      int
	Truncation         truncate.Report
	Compaction         compaction.Check
	ActiveSkillIDs     []string
}

// AssembledContext is the immutable result of one assembly call.
type AssembledContext struct {
	SystemPrompt string
	Messages     []model.Message
	Tools        []toolcollect.Tool
	Parameters   defaults.Params
	Metadata     Metadata
}

// Request bundles one call's identity and per-request overrides.
type Request struct {
	SessionID            string
	AgentID              string
	Overrides            defaults.Request
	AdditionalTools      []toolcollect.Tool
	SandboxMode          toolcollect.SandboxMode
	Permissions          []string
	ExcludeTools         []string
	Strategy             truncate.Strategy
	MaxContextTokens     int
	ReserveTokens        int
	CompactionThresholds compaction.Thresholds
}

// Assembler wires the session store, tool executor, model limits, bootstrap
// provider, and cache together to produce an AssembledContext per call.
type Assembler struct {
	sessions    session.Store
	toolSrc     ToolSource
	limits      ModelLimits
	bootstrap   BootstrapProvider
	cache       *assemblycache.Cache
	sysDefaults defaults.System
	separator   string
}

// ToolSource supplies the executor-provided tool list merged by the
// collector alongside per-skill and caller-supplied tools.
type ToolSource interface {
	Tools(ctx context.Context, sessionID string) ([]toolcollect.Tool, error)
}

// New constructs an Assembler. cacheTTL <= 0 gives cache entries no
// lifetime: each result is still written to the cache but is already
// expired, so later calls recompute it.
func New(sessions session.Store, toolSrc ToolSource, limits ModelLimits, bootstrap BootstrapProvider, sysDefaults defaults.System, cacheTTL time.Duration, separator string) *Assembler {
	return &Assembler{
		sessions:    sessions,
		toolSrc:     toolSrc,
		limits:      limits,
		bootstrap:   bootstrap,
		cache:       assemblycache.New(cacheTTL),
		sysDefaults: sysDefaults,
		separator:   separator,
	}
}

// Assemble runs the full pipeline for one turn, probing the cache first.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*AssembledContext, error) {
	meta, err := a.sessions.GetMetadata(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	cacheKey := assemblycache.Key(req.SessionID, assemblycache.Options{
		AgentID:      req.AgentID,
		UpdatedAt:    toString(meta["updatedAt"]),
		MessageCount: toInt(meta["messageCount"]),
	})
	if cached, ok := a.cache.Get(cacheKey); ok {
		return cached.(*AssembledContext), nil
	}

	assembled, err := a.assembleUncached(ctx, req, meta)
	if err != nil {
		return nil, err
	}
	a.cache.Set(cacheKey, assembled)
	return assembled, nil
}

// InvalidateCache drops every cached entry for sessionID.
func (a *Assembler) InvalidateCache(sessionID string) {
	a.cache.Invalidate(sessionID)
}

// CheckCompaction evaluates compaction need for sessionID without running
// the full assembly pipeline, used by callers that want an out-of-band
// compaction signal.
func (a *Assembler) CheckCompaction(ctx context.Context, sessionID string, maxContextTokens int, explicit bool, thresholds compaction.Thresholds) (compaction.Check, error) {
	messages, err := a.sessions.GetMessages(ctx, sessionID)
	if err != nil {
		return compaction.Check{}, err
	}
	toolCount := 0
	for _, m := range messages {
		if m.Role == session.RoleToolCall {
			toolCount++
		}
	}
	tokenTotal := 0
	for _, m := range messages {
		if s, ok := m.Content.(string); ok {
			tokenTotal += estimator.Message(estimator.Text(s))
		}
	}
	return compaction.Detect(compaction.Counts{
		MessageCount:  len(messages),
		TokenCount:    tokenTotal,
		ToolCallCount: toolCount,
	}, tokenTotal, maxContextTokens, explicit, thresholds), nil
}

func (a *Assembler) assembleUncached(ctx context.Context, req Request, meta session.Metadata) (*AssembledContext, error) {
	messages, err := a.sessions.GetMessages(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	params, err := defaults.Resolve(a.sysDefaults, meta, req.Overrides, 0)
	if err != nil {
		return nil, err
	}
	maxOutput := 0
	if a.limits != nil {
		maxOutput = a.limits.MaxOutputTokens(params.ModelID)
	}
	params, err = defaults.Resolve(a.sysDefaults, meta, req.Overrides, maxOutput)
	if err != nil {
		return nil, err
	}

	sections, err := a.bootstrap.BootstrapSections(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}
	skills, err := a.bootstrap.ActiveSkills(ctx, req.SessionID, req.AgentID)
	if err != nil {
		return nil, err
	}
	skillIDs := make([]string, len(skills))
	for i, s := range skills {
		skillIDs[i] = s.Name
	}
	sections = append(sections, prompt.RenderSkillsSection(skills))
	systemPrompt := prompt.Compose(sections, a.separator)

	modelMessages := transform.ToModelMessages(messages)

	execTools, err := a.toolSrc.Tools(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	skillTools := make([]toolcollect.Tool, 0)
	for _, s := range skills {
		for _, name := range s.Tools {
			skillTools = append(skillTools, toolcollect.Tool{Name: name})
		}
	}
	tools := toolcollect.Collect([][]toolcollect.Tool{execTools, skillTools, req.AdditionalTools}, toolcollect.Options{
		Sandbox:     req.SandboxMode,
		Permissions: req.Permissions,
		Exclude:     req.ExcludeTools,
	})

	systemPromptTokens := estimator.SystemPrompt(systemPrompt)
	toolsTokens := estimator.ToolsTotal(toToolSpecs(tools))

	strategy := req.Strategy
	if strategy == "" {
		strategy = truncate.StrategySimple
	}
	truncResult := truncate.Run(truncate.Input{
		Messages:           modelMessages,
		Strategy:           strategy,
		MaxTokens:          req.MaxContextTokens,
		ReserveTokens:      req.ReserveTokens,
		SystemPromptTokens: systemPromptTokens,
		ToolsTokens:        toolsTokens,
		Estimate:           estimateMessage,
	})

	compactionCheck := compaction.Detect(
		compaction.Counts{MessageCount: len(messages), TokenCount: truncResult.Report.FinalTokens},
		truncResult.Report.FinalTokens, req.MaxContextTokens, false, req.CompactionThresholds,
	)

	return &AssembledContext{
		SystemPrompt: systemPrompt,
		Messages:     truncResult.Messages,
		Tools:        tools,
		Parameters:   params,
		Metadata: Metadata{
			SystemPromptTokens: systemPromptTokens,
			ToolsTokens:        toolsTokens,
			MessageTokens:      truncResult.Report.FinalTokens,
			Truncation:         truncResult.Report,
			Compaction:         compactionCheck,
			ActiveSkillIDs:     skillIDs,
		},
	}, nil
}

func estimateMessage(m model.Message) int {
	if s, ok := m.Content.(string); ok {
		return estimator.Message(estimator.Text(s))
	}
	// Structured content (tool-use/tool-result block lists): sum the
	// per-block estimate, since Text only handles plain strings.
	total := 0
	if blocks, ok := m.Content.([]any); ok {
		for _, b := range blocks {
			block, ok := b.(map[string]any)
			if !ok {
				continue
			}
			switch block["type"] {
			case "tool_use":
				name, _ := block["name"].(string)
				total += estimator.ToolUse(name, block["input"])
			case "tool_result":
				content, _ := block["content"].(string)
				total += estimator.ToolResult(content)
			default:
				if text, ok := block["text"].(string); ok {
					total += estimator.Text(text)
				}
			}
		}
	}
	return estimator.Message(total)
}

func toToolSpecs(tools []toolcollect.Tool) []estimator.ToolSpec {
	specs := make([]estimator.ToolSpec, len(tools))
	for i, t := range tools {
		specs[i] = estimator.ToolSpec{Name: t.Name, Schema: t.Schema}
	}
	return specs
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
