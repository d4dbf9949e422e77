package cmd

import (
	"context"

	"github.com/arrowctl/agentrun/context/prompt"
)

// demoBootstrap supplies a fixed system prompt and no skills, satisfying
// context/assembler.BootstrapProvider for the demo's single synthetic agent.
type demoBootstrap struct{}

func (demoBootstrap) BootstrapSections(context.Context, string) ([]prompt.Section, error) {
	return []prompt.Section{{
		Name:     "bootstrap",
		Content:  "You are a terse demo agent. Use the add tool when arithmetic is requested.",
		Priority: prompt.PriorityBootstrap,
	}}, nil
}

func (demoBootstrap) ActiveSkills(context.Context, string, string) ([]prompt.Skill, error) {
	return nil, nil
}

// demoLimits reports generous, fixed token ceilings, satisfying
// context/assembler.ModelLimits.
type demoLimits struct{}

func (demoLimits) MaxContextTokens(string) int { return 100_000 }
func (demoLimits) MaxOutputTokens(string) int  { return 4_096 }
