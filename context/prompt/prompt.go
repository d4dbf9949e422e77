// Package prompt composes the system prompt from prioritized sections.
package prompt

import (
	"sort"
	"strings"
)

// Standard priority bands used by the assembler when building sections.
const (
	PriorityBootstrap   = 1000
	PrioritySoul        = 900
	PriorityContext     = 800
	PriorityUserProfile = 600
	PrioritySkills      = 500
	PriorityToolSummary = 400
	PriorityAdditional  = 300
	PriorityDateTime    = 100
)

// DefaultSeparator joins composed sections when the caller supplies none.
const DefaultSeparator = "\n\n---\n\n"

// Section is a single named block of prompt content at a given priority.
type Section struct {
	Name     string
	Content  string
	Priority int
}

// Skill describes one active skill rendered into the skills section.
type Skill struct {
	Name         string
	Priority     int
	Instructions string
	Examples     []string
	Tools        []string
}

// Compose trims empty sections, sorts the remainder by descending priority
// (ties keep their relative input order), and joins with sep (DefaultSeparator
// if empty).
func Compose(sections []Section, sep string) string {
	if sep == "" {
		sep = DefaultSeparator
	}
	kept := make([]Section, 0, len(sections))
	for _, s := range sections {
		if strings.TrimSpace(s.Content) == "" {
			continue
		}
		kept = append(kept, s)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Priority > kept[j].Priority })

	parts := make([]string, len(kept))
	for i, s := range kept {
		parts[i] = s.Content
	}
	return strings.Join(parts, sep)
}

// RenderSkillsSection renders active skills, sorted by descending skill
// priority, into a single Section at PrioritySkills.
func RenderSkillsSection(skills []Skill) Section {
	ordered := append([]Skill(nil), skills...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority > ordered[j].Priority })

	var b strings.Builder
	for i, sk := range ordered {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## " + sk.Name + "\n")
		b.WriteString(sk.Instructions)
		if len(sk.Examples) > 0 {
			b.WriteString("\n\nExamples:\n")
			for _, ex := range sk.Examples {
				b.WriteString("- " + ex + "\n")
			}
		}
		if len(sk.Tools) > 0 {
			b.WriteString("\nTools: " + strings.Join(sk.Tools, ", "))
		}
	}
	return Section{Name: "skills", Content: b.String(), Priority: PrioritySkills}
}
