// Package toolcollect merges tool sources, deduplicates, and applies
// sandbox/permission/exclude filtering to produce a run's final tool list.
package toolcollect

import (
	"sort"
	"strings"
)

// Tool is a single tool definition as seen by the collector, prior to any
// model-specific shaping.
type Tool struct {
	Name                string
	Description         string
	Schema              map[string]any
	RequiredPermissions []string
}

// SandboxMode optionally restricts the tool set to an allow list and/or
// excludes a deny list, evaluated before permission filtering.
type SandboxMode struct {
	Enabled bool
	Allow   []string
	Deny    []string
}

// Options controls collection and filtering.
type Options struct {
	Sandbox     SandboxMode
	Permissions []string // empty means unrestricted
	Exclude     []string
}

// Collect merges sources with first-wins deduplication by name (sources
// earlier in the slice win), applies sandbox/permission/exclude filters, and
// returns the result sorted by name.
func Collect(sources [][]Tool, opts Options) []Tool {
	seen := make(map[string]struct{})
	merged := make([]Tool, 0)
	for _, source := range sources {
		for _, t := range source {
			if _, dup := seen[t.Name]; dup {
				continue
			}
			seen[t.Name] = struct{}{}
			merged = append(merged, t)
		}
	}

	excluded := toSet(opts.Exclude)
	filtered := make([]Tool, 0, len(merged))
	for _, t := range merged {
		if _, ex := excluded[t.Name]; ex {
			continue
		}
		if opts.Sandbox.Enabled && !sandboxAllows(opts.Sandbox, t.Name) {
			continue
		}
		if len(opts.Permissions) > 0 && !permitted(opts.Permissions, t.RequiredPermissions) {
			continue
		}
		filtered = append(filtered, t)
	}

	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Name < filtered[j].Name })
	return filtered
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func sandboxAllows(mode SandboxMode, name string) bool {
	if matchesAny(mode.Deny, name) {
		return false
	}
	if len(mode.Allow) == 0 {
		return true
	}
	return matchesAny(mode.Allow, name)
}

// permitted reports whether granted covers every permission in required,
// with wildcard support: "*" matches anything, "prefix.*" matches
// "prefix.<anything>".
func permitted(granted, required []string) bool {
	for _, req := range required {
		if !matchesAny(granted, req) {
			return false
		}
	}
	return true
}

// matchesAny reports whether name matches any pattern in patterns, with
// "*" matching anything and "prefix.*" matching "prefix.<anything>".
func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if matches(p, name) {
			return true
		}
	}
	return false
}

func matches(pattern, name string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(name, prefix)
	}
	return pattern == name
}
