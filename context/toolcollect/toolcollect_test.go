package toolcollect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arrowctl/agentrun/context/toolcollect"
)

func TestCollect_FirstWinsDedup(t *testing.T) {
	sources := [][]toolcollect.Tool{
		{{Name: "search", Description: "first"}},
		{{Name: "search", Description: "second"}},
	}
	out := toolcollect.Collect(sources, toolcollect.Options{})
	assert.Len(t, out, 1)
	assert.Equal(t, "first", out[0].Description)
}

func TestCollect_SortedByName(t *testing.T) {
	sources := [][]toolcollect.Tool{{{Name: "zeta"}, {Name: "alpha"}}}
	out := toolcollect.Collect(sources, toolcollect.Options{})
	assert.Equal(t, []string{"alpha", "zeta"}, []string{out[0].Name, out[1].Name})
}

func TestCollect_ExcludeList(t *testing.T) {
	sources := [][]toolcollect.Tool{{{Name: "a"}, {Name: "b"}}}
	out := toolcollect.Collect(sources, toolcollect.Options{Exclude: []string{"a"}})
	assert.Len(t, out, 1)
	assert.Equal(t, "b", out[0].Name)
}

func TestCollect_SandboxAllowDeny(t *testing.T) {
	sources := [][]toolcollect.Tool{{{Name: "fs.read"}, {Name: "fs.write"}, {Name: "net.fetch"}}}
	out := toolcollect.Collect(sources, toolcollect.Options{
		Sandbox: toolcollect.SandboxMode{Enabled: true, Allow: []string{"fs.*"}, Deny: []string{"fs.write"}},
	})
	names := toolNames(out)
	assert.Equal(t, []string{"fs.read"}, names)
}

func TestCollect_PermissionWildcard(t *testing.T) {
	sources := [][]toolcollect.Tool{
		{{Name: "a", RequiredPermissions: []string{"net.read"}}},
		{{Name: "b", RequiredPermissions: []string{"net.write"}}},
	}
	out := toolcollect.Collect(sources, toolcollect.Options{Permissions: []string{"net.*"}})
	assert.Len(t, out, 2)

	out = toolcollect.Collect(sources, toolcollect.Options{Permissions: []string{"net.read"}})
	assert.Len(t, out, 1)
	assert.Equal(t, "a", out[0].Name)
}

func toolNames(tools []toolcollect.Tool) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}
