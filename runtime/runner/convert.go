package runner

import (
	"github.com/arrowctl/agentrun/context/toolcollect"
	"github.com/arrowctl/agentrun/model"
)

// toModelTools renders the assembler's collected tool list as the
// provider-facing spec a model.Adapter expects.
func toModelTools(tools []toolcollect.Tool) []model.ToolSpec {
	out := make([]model.ToolSpec, len(tools))
	for i, t := range tools {
		out[i] = model.ToolSpec{Name: t.Name, Description: t.Description, Schema: t.Schema}
	}
	return out
}
