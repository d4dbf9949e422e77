package defaults_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowctl/agentrun/context/defaults"
	"github.com/arrowctl/agentrun/session"
)

func ptr[T any](v T) *T { return &v }

func TestResolve_MissingModelIDIsHardFailure(t *testing.T) {
	_, err := defaults.Resolve(defaults.System{}, nil, defaults.Request{}, 0)
	assert.ErrorIs(t, err, defaults.ErrMissingModelID)
}

func TestResolve_LayerPrecedence(t *testing.T) {
	sys := defaults.System{Params: defaults.Params{ModelID: "sys-model", Temperature: ptr(0.1)}}
	meta := session.Metadata{
		"defaultModelId": "agent-model",
		"temperature":    0.5, // session-level override of agent default
	}
	req := defaults.Request{Params: defaults.Params{MaxTokens: ptr(2000)}}

	result, err := defaults.Resolve(sys, meta, req, 0)
	require.NoError(t, err)
	assert.Equal(t, "agent-model", result.ModelID)
	assert.Equal(t, 0.5, *result.Temperature)
	assert.Equal(t, 2000, *result.MaxTokens)
}

func TestResolve_RequestOverridesAllLayers(t *testing.T) {
	sys := defaults.System{Params: defaults.Params{ModelID: "sys-model"}}
	req := defaults.Request{Params: defaults.Params{ModelID: "req-model"}}
	result, err := defaults.Resolve(sys, nil, req, 0)
	require.NoError(t, err)
	assert.Equal(t, "req-model", result.ModelID)
}

func TestResolve_ClampsTemperatureAndTopP(t *testing.T) {
	sys := defaults.System{Params: defaults.Params{ModelID: "m", Temperature: ptr(5.0), TopP: ptr(-1.0)}}
	result, err := defaults.Resolve(sys, nil, defaults.Request{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, *result.Temperature)
	assert.Equal(t, 0.0, *result.TopP)
}

func TestResolve_CapsMaxTokensAtModelLimit(t *testing.T) {
	sys := defaults.System{Params: defaults.Params{ModelID: "m", MaxTokens: ptr(100000)}}
	result, err := defaults.Resolve(sys, nil, defaults.Request{}, 4096)
	require.NoError(t, err)
	assert.Equal(t, 4096, *result.MaxTokens)
}
