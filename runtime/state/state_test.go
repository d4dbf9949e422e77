package state_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowctl/agentrun/runtime/state"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{state.Pending, state.Queued, true},
		{state.Pending, state.Running, false},
		{state.Queued, state.Running, true},
		{state.Queued, state.Timeout, true},
		{state.Running, state.Completed, true},
		{state.Completed, state.Running, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, state.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTransition_Invalid(t *testing.T) {
	_, err := state.Transition(state.Completed, state.Running)
	require.Error(t, err)
	var invalid *state.ErrInvalidTransition
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, state.Completed, invalid.From)
}

func TestTerminal(t *testing.T) {
	for _, s := range []state.State{state.Completed, state.Failed, state.Cancelled, state.Timeout} {
		assert.True(t, s.Terminal())
	}
	for _, s := range []state.State{state.Pending, state.Queued, state.Running} {
		assert.False(t, s.Terminal())
	}
}
