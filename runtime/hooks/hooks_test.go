package hooks_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arrowctl/agentrun/runtime/hooks"
)

func TestExecute_InsertionOrder(t *testing.T) {
	r := hooks.New(nil)
	var order []int
	r.Register(hooks.BeforeRun, func(context.Context, any) error {
		order = append(order, 1)
		return nil
	})
	r.Register(hooks.BeforeRun, func(context.Context, any) error {
		order = append(order, 2)
		return nil
	})
	r.Execute(context.Background(), hooks.BeforeRun, nil)
	assert.Equal(t, []int{1, 2}, order)
}

func TestExecute_FailureDoesNotAbort(t *testing.T) {
	r := hooks.New(nil)
	var ran []int
	r.Register(hooks.OnError, func(context.Context, any) error {
		ran = append(ran, 1)
		return errors.New("boom")
	})
	r.Register(hooks.OnError, func(context.Context, any) error {
		ran = append(ran, 2)
		return nil
	})
	r.Execute(context.Background(), hooks.OnError, nil)
	assert.Equal(t, []int{1, 2}, ran)
}

func TestExecute_UnregisteredNameIsNoop(t *testing.T) {
	r := hooks.New(nil)
	assert.NotPanics(t, func() {
		r.Execute(context.Background(), hooks.AfterRun, nil)
	})
}

func TestKnown(t *testing.T) {
	assert.True(t, hooks.Known(hooks.BeforeModelCall))
	assert.False(t, hooks.Known(hooks.Name("not-a-hook")))
}
