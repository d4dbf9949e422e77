package assembler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowctl/agentrun/context/assembler"
	"github.com/arrowctl/agentrun/context/defaults"
	"github.com/arrowctl/agentrun/context/prompt"
	"github.com/arrowctl/agentrun/context/toolcollect"
	"github.com/arrowctl/agentrun/session"
)

type fakeStore struct {
	messages []session.Message
	meta     session.Metadata
	appended []session.Message
}

func (f *fakeStore) Append(_ context.Context, sessionID string, msg session.Message) (session.Message, error) {
	msg.SessionID = sessionID
	f.appended = append(f.appended, msg)
	return msg, nil
}

func (f *fakeStore) GetMessages(context.Context, string) ([]session.Message, error) {
	return f.messages, nil
}

func (f *fakeStore) GetMetadata(context.Context, string) (session.Metadata, error) {
	return f.meta, nil
}

type fakeToolSource struct{ tools []toolcollect.Tool }

func (f *fakeToolSource) Tools(context.Context, string) ([]toolcollect.Tool, error) {
	return f.tools, nil
}

type fakeBootstrap struct{}

func (fakeBootstrap) BootstrapSections(context.Context, string) ([]prompt.Section, error) {
	return []prompt.Section{{Name: "bootstrap", Content: "you are an agent", Priority: prompt.PriorityBootstrap}}, nil
}

func (fakeBootstrap) ActiveSkills(context.Context, string, string) ([]prompt.Skill, error) {
	return nil, nil
}

func newTestAssembler(store *fakeStore, tools *fakeToolSource) *assembler.Assembler {
	sys := defaults.System{Params: defaults.Params{ModelID: "test-model"}}
	return assembler.New(store, tools, nil, fakeBootstrap{}, sys, time.Minute, "")
}

func TestAssemble_ComposesSystemPromptAndMessages(t *testing.T) {
	store := &fakeStore{
		messages: []session.Message{{Role: session.RoleUser, Content: "hello"}},
		meta:     session.Metadata{"updatedAt": "t1", "messageCount": 1},
	}
	tools := &fakeToolSource{tools: []toolcollect.Tool{{Name: "search"}}}
	a := newTestAssembler(store, tools)

	ctx, err := a.Assemble(context.Background(), assembler.Request{SessionID: "s1", AgentID: "agent1", MaxContextTokens: 100000})
	require.NoError(t, err)
	assert.Contains(t, ctx.SystemPrompt, "you are an agent")
	assert.Len(t, ctx.Messages, 1)
	assert.Equal(t, "search", ctx.Tools[0].Name)
	assert.Equal(t, "test-model", ctx.Parameters.ModelID)
}

func TestAssemble_CachesResultAcrossCalls(t *testing.T) {
	store := &fakeStore{
		messages: []session.Message{{Role: session.RoleUser, Content: "hello"}},
		meta:     session.Metadata{"updatedAt": "t1", "messageCount": 1},
	}
	a := newTestAssembler(store, &fakeToolSource{})

	req := assembler.Request{SessionID: "s1", AgentID: "agent1", MaxContextTokens: 100000}
	first, err := a.Assemble(context.Background(), req)
	require.NoError(t, err)
	second, err := a.Assemble(context.Background(), req)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestAssemble_MutationInvalidatesCacheKey(t *testing.T) {
	store := &fakeStore{
		messages: []session.Message{{Role: session.RoleUser, Content: "hello"}},
		meta:     session.Metadata{"updatedAt": "t1", "messageCount": 1},
	}
	a := newTestAssembler(store, &fakeToolSource{})
	req := assembler.Request{SessionID: "s1", AgentID: "agent1", MaxContextTokens: 100000}

	first, err := a.Assemble(context.Background(), req)
	require.NoError(t, err)

	store.meta = session.Metadata{"updatedAt": "t2", "messageCount": 2}
	second, err := a.Assemble(context.Background(), req)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}
