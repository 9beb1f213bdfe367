package assistant

import (
	"context"
	"testing"

	"github.com/hupe1980/assistant/agent"
	"github.com/hupe1980/assistant/artifact"
	"github.com/hupe1980/assistant/channel"
	"github.com/hupe1980/assistant/core"
	"github.com/hupe1980/assistant/internal/testutil"
	"github.com/hupe1980/assistant/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newAssistant(t *testing.T, backend model.Backend, optFns ...func(o *Options)) (*Assistant, *channel.Channel, *testutil.RecordingTransport) {
	t.Helper()
	a, err := New(backend, optFns...)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	transport := &testutil.RecordingTransport{}
	ch := channel.New("web", func(o *channel.Options) {
		o.Description = "browser chat"
		o.Deliver = transport.Deliver
	})
	require.NoError(t, a.RegisterChannel(ch))
	return a, ch, transport
}

func TestReplyHelloEndToEnd(t *testing.T) {
	backend := model.NewScriptedModel().
		ThenDispatch("reply hello").
		ThenText("hi").
		ThenSelect(agent.SelfServiceName, "markComplete", nil)
	a, ch, transport := newAssistant(t, backend)

	ok, err := ch.StartAssistantResponse(context.Background(), core.NewUserMessage("please reply hello", ""), "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	a.AgentManager().Scheduler().Wait()

	agents := a.AgentManager().List()
	require.Len(t, agents, 1)
	name := agents[0].Name()

	assert.Equal(t, agent.StateComplete, agents[0].State())
	assert.Equal(t, 2, agents[0].StepCounter())
	assert.Len(t, backend.DecideCalls(), 2)

	contents := transport.Contents()
	require.Len(t, contents, 2)
	assert.Equal(t, "Agent "+name+`: Initialized to complete the following task: "reply hello"`, contents[0])
	assert.Equal(t, "Agent "+name+": hi", contents[1])
}

func TestRespond_RoutesTaggedMessageToAgent(t *testing.T) {
	ctx := context.Background()
	backend := model.NewScriptedModel().
		ThenDispatch("check the weather").
		ThenSelect(agent.SelfServiceName, "promptUser", map[string]any{"message": "Which city?"}).
		ThenSelect(agent.SelfServiceName, "markComplete", nil)
	a, ch, _ := newAssistant(t, backend)

	_, err := ch.StartAssistantResponse(ctx, core.NewUserMessage("weather please", ""), "c1")
	require.NoError(t, err)
	a.AgentManager().Scheduler().Wait()

	agents := a.AgentManager().List()
	require.Len(t, agents, 1)
	ag := agents[0]
	require.Equal(t, agent.StateAwaitingUserInput, ag.State())

	ok, err := ch.StartAssistantResponse(ctx, core.NewUserMessage("Berlin", ag.Name()), "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	a.AgentManager().Scheduler().Wait()

	assert.Equal(t, agent.StateComplete, ag.State())
	calls := backend.DecideCalls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].Perception, "Latest messages:\nBerlin")
	assert.Len(t, a.AgentManager().List(), 1)
}

func TestRespond_UnknownAgentTagGoesThroughPipeline(t *testing.T) {
	backend := model.NewScriptedModel().ThenDispatch()
	a, ch, transport := newAssistant(t, backend)

	ok, err := ch.StartAssistantResponse(context.Background(), core.NewUserMessage("hello", "GONE0000"), "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, a.AgentManager().List())
	assert.Equal(t, []string{"No agents to dispatch."}, transport.Contents())
}

func TestChat(t *testing.T) {
	backend := model.NewScriptedModel().ThenReply("Hello!")
	a, _, _ := newAssistant(t, backend)

	history := []core.Message{core.NewUserMessage("hi", "")}
	reply := a.Chat(context.Background(), history)
	assert.Equal(t, core.RoleAssistant, reply.Role)
	assert.Equal(t, "Hello!", reply.Content)

	reply = a.Chat(context.Background(), history)
	assert.Equal(t, core.RoleSystem, reply.Role)
	assert.Equal(t, "An error occurred.", reply.Content)
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, core.ErrConfiguration)

	dir := t.TempDir()
	a, err := New(model.NewScriptedModel(), func(o *Options) {
		o.Name = "Jarvis"
		o.DatastoreDir = dir
	})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "Jarvis", a.Name())
	fs, ok := a.Artifacts().(*artifact.FileStore)
	require.True(t, ok)
	assert.Contains(t, fs.Root(), "plansofaction")

	err = a.RegisterChannel(channel.New("web"))
	require.NoError(t, err)
	assert.ErrorIs(t, a.RegisterChannel(channel.New("web")), core.ErrDuplicateName)
}
