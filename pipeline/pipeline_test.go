package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hupe1980/assistant/agent"
	"github.com/hupe1980/assistant/channel"
	"github.com/hupe1980/assistant/core"
	"github.com/hupe1980/assistant/internal/testutil"
	"github.com/hupe1980/assistant/model"
	"github.com/hupe1980/assistant/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type env struct {
	channels  *channel.Manager
	services  *service.Manager
	primary   *channel.Channel
	transport *testutil.RecordingTransport
}

func (e *env) ChannelManager() *channel.Manager { return e.channels }
func (e *env) ServiceManager() *service.Manager { return e.services }

func setup(t *testing.T, backend *model.ScriptedModel) (*env, *agent.Manager) {
	t.Helper()
	transport := &testutil.RecordingTransport{}
	primary := channel.New("web", func(o *channel.Options) { o.Deliver = transport.Deliver })
	channels := channel.NewManager()
	require.NoError(t, channels.Register(primary))
	e := &env{channels: channels, services: service.NewManager(), primary: primary, transport: transport}

	mgr := agent.NewManager(func(o *agent.ManagerOptions) {
		o.Environment = e
		o.Decider = backend
	})
	t.Cleanup(mgr.Close)
	return e, mgr
}

func userTurn(t *testing.T, ch *channel.Channel, text string) []core.Message {
	t.Helper()
	require.NoError(t, ch.ReceiveMessage(context.Background(), core.NewUserMessage(text, ""), "c1"))
	history, err := ch.ConversationHistory("c1", 0)
	require.NoError(t, err)
	return history
}

func TestDirect_DispatchesOneAgentPerTask(t *testing.T) {
	backend := model.NewScriptedModel().ThenDispatch("check the weather", "book a table")
	e, mgr := setup(t, backend)
	p := New(backend, mgr, func(o *Options) { o.Verbose = true })

	ok, err := p.UserMessage(context.Background(), userTurn(t, e.primary, "weather and dinner"), e.primary, "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	mgr.Scheduler().Wait()

	agents := mgr.List()
	require.Len(t, agents, 2)

	var greetings, dispatched int
	for _, c := range e.transport.Contents() {
		if strings.Contains(c, "Initialized to complete the following task:") {
			greetings++
		}
		if strings.HasPrefix(c, "Dispatched agent for task: ") {
			dispatched++
		}
	}
	assert.Equal(t, 2, greetings)
	assert.Equal(t, 2, dispatched)

	tasks := []string{agents[0].Task().Describe(), agents[1].Task().Describe()}
	assert.ElementsMatch(t, []string{`"check the weather"`, `"book a table"`}, tasks)
}

func TestDirect_NoAgents(t *testing.T) {
	t.Run("empty list", func(t *testing.T) {
		backend := model.NewScriptedModel().ThenDispatch()
		e, mgr := setup(t, backend)

		ok, err := New(backend, mgr).UserMessage(context.Background(), userTurn(t, e.primary, "hm"), e.primary, "c1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, mgr.List())

		deliveries := e.transport.Deliveries()
		require.Len(t, deliveries, 1)
		assert.Equal(t, "No agents to dispatch.", deliveries[0].Message.Content)
		assert.Equal(t, core.MessageTypeLog, deliveries[0].Message.Type)
	})

	t.Run("planner failure", func(t *testing.T) {
		backend := model.NewScriptedModel()
		e, mgr := setup(t, backend)

		ok, err := New(backend, mgr).UserMessage(context.Background(), userTurn(t, e.primary, "hm"), e.primary, "c1")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, []string{"No agents to dispatch."}, e.transport.Contents())
	})
}

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) Dispatch(ctx context.Context, task agent.Task, primary *channel.Channel, conversationID string) (*agent.Agent, error) {
	args := m.Called(ctx, task, primary, conversationID)
	a, _ := args.Get(0).(*agent.Agent)
	return a, args.Error(1)
}

func TestDirect_FailedDispatchDoesNotBlockOthers(t *testing.T) {
	backend := model.NewScriptedModel().ThenDispatch("bad", "good")
	transport := &testutil.RecordingTransport{}
	primary := channel.New("web", func(o *channel.Options) { o.Deliver = transport.Deliver })

	d := &mockDispatcher{}
	d.On("Dispatch", mock.Anything, agent.TextTask("bad"), primary, "c1").Return(nil, errors.New("boom"))
	d.On("Dispatch", mock.Anything, agent.TextTask("good"), primary, "c1").
		Return(agent.New("GOOD0000", agent.TextTask("good"), primary, "c1"), nil)

	p := New(backend, d, func(o *Options) { o.Verbose = true })
	ok, err := p.UserMessage(context.Background(), []core.Message{core.NewUserMessage("x", "")}, primary, "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	d.AssertNumberOfCalls(t, "Dispatch", 2)
	assert.Equal(t, []string{`Dispatched agent for task: good, with name: "GOOD0000"`}, transport.Contents())
}

func TestClassify_Converse(t *testing.T) {
	backend := model.NewScriptedModel().ThenMode(model.ResponseModeConverse).ThenReply("Hello there!")
	e, mgr := setup(t, backend)
	p := New(backend, mgr, func(o *Options) { o.Mode = ModeClassify })

	ok, err := p.UserMessage(context.Background(), userTurn(t, e.primary, "hi"), e.primary, "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, mgr.List())

	history, err := e.primary.ConversationHistory("c1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Hello there!", history[1].Content)
	assert.Equal(t, core.RoleAssistant, history[1].Role)
}

func TestClassify_ActionDispatchesPlanAgent(t *testing.T) {
	backend := model.NewScriptedModel().
		ThenMode(model.ResponseModeAction).
		ThenPlan(model.PlanDefinition{Title: "Trip", Steps: []model.PlanStep{{Description: "find flights", Required: true}}})
	e, mgr := setup(t, backend)
	p := New(backend, mgr, func(o *Options) { o.Mode = ModeClassify })

	ok, err := p.UserMessage(context.Background(), userTurn(t, e.primary, "plan a trip"), e.primary, "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	mgr.Scheduler().Wait()

	agents := mgr.List()
	require.Len(t, agents, 1)
	plan, isPlan := agents[0].Task().(*agent.PlanOfAction)
	require.True(t, isPlan)
	assert.Equal(t, "Trip", plan.Title())
	assert.Contains(t, e.transport.Contents()[0], "Title: Trip")
}

func TestClassify_Failure(t *testing.T) {
	backend := model.NewScriptedModel()
	e, mgr := setup(t, backend)
	p := New(backend, mgr, func(o *Options) { o.Mode = ModeClassify })

	ok, err := p.UserMessage(context.Background(), userTurn(t, e.primary, "?"), e.primary, "c1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, e.transport.Deliveries())
}

func TestUserMessage_NoPlanner(t *testing.T) {
	p := New(nil, nil)
	_, err := p.UserMessage(context.Background(), []core.Message{core.NewUserMessage("x", "")}, channel.New("web"), "c1")
	assert.ErrorIs(t, err, core.ErrNoAssistant)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeClassify, ParseMode("classify"))
	assert.Equal(t, ModeDirect, ParseMode("direct"))
	assert.Equal(t, ModeDirect, ParseMode(""))
}
