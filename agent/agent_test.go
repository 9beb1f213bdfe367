package agent

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hupe1980/assistant/core"
	"github.com/hupe1980/assistant/internal/util"
	"github.com/hupe1980/assistant/logging"
	"github.com/hupe1980/assistant/model"
	"github.com/hupe1980/assistant/service"
	"github.com/hupe1980/assistant/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyHelloScenario(t *testing.T) {
	ctx := context.Background()
	scripted := model.NewScriptedModel().
		ThenText("hi").
		ThenSelect(SelfServiceName, "markComplete", nil)
	a, env := newStandalone(t, TextTask("reply hello"), scripted)

	outcome, err := a.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, Continue, outcome)
	assert.Equal(t, 1, a.StepCounter())
	assert.Contains(t, env.transport.Contents(), "Agent AB12CD34: hi")

	outcome, err = a.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, Halt, outcome)
	assert.Equal(t, StateComplete, a.State())

	for i := 0; i < 3; i++ {
		outcome, err = a.Step(ctx)
		require.NoError(t, err)
		assert.Equal(t, Halt, outcome)
	}
	assert.Len(t, scripted.DecideCalls(), 2)
}

func TestReplyHelloScenario_Dispatched(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	scripted := model.NewScriptedModel().
		ThenText("hi").
		ThenSelect(SelfServiceName, "markComplete", nil)
	mgr := newTestManager(t, env, scripted)

	a, err := mgr.Dispatch(ctx, TextTask("reply hello"), env.primary, "c1")
	require.NoError(t, err)
	mgr.Scheduler().Wait()

	assert.Equal(t, StateComplete, a.State())
	assert.Len(t, scripted.DecideCalls(), 2)
	assert.Len(t, a.Name(), 8)
	assert.Equal(t, strings.ToUpper(a.Name()), a.Name())

	history, err := env.primary.ConversationHistory("c1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Agent "+a.Name()+": hi", history[1].Content)
	assert.Equal(t, a.Name(), history[1].Agent)
	assert.Equal(t, core.RoleAssistant, history[1].Role)
}

func TestGreetingPrecedesFirstDecision(t *testing.T) {
	env := newTestEnv(t)
	scripted := model.NewScriptedModel().ThenNothing()

	var seenAtDecide []core.Message
	scripted.OnDecide = func(context.Context, model.DecideCall) {
		seenAtDecide, _ = env.primary.ConversationHistory("c1", 0)
	}
	mgr := newTestManager(t, env, scripted)

	_, err := mgr.Dispatch(context.Background(), TextTask("reply hello"), env.primary, "c1")
	require.NoError(t, err)
	mgr.Scheduler().Wait()

	require.Len(t, seenAtDecide, 1)
	greeting := seenAtDecide[0]
	assert.Equal(t, core.MessageTypeLog, greeting.Type)
	assert.Contains(t, greeting.Content, `"reply hello"`)
}

func TestStep_ConfigurationError(t *testing.T) {
	a, _ := newStandalone(t, TextTask(" "), model.NewScriptedModel())
	outcome, err := a.Step(context.Background())
	assert.Equal(t, Halt, outcome)
	assert.ErrorIs(t, err, core.ErrConfiguration)
	assert.Equal(t, StateRunning, a.State())
	assert.Equal(t, 0, a.StepCounter())
}

func TestStep_DecisionFailure(t *testing.T) {
	scripted := model.NewScriptedModel().ThenNothing()
	a, _ := newStandalone(t, TextTask("t"), scripted)

	outcome, err := a.Step(context.Background())
	assert.Equal(t, Halt, outcome)
	assert.ErrorIs(t, err, core.ErrDecisionFailure)
	assert.Equal(t, 0, a.StepCounter())
}

func TestStep_MissingMethodLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	scripted := model.NewScriptedModel().
		ThenSelect(SelfServiceName, "recordToContext", map[string]any{"key": "city", "value": "Berlin"}).
		ThenSelect("weather", "forecast", map[string]any{"city": "Berlin"})
	a, _ := newStandalone(t, TextTask("t"), scripted)

	_, err := a.Step(ctx)
	require.NoError(t, err)
	before, _ := a.Context()
	history := a.ActionHistory()

	outcome, err := a.Step(ctx)
	assert.Equal(t, Halt, outcome)
	var actionErr *core.ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.ErrorIs(t, err, core.ErrMissingMethod)
	assert.Equal(t, "forecast", actionErr.Method)

	after, _ := a.Context()
	assert.Equal(t, before, after)
	assert.Equal(t, history, a.ActionHistory())
	assert.Equal(t, 1, a.StepCounter())
}

func TestStep_ActionRecordsHistoryAndContext(t *testing.T) {
	scripted := model.NewScriptedModel().
		ThenSelect(SelfServiceName, "recordToContext", map[string]any{"key": "city", "value": "Berlin"})
	a, _ := newStandalone(t, TextTask("remember the city"), scripted)

	outcome, err := a.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Continue, outcome)

	entries, err := a.Context()
	require.NoError(t, err)
	assert.Equal(t, []core.ContextEntry{
		{Key: "city", Value: "Berlin"},
		{Key: "0_agent-service.recordToContext", Value: ""},
	}, entries)

	require.Len(t, a.ActionHistory(), 1)
	assert.Equal(t, `Performed action "agent-service.recordToContext" with arguments: {"key":"city","value":"Berlin"}`, a.ActionHistory()[0])
	assert.Equal(t, 1, a.StepCounter())
}

func TestStep_ActionFailureIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.services.Register(service.New("weather", "Weather lookups.",
		tool.NewFunctionMethod("forecast", "forecast", util.ObjectSchema(nil),
			func(context.Context, map[string]any) (any, error) {
				return nil, errors.New("upstream down")
			}),
	)))

	scripted := model.NewScriptedModel().ThenSelect("weather", "forecast", nil)
	mgr := newTestManager(t, env, scripted)
	a := New("AB12CD34", TextTask("t"), env.primary, "c1", func(o *Options) { o.Decider = scripted })
	require.NoError(t, mgr.Register(a))

	// Steps are driven by hand; the state is set without Start to avoid scheduling.
	a.mu.Lock()
	a.state = StateRunning
	a.mu.Unlock()

	outcome, err := a.Step(ctx)
	assert.Equal(t, Halt, outcome)
	var actionErr *core.ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "weather", actionErr.Module)

	entries, _ := a.Context()
	assert.Empty(t, entries)
	assert.Empty(t, a.ActionHistory())
	assert.Equal(t, 0, a.StepCounter())
}

func TestStep_InjectsAgentName(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	var got map[string]any
	require.NoError(t, env.services.Register(service.New("echo", "Echoes.",
		tool.NewFunctionMethod("echo", "echo", nil, func(_ context.Context, args map[string]any) (any, error) {
			got = args
			return map[string]any{"ok": true}, nil
		}),
	)))
	scripted := model.NewScriptedModel().ThenSelect("echo", "echo", map[string]any{"x": "y"}).ThenNothing()
	mgr := newTestManager(t, env, scripted)

	a, err := mgr.Dispatch(ctx, TextTask("t"), env.primary, "c1")
	require.NoError(t, err)
	mgr.Scheduler().Wait()

	assert.Equal(t, a.Name(), got["agent"])
	assert.Equal(t, "y", got["x"])

	entries, _ := a.Context()
	require.Len(t, entries, 1)
	assert.Equal(t, "0_echo.echo", entries[0].Key)
	assert.JSONEq(t, `{"ok":true}`, entries[0].Value)
}

func TestModules_PrimaryChannelAnnotated(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.services.Register(service.New("weather", "Weather lookups.")))
	mgr := newTestManager(t, env, model.NewScriptedModel())
	a := New("AB12CD34", TextTask("t"), env.primary, "c1")
	require.NoError(t, mgr.Register(a))

	mods := a.Modules()
	require.Len(t, mods, 3)
	assert.Equal(t, "weather", mods[0].Name)
	assert.Equal(t, "web", mods[1].Name)
	assert.Equal(t, "(*PRIMARY CHANNEL) browser chat", mods[1].Description)
	assert.Equal(t, SelfServiceName, mods[2].Name)

	var names []string
	for _, m := range mods[2].Methods {
		names = append(names, m.Name())
	}
	assert.Equal(t, []string{"recordToContext", "markComplete", "markPaused", "promptUser"}, names)
}

func TestAwaitingUserInput(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	scripted := model.NewScriptedModel().
		ThenSelect(SelfServiceName, "promptUser", map[string]any{"message": "Which city?"}).
		ThenNothing()
	mgr := newTestManager(t, env, scripted)

	a, err := mgr.Dispatch(ctx, TextTask("check the weather"), env.primary, "c1")
	require.NoError(t, err)
	mgr.Scheduler().Wait()

	assert.Equal(t, StateAwaitingUserInput, a.State())
	assert.Contains(t, env.transport.Contents(), "Agent "+a.Name()+": Which city?")
	require.Len(t, scripted.DecideCalls(), 1)

	outcome, err := a.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, Halt, outcome)
	assert.Len(t, scripted.DecideCalls(), 1)

	reply := core.NewUserMessage("Berlin", a.Name())
	require.NoError(t, env.primary.ReceiveMessage(ctx, reply, "c1"))
	assert.True(t, mgr.MessageBelongsToAgent(reply))
	assert.True(t, mgr.ReceiveAgentMessage(ctx, a.Name(), "c1"))
	mgr.Scheduler().Wait()

	calls := scripted.DecideCalls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].Perception, "Latest messages:\nBerlin")
	assert.Equal(t, StateRunning, a.State())
}

func TestPauseAndResume(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	scripted := model.NewScriptedModel().
		ThenSelect(SelfServiceName, "markPaused", map[string]any{"complete": true}).
		ThenSelect(SelfServiceName, "markComplete", nil)
	mgr := newTestManager(t, env, scripted)

	a, err := mgr.Dispatch(ctx, TextTask("t"), env.primary, "c1")
	require.NoError(t, err)
	mgr.Scheduler().Wait()
	assert.Equal(t, StatePaused, a.State())
	assert.Equal(t, 1, a.StepCounter())

	outcome, err := a.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, Halt, outcome)
	assert.Len(t, scripted.DecideCalls(), 1)

	require.NoError(t, mgr.Resume(a.Name()))
	mgr.Scheduler().Wait()
	assert.Equal(t, StateComplete, a.State())
	assert.Len(t, scripted.DecideCalls(), 2)

	assert.False(t, a.Resume())
	assert.False(t, a.Pause())
}

func TestPromptUser_InvalidMessage(t *testing.T) {
	a, env := newStandalone(t, TextTask("t"), model.NewScriptedModel())
	out, err := a.PromptUser(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "Message sent by agent was invalid.", out)
	assert.Equal(t, StateRunning, a.State())
	assert.Len(t, env.transport.Deliveries(), 1)
}

func TestVerboseLogsAreLogTyped(t *testing.T) {
	scripted := model.NewScriptedModel().
		ThenSelect(SelfServiceName, "recordToContext", map[string]any{"key": "k", "value": "v"}).
		ThenSelect(SelfServiceName, "markComplete", nil)
	a, env := newStandalone(t, TextTask("t"), scripted, func(o *Options) { o.Verbose = true })

	_, err := a.Step(context.Background())
	require.NoError(t, err)
	_, err = a.Step(context.Background())
	require.NoError(t, err)

	var logs []string
	for _, d := range env.transport.Deliveries() {
		require.Equal(t, core.MessageTypeLog, d.Message.Type, d.Message.Content)
		logs = append(logs, d.Message.Content)
	}
	joined := strings.Join(logs, "\n")
	assert.Contains(t, joined, "Selected action agent-service.recordToContext")
	assert.Contains(t, joined, "Performed action agent-service.recordToContext")
	assert.Contains(t, joined, "Agent AB12CD34: Finished.")
	assert.Contains(t, joined, "Action history:\nPerformed action \"agent-service.recordToContext\"")
}

func TestVerboseFreeTextPostsSelection(t *testing.T) {
	scripted := model.NewScriptedModel().ThenText("hello")
	a, env := newStandalone(t, TextTask("greet"), scripted, func(o *Options) { o.Verbose = true })

	_, err := a.Step(context.Background())
	require.NoError(t, err)

	deliveries := env.transport.Deliveries()
	require.GreaterOrEqual(t, len(deliveries), 3)
	selection := deliveries[len(deliveries)-2].Message
	assert.Equal(t, core.MessageTypeLog, selection.Type)
	assert.Equal(t, "Agent AB12CD34: Selected action usePrimaryChannel. Reason: free text response", selection.Content)

	reply := deliveries[len(deliveries)-1].Message
	assert.Equal(t, core.MessageTypeText, reply.Type)
	assert.Equal(t, "Agent AB12CD34: hello", reply.Content)
}

func TestStep_LogsThroughAssistantLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := logging.DefaultLoggerConfig()
	cfg.Output = buf
	cfg.Level = logging.LogLevelInfo

	scripted := model.NewScriptedModel().
		ThenSelect(SelfServiceName, "recordToContext", map[string]any{"key": "k", "value": "v"}).
		ThenNothing()
	a, _ := newStandalone(t, TextTask("t"), scripted, func(o *Options) { o.Logger = logging.NewLogger(cfg) })

	_, err := a.Step(context.Background())
	require.NoError(t, err)
	_, err = a.Step(context.Background())
	require.ErrorIs(t, err, core.ErrDecisionFailure)

	out := buf.String()
	assert.Contains(t, out, `"msg":"Decision completed"`)
	assert.Contains(t, out, `"msg":"Action execution completed"`)
	assert.Contains(t, out, `"module":"agent-service"`)
	assert.Contains(t, out, `"msg":"Decision failed"`)
}

func TestRenderPerception_Deterministic(t *testing.T) {
	got := renderPerception(
		[]core.ContextEntry{{Key: "b", Value: "2"}, {Key: "a", Value: "1"}},
		[]string{"first", "second"},
		[]core.Message{
			{Role: core.RoleAssistant, Content: "Agent X: hello", Agent: "X"},
			{Role: core.RoleAssistant, Content: "internal", Agent: "X", Type: core.MessageTypeLog},
		},
		nil,
	)
	want := `Here is some additional context for your reference:
b: 2
a: 1
---
Actions performed so far:
first
second
---
Your conversation on the primary channel:
assistant: Agent X: hello
---
Latest messages:
(none)`
	assert.Equal(t, want, got)
}
