package model

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hupe1980/assistant/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTools() []ToolDefinition {
	return []ToolDefinition{{
		Type: "function",
		Function: FunctionDefinition{
			Name:       "recordToContext",
			Parameters: map[string]any{"type": "object"},
		},
		Module: "agent-service",
	}}
}

func TestDecide_ToolCall(t *testing.T) {
	m := NewMockModel("test").AddToolCall("recordToContext", `{"key":"a","value":"b"}`)
	d := NewDecider(m)

	dec, ok := d.Decide(context.Background(), "remember a", sampleTools(), "nothing yet")
	require.True(t, ok)
	assert.Equal(t, "recordToContext", dec.Method)
	assert.Equal(t, "agent-service", dec.Module)
	assert.JSONEq(t, `{"key":"a","value":"b"}`, dec.Arguments)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Messages[0].Content, "remember a")
	assert.Contains(t, reqs[0].Messages[1].Content, "nothing yet")
	assert.Len(t, reqs[0].Tools, 1)
}

func TestDecide_FreeTextMapsToPrimaryChannel(t *testing.T) {
	m := NewMockModel("test").AddResponse(Response{Text: "hello there"})
	dec, ok := NewDecider(m).Decide(context.Background(), "greet", nil, "")
	require.True(t, ok)
	assert.True(t, dec.IsFreeText())

	var args map[string]string
	require.NoError(t, json.Unmarshal([]byte(dec.Arguments), &args))
	assert.Equal(t, "hello there", args["message"])
}

func TestDecide_Failures(t *testing.T) {
	t.Run("unknown tool", func(t *testing.T) {
		m := NewMockModel("test").AddToolCall("nope", `{}`)
		_, ok := NewDecider(m).Decide(context.Background(), "t", sampleTools(), "")
		assert.False(t, ok)
	})

	t.Run("malformed arguments", func(t *testing.T) {
		m := NewMockModel("test").AddToolCall("recordToContext", `{not json`)
		_, ok := NewDecider(m).Decide(context.Background(), "t", sampleTools(), "")
		assert.False(t, ok)
	})

	t.Run("empty response", func(t *testing.T) {
		m := NewMockModel("test").AddResponse(Response{})
		_, ok := NewDecider(m).Decide(context.Background(), "t", sampleTools(), "")
		assert.False(t, ok)
	})

	t.Run("transport error", func(t *testing.T) {
		_, ok := NewDecider(failingModel{}).Decide(context.Background(), "t", sampleTools(), "")
		assert.False(t, ok)
	})
}

func TestDispatchList(t *testing.T) {
	m := NewMockModel("test").AddToolCall(dispatchToolName, `{"agents":[{"task":"a"},{"task":" "},{"task":"b"}]}`)
	tasks, ok := NewDecider(m).DispatchList(context.Background(), "do a and b")
	require.True(t, ok)
	assert.Equal(t, []AgentTask{{Task: "a"}, {Task: "b"}}, tasks)
	assert.Equal(t, dispatchToolName, m.Requests()[0].ToolChoice)
}

func TestClassify(t *testing.T) {
	m := NewMockModel("test").
		AddToolCall(selectToolName, `{"decision":"action","reason":"needs tools"}`).
		AddToolCall(selectToolName, `{"decision":"converse: reply directly","reason":"chit chat"}`).
		AddToolCall(selectToolName, `{"decision":"dance","reason":"?"}`)
	d := NewDecider(m)
	history := []core.Message{core.NewUserMessage("book a flight", "")}

	mode, ok := d.Classify(context.Background(), history)
	require.True(t, ok)
	assert.Equal(t, ResponseModeAction, mode)

	mode, ok = d.Classify(context.Background(), history)
	require.True(t, ok)
	assert.Equal(t, ResponseModeConverse, mode)

	_, ok = d.Classify(context.Background(), history)
	assert.False(t, ok)
}

func TestPlanAndReply(t *testing.T) {
	m := NewMockModel("test").
		AddToolCall(planToolName, `{"title":"Trip","steps":[{"description":"find flights","required":true},{"description":"hotel","required":false}]}`).
		AddResponse(Response{Text: "Sure!"})
	d := NewDecider(m)

	plan, ok := d.Plan(context.Background(), "plan a trip")
	require.True(t, ok)
	assert.Equal(t, "Trip", plan.Title)
	require.Len(t, plan.Steps, 2)
	assert.True(t, plan.Steps[0].Required)

	reply, ok := d.Reply(context.Background(), []core.Message{
		core.NewUserMessage("hi", ""),
		{Role: core.RoleAssistant, Content: "internal", Type: core.MessageTypeLog},
	})
	require.True(t, ok)
	assert.Equal(t, "Sure!", reply)
	assert.Len(t, m.Requests()[1].Messages, 1)
}

func TestScriptedModel_Queues(t *testing.T) {
	s := NewScriptedModel().ThenText("hi").ThenNothing().ThenSelect("agent-service", "markComplete", nil)

	d, ok := s.Decide(context.Background(), "t", nil, "p")
	require.True(t, ok)
	assert.True(t, d.IsFreeText())

	_, ok = s.Decide(context.Background(), "t", nil, "p")
	assert.False(t, ok)

	d, ok = s.Decide(context.Background(), "t", nil, "p")
	require.True(t, ok)
	assert.Equal(t, "markComplete", d.Method)
	assert.Equal(t, "{}", d.Arguments)

	_, ok = s.Decide(context.Background(), "t", nil, "p")
	assert.False(t, ok)
	assert.Len(t, s.DecideCalls(), 4)
}

type failingModel struct{}

func (failingModel) Generate(context.Context, Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response)
	errCh := make(chan error, 1)
	errCh <- errors.New("boom")
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (failingModel) Info() Info { return Info{Name: "failing", Provider: "test"} }
