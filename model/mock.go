package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/assistant/core"
)

// MockModel is a lightweight in‑memory Model useful for tests & examples. It
// replays queued responses in order; once the queue is empty it echoes the
// last user message as plain text.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses []Response
	requests  []Request
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{info: Info{Name: name, Provider: "mock", SupportsTools: true}}
}

// AddResponse queues a canned response.
func (m *MockModel) AddResponse(r Response) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, r)
	return m
}

// AddToolCall queues a response carrying a single tool call.
func (m *MockModel) AddToolCall(name, argsJSON string) *MockModel {
	return m.AddResponse(Response{
		ToolCalls:    []ToolCall{{ID: core.NewID(), Name: name, Arguments: []byte(argsJSON)}},
		FinishReason: "tool_calls",
	})
}

// Requests returns every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var next *Response
	if len(m.responses) > 0 {
		r := m.responses[0]
		m.responses = m.responses[1:]
		next = &r
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}
		if next != nil {
			respCh <- *next
			return
		}
		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}
		last := req.Messages[len(req.Messages)-1]
		respCh <- Response{Text: fmt.Sprintf("Mock response to: %s", last.Content), FinishReason: "stop"}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// DecideCall records the inputs of a ScriptedModel.Decide call.
type DecideCall struct {
	Task       string
	Tools      []ToolDefinition
	Perception string
}

// ScriptedModel is a deterministic Backend for tests and demos. Decisions,
// dispatch lists, modes, replies and plans are consumed from queues; an empty
// queue yields ok=false.
type ScriptedModel struct {
	mu         sync.Mutex
	decisions  []*Decision
	dispatches [][]AgentTask
	modes      []ResponseMode
	replies    []string
	plans      []PlanDefinition
	calls      []DecideCall
	// OnDecide, when set, runs before a decision is returned. Tests use it
	// to block or observe in-flight calls.
	OnDecide func(ctx context.Context, call DecideCall)
}

var _ Backend = (*ScriptedModel)(nil)

// NewScriptedModel creates an empty ScriptedModel.
func NewScriptedModel() *ScriptedModel { return &ScriptedModel{} }

// ThenSelect queues a method selection.
func (s *ScriptedModel) ThenSelect(module, method string, args map[string]any) *ScriptedModel {
	d := Select(module, method, args)
	return s.push(&d)
}

// ThenText queues a free-text answer.
func (s *ScriptedModel) ThenText(text string) *ScriptedModel {
	d := FreeText(text)
	return s.push(&d)
}

// ThenNothing queues a decision failure.
func (s *ScriptedModel) ThenNothing() *ScriptedModel { return s.push(nil) }

func (s *ScriptedModel) push(d *Decision) *ScriptedModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, d)
	return s
}

// ThenDispatch queues a dispatch list.
func (s *ScriptedModel) ThenDispatch(tasks ...string) *ScriptedModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]AgentTask, len(tasks))
	for i, t := range tasks {
		list[i] = AgentTask{Task: t}
	}
	s.dispatches = append(s.dispatches, list)
	return s
}

// ThenMode queues a classification.
func (s *ScriptedModel) ThenMode(mode ResponseMode) *ScriptedModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes = append(s.modes, mode)
	return s
}

// ThenReply queues a conversational reply.
func (s *ScriptedModel) ThenReply(text string) *ScriptedModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, text)
	return s
}

// ThenPlan queues a plan definition.
func (s *ScriptedModel) ThenPlan(plan PlanDefinition) *ScriptedModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans = append(s.plans, plan)
	return s
}

// DecideCalls returns every Decide invocation so far.
func (s *ScriptedModel) DecideCalls() []DecideCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DecideCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// Decide implements DecisionModel.
func (s *ScriptedModel) Decide(ctx context.Context, task string, tools []ToolDefinition, perception string) (Decision, bool) {
	call := DecideCall{Task: task, Tools: tools, Perception: perception}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	var next *Decision
	if len(s.decisions) > 0 {
		next = s.decisions[0]
		s.decisions = s.decisions[1:]
	}
	hook := s.OnDecide
	s.mu.Unlock()

	if hook != nil {
		hook(ctx, call)
	}
	if next == nil {
		return Decision{}, false
	}
	return *next, true
}

// DispatchList implements Planner.
func (s *ScriptedModel) DispatchList(_ context.Context, _ string) ([]AgentTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dispatches) == 0 {
		return nil, false
	}
	next := s.dispatches[0]
	s.dispatches = s.dispatches[1:]
	return next, true
}

// Classify implements Planner.
func (s *ScriptedModel) Classify(_ context.Context, _ []core.Message) (ResponseMode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.modes) == 0 {
		return "", false
	}
	next := s.modes[0]
	s.modes = s.modes[1:]
	return next, true
}

// Reply implements Planner.
func (s *ScriptedModel) Reply(_ context.Context, _ []core.Message) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.replies) == 0 {
		return "", false
	}
	next := s.replies[0]
	s.replies = s.replies[1:]
	return next, true
}

// Plan implements Planner.
func (s *ScriptedModel) Plan(_ context.Context, _ string) (PlanDefinition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.plans) == 0 {
		return PlanDefinition{}, false
	}
	next := s.plans[0]
	s.plans = s.plans[1:]
	return next, true
}
