package model

import (
	"context"
	"encoding/json"

	"github.com/hupe1980/assistant/core"
)

// UsePrimaryChannel is the reserved action a free-text decision maps to. Its
// single argument "message" is delivered verbatim to the agent's primary channel.
const UsePrimaryChannel = "usePrimaryChannel"

// Decision is the action selected by a DecisionModel.
type Decision struct {
	// Method is the selected method name, or UsePrimaryChannel.
	Method string `json:"method"`
	// Arguments is a JSON object of arguments.
	Arguments string `json:"arguments"`
	// Module names the module owning Method; empty for UsePrimaryChannel.
	Module string `json:"module,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// FreeText maps a text answer to the reserved UsePrimaryChannel action.
func FreeText(text string) Decision {
	args, _ := json.Marshal(map[string]string{"message": text})
	return Decision{Method: UsePrimaryChannel, Arguments: string(args), Reason: "free text response"}
}

// Select builds a selection decision with JSON encoded arguments.
func Select(module, method string, args map[string]any) Decision {
	if args == nil {
		args = map[string]any{}
	}
	raw, _ := json.Marshal(args)
	return Decision{Method: method, Arguments: string(raw), Module: module}
}

// IsFreeText reports whether the decision is the reserved primary channel action.
func (d Decision) IsFreeText() bool { return d.Method == UsePrimaryChannel }

// DecisionModel chooses the next action for an agent.
//
// Decide returns ok=false when no usable action was produced; it never
// panics and never surfaces transport errors to the caller.
type DecisionModel interface {
	Decide(ctx context.Context, task string, tools []ToolDefinition, perception string) (Decision, bool)
}

// AgentTask is a single task descriptor produced by dispatch planning.
type AgentTask struct {
	Task string `json:"task"`
}

// ResponseMode classifies an inbound user turn.
type ResponseMode string

const (
	ResponseModeConverse ResponseMode = "converse"
	ResponseModeAction   ResponseMode = "action"
)

// PlanStep is a single step of a synthesized plan.
type PlanStep struct {
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// PlanDefinition is a synthesized plan of action.
type PlanDefinition struct {
	Title string     `json:"title"`
	Steps []PlanStep `json:"steps"`
}

// Planner backs the inbound pipeline. Like DecisionModel, its methods report
// failure through ok=false only.
type Planner interface {
	// DispatchList derives zero or more agent tasks from a prompt.
	DispatchList(ctx context.Context, prompt string) ([]AgentTask, bool)
	// Classify decides whether a conversation calls for a reply or an action.
	Classify(ctx context.Context, history []core.Message) (ResponseMode, bool)
	// Reply produces a direct conversational answer.
	Reply(ctx context.Context, history []core.Message) (string, bool)
	// Plan synthesizes a structured plan of action from a prompt.
	Plan(ctx context.Context, prompt string) (PlanDefinition, bool)
}

// Backend is implemented by collaborators that serve both contracts.
type Backend interface {
	DecisionModel
	Planner
}
