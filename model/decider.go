package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/assistant/core"
	"github.com/hupe1980/assistant/internal/util"
	"github.com/hupe1980/assistant/logging"
)

const (
	decideInstructions = `# Purpose
You are an agent attempting to perform a task.
Given a task and additional information such as previous actions and context,
your goal is to take the next best action to complete the task.
Select the best tool to perform the action.
If no tool is suitable, ask the user for clarification.
If the action history shows the task has been accomplished, mark it as complete.

RULES:
- Always use tools
- Mark complete as soon as the task has been accomplished`

	decideTask = `The task is as follows:
---
{{.task}}
---`

	decidePerception = `Here is some additional information to help you complete the task:
{{.perception}}`

	dispatchInstructions = `# Purpose
Based on the prompt given to you, dispatch agents to respond as efficiently as possible.

# Context
An agent is capable of performing a task using tools and its own context.
You can dispatch as many agents as required to respond optimally to the prompt,
balancing parallelism with speed. Agents can't collaborate, so each task must be
achievable by a single agent alone. Each task you delegate dispatches one agent.

# Rules
- Dispatch as efficiently as possible.
- Some steps in tasks depend on each other, keep this in mind.`

	selectInstructions = `You are a decision maker.
Based on the given description of the decision to be made, output the value
corresponding to the selected option.`

	selectPrompt = `Here is the description of the decision to be made:
{{.description}}

Here are the options to choose from:
{{bullets .options}}`

	planInstructions = `# Purpose
Turn the user's request into a plan of action: a short title and an ordered
list of steps. Mark a step as required when the task cannot be considered
done without it.`

	replyInstructions = `You are a helpful assistant.`

	classifyDescription = `Decide how to respond to the latest user message.
Choose "converse" when a direct conversational reply is enough.
Choose "action" when the request needs tools, several steps or work on the user's behalf.

Latest message:
{{.message}}`
)

const (
	dispatchToolName = "dispatchAgents"
	selectToolName   = "give_selection_decision"
	planToolName     = "create_plan_of_action"
)

// DeciderOptions configures a Decider.
type DeciderOptions struct {
	// PlanningModel serves dispatch, classification and planning calls.
	// Defaults to the agent model.
	PlanningModel Model
	Logger        logging.Logger
}

// Decider implements DecisionModel and Planner on top of a generation Model
// using forced tool calls for structured answers.
type Decider struct {
	agentModel    Model
	planningModel Model
	logger        logging.Logger
}

var _ Backend = (*Decider)(nil)

// NewDecider creates a Decider backed by agentModel.
func NewDecider(agentModel Model, optFns ...func(o *DeciderOptions)) *Decider {
	opts := DeciderOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.PlanningModel == nil {
		opts.PlanningModel = agentModel
	}
	return &Decider{
		agentModel:    agentModel,
		planningModel: opts.PlanningModel,
		logger:        logging.OrNoOp(opts.Logger),
	}
}

// Decide asks the agent model for the next best action. A plain text answer
// maps to UsePrimaryChannel; an unknown tool name or malformed arguments
// yield ok=false.
func (d *Decider) Decide(ctx context.Context, task string, tools []ToolDefinition, perception string) (dec Decision, ok bool) {
	defer d.recoverInto("decide", &ok)
	start := time.Now()

	req := Request{
		Instructions: decideInstructions,
		Messages: []Message{
			{Role: "user", Content: util.MustRender(decideTask, map[string]any{"task": task})},
			{Role: "user", Content: util.MustRender(decidePerception, map[string]any{"perception": perception})},
		},
		Tools: tools,
	}

	resp, err := generate(ctx, d.agentModel, req)
	if err != nil {
		d.logger.Warn("model.decide.error", "error", err.Error())
		return Decision{}, false
	}

	if len(resp.ToolCalls) == 0 {
		if strings.TrimSpace(resp.Text) == "" {
			d.logger.Warn("model.decide.empty")
			return Decision{}, false
		}
		return FreeText(resp.Text), true
	}

	tc := resp.ToolCalls[0]
	def, found := findTool(tools, tc.Name)
	if !found {
		d.logger.Warn("model.decide.unknown_tool", "tool", tc.Name)
		return Decision{}, false
	}

	args, err := normalizeArguments(tc.Arguments)
	if err != nil {
		d.logger.Warn("model.decide.bad_arguments", "tool", tc.Name, "error", err.Error())
		return Decision{}, false
	}

	d.logger.Debug("model.decide.selected", "tool", tc.Name, "module", def.Module, "duration_ms", time.Since(start).Milliseconds())

	return Decision{Method: def.MethodName(), Arguments: args, Module: def.Module, Reason: resp.Text}, true
}

// DispatchList asks the planning model which agents to dispatch for prompt.
func (d *Decider) DispatchList(ctx context.Context, prompt string) (tasks []AgentTask, ok bool) {
	defer d.recoverInto("dispatch_list", &ok)

	schema := util.ObjectSchema(map[string]any{
		"agents": map[string]any{
			"type":        "array",
			"description": "The agents to be delegated.",
			"items": util.ObjectSchema(map[string]any{
				"task": map[string]any{"type": "string", "description": "The task for this agent to complete."},
			}, "task"),
		},
	}, "agents")

	var out struct {
		Agents []AgentTask `json:"agents"`
	}
	if !d.forced(ctx, dispatchInstructions, prompt, dispatchToolName, "", schema, &out) {
		return nil, false
	}

	for _, a := range out.Agents {
		if strings.TrimSpace(a.Task) != "" {
			tasks = append(tasks, a)
		}
	}
	return tasks, true
}

// Classify selects between converse and action for the latest user turn.
func (d *Decider) Classify(ctx context.Context, history []core.Message) (mode ResponseMode, ok bool) {
	defer d.recoverInto("classify", &ok)

	latest := ""
	if len(history) > 0 {
		latest = history[len(history)-1].Content
	}
	desc := util.MustRender(classifyDescription, map[string]any{"message": latest})

	value, _, ok := d.selectOption(ctx, desc, []string{
		string(ResponseModeConverse) + ": reply directly",
		string(ResponseModeAction) + ": dispatch an agent with a plan",
	})
	if !ok {
		return "", false
	}
	switch ResponseMode(value) {
	case ResponseModeConverse, ResponseModeAction:
		return ResponseMode(value), true
	default:
		d.logger.Warn("model.classify.unknown_mode", "value", value)
		return "", false
	}
}

// Reply produces a conversational answer to history.
func (d *Decider) Reply(ctx context.Context, history []core.Message) (text string, ok bool) {
	defer d.recoverInto("reply", &ok)

	msgs := make([]Message, 0, len(history))
	for _, m := range history {
		if m.IsLog() {
			continue
		}
		msgs = append(msgs, Message{Role: string(m.Role), Content: m.Content})
	}

	resp, err := generate(ctx, d.agentModel, Request{Instructions: replyInstructions, Messages: msgs})
	if err != nil {
		d.logger.Warn("model.reply.error", "error", err.Error())
		return "", false
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", false
	}
	return resp.Text, true
}

// Plan synthesizes a plan of action for prompt.
func (d *Decider) Plan(ctx context.Context, prompt string) (plan PlanDefinition, ok bool) {
	defer d.recoverInto("plan", &ok)

	schema := util.ObjectSchema(map[string]any{
		"title": map[string]any{"type": "string", "description": "A short title for the plan."},
		"steps": map[string]any{
			"type": "array",
			"items": util.ObjectSchema(map[string]any{
				"description": map[string]any{"type": "string", "description": "What this step accomplishes."},
				"required":    map[string]any{"type": "boolean", "description": "Whether the step is required."},
			}, "description", "required"),
		},
	}, "title", "steps")

	if !d.forced(ctx, planInstructions, prompt, planToolName, "Returns a plan of action.", schema, &plan) {
		return PlanDefinition{}, false
	}
	if len(plan.Steps) == 0 {
		return PlanDefinition{}, false
	}
	return plan, true
}

// selectOption asks the planning model to pick one of options. Each option
// is rendered as "value: label"; the returned value is the part before ':'.
func (d *Decider) selectOption(ctx context.Context, description string, options []string) (string, string, bool) {
	schema := util.ObjectSchema(map[string]any{
		"decision": map[string]any{"type": "string", "description": "The value corresponding to the correct option."},
		"reason":   map[string]any{"type": "string", "description": "The reason for the decision."},
	}, "decision", "reason")

	prompt := util.MustRender(selectPrompt, map[string]any{"description": description, "options": options})

	var out struct {
		Decision string `json:"decision"`
		Reason   string `json:"reason"`
	}
	if !d.forced(ctx, selectInstructions, prompt, selectToolName, "Returns a decision object based on a selection input.", schema, &out) {
		return "", "", false
	}
	value, _, _ := strings.Cut(out.Decision, ":")
	return strings.TrimSpace(value), out.Reason, true
}

// forced performs a forced tool call and decodes its arguments into out.
func (d *Decider) forced(ctx context.Context, instructions, prompt, toolName, toolDesc string, schema map[string]any, out any) bool {
	req := Request{
		Instructions: instructions,
		Messages:     []Message{{Role: "user", Content: prompt}},
		Tools: []ToolDefinition{{
			Type:     "function",
			Function: FunctionDefinition{Name: toolName, Description: toolDesc, Parameters: schema},
		}},
		ToolChoice: toolName,
	}

	resp, err := generate(ctx, d.planningModel, req)
	if err != nil {
		d.logger.Warn("model.forced.error", "tool", toolName, "error", err.Error())
		return false
	}
	for _, tc := range resp.ToolCalls {
		if tc.Name != toolName {
			continue
		}
		if err := json.Unmarshal(tc.Arguments, out); err != nil {
			d.logger.Warn("model.forced.bad_arguments", "tool", toolName, "error", err.Error())
			return false
		}
		return true
	}
	d.logger.Warn("model.forced.no_tool_call", "tool", toolName)
	return false
}

func (d *Decider) recoverInto(op string, ok *bool) {
	if r := recover(); r != nil {
		d.logger.Error("model.panic", "operation", op, "panic", fmt.Sprint(r))
		*ok = false
	}
}

func findTool(tools []ToolDefinition, name string) (ToolDefinition, bool) {
	for _, t := range tools {
		if t.Function.Name == name {
			return t, true
		}
	}
	return ToolDefinition{}, false
}

// normalizeArguments re-encodes raw tool arguments as a compact JSON object.
// Empty input becomes "{}".
func normalizeArguments(raw json.RawMessage) (string, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return "{}", nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", err
	}
	if args == nil {
		args = map[string]any{}
	}
	out, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
