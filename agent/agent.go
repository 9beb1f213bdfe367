package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/assistant/channel"
	"github.com/hupe1980/assistant/core"
	"github.com/hupe1980/assistant/logging"
	"github.com/hupe1980/assistant/memory"
	"github.com/hupe1980/assistant/metrics"
	"github.com/hupe1980/assistant/model"
	"github.com/hupe1980/assistant/tool"
)

const primaryChannelMarker = "(*PRIMARY CHANNEL) "

// Options configures an Agent.
type Options struct {
	Decider model.DecisionModel
	// Verbose posts log-typed messages for decisions, action outputs and
	// completion to the primary channel.
	Verbose bool
	// Contexts stores the agent's context. Defaults to a private in-memory store.
	Contexts core.ContextStore
	// Artifacts receives the plan export when a PlanOfAction task finishes.
	Artifacts core.ArtifactStore
	Logger    logging.Logger
	Metrics   *metrics.Metrics
}

// Agent is a perceive-decide-act loop bound to one task, one primary
// channel conversation and a decision model.
//
// All exported methods are goroutine-safe. Step is never re-entrant.
type Agent struct {
	name           string
	task           Task
	primary        *channel.Channel
	conversationID string
	decider        model.DecisionModel
	verbose        bool
	contexts       core.ContextStore
	artifacts      core.ArtifactStore
	logger         logging.Logger
	metrics        *metrics.Metrics
	self           tool.Module

	stepMu sync.Mutex

	mu            sync.Mutex
	state         State
	stepCounter   int
	actionHistory []string
	unread        []core.Message
	manager       *Manager
}

// New creates an agent in the Created state.
func New(name string, task Task, primary *channel.Channel, conversationID string, optFns ...func(o *Options)) *Agent {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Contexts == nil {
		opts.Contexts = memory.NewInMemoryStore()
	}

	logger := logging.OrNoOp(opts.Logger)
	if al, ok := opts.Logger.(*logging.AssistantLogger); ok {
		logger = al.WithAgent(name, conversationID)
	}

	a := &Agent{
		name:           name,
		task:           task,
		primary:        primary,
		conversationID: conversationID,
		decider:        opts.Decider,
		verbose:        opts.Verbose,
		contexts:       opts.Contexts,
		artifacts:      opts.Artifacts,
		logger:         logger,
		metrics:        opts.Metrics,
	}
	a.self = newSelfService(a)
	return a
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// FormattedName returns "Agent NAME", the prefix of every message the agent sends.
func (a *Agent) FormattedName() string { return "Agent " + a.name }

// Task returns the bound task.
func (a *Agent) Task() Task { return a.task }

// PrimaryChannel returns the channel the agent talks on.
func (a *Agent) PrimaryChannel() *channel.Channel { return a.primary }

// ConversationID returns the primary conversation id.
func (a *Agent) ConversationID() string { return a.conversationID }

// State returns the current lifecycle state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// StepCounter returns the number of completed iterations.
func (a *Agent) StepCounter() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stepCounter
}

// ActionHistory returns a copy of the action log, oldest first.
func (a *Agent) ActionHistory() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.actionHistory...)
}

// Context returns the agent's context entries in insertion order.
func (a *Agent) Context() ([]core.ContextEntry, error) {
	return a.contexts.Entries(a.name)
}

// AddToContext writes key into the agent's context. Last write wins.
func (a *Agent) AddToContext(key, value string) error {
	return a.contexts.Put(a.name, key, value)
}

// Manager returns the manager the agent is registered with, if any.
func (a *Agent) Manager() *Manager {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.manager
}

func (a *Agent) bind(m *Manager) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.manager = m
}

// Start sends the greeting and submits the first step. Only the first call
// has an effect.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateCreated {
		a.mu.Unlock()
		return nil
	}
	a.state = StateRunning
	a.mu.Unlock()

	greeting := fmt.Sprintf("Initialized to complete the following task: %s", describeTask(a.task))
	if _, err := a.sendPrimary(ctx, greeting, core.MessageTypeLog); err != nil {
		a.logger.Warn("agent.greeting.error", "agent", a.name, "error", err.Error())
	}

	a.logger.Info("agent.start", "agent", a.name, "conversation_id", a.conversationID)
	a.schedule()
	return nil
}

// Pause moves a running agent to Paused. It reports whether the state changed.
func (a *Agent) Pause() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateRunning {
		return false
	}
	a.state = StatePaused
	return true
}

// Resume moves a paused agent back to Running and schedules a step.
func (a *Agent) Resume() bool {
	a.mu.Lock()
	if a.state != StatePaused {
		a.mu.Unlock()
		return false
	}
	a.state = StateRunning
	a.mu.Unlock()
	a.schedule()
	return true
}

// MarkComplete moves the agent to the terminal Complete state.
func (a *Agent) MarkComplete(ctx context.Context) {
	a.finish(ctx)
}

// PromptUser sends message to the user and waits for a reply addressed to
// this agent before the loop continues.
func (a *Agent) PromptUser(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "Message sent by agent was invalid.", nil
	}

	a.mu.Lock()
	if a.state == StateRunning {
		a.state = StateAwaitingUserInput
	}
	a.mu.Unlock()

	if _, err := a.sendPrimary(ctx, message, core.MessageTypeText); err != nil {
		return "", err
	}
	return "Message sent to the user. Awaiting response.", nil
}

// Receive queues msg for the next perception. An agent awaiting user input
// resumes; it reports whether that happened.
func (a *Agent) Receive(msg core.Message) bool {
	a.mu.Lock()
	a.unread = append(a.unread, msg)
	resumed := false
	if a.state == StateAwaitingUserInput {
		a.state = StateRunning
		resumed = true
	}
	a.mu.Unlock()

	if resumed {
		a.logger.Debug("agent.resume.user_input", "agent", a.name)
		a.schedule()
	}
	return resumed
}

// Step runs one loop iteration.
//
// It returns Continue when the next iteration should be scheduled and Halt
// otherwise. Failures are reported as core.ErrConfiguration,
// core.ErrDecisionFailure or *core.ActionError; a failed step never writes
// context, action history or advances the step counter.
func (a *Agent) Step(ctx context.Context) (StepOutcome, error) {
	a.stepMu.Lock()
	defer a.stepMu.Unlock()

	start := time.Now()
	outcome, err := a.step(ctx)
	a.metrics.Step(outcome.String(), time.Since(start))
	return outcome, err
}

func (a *Agent) step(ctx context.Context) (StepOutcome, error) {
	if taskMissing(a.task) || a.decider == nil {
		a.logger.Error("agent.step.configuration_error", "agent", a.name)
		a.metrics.Failure("configuration")
		return Halt, fmt.Errorf("agent %s: %w", a.name, core.ErrConfiguration)
	}

	a.mu.Lock()
	state := a.state
	a.mu.Unlock()
	if state != StateRunning {
		return Halt, nil
	}

	taskText, ok := a.task.Current()
	if !ok {
		a.finish(ctx)
		return Halt, nil
	}

	a.mu.Lock()
	batch := a.unread
	a.unread = nil
	actions := append([]string(nil), a.actionHistory...)
	a.mu.Unlock()

	perception, err := a.perceive(actions, batch)
	if err != nil {
		a.logger.Warn("agent.perception.error", "agent", a.name, "error", err.Error())
	}

	modules := a.Modules()

	decideStart := time.Now()
	dec, ok := a.decider.Decide(ctx, taskText, tool.Definitions(modules), perception)
	a.logDecision(dec, time.Since(decideStart), ok)
	if !ok {
		a.metrics.Failure("decision")
		return Halt, fmt.Errorf("agent %s: %w", a.name, core.ErrDecisionFailure)
	}

	if dec.IsFreeText() {
		return a.usePrimaryChannel(ctx, dec)
	}
	return a.perform(ctx, modules, dec)
}

func (a *Agent) usePrimaryChannel(ctx context.Context, dec model.Decision) (StepOutcome, error) {
	var args struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(dec.Arguments), &args); err != nil {
		a.metrics.Failure("decision")
		return Halt, fmt.Errorf("agent %s: %w: %v", a.name, core.ErrDecisionFailure, err)
	}

	if a.verbose {
		a.sendLog(ctx, fmt.Sprintf("Selected action %s. Reason: %s", model.UsePrimaryChannel, dec.Reason))
	}

	if _, err := a.sendPrimary(ctx, args.Message, core.MessageTypeText); err != nil {
		actionErr := &core.ActionError{Method: model.UsePrimaryChannel, Err: err}
		a.logger.Error("agent.step.action_failure", "agent", a.name, "error", actionErr.Error())
		a.metrics.Failure("action")
		return Halt, actionErr
	}

	a.advance()
	return a.nextOutcome(), nil
}

func (a *Agent) perform(ctx context.Context, modules []tool.Module, dec model.Decision) (StepOutcome, error) {
	mod, meth, found := tool.Resolve(modules, dec.Module, dec.Method)
	if !found {
		actionErr := &core.ActionError{Module: dec.Module, Method: dec.Method, Err: core.ErrMissingMethod}
		a.logger.Error("agent.step.action_failure", "agent", a.name, "error", actionErr.Error())
		a.metrics.Failure("action")
		return Halt, actionErr
	}

	args := map[string]any{}
	if strings.TrimSpace(dec.Arguments) != "" {
		if err := json.Unmarshal([]byte(dec.Arguments), &args); err != nil {
			a.metrics.Failure("decision")
			return Halt, fmt.Errorf("agent %s: %w: %v", a.name, core.ErrDecisionFailure, err)
		}
		if args == nil {
			args = map[string]any{}
		}
	}
	args["agent"] = a.name

	qualified := mod.Name + "." + meth.Name()
	if a.verbose {
		a.sendLog(ctx, fmt.Sprintf("Selected action %s. Reason: %s", qualified, dec.Reason))
	}

	start := time.Now()
	result, err := meth.Call(ctx, args)
	a.metrics.Action(mod.Name, meth.Name(), err)
	a.logAction(mod.Name, meth.Name(), time.Since(start), err)
	if err != nil {
		a.metrics.Failure("action")
		return Halt, &core.ActionError{Module: mod.Name, Method: meth.Name(), Err: err}
	}

	output := renderOutput(result)

	a.mu.Lock()
	a.actionHistory = append(a.actionHistory, fmt.Sprintf("Performed action %q with arguments: %s", qualified, dec.Arguments))
	key := fmt.Sprintf("%d_%s", a.stepCounter, qualified)
	a.mu.Unlock()

	if err := a.contexts.Put(a.name, key, output); err != nil {
		a.logger.Warn("agent.context.write_error", "agent", a.name, "key", key, "error", err.Error())
	}

	if a.verbose {
		a.sendLog(ctx, fmt.Sprintf("Performed action %s with arguments %s and output: %s", qualified, dec.Arguments, output))
	}

	a.advance()
	return a.nextOutcome(), nil
}

func (a *Agent) advance() {
	a.mu.Lock()
	a.stepCounter++
	a.mu.Unlock()
	a.task.Advance()
}

func (a *Agent) nextOutcome() StepOutcome {
	if a.State() == StateRunning {
		return Continue
	}
	return Halt
}

// finish completes the agent once; later calls are no-ops.
func (a *Agent) finish(ctx context.Context) {
	a.mu.Lock()
	if a.state == StateComplete {
		a.mu.Unlock()
		return
	}
	a.state = StateComplete
	history := append([]string(nil), a.actionHistory...)
	a.mu.Unlock()

	if f, ok := a.task.(Finisher); ok {
		f.MarkCompleted()
	}
	if p, ok := a.task.(*PlanOfAction); ok && a.artifacts != nil {
		if err := p.Export(a.artifacts, a.name, "plan"); err != nil {
			a.logger.Warn("agent.plan.export_error", "agent", a.name, "error", err.Error())
		}
	}

	a.logger.Info("agent.complete", "agent", a.name, "actions", len(history))
	if a.verbose {
		a.sendLog(ctx, "Finished.")
		a.sendLog(ctx, "Action history:\n"+strings.Join(history, "\n"))
	}
}

// Modules lists every module available to the agent: registered services,
// registered channels with the primary one annotated, and the agent's own
// self-service.
func (a *Agent) Modules() []tool.Module {
	var services, channels []tool.Module
	if m := a.Manager(); m != nil && m.env != nil {
		if sm := m.env.ServiceManager(); sm != nil {
			services = sm.Modules()
		}
		if cm := m.env.ChannelManager(); cm != nil {
			channels = cm.Modules()
		}
	}

	primaryListed := false
	for i := range channels {
		if channels[i].Name == a.primary.Name() {
			channels[i].Description = primaryChannelMarker + channels[i].Description
			primaryListed = true
		}
	}
	if !primaryListed {
		pm := a.primary.Module()
		pm.Description = primaryChannelMarker + pm.Description
		channels = append(channels, pm)
	}

	out := make([]tool.Module, 0, len(services)+len(channels)+1)
	out = append(out, services...)
	out = append(out, channels...)
	return append(out, a.self)
}

// logDecision reports a decision through the AssistantLogger helpers when
// available and falls back to plain key/value logging otherwise.
func (a *Agent) logDecision(dec model.Decision, dur time.Duration, ok bool) {
	if al, isAssistant := a.logger.(*logging.AssistantLogger); isAssistant {
		al.LogDecision(dec.Method, dec.Reason, dur, ok)
		return
	}
	if !ok {
		a.logger.Warn("agent.step.decision_failure", "agent", a.name, "duration_ms", dur.Milliseconds())
		return
	}
	a.logger.Debug("agent.step.decision", "agent", a.name, "module", dec.Module, "method", dec.Method, "reason", dec.Reason)
}

func (a *Agent) logAction(module, method string, dur time.Duration, err error) {
	if al, ok := a.logger.(*logging.AssistantLogger); ok {
		al.LogAction(module, method, dur, err)
		return
	}
	if err != nil {
		a.logger.Error("agent.step.action_failure", "agent", a.name, "module", module, "method", method, "error", err.Error(), "duration_ms", dur.Milliseconds())
		return
	}
	a.logger.Debug("agent.step.action", "agent", a.name, "module", module, "method", method, "duration_ms", dur.Milliseconds())
}

func (a *Agent) sendPrimary(ctx context.Context, text string, typ core.MessageType) (core.Message, error) {
	return a.primary.SendMessageAsAssistant(ctx, core.Message{
		Content: a.FormattedName() + ": " + text,
		Agent:   a.name,
		Type:    typ,
	}, a.conversationID)
}

func (a *Agent) sendLog(ctx context.Context, text string) {
	if _, err := a.sendPrimary(ctx, text, core.MessageTypeLog); err != nil {
		a.logger.Warn("agent.log_message.error", "agent", a.name, "error", err.Error())
	}
}

func (a *Agent) schedule() {
	m := a.Manager()
	if m == nil || m.scheduler == nil {
		return
	}
	m.scheduler.Submit(a)
}

func describeTask(t Task) string {
	if taskMissing(t) {
		return "(no task)"
	}
	return t.Describe()
}

func taskMissing(t Task) bool {
	if t == nil {
		return true
	}
	if tt, ok := t.(TextTask); ok {
		return strings.TrimSpace(string(tt)) == ""
	}
	if p, ok := t.(*PlanOfAction); ok {
		return p == nil
	}
	return false
}

// renderOutput converts a method result into the context value.
func renderOutput(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	case fmt.Stringer:
		return r.String()
	default:
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Sprint(r)
		}
		return string(b)
	}
}
