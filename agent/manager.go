package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/assistant/channel"
	"github.com/hupe1980/assistant/core"
	"github.com/hupe1980/assistant/logging"
	"github.com/hupe1980/assistant/metrics"
	"github.com/hupe1980/assistant/model"
	"github.com/hupe1980/assistant/service"
)

const defaultMaxNameAttempts = 8

// Environment is the assistant context a Manager is bound to. Agents look
// up the registered channels and services through it.
type Environment interface {
	ChannelManager() *channel.Manager
	ServiceManager() *service.Manager
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Environment Environment
	Decider     model.DecisionModel
	// Scheduler drives agent steps. Defaults to an unbounded scheduler.
	Scheduler *Scheduler
	// Contexts is shared by dispatched agents, keyed by agent name.
	Contexts  core.ContextStore
	Artifacts core.ArtifactStore
	Logger    logging.Logger
	Metrics   *metrics.Metrics
	Verbose   bool
	// NameGenerator defaults to NewName.
	NameGenerator   func() string
	MaxNameAttempts int
}

// Manager registers, dispatches and routes messages to agents.
type Manager struct {
	env       Environment
	decider   model.DecisionModel
	scheduler *Scheduler
	contexts  core.ContextStore
	artifacts core.ArtifactStore
	logger    logging.Logger
	metrics   *metrics.Metrics
	verbose   bool
	newName   func() string
	attempts  int

	mu     sync.RWMutex
	agents map[string]*Agent
	order  []string
}

// NewManager creates a Manager.
func NewManager(optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := logging.OrNoOp(opts.Logger)
	if opts.Scheduler == nil {
		opts.Scheduler = NewScheduler(func(o *SchedulerOptions) { o.Logger = logger })
	}
	if opts.NameGenerator == nil {
		opts.NameGenerator = NewName
	}
	if opts.MaxNameAttempts <= 0 {
		opts.MaxNameAttempts = defaultMaxNameAttempts
	}
	return &Manager{
		env:       opts.Environment,
		decider:   opts.Decider,
		scheduler: opts.Scheduler,
		contexts:  opts.Contexts,
		artifacts: opts.Artifacts,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		verbose:   opts.Verbose,
		newName:   opts.NameGenerator,
		attempts:  opts.MaxNameAttempts,
		agents:    make(map[string]*Agent),
	}
}

// Environment returns the bound assistant context.
func (m *Manager) Environment() Environment { return m.env }

// Scheduler returns the step scheduler.
func (m *Manager) Scheduler() *Scheduler { return m.scheduler }

// Register stores a and binds it to the manager. A name already in use
// fails with core.ErrDuplicateName and leaves the existing agent untouched.
func (m *Manager) Register(a *Agent) error {
	m.mu.Lock()
	if _, exists := m.agents[a.Name()]; exists {
		m.mu.Unlock()
		return fmt.Errorf("agent %q: %w", a.Name(), core.ErrDuplicateName)
	}
	m.agents[a.Name()] = a
	m.order = append(m.order, a.Name())
	n := len(m.agents)
	m.mu.Unlock()

	a.bind(m)
	m.metrics.SetAgents(n)
	return nil
}

// Dispatch creates an agent for task on the given channel conversation,
// registers it under a fresh name and starts it.
func (m *Manager) Dispatch(ctx context.Context, task Task, primary *channel.Channel, conversationID string) (*Agent, error) {
	if m.env == nil {
		m.metrics.Dispatch(core.ErrNoAssistant)
		return nil, core.ErrNoAssistant
	}

	for i := 0; i < m.attempts; i++ {
		a := New(m.newName(), task, primary, conversationID, func(o *Options) {
			o.Decider = m.decider
			o.Verbose = m.verbose
			o.Contexts = m.contexts
			o.Artifacts = m.artifacts
			o.Logger = m.logger
			o.Metrics = m.metrics
		})

		if err := m.Register(a); err != nil {
			if errors.Is(err, core.ErrDuplicateName) {
				logging.OrNoOp(m.logger).Debug("agent.dispatch.name_collision", "agent", a.Name())
				continue
			}
			m.metrics.Dispatch(err)
			return nil, err
		}

		m.logDispatch(a, nil)
		m.metrics.Dispatch(nil)
		if err := a.Start(ctx); err != nil {
			return a, err
		}
		return a, nil
	}

	err := fmt.Errorf("dispatch: no free agent name after %d attempts: %w", m.attempts, core.ErrDuplicateName)
	m.metrics.Dispatch(err)
	return nil, err
}

func (m *Manager) logDispatch(a *Agent, err error) {
	if al, ok := m.logger.(*logging.AssistantLogger); ok {
		al.LogDispatch(a.Name(), describeTask(a.Task()), err)
		return
	}
	logging.OrNoOp(m.logger).Info("agent.dispatch", "agent", a.Name(), "conversation_id", a.ConversationID())
}

// ReceiveAgentMessage queues the latest message of the conversation for the
// named agent and resumes it if it was awaiting user input. It returns false
// for unknown agents.
func (m *Manager) ReceiveAgentMessage(_ context.Context, name, conversationID string) bool {
	a, ok := m.Get(name)
	if !ok {
		return false
	}
	latest, err := a.PrimaryChannel().ConversationHistory(conversationID, 1)
	if err != nil || len(latest) == 0 {
		logging.OrNoOp(m.logger).Warn("agent.receive.no_message", "agent", name, "conversation_id", conversationID)
		return false
	}
	a.Receive(latest[0])
	return true
}

// MessageBelongsToAgent reports whether msg is tagged with a registered agent.
func (m *Manager) MessageBelongsToAgent(msg core.Message) bool {
	if msg.Agent == "" {
		return false
	}
	_, ok := m.Get(msg.Agent)
	return ok
}

// Get returns the agent registered under name.
func (m *Manager) Get(name string) (*Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[name]
	return a, ok
}

// Remove deletes the agent from the registry and drops its context.
// Completed agents stay registered until removed.
func (m *Manager) Remove(name string) bool {
	m.mu.Lock()
	a, ok := m.agents[name]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.agents, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	n := len(m.agents)
	m.mu.Unlock()

	if err := a.contexts.Delete(name); err != nil {
		logging.OrNoOp(m.logger).Warn("agent.context.delete_error", "agent", name, "error", err.Error())
	}
	m.metrics.SetAgents(n)
	return true
}

// List returns agents in registration order.
func (m *Manager) List() []*Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Agent, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.agents[name])
	}
	return out
}

// Describe returns one "- NAME" line per agent.
func (m *Manager) Describe() []string {
	agents := m.List()
	out := make([]string, len(agents))
	for i, a := range agents {
		out[i] = "- " + a.Name()
	}
	return out
}

// Pause pauses the named agent.
func (m *Manager) Pause(name string) error {
	a, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("agent %q: %w", name, core.ErrNotFound)
	}
	a.Pause()
	return nil
}

// Resume resumes the named agent.
func (m *Manager) Resume(name string) error {
	a, ok := m.Get(name)
	if !ok {
		return fmt.Errorf("agent %q: %w", name, core.ErrNotFound)
	}
	a.Resume()
	return nil
}

// Close stops the scheduler and waits for in-flight steps.
func (m *Manager) Close() {
	m.scheduler.Close()
}
