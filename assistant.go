// Package assistant is the entry point for building an agent orchestration
// engine. An Assistant owns the channel, service and agent registries, the
// inbound routing pipeline and the shared stores, all wired with explicit
// back-references.
//
// Typical usage:
//  1. Create an Assistant via New with a model.Backend (an LLM-backed
//     model.Decider or the deterministic model.ScriptedModel)
//  2. Register one or more channels and services
//  3. Feed user turns through Channel.StartAssistantResponse; replies and
//     agent output arrive through each channel's transport
//
// All defaults are in-memory and safe for local development and testing.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/hupe1980/assistant/agent"
	"github.com/hupe1980/assistant/artifact"
	"github.com/hupe1980/assistant/channel"
	"github.com/hupe1980/assistant/core"
	"github.com/hupe1980/assistant/logging"
	"github.com/hupe1980/assistant/memory"
	"github.com/hupe1980/assistant/metrics"
	"github.com/hupe1980/assistant/model"
	"github.com/hupe1980/assistant/pipeline"
	"github.com/hupe1980/assistant/service"
)

const chatFailure = "An error occurred."

// Options configures an Assistant.
type Options struct {
	Name        string
	Description string
	// Verbose surfaces decisions, action outputs and dispatches on the
	// primary channel as log-typed messages.
	Verbose bool

	// DatastoreDir, when set and Artifacts is nil, stores plan exports
	// under DatastoreDir/plansofaction.
	DatastoreDir string

	// Stores (default to in-memory implementations)
	Contexts  core.ContextStore
	Artifacts core.ArtifactStore

	PipelineMode pipeline.Mode
	// MaxConcurrentSteps bounds agent steps in flight. Zero is unbounded.
	MaxConcurrentSteps int64

	// Logger defaults to a NoOp logger.
	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// Assistant aggregates the registries and the pipeline.
type Assistant struct {
	opts     Options
	backend  model.Backend
	channels *channel.Manager
	services *service.Manager
	agents   *agent.Manager
	pipeline *pipeline.Pipeline
	logger   logging.Logger
}

var (
	_ agent.Environment = (*Assistant)(nil)
	_ channel.Responder = (*Assistant)(nil)
)

// New creates an Assistant backed by backend.
func New(backend model.Backend, optFns ...func(o *Options)) (*Assistant, error) {
	opts := Options{
		Name:         "Assistant",
		Contexts:     memory.NewInMemoryStore(),
		PipelineMode: pipeline.ModeDirect,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if backend == nil {
		return nil, fmt.Errorf("assistant: %w", core.ErrConfiguration)
	}

	if opts.Artifacts == nil {
		if opts.DatastoreDir != "" {
			fs, err := artifact.NewFileStore(filepath.Join(opts.DatastoreDir, "plansofaction"))
			if err != nil {
				return nil, fmt.Errorf("assistant: datastore: %w", err)
			}
			opts.Artifacts = fs
		} else {
			opts.Artifacts = artifact.NewInMemoryStore()
		}
	}
	logger := logging.OrNoOp(opts.Logger)

	a := &Assistant{opts: opts, backend: backend, services: service.NewManager(), logger: logger}
	a.channels = channel.NewManager(func(o *channel.ManagerOptions) { o.Responder = a })

	scheduler := agent.NewScheduler(func(o *agent.SchedulerOptions) {
		o.MaxConcurrentSteps = opts.MaxConcurrentSteps
		o.Logger = logger
	})
	a.agents = agent.NewManager(func(o *agent.ManagerOptions) {
		o.Environment = a
		o.Decider = backend
		o.Scheduler = scheduler
		o.Contexts = opts.Contexts
		o.Artifacts = opts.Artifacts
		o.Logger = logger
		o.Metrics = opts.Metrics
		o.Verbose = opts.Verbose
	})
	a.pipeline = pipeline.New(backend, a.agents, func(o *pipeline.Options) {
		o.Mode = opts.PipelineMode
		o.Verbose = opts.Verbose
		o.Logger = logger
		o.Metrics = opts.Metrics
	})

	logger.Info("assistant.init", "name", opts.Name, "pipeline_mode", string(a.pipeline.Mode()), "verbose", opts.Verbose)
	return a, nil
}

// Name returns the assistant name.
func (a *Assistant) Name() string { return a.opts.Name }

// Description returns the assistant's personality and role description.
func (a *Assistant) Description() string { return a.opts.Description }

// Verbose reports whether verbose mode is on.
func (a *Assistant) Verbose() bool { return a.opts.Verbose }

// ChannelManager returns the channel registry.
func (a *Assistant) ChannelManager() *channel.Manager { return a.channels }

// ServiceManager returns the service registry.
func (a *Assistant) ServiceManager() *service.Manager { return a.services }

// AgentManager returns the agent registry.
func (a *Assistant) AgentManager() *agent.Manager { return a.agents }

// Pipeline returns the inbound routing pipeline.
func (a *Assistant) Pipeline() *pipeline.Pipeline { return a.pipeline }

// Artifacts returns the plan export store.
func (a *Assistant) Artifacts() core.ArtifactStore { return a.opts.Artifacts }

// Metrics returns the collectors, or nil when metrics are disabled.
func (a *Assistant) Metrics() *metrics.Metrics { return a.opts.Metrics }

// RegisterChannel adds ch to the channel registry.
func (a *Assistant) RegisterChannel(ch *channel.Channel) error {
	return a.channels.Register(ch)
}

// RegisterService adds svc to the service registry.
func (a *Assistant) RegisterService(svc *service.Service) error {
	return a.services.Register(svc)
}

// Respond routes the latest turn of history. A message tagged with a live
// agent is queued for that agent; anything else goes through the pipeline.
func (a *Assistant) Respond(ctx context.Context, ch *channel.Channel, conversationID string, history []core.Message) (bool, error) {
	if len(history) == 0 {
		return false, errors.New("assistant: empty conversation")
	}
	last := history[len(history)-1]
	if a.agents.MessageBelongsToAgent(last) {
		a.logger.Debug("assistant.route.agent", "agent", last.Agent, "conversation_id", conversationID)
		a.opts.Metrics.Route("agent")
		return a.agents.ReceiveAgentMessage(ctx, last.Agent, conversationID), nil
	}
	return a.pipeline.UserMessage(ctx, history, ch, conversationID)
}

// Chat returns a direct conversational reply to history without
// dispatching agents. Failures yield a system message.
func (a *Assistant) Chat(ctx context.Context, history []core.Message) core.Message {
	reply, ok := a.backend.Reply(ctx, history)
	if !ok {
		a.logger.Warn("assistant.chat.failure")
		return core.Message{Role: core.RoleSystem, Content: chatFailure, Type: core.MessageTypeText}
	}
	return core.Message{Role: core.RoleAssistant, Content: reply, Type: core.MessageTypeText}
}

// Close stops scheduling agent steps and waits for in-flight ones.
func (a *Assistant) Close() {
	a.agents.Close()
}
