package pipeline

import (
	"context"
	"fmt"

	"github.com/hupe1980/assistant/agent"
	"github.com/hupe1980/assistant/channel"
	"github.com/hupe1980/assistant/core"
	"github.com/hupe1980/assistant/logging"
	"github.com/hupe1980/assistant/metrics"
	"github.com/hupe1980/assistant/model"
	"golang.org/x/sync/errgroup"
)

// Mode selects how inbound turns are routed.
type Mode string

const (
	// ModeDirect dispatches one agent per task derived from the message.
	ModeDirect Mode = "direct"
	// ModeClassify replies directly or dispatches a single plan-bound agent.
	ModeClassify Mode = "classify"
)

// ParseMode maps a configuration value to a Mode. Unknown values yield ModeDirect.
func ParseMode(s string) Mode {
	if Mode(s) == ModeClassify {
		return ModeClassify
	}
	return ModeDirect
}

const (
	noAgentsNotice = "No agents to dispatch."
	replyFailure   = "An error occurred."
)

// Dispatcher starts agents. *agent.Manager implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, task agent.Task, primary *channel.Channel, conversationID string) (*agent.Agent, error)
}

// Options configures a Pipeline.
type Options struct {
	Mode Mode
	// Verbose posts a log message for every dispatched agent.
	Verbose bool
	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// Pipeline turns user turns into replies or agent dispatches.
type Pipeline struct {
	planner    model.Planner
	dispatcher Dispatcher
	opts       Options
	logger     logging.Logger
}

// New creates a Pipeline.
func New(planner model.Planner, dispatcher Dispatcher, optFns ...func(o *Options)) *Pipeline {
	opts := Options{Mode: ModeDirect}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Mode == "" {
		opts.Mode = ModeDirect
	}
	logger := logging.OrNoOp(opts.Logger)
	if al, ok := opts.Logger.(*logging.AssistantLogger); ok {
		logger = al.WithComponent("pipeline")
	}
	return &Pipeline{planner: planner, dispatcher: dispatcher, opts: opts, logger: logger}
}

// Mode returns the routing mode.
func (p *Pipeline) Mode() Mode { return p.opts.Mode }

// UserMessage routes the latest turn of history. It reports whether a reply
// was sent or at least one agent dispatch was attempted.
func (p *Pipeline) UserMessage(ctx context.Context, history []core.Message, primary *channel.Channel, conversationID string) (bool, error) {
	if p.planner == nil || p.dispatcher == nil {
		return false, core.ErrNoAssistant
	}
	if len(history) == 0 {
		return false, fmt.Errorf("pipeline: empty conversation %q", conversationID)
	}

	if p.opts.Mode == ModeClassify {
		return p.classify(ctx, history, primary, conversationID)
	}
	return p.direct(ctx, history[len(history)-1].Content, primary, conversationID)
}

func (p *Pipeline) direct(ctx context.Context, prompt string, primary *channel.Channel, conversationID string) (bool, error) {
	tasks, ok := p.planner.DispatchList(ctx, prompt)
	if !ok || len(tasks) == 0 {
		p.opts.Metrics.Route("none")
		p.logger.Info("pipeline.dispatch.none", "conversation_id", conversationID, "planner_ok", ok)
		p.postLog(ctx, primary, noAgentsNotice, conversationID)
		return ok, nil
	}
	p.opts.Metrics.Route("dispatch")

	// Dispatches run side by side; a failed one is logged and never
	// cancels the others.
	var g errgroup.Group
	for _, t := range tasks {
		g.Go(func() error {
			p.dispatch(ctx, agent.TextTask(t.Task), t.Task, primary, conversationID)
			return nil
		})
	}
	_ = g.Wait()
	return true, nil
}

func (p *Pipeline) classify(ctx context.Context, history []core.Message, primary *channel.Channel, conversationID string) (bool, error) {
	mode, ok := p.planner.Classify(ctx, history)
	if !ok {
		p.opts.Metrics.Route("none")
		p.logger.Warn("pipeline.classify.failure", "conversation_id", conversationID)
		return false, nil
	}

	switch mode {
	case model.ResponseModeConverse:
		p.opts.Metrics.Route("converse")
		reply, ok := p.planner.Reply(ctx, history)
		if !ok {
			p.logger.Warn("pipeline.reply.failure", "conversation_id", conversationID)
			reply = replyFailure
		}
		if _, err := primary.SendMessageAsAssistant(ctx, core.Message{Content: reply, Type: core.MessageTypeText}, conversationID); err != nil {
			return false, fmt.Errorf("deliver reply: %w", err)
		}
		return ok, nil
	default:
		p.opts.Metrics.Route("action")
		prompt := history[len(history)-1].Content
		def, ok := p.planner.Plan(ctx, prompt)
		if !ok {
			p.logger.Warn("pipeline.plan.failure", "conversation_id", conversationID)
			p.postLog(ctx, primary, noAgentsNotice, conversationID)
			return false, nil
		}
		plan := agent.NewPlanOfAction(def)
		if !p.dispatch(ctx, plan, plan.Title(), primary, conversationID) {
			return false, nil
		}
		return true, nil
	}
}

func (p *Pipeline) dispatch(ctx context.Context, task agent.Task, label string, primary *channel.Channel, conversationID string) bool {
	a, err := p.dispatcher.Dispatch(ctx, task, primary, conversationID)
	if err != nil {
		p.logger.Error("pipeline.dispatch.error", "conversation_id", conversationID, "task", label, "error", err.Error())
		return false
	}
	p.logger.Info("pipeline.dispatch", "conversation_id", conversationID, "agent", a.Name(), "task", label)
	if p.opts.Verbose {
		p.postLog(ctx, primary, fmt.Sprintf("Dispatched agent for task: %s, with name: %q", label, a.Name()), conversationID)
	}
	return true
}

func (p *Pipeline) postLog(ctx context.Context, primary *channel.Channel, text, conversationID string) {
	if _, err := primary.SendMessageAsAssistant(ctx, core.Message{Content: text, Type: core.MessageTypeLog}, conversationID); err != nil {
		p.logger.Warn("pipeline.log_message.error", "conversation_id", conversationID, "error", err.Error())
	}
}
