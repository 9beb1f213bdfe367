package main

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/assistant"
	"github.com/hupe1980/assistant/channel"
	"github.com/hupe1980/assistant/config"
	"github.com/hupe1980/assistant/core"
	"github.com/hupe1980/assistant/logging"
	"github.com/hupe1980/assistant/metrics"
	"github.com/hupe1980/assistant/model"
	"github.com/hupe1980/assistant/model/anthropic"
	"github.com/hupe1980/assistant/model/openai"
	"github.com/hupe1980/assistant/pipeline"
	"github.com/hupe1980/assistant/session"
)

// runtime holds everything a command needs; close releases it.
type runtime struct {
	cfg       *config.Config
	logger    logging.Logger
	assistant *assistant.Assistant
	channel   *channel.Channel
	metrics   *metrics.Metrics
	closers   []func() error
}

func (r *runtime) close() {
	r.assistant.Close()
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Warn("cli.close.error", "error", err.Error())
		}
	}
}

func loadConfig(cli *CLI) (*config.Config, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.Verbose {
		cfg.Assistant.Verbose = true
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) (logging.Logger, func() error, error) {
	level := logging.ParseLevel(cfg.Level)
	if cfg.Backend == "zap" {
		z, err := logging.NewZapLogger(level, cfg.Format)
		if err != nil {
			return nil, nil, fmt.Errorf("zap logger: %w", err)
		}
		return z, func() error { _ = z.Sync(); return nil }, nil
	}
	l := logging.NewSlogLogger(level, cfg.Format, false)
	return l.WithComponent("assistant"), func() error { return nil }, nil
}

func newBackend(cfg config.ModelConfig, logger logging.Logger) (model.Backend, error) {
	var agentModel, planningModel model.Model
	switch cfg.Provider {
	case "openai":
		build := func(name string) model.Model {
			return openai.NewModel(func(o *openai.Options) {
				if name != "" {
					o.Model = name
				}
				o.APIKey = cfg.APIKey
				o.BaseURL = cfg.BaseURL
				o.Temperature = cfg.Temperature
				if cfg.MaxTokens > 0 {
					o.MaxCompletionTokens = cfg.MaxTokens
				}
			})
		}
		agentModel, planningModel = build(cfg.Model), build(cfg.PlanningModel)
	case "anthropic":
		build := func(name string) model.Model {
			return anthropic.NewModel(func(o *anthropic.Options) {
				if name != "" {
					o.Model = anthropicsdk.Model(name)
				}
				o.APIKey = cfg.APIKey
				o.BaseURL = cfg.BaseURL
				o.Temperature = cfg.Temperature
				if cfg.MaxTokens > 0 {
					o.MaxTokens = cfg.MaxTokens
				}
			})
		}
		agentModel, planningModel = build(cfg.Model), build(cfg.PlanningModel)
	case "scripted":
		return model.NewScriptedModel(), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}

	if cfg.PlanningModel == "" {
		planningModel = agentModel
	}
	return model.NewDecider(agentModel, func(o *model.DeciderOptions) {
		o.PlanningModel = planningModel
		o.Logger = logger
	}), nil
}

// newRuntime wires the assistant and registers the primary channel whose
// transport is built by transport.
func newRuntime(cli *CLI, transport func(logging.Logger) channel.DeliverFunc) (*runtime, error) {
	cfg, err := loadConfig(cli)
	if err != nil {
		return nil, err
	}
	logger, syncLogger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	backend, err := newBackend(cfg.Model, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.NewFromConfig(cfg.Metrics)
	a, err := assistant.New(backend, func(o *assistant.Options) {
		o.Name = cfg.Assistant.Name
		o.Description = cfg.Assistant.Description
		o.Verbose = cfg.Assistant.Verbose
		o.DatastoreDir = cfg.Assistant.DatastoreDir
		o.PipelineMode = pipeline.ParseMode(cfg.Assistant.PipelineMode)
		o.MaxConcurrentSteps = cfg.Assistant.MaxConcurrentSteps
		o.Logger = logger
		o.Metrics = m
	})
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: logger, assistant: a, metrics: m, closers: []func() error{syncLogger}}

	var store core.HistoryStore
	if cfg.History.Store == "sqlite" {
		s, err := session.NewSQLiteStore(cfg.History.Path, func(o *session.SQLiteOptions) { o.Logger = logger })
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("history store: %w", err)
		}
		rt.closers = append(rt.closers, s.Close)
		store = s
	}

	rt.channel = channel.New(cfg.Server.Channel, func(o *channel.Options) {
		o.Description = cfg.Server.ChannelDescription
		o.Store = store
		o.Deliver = transport(logger)
		o.Logger = logger
	})
	if err := a.RegisterChannel(rt.channel); err != nil {
		rt.close()
		return nil, err
	}
	return rt, nil
}

// logDeliver records outbound messages in the log; HTTP clients poll /history.
func logDeliver(logger logging.Logger) channel.DeliverFunc {
	return func(_ context.Context, msg core.Message, conversationID string) error {
		logger.Info("channel.deliver", "conversation_id", conversationID, "agent", msg.Agent, "type", string(msg.Kind()), "content", msg.Content)
		return nil
	}
}
