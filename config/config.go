// Package config loads the assistant's YAML configuration. Values may
// reference environment variables as ${VAR} or ${VAR:-default}; .env files
// are loaded before expansion.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/hupe1980/assistant/metrics"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Assistant AssistantConfig `yaml:"assistant"`
	Model     ModelConfig     `yaml:"model"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	History   HistoryConfig   `yaml:"history"`
	Metrics   metrics.Config  `yaml:"metrics"`
}

// AssistantConfig configures the assistant façade.
type AssistantConfig struct {
	Name               string `yaml:"name"`
	Description        string `yaml:"description"`
	Verbose            bool   `yaml:"verbose"`
	DatastoreDir       string `yaml:"datastore_dir"`
	PipelineMode       string `yaml:"pipeline_mode"`
	MaxConcurrentSteps int64  `yaml:"max_concurrent_steps"`
}

// ModelConfig selects and configures the LLM provider.
type ModelConfig struct {
	// Provider is "openai", "anthropic" or "scripted".
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// PlanningModel serves dispatch, classification and planning. Empty
	// reuses Model.
	PlanningModel string  `yaml:"planning_model"`
	APIKey        string  `yaml:"api_key"`
	BaseURL       string  `yaml:"base_url"`
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int64   `yaml:"max_tokens"`
}

// ServerConfig configures the HTTP channel.
type ServerConfig struct {
	Address            string `yaml:"address"`
	Channel            string `yaml:"channel"`
	ChannelDescription string `yaml:"channel_description"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Backend is "slog" or "zap".
	Backend string `yaml:"backend"`
}

// HistoryConfig selects the conversation ledger store.
type HistoryConfig struct {
	// Store is "memory" or "sqlite".
	Store string `yaml:"store"`
	Path  string `yaml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Assistant: AssistantConfig{
			Name:         "Assistant",
			Description:  "A helpful assistant.",
			PipelineMode: "direct",
		},
		Model: ModelConfig{
			Provider:    "openai",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Server: ServerConfig{
			Address:            ":8080",
			Channel:            "http",
			ChannelDescription: "HTTP chat endpoint used by the web client.",
		},
		Log:     LogConfig{Level: "info", Format: "text", Backend: "slog"},
		History: HistoryConfig{Store: "memory"},
		Metrics: metrics.Config{Enabled: true, Namespace: "assistant"},
	}
}

// Load reads path over the defaults. Environment references are expanded
// after .env files next to the config and in the working directory are
// loaded. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := LoadDotEnvForConfig(path); err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Parse decodes YAML data into cfg after expanding environment references.
func Parse(data []byte, cfg *Config) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if raw == nil {
		return nil
	}

	expanded, err := yaml.Marshal(ExpandEnvVarsInData(raw))
	if err != nil {
		return fmt.Errorf("expand env: %w", err)
	}
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	switch c.Model.Provider {
	case "openai", "anthropic", "scripted":
	default:
		errs = append(errs, fmt.Errorf("model.provider: unsupported %q", c.Model.Provider))
	}
	switch c.Assistant.PipelineMode {
	case "", "direct", "classify":
	default:
		errs = append(errs, fmt.Errorf("assistant.pipeline_mode: unsupported %q", c.Assistant.PipelineMode))
	}
	if c.Assistant.MaxConcurrentSteps < 0 {
		errs = append(errs, errors.New("assistant.max_concurrent_steps: must not be negative"))
	}
	switch c.History.Store {
	case "", "memory":
	case "sqlite":
		if c.History.Path == "" {
			errs = append(errs, errors.New("history.path: required for sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("history.store: unsupported %q", c.History.Store))
	}
	switch c.Log.Backend {
	case "", "slog", "zap":
	default:
		errs = append(errs, fmt.Errorf("log.backend: unsupported %q", c.Log.Backend))
	}
	if c.Server.Channel == "" {
		errs = append(errs, errors.New("server.channel: required"))
	}
	return errors.Join(errs...)
}
