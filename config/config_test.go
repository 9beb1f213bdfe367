package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "Assistant", cfg.Assistant.Name)
	assert.Equal(t, "direct", cfg.Assistant.PipelineMode)
	assert.Equal(t, "memory", cfg.History.Store)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_FileWithEnvExpansion(t *testing.T) {
	t.Setenv("ASSISTANT_TEST_KEY", "sk-test")
	t.Setenv("ASSISTANT_TEST_VERBOSE", "true")
	t.Setenv("ASSISTANT_TEST_STEPS", "4")

	dir := t.TempDir()
	path := writeFile(t, dir, "assistant.yaml", `
assistant:
  name: Jarvis
  verbose: ${ASSISTANT_TEST_VERBOSE}
  pipeline_mode: classify
  max_concurrent_steps: ${ASSISTANT_TEST_STEPS}
model:
  provider: anthropic
  api_key: ${ASSISTANT_TEST_KEY}
  model: ${ASSISTANT_TEST_MODEL:-claude-3-5-sonnet-latest}
history:
  store: sqlite
  path: /tmp/history.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Jarvis", cfg.Assistant.Name)
	assert.True(t, cfg.Assistant.Verbose)
	assert.Equal(t, "classify", cfg.Assistant.PipelineMode)
	assert.EqualValues(t, 4, cfg.Assistant.MaxConcurrentSteps)
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
	assert.Equal(t, "claude-3-5-sonnet-latest", cfg.Model.Model)
	// Untouched sections keep their defaults.
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.InDelta(t, 0.7, cfg.Model.Temperature, 1e-9)
}

func TestLoad_DotEnvNextToConfig(t *testing.T) {
	const key = "ASSISTANT_DOTENV_ONLY"
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	dir := t.TempDir()
	writeFile(t, dir, ".env", key+"=from-dotenv\n")
	path := writeFile(t, dir, "assistant.yaml", "assistant:\n  name: ${"+key+"}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Assistant.Name)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Model.Provider = "cohere"
	cfg.Assistant.PipelineMode = "chaotic"
	cfg.History.Store = "sqlite"
	cfg.Log.Backend = "logrus"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.provider")
	assert.Contains(t, err.Error(), "assistant.pipeline_mode")
	assert.Contains(t, err.Error(), "history.path")
	assert.Contains(t, err.Error(), "log.backend")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeFile(t, t.TempDir(), "bad.yaml", "assistant: [unclosed")
	_, err = Load(path)
	assert.Error(t, err)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("ASSISTANT_TEST_SET", "value")

	assert.Equal(t, "value", expandEnvVars("${ASSISTANT_TEST_SET}"))
	assert.Equal(t, "fallback", expandEnvVars("${ASSISTANT_TEST_UNSET:-fallback}"))
	assert.Equal(t, "a-value-b", expandEnvVars("a-${ASSISTANT_TEST_SET:-x}-b"))
	assert.Equal(t, "$HOME literal", expandEnvVars("$HOME literal"))
}

func TestExpandEnvVarsInData_KeepsTypes(t *testing.T) {
	t.Setenv("ASSISTANT_TEST_N", "3")
	out := ExpandEnvVarsInData(map[string]any{
		"n":    "${ASSISTANT_TEST_N}",
		"list": []any{"${ASSISTANT_TEST_FLAG:-false}", 1},
	}).(map[string]any)

	assert.Equal(t, int64(3), out["n"])
	assert.Equal(t, []any{false, 1}, out["list"])
}
