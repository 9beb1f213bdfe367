package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel) (*AssistantLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cfg := DefaultLoggerConfig()
	cfg.Output = buf
	cfg.Level = level
	return NewLogger(cfg), buf
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLevel("nonsense"))
	assert.Equal(t, "WARN", LogLevelWarn.String())
}

func TestAssistantLogger_KeyValueArgs(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)
	l.WithComponent("agent").WithAgent("ABCD1234", "conv-1").Info("agent.step.start", "step", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "agent.step.start", entry["msg"])
	assert.Equal(t, "agent", entry["component"])
	assert.Equal(t, "ABCD1234", entry["agent"])
	assert.Equal(t, "conv-1", entry["conversation_id"])
	assert.Equal(t, float64(3), entry["step"])
}

func TestAssistantLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(LogLevelWarn)
	l.Info("hidden")
	l.Debug("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestAssistantLogger_DomainHelpers(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)

	l.LogAction("agent-service", "markComplete", time.Millisecond, nil)
	assert.Contains(t, buf.String(), "Action execution completed")

	buf.Reset()
	l.LogAction("svc", "boom", time.Millisecond, errors.New("kaput"))
	assert.Contains(t, buf.String(), "Action execution failed")
	assert.Contains(t, buf.String(), "kaput")

	buf.Reset()
	l.LogDecision("usePrimaryChannel", "free text", time.Millisecond, true)
	assert.Contains(t, buf.String(), "Decision completed")

	buf.Reset()
	l.LogDispatch("ABCD1234", "say hi", nil)
	assert.Contains(t, buf.String(), "dispatched_agent")
}

func TestWithContext_DoesNotMutateParent(t *testing.T) {
	parent, _ := newBufferLogger(LogLevelInfo)
	child := parent.WithContext("k", "v")
	assert.Empty(t, parent.context)
	assert.Equal(t, "v", child.context["k"])
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, NoOpLogger{}, OrNoOp(nil))
	l := NewDefaultSlogLogger()
	assert.Same(t, l, OrNoOp(l))
}
