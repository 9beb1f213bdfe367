package agent

import (
	"strings"

	"github.com/hupe1980/assistant/core"
	"github.com/hupe1980/assistant/internal/util"
)

const perceptionTemplate = `Here is some additional context for your reference:
{{join "\n" .context}}
---
Actions performed so far:
{{join "\n" .actions}}
---
Your conversation on the primary channel:
{{join "\n" .conversation}}
---
Latest messages:
{{join "\n" .latest}}`

// perceive renders the perception text from the agent's context (insertion
// order), its action history (newest last), its own channel history and the
// drained unread batch.
func (a *Agent) perceive(actions []string, batch []core.Message) (string, error) {
	entries, err := a.contexts.Entries(a.name)
	if err != nil {
		return "", err
	}
	own, err := a.primary.AgentHistory(a.name, a.conversationID)
	if err != nil {
		return "", err
	}
	return renderPerception(entries, actions, own, batch), nil
}

func renderPerception(entries []core.ContextEntry, actions []string, own, batch []core.Message) string {
	ctxLines := make([]string, len(entries))
	for i, e := range entries {
		ctxLines[i] = e.Key + ": " + e.Value
	}

	conversation := make([]string, 0, len(own))
	for _, m := range own {
		if m.IsLog() {
			continue
		}
		conversation = append(conversation, m.String())
	}

	latest := make([]string, len(batch))
	for i, m := range batch {
		latest[i] = m.Content
	}

	return strings.TrimSpace(util.MustRender(perceptionTemplate, map[string]any{
		"context":      orNone(ctxLines),
		"actions":      orNone(actions),
		"conversation": orNone(conversation),
		"latest":       orNone(latest),
	}))
}

func orNone(lines []string) []string {
	if len(lines) == 0 {
		return []string{"(none)"}
	}
	return lines
}
