package agent

import "encoding/json"

// Task is the work an agent is bound to.
type Task interface {
	// Describe renders the task for the greeting message.
	Describe() string
	// Current returns the text handed to the decision model for the next
	// iteration. ok=false means the task is exhausted.
	Current() (text string, ok bool)
	// Advance is called after every successful iteration.
	Advance()
}

// Finisher is implemented by tasks that record how they ended.
type Finisher interface {
	MarkCompleted()
}

// TextTask is a free-text task. It never exhausts; the agent ends it
// through the markComplete self-service.
type TextTask string

// Describe returns the task as a JSON string literal.
func (t TextTask) Describe() string {
	b, _ := json.Marshal(string(t))
	return string(b)
}

// Current returns the task text.
func (t TextTask) Current() (string, bool) { return string(t), true }

// Advance is a no-op.
func (TextTask) Advance() {}
