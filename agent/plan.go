package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/assistant/core"
	"github.com/hupe1980/assistant/model"
)

// FinishReason records why a plan stopped.
type FinishReason string

const (
	FinishCompleted FinishReason = "COMPLETED"
	FinishAborted   FinishReason = "ABORTED"
	FinishFailed    FinishReason = "FAILED"
)

// Step is a single step of a PlanOfAction.
type Step struct {
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Completed   bool   `json:"completed"`
}

// PlanOfAction is a structured task: an ordered list of steps worked
// through one iteration at a time. Exhausting the steps completes the plan.
type PlanOfAction struct {
	mu           sync.Mutex
	title        string
	steps        []Step
	currentStep  int
	completed    bool
	finished     bool
	finishReason FinishReason
}

var (
	_ Task     = (*PlanOfAction)(nil)
	_ Finisher = (*PlanOfAction)(nil)
)

// NewPlanOfAction creates a plan from a synthesized definition.
func NewPlanOfAction(def model.PlanDefinition) *PlanOfAction {
	steps := make([]Step, len(def.Steps))
	for i, s := range def.Steps {
		steps[i] = Step{Description: s.Description, Required: s.Required}
	}
	return &PlanOfAction{title: def.Title, steps: steps}
}

// Title returns the plan title.
func (p *PlanOfAction) Title() string { return p.title }

// Steps returns a copy of the steps.
func (p *PlanOfAction) Steps() []Step {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// CurrentStep returns the step being worked on.
func (p *PlanOfAction) CurrentStep() (Step, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished || p.currentStep >= len(p.steps) {
		return Step{}, false
	}
	return p.steps[p.currentStep], true
}

// NextStep marks the current step completed and moves on.
func (p *PlanOfAction) NextStep() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentStep < len(p.steps) {
		p.steps[p.currentStep].Completed = true
		p.currentStep++
	}
}

// MarkCompleted finishes the plan successfully.
func (p *PlanOfAction) MarkCompleted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = true
	p.finished = true
	p.finishReason = FinishCompleted
}

// MarkFinished finishes the plan without completing it.
func (p *PlanOfAction) MarkFinished(reason FinishReason) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = false
	p.finished = true
	p.finishReason = reason
}

// Finished reports whether the plan has stopped and why.
func (p *PlanOfAction) Finished() (bool, FinishReason) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished, p.finishReason
}

// Describe renders the title and steps with their required flag.
func (p *PlanOfAction) Describe() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\nSteps:\n", p.title)
	for _, s := range p.steps {
		fmt.Fprintf(&b, "- %s (%s)\n", s.Description, requiredLabel(s.Required))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Current returns the plan description followed by the step to work on.
func (p *PlanOfAction) Current() (string, bool) {
	step, ok := p.CurrentStep()
	if !ok {
		return "", false
	}
	p.mu.Lock()
	idx, total := p.currentStep+1, len(p.steps)
	p.mu.Unlock()
	return fmt.Sprintf("%s\n\nCurrent step (%d of %d, %s): %s",
		p.Describe(), idx, total, requiredLabel(step.Required), step.Description), true
}

// Advance moves to the next step.
func (p *PlanOfAction) Advance() { p.NextStep() }

type planRecord struct {
	Title        string       `json:"title"`
	Steps        []Step       `json:"steps"`
	CurrentStep  int          `json:"currentStep"`
	Completed    bool         `json:"completed"`
	Finished     bool         `json:"finished"`
	FinishReason FinishReason `json:"finishReason,omitempty"`
}

// JSON renders the plan record as indented JSON.
func (p *PlanOfAction) JSON() ([]byte, error) {
	p.mu.Lock()
	rec := planRecord{
		Title:        p.title,
		Steps:        append([]Step(nil), p.steps...),
		CurrentStep:  p.currentStep,
		Completed:    p.completed,
		Finished:     p.finished,
		FinishReason: p.finishReason,
	}
	p.mu.Unlock()
	return json.MarshalIndent(rec, "", "  ")
}

// Markdown renders the plan as a Markdown checklist.
func (p *PlanOfAction) Markdown() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	reason := string(p.finishReason)
	if reason == "" {
		reason = "N/A"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.title)
	fmt.Fprintf(&b, "**Completed**: %s\n", yesNo(p.completed))
	fmt.Fprintf(&b, "**Finished**: %s\n", yesNo(p.finished))
	fmt.Fprintf(&b, "**Finish Reason**: %s\n\n", reason)
	b.WriteString("## Steps\n")
	for i, s := range p.steps {
		check := "[ ]"
		if s.Completed {
			check = "[x]"
		}
		fmt.Fprintf(&b, "\n### Step %d: %s (%s)\n%s\n", i+1, s.Description, requiredLabel(s.Required), check)
	}
	return b.String()
}

// Export writes <id>.json and <id>.md for owner to store.
func (p *PlanOfAction) Export(store core.ArtifactStore, owner, id string) error {
	data, err := p.JSON()
	if err != nil {
		return fmt.Errorf("render plan json: %w", err)
	}
	if err := store.Save(owner, id+".json", data); err != nil {
		return fmt.Errorf("export plan json: %w", err)
	}
	if err := store.Save(owner, id+".md", []byte(p.Markdown())); err != nil {
		return fmt.Errorf("export plan markdown: %w", err)
	}
	return nil
}

func requiredLabel(required bool) string {
	if required {
		return "REQUIRED"
	}
	return "OPTIONAL"
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}
