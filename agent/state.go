package agent

// State is the lifecycle state of an Agent.
type State int

const (
	StateCreated State = iota
	StateRunning
	StatePaused
	StateAwaitingUserInput
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateAwaitingUserInput:
		return "awaiting_user_input"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// StepOutcome tells the caller of Step whether another iteration should run.
type StepOutcome int

const (
	// Halt stops the loop until something external resumes it.
	Halt StepOutcome = iota
	// Continue asks for the next iteration to be scheduled.
	Continue
)

func (o StepOutcome) String() string {
	if o == Continue {
		return "continue"
	}
	return "halt"
}
