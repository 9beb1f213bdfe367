package core

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration signals an agent step started without a task.
	ErrConfiguration = errors.New("configuration error")

	// ErrDuplicateName is returned when registering a name already in use.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrDecisionFailure signals the decision model produced no usable action.
	ErrDecisionFailure = errors.New("decision failure")

	// ErrNotFound is returned by registries and stores for unknown keys.
	ErrNotFound = errors.New("not found")

	// ErrNoAssistant is returned when a manager is not bound to an assistant environment.
	ErrNoAssistant = errors.New("no assistant bound")
)

// ActionError records a failed module method invocation. It wraps the
// underlying cause and is matched with errors.As.
type ActionError struct {
	Module string
	Method string
	Err    error
}

func (e *ActionError) Error() string {
	if e.Module != "" {
		return fmt.Sprintf("action execution failure: %s.%s: %v", e.Module, e.Method, e.Err)
	}
	return fmt.Sprintf("action execution failure: %s: %v", e.Method, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// ErrMissingMethod is the cause used when a decision names an unknown method.
var ErrMissingMethod = errors.New("missing method")
