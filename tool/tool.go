// Package tool implements the module/method capability contract that lets
// agents discover and invoke services, channels and their own self-service
// with schema validated arguments and consistent error handling.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/assistant/internal/util"
)

// Method is a single invokable capability of a Module.
//
// Method implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define a JSON object schema for parameters
//   - Return errors instead of panicking
//   - Be safe for concurrent use
type Method interface {
	// Name returns the identifier exposed to the decision model.
	Name() string

	// Description returns a human-readable description of what this method does.
	Description() string

	// Parameters returns a JSON object schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the method with decoded JSON arguments.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during method execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the method that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
