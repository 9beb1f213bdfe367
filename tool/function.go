package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/assistant/internal/util"
)

// ActionFunc is the bound action of a FunctionMethod.
type ActionFunc func(ctx context.Context, args map[string]any) (any, error)

// FunctionMethod is a generic adapter that exposes a plain Go function as a
// module method.
//
// Call validates arguments against the declared schema before invoking the
// function and normalizes failures into *ToolError:
//
//	VALIDATION_ERROR  -> schema / argument mismatch
//	EXECUTION_ERROR   -> underlying function returned an error (non-ToolError)
//	(custom codes preserved if the function returns *ToolError directly)
//
// A FunctionMethod has no mutable state after construction and is safe for
// concurrent use.
type FunctionMethod struct {
	name        string
	description string
	parameters  map[string]any
	fn          ActionFunc
}

// NewFunctionMethod constructs a FunctionMethod from explicit schema and function.
//
//	m := tool.NewFunctionMethod(
//	  "recordToContext",
//	  "record a key/value pair to the context",
//	  util.ObjectSchema(map[string]any{
//	    "key":   map[string]any{"type": "string"},
//	    "value": map[string]any{"type": "string"},
//	  }, "key", "value"),
//	  func(ctx context.Context, args map[string]any) (any, error) { ... },
//	)
func NewFunctionMethod(name, description string, parameters map[string]any, fn ActionFunc) *FunctionMethod {
	if parameters == nil {
		parameters = util.ObjectSchema(nil)
	}
	return &FunctionMethod{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionMethodFromStruct derives the parameter schema from a struct
// annotated with json / jsonschema tags.
func NewFunctionMethodFromStruct(name, description string, structType any, fn ActionFunc) (*FunctionMethod, error) {
	schema, err := util.CreateSchema(structType)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", name, err)
	}
	return NewFunctionMethod(name, description, schema, fn), nil
}

// Name returns the method name used in decision model tool declarations.
func (m *FunctionMethod) Name() string { return m.name }

// Description returns the short natural language description exposed to models.
func (m *FunctionMethod) Description() string { return m.description }

// Parameters returns the JSON object schema describing expected arguments.
func (m *FunctionMethod) Parameters() map[string]any { return m.parameters }

// Call validates the provided args against the declared schema then invokes
// the underlying function.
func (m *FunctionMethod) Call(ctx context.Context, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}

	if err := util.ValidateParameters(args, m.parameters); err != nil {
		return nil, &ToolError{
			Tool:    m.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    "VALIDATION_ERROR",
			Details: err,
		}
	}

	result, err := m.fn(ctx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return nil, toolErr
		}
		return nil, &ToolError{
			Tool:    m.name,
			Message: err.Error(),
			Code:    "EXECUTION_ERROR",
		}
	}

	return result, nil
}
