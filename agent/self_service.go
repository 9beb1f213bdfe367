package agent

import (
	"context"

	"github.com/hupe1980/assistant/internal/util"
	"github.com/hupe1980/assistant/tool"
)

// SelfServiceName is the module name of the per-agent self-service.
const SelfServiceName = "agent-service"

// newSelfService binds the agent's own controls as a module.
func newSelfService(a *Agent) tool.Module {
	flag := util.ObjectSchema(map[string]any{
		"complete": map[string]any{
			"type":        "boolean",
			"description": "Mark this as true when you call the function, otherwise don't call the function",
		},
	})

	return tool.Module{
		Name:        SelfServiceName,
		Type:        tool.ModuleTypeService,
		Description: "A generic service for performing common actions such as recording to memory and others.",
		Methods: []tool.Method{
			tool.NewFunctionMethod(
				"recordToContext",
				"record a key/value pair to the context",
				util.ObjectSchema(map[string]any{
					"key":   map[string]any{"type": "string", "description": "the key of the entry"},
					"value": map[string]any{"type": "string", "description": "the value of the entry"},
				}, "key", "value"),
				func(_ context.Context, args map[string]any) (any, error) {
					key, _ := args["key"].(string)
					value, _ := args["value"].(string)
					if key == "" || value == "" {
						return nil, nil
					}
					return nil, a.AddToContext(key, value)
				},
			),
			tool.NewFunctionMethod(
				"markComplete",
				"Considers the task complete if it is complete.",
				flag,
				func(ctx context.Context, _ map[string]any) (any, error) {
					a.MarkComplete(ctx)
					return nil, nil
				},
			),
			tool.NewFunctionMethod(
				"markPaused",
				"Pause the process if need be",
				flag,
				func(_ context.Context, _ map[string]any) (any, error) {
					a.Pause()
					return nil, nil
				},
			),
			tool.NewFunctionMethod(
				"promptUser",
				"Send a message to the user and await a response which will appear in the next iteration's context",
				util.ObjectSchema(map[string]any{
					"message": map[string]any{"type": "string", "description": "The message to send the user"},
				}, "message"),
				func(ctx context.Context, args map[string]any) (any, error) {
					message, _ := args["message"].(string)
					return a.PromptUser(ctx, message)
				},
			),
		},
	}
}
