package channel

import (
	"context"

	"github.com/hupe1980/assistant/core"
	"github.com/hupe1980/assistant/internal/util"
	"github.com/hupe1980/assistant/tool"
)

// DefaultConversationID is used by the sendMessage method when no
// conversation id is given.
const DefaultConversationID = "default"

const sendErrorNotice = "An error occurred when trying to send a message."

// Module exposes the channel as an invokable module with the methods
// get_conversation_history, getFullHistory and sendMessage.
func (c *Channel) Module() tool.Module {
	return tool.Module{
		Name:        c.name,
		Type:        tool.ModuleTypeChannel,
		Description: c.description,
		Methods: []tool.Method{
			tool.NewFunctionMethod(
				"get_conversation_history",
				"Returns the conversation history.",
				util.ObjectSchema(map[string]any{
					"conversationId": map[string]any{"type": "string", "description": "The conversation id."},
					"count":          map[string]any{"type": "number", "description": "The number of messages to return."},
				}, "conversationId"),
				func(_ context.Context, args map[string]any) (any, error) {
					convID, _ := args["conversationId"].(string)
					count, _ := args["count"].(float64)
					return c.ConversationHistory(convID, int(count))
				},
			),
			tool.NewFunctionMethod(
				"getFullHistory",
				"Returns the full history of the channel.",
				nil,
				func(_ context.Context, _ map[string]any) (any, error) {
					return c.FullHistory()
				},
			),
			tool.NewFunctionMethod(
				"sendMessage",
				"Sends a message to the channel.",
				util.ObjectSchema(map[string]any{
					"message": util.ObjectSchema(map[string]any{
						"content": map[string]any{"type": "string", "description": "The content of the message."},
					}, "content"),
					"conversationId": map[string]any{"type": "string", "description": "The conversation id. Defaults to \"default\"."},
				}),
				c.sendMessageAction,
			),
		},
	}
}

func (c *Channel) sendMessageAction(ctx context.Context, args map[string]any) (any, error) {
	convID, _ := args["conversationId"].(string)
	if convID == "" {
		convID = DefaultConversationID
	}
	agent, _ := args["agent"].(string)

	payload, _ := args["message"].(map[string]any)
	content, _ := payload["content"].(string)
	if content == "" {
		if _, err := c.SendMessageAsAssistant(ctx, core.Message{Content: sendErrorNotice, Agent: agent}, convID); err != nil {
			return nil, err
		}
		return sendErrorNotice, nil
	}

	msg, err := c.SendMessageAsAssistant(ctx, core.Message{Content: content, Agent: agent, Type: core.MessageTypeText}, convID)
	if err != nil {
		return nil, err
	}
	return msg, nil
}
