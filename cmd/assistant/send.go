package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hupe1980/assistant/channel"
	"github.com/hupe1980/assistant/core"
	"github.com/hupe1980/assistant/logging"
)

// SendCmd sends a single user message and prints everything the assistant
// posts until all agents settle or the timeout expires.
type SendCmd struct {
	Message        string        `arg:"" help:"Message to send."`
	ConversationID string        `name:"conversation-id" help:"Conversation id." default:"cli"`
	Agent          string        `help:"Address the message to a running agent."`
	Timeout        time.Duration `help:"Maximum time to wait for agents." default:"2m"`
}

// Run implements the command.
func (c *SendCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(cli, func(logging.Logger) channel.DeliverFunc { return printDeliver(os.Stdout) })
	if err != nil {
		return err
	}
	defer rt.close()

	started, err := rt.channel.StartAssistantResponse(ctx, core.NewUserMessage(c.Message, c.Agent), c.ConversationID)
	if err != nil {
		return err
	}
	if !started {
		return errors.New("the assistant did not start a response")
	}

	done := make(chan struct{})
	go func() {
		rt.assistant.AgentManager().Scheduler().Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	case <-time.After(c.Timeout):
		rt.logger.Warn("cli.send.timeout", "timeout", c.Timeout.String())
	}
	return nil
}

// printDeliver writes each delivered message as one line.
func printDeliver(w io.Writer) channel.DeliverFunc {
	var mu sync.Mutex
	return func(_ context.Context, msg core.Message, conversationID string) error {
		mu.Lock()
		defer mu.Unlock()
		_, err := fmt.Fprintf(w, "[%s/%s] %s\n", conversationID, msg.Kind(), msg.Content)
		return err
	}
}
