package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hupe1980/assistant/server"
)

// ServeCmd serves the primary channel over HTTP.
type ServeCmd struct {
	Address string `help:"Listen address. Overrides server.address from the config file."`
}

// Run implements the command.
func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(cli, logDeliver)
	if err != nil {
		return err
	}
	defer rt.close()

	addr := rt.cfg.Server.Address
	if c.Address != "" {
		addr = c.Address
	}

	srv := server.New(rt.assistant.Name(), rt.channel, func(o *server.Options) {
		o.Address = addr
		o.Logger = rt.logger
		o.Metrics = rt.metrics
	})
	return srv.ListenAndServe(ctx)
}
