// Command assistant runs the agent orchestration engine.
//
//	assistant serve -c assistant.yaml
//	assistant send "find me a flight to Lisbon"
//	assistant version
package main

import (
	"fmt"
	"runtime/debug"

	"github.com/alecthomas/kong"
)

// CLI is the root command.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the HTTP server."`
	Send    SendCmd    `cmd:"" help:"Send one message and print the assistant's output."`

	Config   string `short:"c" help:"Path to config file." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error). Overrides the config file."`
	Verbose  bool   `short:"v" help:"Post agent decisions and outputs as log messages."`
}

// VersionCmd prints the build version.
type VersionCmd struct{}

// Run implements the command.
func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("assistant version %s\n", version)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("assistant"),
		kong.Description("Agent orchestration engine: channels, services and autonomous agents."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
