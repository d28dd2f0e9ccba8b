package main

import (
	"context"
	"os"

	"github.com/dukex/chanmirror/pkg/cmd"
	"github.com/dukex/chanmirror/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  "chanmirror",
		Usage:                 "Mirror chat channels into document pages",
		EnableShellCompletion: true,
		Flags:                 cmd.LogFlags(),
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"), command.String("log-format"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			NewRunCommand(),
			NewImportCommand(),
			NewListCommand(),
		},
	}
}

func main() {
	cmd.LoadDotEnv()

	err := newApp().Run(context.Background(), os.Args)
	if err != nil {
		log.WithModule("chanmirror").Error("chanmirror failed", "error", err)
		os.Exit(1)
	}
}
