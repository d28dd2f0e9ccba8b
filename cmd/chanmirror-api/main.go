package main

import (
	"context"
	"os"

	"github.com/dukex/chanmirror/pkg/cmd"
	"github.com/dukex/chanmirror/pkg/log"
	"github.com/dukex/chanmirror/pkg/metrics"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	cmd.LoadDotEnv()

	logger := log.WithModule("chanmirror-api")

	command := &cli.Command{
		Name:                  "chanmirror-api",
		Usage:                 "Manage mirror workflows and request runs over HTTP",
		EnableShellCompletion: true,
		Flags: cmd.Join(
			[]cli.Flag{
				&cli.IntFlag{
					Name:    "port",
					Aliases: []string{"p"},
					Usage:   "Port to run the API server on",
					Value:   defaultPort,
					Sources: cli.EnvVars("PORT"),
				},
				cmd.DatabaseFlag(),
			},
			cmd.EventBusFlags(),
			cmd.LogFlags(),
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger.InfoContext(ctx, "Initializing chanmirror API")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), "chanmirror-api", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			api := NewAPI(logger, persistence, eventBus, metrics.NewRecorder())

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "API server stopped", "error", err)

				return err
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("chanmirror-api failed", "error", err)
		os.Exit(1)
	}
}
