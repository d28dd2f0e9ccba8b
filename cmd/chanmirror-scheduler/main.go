package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/chanmirror/pkg/cmd"
	"github.com/dukex/chanmirror/pkg/log"
	"github.com/dukex/chanmirror/pkg/scheduler"
	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd.LoadDotEnv()

	logger := log.WithModule("chanmirror-scheduler")

	command := &cli.Command{
		Name:                  "chanmirror-scheduler",
		EnableShellCompletion: true,
		Usage:                 "Request mirror runs for workflows whose schedule is due",
		Flags: cmd.Join(
			[]cli.Flag{
				&cli.DurationFlag{
					Name:    "interval",
					Usage:   "How often workflow schedules are evaluated",
					Value:   scheduler.DefaultInterval,
					Sources: cli.EnvVars("SCHEDULE_INTERVAL"),
				},
				cmd.DatabaseFlag(),
			},
			cmd.EventBusFlags(),
			cmd.LogFlags(),
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger.InfoContext(ctx, "Initializing chanmirror scheduler")

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

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), "chanmirror-scheduler", logger)
			if err != nil {
				return err
			}

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := scheduler.New(persistence, eventBus, logger, scheduler.Options{
				Interval: command.Duration("interval"),
			})

			err = s.Start(ctx)
			if err != nil {
				return err
			}

			<-ctx.Done()
			s.Stop()

			logger.InfoContext(ctx, "Scheduler shut down")

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("chanmirror-scheduler failed", "error", err)
		os.Exit(1)
	}
}
