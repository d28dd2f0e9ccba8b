package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/chanmirror/pkg/cmd"
	"github.com/dukex/chanmirror/pkg/lock"
	"github.com/dukex/chanmirror/pkg/log"
	"github.com/dukex/chanmirror/pkg/mirror"
	"github.com/dukex/chanmirror/pkg/models"
	cli "github.com/urfave/cli/v3"
)

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Aliases:   []string{"r"},
		Usage:     "Run one mirror pass now and print its stats",
		ArgsUsage: "<workflow-id>",
		Flags: cmd.Join(
			[]cli.Flag{
				cmd.DatabaseFlag(),
				cmd.TracingFlag(),
				&cli.StringFlag{
					Name:    "redis-url",
					Usage:   "Redis URL for run locks shared with workers",
					Sources: cli.EnvVars("REDIS_URL"),
				},
			},
			cmd.AdapterFlags(),
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			workflowID := command.Args().First()
			if workflowID == "" {
				return errors.New("missing workflow id")
			}

			logger := log.WithModule("chanmirror").With("workflow_id", workflowID)

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

			locker, err := cmd.NewLocker(ctx, logger, command.String("redis-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := locker.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close locker", "error", err)
				}
			}()

			held, err := locker.TryLock(ctx, lock.RunKey(workflowID), lock.DefaultTTL)
			if errors.Is(err, lock.ErrLocked) {
				now := time.Now().UTC()

				return writeStats(command.Root().Writer, models.NewSkippedRun(workflowID, models.SkipAlreadyRunning, now, now))
			}

			if err != nil {
				return fmt.Errorf("failed to acquire run lock: %w", err)
			}

			defer func() {
				err := held.Release(context.WithoutCancel(ctx))
				if err != nil {
					logger.ErrorContext(ctx, "Failed to release run lock", "error", err)
				}
			}()

			engine := mirror.NewEngine(
				persistence,
				cmd.NewSourceFactory(command, logger),
				cmd.NewTargetFactory(command, logger),
				logger,
				mirror.Options{
					FetchLimit: command.Int("fetch-limit"),
					Tracer:     cmd.NewTracer(ctx, logger, command.Bool("otel-enabled"), "chanmirror"),
				},
			)

			stats, err := engine.Run(ctx, workflowID)
			if err != nil {
				return err
			}

			return writeStats(command.Root().Writer, stats)
		},
	}
}
