package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/chanmirror/pkg/cmd"
	"github.com/dukex/chanmirror/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func NewListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List workflows with their channels and last run",
		Flags:   []cli.Flag{cmd.DatabaseFlag()},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.WithModule("chanmirror")

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

			workflows, err := persistence.WorkflowRepository().GetAll(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch workflows: %w", err)
			}

			rows := make([]workflowRow, 0, len(workflows))

			for _, workflow := range workflows {
				bindings, err := persistence.ChannelBindingRepository().ListBindings(ctx, workflow.ID)
				if err != nil {
					return fmt.Errorf("failed to fetch channels of %s: %w", workflow.ID, err)
				}

				rows = append(rows, workflowRow{Workflow: workflow, Channels: len(bindings)})
			}

			return writeWorkflows(command.Root().Writer, rows, time.Now())
		},
	}
}
