package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/chanmirror/pkg/cmd"
	"github.com/dukex/chanmirror/pkg/importer"
	"github.com/dukex/chanmirror/pkg/log"
	"github.com/dukex/chanmirror/pkg/services"
	cli "github.com/urfave/cli/v3"
)

func NewImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Aliases:   []string{"i"},
		Usage:     "Create or update workflows and their channels from a YAML or JSON file",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{cmd.DatabaseFlag()},
		Action: func(ctx context.Context, command *cli.Command) error {
			path := command.Args().First()
			if path == "" {
				return errors.New("missing definition file")
			}

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

			imp := importer.New(services.NewWorkflow(persistence), services.NewChannel(persistence), logger)

			result, err := imp.ImportFile(ctx, path)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(command.Root().Writer,
				"Imported %d workflow(s): %d created, %d updated, %d channel binding(s)\n",
				len(result.WorkflowIDs), result.Created, result.Updated, result.ChannelsBound)

			return err
		},
	}
}
