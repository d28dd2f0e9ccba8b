package cmd

import (
	"log/slog"

	"github.com/dukex/chanmirror/pkg/protocol"
	"github.com/dukex/chanmirror/pkg/source/slack"
	"github.com/dukex/chanmirror/pkg/target/notion"
	cli "github.com/urfave/cli/v3"
)

// NewSourceFactory builds the Slack source from the adapter flags.
func NewSourceFactory(command *cli.Command, logger *slog.Logger) protocol.SourceFactory {
	return slack.NewFactory(slack.Options{
		BaseURL:           command.String("slack-base-url"),
		Token:             command.String("slack-token"),
		RequestsPerSecond: command.Float("slack-rps"),
	}, logger)
}

// NewTargetFactory builds the Notion target from the adapter flags.
func NewTargetFactory(command *cli.Command, logger *slog.Logger) protocol.TargetFactory {
	return notion.NewFactory(notion.Options{
		BaseURL:           command.String("notion-base-url"),
		Token:             command.String("notion-token"),
		RequestsPerSecond: command.Float("notion-rps"),
	}, logger)
}
