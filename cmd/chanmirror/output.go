package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dukex/chanmirror/pkg/models"
	"github.com/dustin/go-humanize"
)

type workflowRow struct {
	Workflow *models.Workflow
	Channels int
}

func writeStats(w io.Writer, stats *models.RunStats) error {
	if stats.Skipped {
		_, err := fmt.Fprintf(w, "Run of %s skipped: %s\n", stats.WorkflowID, stats.Reason)

		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Workflow:\t%s\n", stats.WorkflowID)
	fmt.Fprintf(tw, "Channels processed:\t%s\n", humanize.Comma(int64(stats.ChannelsProcessed)))
	fmt.Fprintf(tw, "Messages synced:\t%s\n", humanize.Comma(int64(stats.MessagesSynced)))
	fmt.Fprintf(tw, "Replies synced:\t%s\n", humanize.Comma(int64(stats.RepliesSynced)))
	fmt.Fprintf(tw, "Messages updated:\t%s\n", humanize.Comma(int64(stats.MessagesUpdated)))
	fmt.Fprintf(tw, "Deletions marked:\t%s\n", humanize.Comma(int64(stats.DeletionsMarked)))
	fmt.Fprintf(tw, "Duration:\t%s\n", stats.Duration.Round(time.Millisecond))

	return tw.Flush()
}

func writeWorkflows(w io.Writer, rows []workflowRow, now time.Time) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No workflows")

		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tSCHEDULE\tCHANNELS\tLAST RUN")

	for _, row := range rows {
		schedule := row.Workflow.Schedule
		if schedule == "" {
			schedule = "on demand"
		}

		lastRun := "never"
		if row.Workflow.LastRunAt != nil {
			lastRun = humanize.RelTime(*row.Workflow.LastRunAt, now, "ago", "from now")
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Workflow.ID,
			row.Workflow.Name,
			row.Workflow.Status,
			schedule,
			humanize.Comma(int64(row.Channels)),
			lastRun,
		)
	}

	return tw.Flush()
}
