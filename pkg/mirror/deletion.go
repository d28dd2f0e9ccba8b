package mirror

import (
	"context"
	"fmt"

	"github.com/dukex/chanmirror/pkg/models"
)

// detectDeletions marks mapped messages that fell out of the source. Only
// mappings at or after the earliest timestamp seen this run are considered;
// older ones are outside the visible window and never touched.
func (e *Engine) detectDeletions(ctx context.Context, run *runState, channel *channelRun) error {
	if len(channel.seen) == 0 {
		return nil
	}

	workflowID := channel.binding.WorkflowID
	channelID := channel.binding.SourceChannelID

	mappings, err := e.mappings.ListSince(ctx, workflowID, channelID, channel.minSeen())
	if err != nil {
		return fmt.Errorf("failed to list mappings for deletion check: %w", err)
	}

	for _, mapping := range mappings {
		if _, ok := channel.seen[mapping.SourceTS]; ok {
			continue
		}

		if mapping.IsDeleted() {
			continue
		}

		if mapping.IsReply() && channel.threadUnread(*mapping.ParentSourceTS) {
			continue
		}

		e.markDeleted(ctx, run, channel, mapping)
	}

	return nil
}

func (e *Engine) markDeleted(ctx context.Context, run *runState, channel *channelRun, mapping *models.MessageMapping) {
	logger := channel.logger.With("source_ts", models.FormatTS(mapping.SourceTS), "block_id", mapping.TargetBlockID)

	ok, err := run.target.UpdateItem(ctx, mapping.TargetBlockID, RenderDeleted(mapping.SourceTS))
	if err != nil || !ok {
		logger.WarnContext(ctx, "Failed to mark deleted message", "error", err)

		return
	}

	err = e.mappings.MarkDeleted(ctx, mapping.WorkflowID, mapping.SourceChannelID, mapping.SourceTS, e.now())
	if err != nil {
		logger.ErrorContext(ctx, "Failed to annotate deleted mapping", "error", err)

		return
	}

	run.stats.DeletionsMarked++

	logger.InfoContext(ctx, "Marked message deleted")
}
