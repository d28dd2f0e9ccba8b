package mirror

import (
	"context"
	"fmt"

	"github.com/dukex/chanmirror/pkg/models"
	"github.com/dukex/chanmirror/pkg/persistence"
)

// reconcile brings one message in line with the target: an existing mapping
// gets its block rewritten, a new message is appended under parentID and
// mapped. It returns the message's mapping, or nil when the message is still
// unmapped.
func (e *Engine) reconcile(
	ctx context.Context,
	run *runState,
	channel *channelRun,
	msg *models.Message,
	parentID string,
) *models.MessageMapping {
	logger := channel.logger.With("source_ts", models.FormatTS(msg.TS))
	workflowID := channel.binding.WorkflowID
	channelID := channel.binding.SourceChannelID

	existing, err := e.mappings.Get(ctx, workflowID, channelID, msg.TS)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to look up mapping", "error", err)

		return nil
	}

	text := Render(*msg, run.names.Resolve(ctx, msg.AuthorID), msg.ParentTS != nil)

	if existing != nil {
		ok, err := run.target.UpdateItem(ctx, existing.TargetBlockID, text)
		switch {
		case err != nil:
			logger.WarnContext(ctx, "Failed to update mirrored message", "block_id", existing.TargetBlockID, "error", err)
		case !ok:
			logger.WarnContext(ctx, "Target rejected update", "block_id", existing.TargetBlockID)
		default:
			run.stats.MessagesUpdated++
		}

		return existing
	}

	blockIDs, err := run.target.AppendItems(ctx, parentID, []string{text})
	if err == nil && len(blockIDs) != 1 {
		err = fmt.Errorf("target returned %d block ids for 1 item", len(blockIDs))
	}

	if err != nil {
		logger.WarnContext(ctx, "Failed to append message, will retry next run", "parent_id", parentID, "error", err)

		return nil
	}

	mapping, err := e.mappings.Put(ctx, &models.MessageMapping{
		WorkflowID:      workflowID,
		SourceChannelID: channelID,
		SourceTS:        msg.TS,
		ParentSourceTS:  msg.ParentTS,
		TargetBlockID:   blockIDs[0],
	})
	if err != nil {
		if persistence.IsMappingExists(err) {
			logger.WarnContext(ctx, "Message was mapped concurrently, keeping the first mapping", "block_id", blockIDs[0])

			existing, err := e.mappings.Get(ctx, workflowID, channelID, msg.TS)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to look up mapping", "error", err)

				return nil
			}

			return existing
		}

		logger.ErrorContext(ctx, "Failed to store mapping", "block_id", blockIDs[0], "error", err)

		return nil
	}

	if mapping.IsReply() {
		run.stats.RepliesSynced++
	} else {
		run.stats.MessagesSynced++
	}

	return mapping
}

// syncThread mirrors the replies of root under root's block. Replies of a
// root that is still unmapped wait for a later run.
func (e *Engine) syncThread(
	ctx context.Context,
	run *runState,
	channel *channelRun,
	root *models.Message,
	rootMapping *models.MessageMapping,
) {
	thread, err := run.source.ListThread(ctx, channel.binding.SourceChannelID, root.TS)
	if err != nil {
		channel.logger.WarnContext(ctx, "Failed to fetch thread", "source_ts", models.FormatTS(root.TS), "error", err)

		return
	}

	replies := make([]models.Message, 0, len(thread))

	for _, reply := range thread {
		if reply.TS == root.TS {
			continue
		}

		parentTS := root.TS
		reply.ParentTS = &parentTS

		replies = append(replies, reply)
	}

	sortByTS(replies)

	root.ThreadMessages = replies
	channel.threads[root.TS] = struct{}{}

	for i := range replies {
		channel.observe(replies[i].TS)
	}

	if rootMapping == nil {
		if len(replies) > 0 {
			channel.logger.InfoContext(ctx, "Root message unmapped, deferring replies",
				"source_ts", models.FormatTS(root.TS), "replies", len(replies))
		}

		return
	}

	for i := range replies {
		e.reconcile(ctx, run, channel, &replies[i], rootMapping.TargetBlockID)
	}
}
