package models

import "time"

// SkipReason explains why a run did no work.
type SkipReason string

const (
	SkipWorkflowNotFound  SkipReason = "workflow_not_found"
	SkipUnsupportedType   SkipReason = "unsupported_type"
	SkipInactive          SkipReason = "inactive"
	SkipMissingTargetRoot SkipReason = "missing_target_root"
	SkipNoChannels        SkipReason = "no_channels"
	SkipSourceUnavailable SkipReason = "source_unavailable"
	SkipTargetUnavailable SkipReason = "target_unavailable"
	SkipAlreadyRunning    SkipReason = "already_running"
)

// RunStats summarizes one mirror run.
type RunStats struct {
	WorkflowID        string        `json:"workflow_id"`
	MessagesSynced    int           `json:"messages_synced"`
	RepliesSynced     int           `json:"replies_synced"`
	MessagesUpdated   int           `json:"messages_updated"`
	DeletionsMarked   int           `json:"deletions_marked"`
	ChannelsProcessed int           `json:"channels_processed"`
	Skipped           bool          `json:"skipped"`
	Reason            SkipReason    `json:"reason,omitempty"`
	StartedAt         time.Time     `json:"started_at"`
	FinishedAt        time.Time     `json:"finished_at"`
	Duration          time.Duration `json:"duration"`
}

// NewSkippedRun builds the stats of a run that stopped on a precondition.
func NewSkippedRun(workflowID string, reason SkipReason, startedAt, finishedAt time.Time) *RunStats {
	return &RunStats{
		WorkflowID: workflowID,
		Skipped:    true,
		Reason:     reason,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(startedAt),
	}
}

// Finish stamps the end of the run.
func (s *RunStats) Finish(finishedAt time.Time) {
	s.FinishedAt = finishedAt
	s.Duration = finishedAt.Sub(s.StartedAt)
}

// Items is the number of target blocks created by the run.
func (s *RunStats) Items() int {
	return s.MessagesSynced + s.RepliesSynced
}
