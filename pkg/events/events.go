// Package events defines the messages exchanged between the mirror services.
package events

import (
	"time"

	"github.com/dukex/chanmirror/pkg/models"
)

type EventType string

const Topic = "chanmirror.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	MirrorRunRequestedEvent EventType = "mirror.run_requested"
	MirrorRunCompletedEvent EventType = "mirror.run_completed"
	MirrorRunSkippedEvent   EventType = "mirror.run_skipped"
	MirrorRunFailedEvent    EventType = "mirror.run_failed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent stamps a new event envelope.
func NewBaseEvent(id string, eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         id,
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// MirrorRunRequested asks a worker to run one workflow.
type MirrorRunRequested struct {
	BaseEvent

	// RequestedBy is "scheduler", "api" or "cli".
	RequestedBy string `json:"requested_by"`
}

func (e MirrorRunRequested) GetType() EventType {
	return MirrorRunRequestedEvent
}

type MirrorRunCompleted struct {
	BaseEvent

	Stats *models.RunStats `json:"stats"`
}

func (e MirrorRunCompleted) GetType() EventType {
	return MirrorRunCompletedEvent
}

type MirrorRunSkipped struct {
	BaseEvent

	Reason models.SkipReason `json:"reason"`
	Stats  *models.RunStats  `json:"stats,omitempty"`
}

func (e MirrorRunSkipped) GetType() EventType {
	return MirrorRunSkippedEvent
}

type MirrorRunFailed struct {
	BaseEvent

	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e MirrorRunFailed) GetType() EventType {
	return MirrorRunFailedEvent
}
