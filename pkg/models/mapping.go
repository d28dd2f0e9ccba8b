package models

import "time"

// MessageMapping records which target block mirrors a source message.
// (WorkflowID, SourceChannelID, SourceTS) is unique.
type MessageMapping struct {
	WorkflowID      string     `json:"workflow_id"`
	SourceChannelID string     `json:"source_channel_id"`
	SourceTS        float64    `json:"source_ts"`
	ParentSourceTS  *float64   `json:"parent_source_ts,omitempty"`
	TargetBlockID   string     `json:"target_block_id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// IsReply reports whether the mapping belongs to a thread reply.
func (m *MessageMapping) IsReply() bool {
	return m.ParentSourceTS != nil
}

// IsDeleted reports whether the source message was inferred deleted.
func (m *MessageMapping) IsDeleted() bool {
	return m.DeletedAt != nil
}
