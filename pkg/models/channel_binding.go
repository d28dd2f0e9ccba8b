package models

import "time"

// ChannelBinding ties a source channel to the target subpage that mirrors it.
// TargetSubpageID is empty until the first run creates the subpage.
type ChannelBinding struct {
	WorkflowID        string    `json:"workflow_id"`
	SourceChannelID   string    `json:"source_channel_id"   validate:"required"`
	SourceChannelName string    `json:"source_channel_name" validate:"required"`
	TargetSubpageID   string    `json:"target_subpage_id,omitempty"`
	Position          int       `json:"position"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HasSubpage reports whether the target subpage was already created.
func (b *ChannelBinding) HasSubpage() bool {
	return b.TargetSubpageID != ""
}
