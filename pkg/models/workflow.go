// Package models defines the core domain models for channel-to-document mirroring.
package models

import "time"

// WorkflowType identifies what a workflow does when it runs.
type WorkflowType string

const (
	WorkflowTypeMirror WorkflowType = "mirror"
)

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusActive   WorkflowStatus = "active"   // Picked up by the scheduler and runnable
	WorkflowStatusPaused   WorkflowStatus = "paused"   // Kept, but runs are skipped
	WorkflowStatusDisabled WorkflowStatus = "disabled" // Retired
)

// Workflow is a mirror definition: which target root receives the channels bound to it.
type Workflow struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"                     validate:"required,min=3"`
	Type         WorkflowType   `json:"type"                     validate:"required"`
	Status       WorkflowStatus `json:"status"                   validate:"required,oneof=active paused disabled"`
	TargetRootID string         `json:"target_root_id"`
	Schedule     string         `json:"schedule,omitempty"`
	Owner        string         `json:"owner"`
	LastRunAt    *time.Time     `json:"last_run_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// IsMirror reports whether the engine handles this workflow.
func (w *Workflow) IsMirror() bool {
	return w.Type == WorkflowTypeMirror
}

// IsActive reports whether the workflow may run.
func (w *Workflow) IsActive() bool {
	return w.Status == WorkflowStatusActive
}
