// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/dukex/chanmirror/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new mirror workflow.
type CreateWorkflowRequest struct {
	ID           string                `json:"id,omitempty"     validate:"omitempty,max=64"`
	Name         string                `json:"name"             validate:"required,min=3"`
	TargetRootID string                `json:"target_root_id"   validate:"required"`
	Schedule     string                `json:"schedule,omitempty"`
	Status       models.WorkflowStatus `json:"status,omitempty" validate:"omitempty,oneof=active paused disabled"`
	Owner        string                `json:"owner"            validate:"required"`
}

// UpdateWorkflowRequest represents the request body for updating an existing workflow.
// All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name         *string                `json:"name,omitempty"           validate:"omitempty,min=3"`
	TargetRootID *string                `json:"target_root_id,omitempty" validate:"omitempty,min=1"`
	Schedule     *string                `json:"schedule,omitempty"`
	Status       *models.WorkflowStatus `json:"status,omitempty"         validate:"omitempty,oneof=active paused disabled"`
	Owner        *string                `json:"owner,omitempty"`
}

// BindChannelRequest represents the request body for binding a channel to a workflow.
type BindChannelRequest struct {
	ChannelID   string `json:"channel_id"   validate:"required"`
	ChannelName string `json:"channel_name" validate:"required"`
}

// RunResponse acknowledges a queued run.
type RunResponse struct {
	RequestID  string `json:"request_id"`
	WorkflowID string `json:"workflow_id"`
}
