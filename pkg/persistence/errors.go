// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"

	"github.com/dukex/chanmirror/pkg/models"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrBindingNotFound indicates a channel is not bound to the workflow.
	ErrBindingNotFound = errors.New("channel binding not found")

	// ErrMappingNotFound indicates no mapping exists for a source message.
	ErrMappingNotFound = errors.New("message mapping not found")

	// ErrMappingExists indicates a mapping already exists for the source message.
	ErrMappingExists = errors.New("message mapping already exists")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	WorkflowID string // Workflow ID if applicable
	Err        error  // Underlying error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// BindingError wraps channel binding errors with additional context.
type BindingError struct {
	Op         string
	WorkflowID string
	ChannelID  string
	Err        error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("%s operation failed for channel %s in workflow %s: %v", e.Op, e.ChannelID, e.WorkflowID, e.Err)
}

func (e *BindingError) Unwrap() error {
	return e.Err
}

func (e *BindingError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewBindingError creates a new channel binding error with context.
func NewBindingError(op, workflowID, channelID string, err error) *BindingError {
	return &BindingError{
		Op:         op,
		WorkflowID: workflowID,
		ChannelID:  channelID,
		Err:        err,
	}
}

// MappingError wraps message mapping errors with the mapping key.
type MappingError struct {
	Op         string
	WorkflowID string
	ChannelID  string
	SourceTS   float64
	Err        error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s operation failed for message %s in channel %s of workflow %s: %v",
		e.Op, models.FormatTS(e.SourceTS), e.ChannelID, e.WorkflowID, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

func (e *MappingError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewMappingError creates a new mapping error with context.
func NewMappingError(op, workflowID, channelID string, sourceTS float64, err error) *MappingError {
	return &MappingError{
		Op:         op,
		WorkflowID: workflowID,
		ChannelID:  channelID,
		SourceTS:   sourceTS,
		Err:        err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsBindingNotFound checks if an error indicates a channel binding was not found.
func IsBindingNotFound(err error) bool {
	return errors.Is(err, ErrBindingNotFound)
}

// IsMappingNotFound checks if an error indicates a mapping was not found.
func IsMappingNotFound(err error) bool {
	return errors.Is(err, ErrMappingNotFound)
}

// IsMappingExists checks if an error reports a lost insert race on a mapping key.
func IsMappingExists(err error) bool {
	return errors.Is(err, ErrMappingExists)
}
