// Package persistence provides the storage abstraction for workflows, channel
// bindings and message mappings.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/chanmirror/pkg/models"
)

// Persistence groups the repositories of one storage backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ChannelBindingRepository() ChannelBindingRepository
	MappingRepository() MappingRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	// GetByID returns nil without error when the workflow does not exist.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
	// TouchLastRun records the end of a mirror run.
	TouchLastRun(ctx context.Context, id string, at time.Time) error
}

// ChannelBindingRepository stores the channels bound to each workflow.
type ChannelBindingRepository interface {
	// ListBindings returns bindings in registry order.
	ListBindings(ctx context.Context, workflowID string) ([]*models.ChannelBinding, error)
	// GetBinding returns nil without error when the binding does not exist.
	GetBinding(ctx context.Context, workflowID, channelID string) (*models.ChannelBinding, error)
	// BindChannel creates or updates the binding for (WorkflowID, SourceChannelID).
	// A subpage id, once stored, is never replaced.
	BindChannel(ctx context.Context, binding *models.ChannelBinding) (*models.ChannelBinding, error)
	DeleteBinding(ctx context.Context, workflowID, channelID string) error
}

// MappingRepository is the ledger of mirrored messages. Put is the
// compare-and-set point that keeps runs idempotent.
type MappingRepository interface {
	// Get returns nil without error when no mapping exists for the key.
	Get(ctx context.Context, workflowID, channelID string, sourceTS float64) (*models.MessageMapping, error)
	// Put inserts a mapping; it fails with ErrMappingExists when the key is taken.
	Put(ctx context.Context, mapping *models.MessageMapping) (*models.MessageMapping, error)
	// ListSince returns mappings with SourceTS >= minSourceTS, ascending.
	ListSince(ctx context.Context, workflowID, channelID string, minSourceTS float64) ([]*models.MessageMapping, error)
	// MarkDeleted annotates a mapping whose source message disappeared.
	MarkDeleted(ctx context.Context, workflowID, channelID string, sourceTS float64, at time.Time) error
}
