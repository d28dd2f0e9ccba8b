package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/chanmirror/pkg/models"
	"github.com/dukex/chanmirror/pkg/persistence"
	"github.com/go-playground/validator/v10"
)

// ErrBindingNotFound is returned when a channel is not bound to the workflow.
var ErrBindingNotFound = persistence.ErrBindingNotFound

// Channel manages the channels bound to a workflow and exposes their
// mapping ledger.
type Channel struct {
	persistence persistence.Persistence
	validate    *validator.Validate
}

func NewChannel(persistence persistence.Persistence) *Channel {
	return &Channel{
		persistence: persistence,
		validate:    validator.New(),
	}
}

// List returns the bindings of a workflow in registry order.
func (c *Channel) List(ctx context.Context, workflowID string) ([]*models.ChannelBinding, error) {
	err := c.requireWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	return c.persistence.ChannelBindingRepository().ListBindings(ctx, workflowID)
}

// Bind adds a channel to a workflow or renames an existing binding. A
// caller cannot set or replace the target subpage; the first run owns it.
func (c *Channel) Bind(ctx context.Context, workflowID string, binding *models.ChannelBinding) (*models.ChannelBinding, error) {
	if binding == nil {
		return nil, ErrBindingNil
	}

	binding.WorkflowID = workflowID
	binding.SourceChannelID = strings.TrimSpace(binding.SourceChannelID)
	binding.SourceChannelName = strings.TrimPrefix(strings.TrimSpace(binding.SourceChannelName), "#")
	binding.TargetSubpageID = ""

	err := c.validate.Struct(binding)
	if err != nil {
		return nil, NewValidationError("Bind", "INVALID_BINDING", err.Error(), ErrInvalidRequest)
	}

	err = c.requireWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	stored, err := c.persistence.ChannelBindingRepository().BindChannel(ctx, binding)
	if err != nil {
		return nil, fmt.Errorf("failed to bind channel: %w", err)
	}

	return stored, nil
}

// Unbind removes a channel binding. Mappings are kept so a rebind resumes
// without duplicating blocks.
func (c *Channel) Unbind(ctx context.Context, workflowID, channelID string) error {
	existing, err := c.persistence.ChannelBindingRepository().GetBinding(ctx, workflowID, channelID)
	if err != nil {
		return err
	}

	if existing == nil {
		return ErrBindingNotFound
	}

	return c.persistence.ChannelBindingRepository().DeleteBinding(ctx, workflowID, channelID)
}

// Mappings lists the ledger entries of a bound channel from sinceTS on.
func (c *Channel) Mappings(ctx context.Context, workflowID, channelID string, sinceTS float64) ([]*models.MessageMapping, error) {
	existing, err := c.persistence.ChannelBindingRepository().GetBinding(ctx, workflowID, channelID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return nil, ErrBindingNotFound
	}

	return c.persistence.MappingRepository().ListSince(ctx, workflowID, channelID, sinceTS)
}

func (c *Channel) requireWorkflow(ctx context.Context, workflowID string) error {
	workflow, err := c.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if workflow == nil {
		return ErrWorkflowNotFound
	}

	return nil
}
