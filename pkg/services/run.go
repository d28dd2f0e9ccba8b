package services

import (
	"context"
	"fmt"

	"github.com/dukex/chanmirror/pkg/eventbus"
	"github.com/dukex/chanmirror/pkg/events"
	"github.com/dukex/chanmirror/pkg/persistence"
)

// Run asks workers to mirror a workflow now.
type Run struct {
	persistence persistence.Persistence
	publisher   eventbus.EventBus
}

func NewRun(persistence persistence.Persistence, publisher eventbus.EventBus) *Run {
	return &Run{persistence: persistence, publisher: publisher}
}

// Request publishes a run request and returns its event id. Only active
// mirror workflows are accepted; the worker would skip anything else.
func (r *Run) Request(ctx context.Context, workflowID, requestedBy string) (string, error) {
	workflow, err := r.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return "", err
	}

	if workflow == nil {
		return "", ErrWorkflowNotFound
	}

	if !workflow.IsMirror() || !workflow.IsActive() {
		return "", &ServiceError{
			Op:      "Request",
			Code:    "WORKFLOW_NOT_RUNNABLE",
			Message: fmt.Sprintf("workflow %s is %s %s", workflowID, workflow.Status, workflow.Type),
			Err:     ErrWorkflowNotRunnable,
		}
	}

	id := r.publisher.GenerateID()

	err = r.publisher.Publish(ctx, workflowID, events.MirrorRunRequested{
		BaseEvent:   events.NewBaseEvent(id, events.MirrorRunRequestedEvent, workflowID),
		RequestedBy: requestedBy,
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish run request: %w", err)
	}

	return id, nil
}
