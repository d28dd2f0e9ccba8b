package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/dukex/chanmirror/pkg/models"
	"github.com/dukex/chanmirror/pkg/persistence"
	"github.com/google/uuid"
)

const workflowPrefix = "wf"

// WorkflowRepository stores workflows under the wf prefix.
type WorkflowRepository struct {
	store *Persistence
}

func (r *WorkflowRepository) GetAll(_ context.Context) ([]*models.Workflow, error) {
	workflows := make([]*models.Workflow, 0)

	err := r.store.scan(prefixBounds(workflowPrefix), func(value []byte) error {
		var workflow models.Workflow

		err := json.Unmarshal(value, &workflow)
		if err != nil {
			return fmt.Errorf("failed to decode workflow: %w", err)
		}

		workflows = append(workflows, &workflow)

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow

	found, err := r.store.getJSON(key(workflowPrefix, id), &workflow)
	if err != nil || !found {
		return nil, err
	}

	return &workflow, nil
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	return r.store.setJSON(key(workflowPrefix, workflow.ID), workflow)
}

func (r *WorkflowRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var workflow models.Workflow

	found, err := r.store.getJSON(key(workflowPrefix, id), &workflow)
	if err != nil {
		return err
	}

	if !found {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	err = r.store.db.Delete(key(workflowPrefix, id), pebble.Sync)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}

func (r *WorkflowRepository) TouchLastRun(_ context.Context, id string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var workflow models.Workflow

	found, err := r.store.getJSON(key(workflowPrefix, id), &workflow)
	if err != nil {
		return err
	}

	if !found {
		return persistence.NewWorkflowError("TouchLastRun", id, persistence.ErrWorkflowNotFound)
	}

	lastRun := at.UTC()
	workflow.LastRunAt = &lastRun

	return r.store.setJSON(key(workflowPrefix, id), &workflow)
}
