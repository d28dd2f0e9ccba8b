package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dukex/chanmirror/pkg/models"
	"github.com/dukex/chanmirror/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	locker

	root string // File system root for storing workflows
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) dir() string {
	return filepath.Join(wr.root, "workflows")
}

// GetAll returns all workflows, newest first.
func (wr *WorkflowRepository) GetAll(_ context.Context) ([]*models.Workflow, error) {
	jsonFiles, err := fs.Glob(os.DirFS(wr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(jsonFiles))

	for _, name := range jsonFiles {
		var workflow models.Workflow

		found, err := readJSON(filepath.Join(wr.dir(), name), &workflow)
		if err != nil {
			return nil, err
		}

		if found {
			workflows = append(workflows, &workflow)
		}
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// GetByID returns the workflow, or nil when it does not exist.
func (wr *WorkflowRepository) GetByID(_ context.Context, workflowID string) (*models.Workflow, error) {
	var workflow models.Workflow

	found, err := readJSON(filepath.Join(wr.dir(), fileName(workflowID)), &workflow)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return &workflow, nil
}

// Save stores a workflow, assigning an ID and timestamps when missing.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
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

	wr.mu.Lock()
	defer wr.mu.Unlock()

	return writeJSON(filepath.Join(wr.dir(), fileName(workflow.ID)), workflow)
}

// Delete removes the workflow file.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	err := os.Remove(filepath.Join(wr.dir(), fileName(id)))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
		}

		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}

// TouchLastRun stores the time the last mirror run finished.
func (wr *WorkflowRepository) TouchLastRun(_ context.Context, id string, at time.Time) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	path := filepath.Join(wr.dir(), fileName(id))

	var workflow models.Workflow

	found, err := readJSON(path, &workflow)
	if err != nil {
		return err
	}

	if !found {
		return persistence.NewWorkflowError("TouchLastRun", id, persistence.ErrWorkflowNotFound)
	}

	lastRun := at.UTC()
	workflow.LastRunAt = &lastRun

	return writeJSON(path, &workflow)
}
