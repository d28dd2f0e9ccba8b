package file

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/dukex/chanmirror/pkg/models"
	"github.com/dukex/chanmirror/pkg/persistence"
)

// ChannelBindingRepository keeps the bindings of each workflow in one JSON file.
type ChannelBindingRepository struct {
	locker

	root string
}

// NewChannelBindingRepository creates a new channel binding repository.
func NewChannelBindingRepository(root string) *ChannelBindingRepository {
	return &ChannelBindingRepository{root: root}
}

func (br *ChannelBindingRepository) path(workflowID string) string {
	return filepath.Join(br.root, "bindings", fileName(workflowID))
}

func (br *ChannelBindingRepository) load(workflowID string) ([]*models.ChannelBinding, error) {
	bindings := make([]*models.ChannelBinding, 0)

	_, err := readJSON(br.path(workflowID), &bindings)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(bindings, func(i, j int) bool {
		return bindings[i].Position < bindings[j].Position
	})

	return bindings, nil
}

func (br *ChannelBindingRepository) ListBindings(_ context.Context, workflowID string) ([]*models.ChannelBinding, error) {
	br.mu.Lock()
	defer br.mu.Unlock()

	return br.load(workflowID)
}

func (br *ChannelBindingRepository) GetBinding(_ context.Context, workflowID, channelID string) (*models.ChannelBinding, error) {
	br.mu.Lock()
	defer br.mu.Unlock()

	bindings, err := br.load(workflowID)
	if err != nil {
		return nil, err
	}

	for _, binding := range bindings {
		if binding.SourceChannelID == channelID {
			return binding, nil
		}
	}

	return nil, nil
}

// BindChannel upserts a binding. New bindings go last; a stored subpage id is kept.
func (br *ChannelBindingRepository) BindChannel(_ context.Context, binding *models.ChannelBinding) (*models.ChannelBinding, error) {
	br.mu.Lock()
	defer br.mu.Unlock()

	bindings, err := br.load(binding.WorkflowID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	var stored *models.ChannelBinding

	for _, existing := range bindings {
		if existing.SourceChannelID == binding.SourceChannelID {
			stored = existing

			break
		}
	}

	if stored == nil {
		stored = &models.ChannelBinding{
			WorkflowID:      binding.WorkflowID,
			SourceChannelID: binding.SourceChannelID,
			Position:        nextPosition(bindings),
			CreatedAt:       now,
		}
		bindings = append(bindings, stored)
	}

	stored.SourceChannelName = binding.SourceChannelName
	stored.UpdatedAt = now

	if !stored.HasSubpage() {
		stored.TargetSubpageID = binding.TargetSubpageID
	}

	err = writeJSON(br.path(binding.WorkflowID), bindings)
	if err != nil {
		return nil, persistence.NewBindingError("BindChannel", binding.WorkflowID, binding.SourceChannelID, err)
	}

	result := *stored

	return &result, nil
}

func (br *ChannelBindingRepository) DeleteBinding(_ context.Context, workflowID, channelID string) error {
	br.mu.Lock()
	defer br.mu.Unlock()

	bindings, err := br.load(workflowID)
	if err != nil {
		return err
	}

	for i, binding := range bindings {
		if binding.SourceChannelID == channelID {
			bindings = append(bindings[:i], bindings[i+1:]...)

			return writeJSON(br.path(workflowID), bindings)
		}
	}

	return persistence.NewBindingError("DeleteBinding", workflowID, channelID, persistence.ErrBindingNotFound)
}

func nextPosition(bindings []*models.ChannelBinding) int {
	next := 0

	for _, binding := range bindings {
		if binding.Position >= next {
			next = binding.Position + 1
		}
	}

	return next
}
