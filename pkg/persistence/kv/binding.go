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
)

const bindingPrefix = "bind"

// ChannelBindingRepository stores bindings under bind/<workflow>/<channel>.
type ChannelBindingRepository struct {
	store *Persistence
}

func (r *ChannelBindingRepository) ListBindings(_ context.Context, workflowID string) ([]*models.ChannelBinding, error) {
	bindings := make([]*models.ChannelBinding, 0)

	err := r.store.scan(prefixBounds(bindingPrefix, workflowID), func(value []byte) error {
		var binding models.ChannelBinding

		err := json.Unmarshal(value, &binding)
		if err != nil {
			return fmt.Errorf("failed to decode channel binding: %w", err)
		}

		bindings = append(bindings, &binding)

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(bindings, func(i, j int) bool {
		return bindings[i].Position < bindings[j].Position
	})

	return bindings, nil
}

func (r *ChannelBindingRepository) GetBinding(_ context.Context, workflowID, channelID string) (*models.ChannelBinding, error) {
	var binding models.ChannelBinding

	found, err := r.store.getJSON(key(bindingPrefix, workflowID, channelID), &binding)
	if err != nil || !found {
		return nil, err
	}

	return &binding, nil
}

// BindChannel upserts a binding. New bindings go last; a stored subpage id is kept.
func (r *ChannelBindingRepository) BindChannel(ctx context.Context, binding *models.ChannelBinding) (*models.ChannelBinding, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now().UTC()

	stored, err := r.GetBinding(ctx, binding.WorkflowID, binding.SourceChannelID)
	if err != nil {
		return nil, err
	}

	if stored == nil {
		existing, err := r.ListBindings(ctx, binding.WorkflowID)
		if err != nil {
			return nil, err
		}

		position := 0
		if len(existing) > 0 {
			position = existing[len(existing)-1].Position + 1
		}

		stored = &models.ChannelBinding{
			WorkflowID:      binding.WorkflowID,
			SourceChannelID: binding.SourceChannelID,
			Position:        position,
			CreatedAt:       now,
		}
	}

	stored.SourceChannelName = binding.SourceChannelName
	stored.UpdatedAt = now

	if !stored.HasSubpage() {
		stored.TargetSubpageID = binding.TargetSubpageID
	}

	err = r.store.setJSON(key(bindingPrefix, binding.WorkflowID, binding.SourceChannelID), stored)
	if err != nil {
		return nil, persistence.NewBindingError("BindChannel", binding.WorkflowID, binding.SourceChannelID, err)
	}

	return stored, nil
}

func (r *ChannelBindingRepository) DeleteBinding(ctx context.Context, workflowID, channelID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, err := r.GetBinding(ctx, workflowID, channelID)
	if err != nil {
		return err
	}

	if existing == nil {
		return persistence.NewBindingError("DeleteBinding", workflowID, channelID, persistence.ErrBindingNotFound)
	}

	err = r.store.db.Delete(key(bindingPrefix, workflowID, channelID), pebble.Sync)
	if err != nil {
		return persistence.NewBindingError("DeleteBinding", workflowID, channelID, err)
	}

	return nil
}
