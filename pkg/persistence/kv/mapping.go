package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/dukex/chanmirror/pkg/models"
	"github.com/dukex/chanmirror/pkg/persistence"
)

const mappingPrefix = "map"

// MappingRepository stores mappings under map/<workflow>/<channel>/<ts>.
type MappingRepository struct {
	store *Persistence
}

// tsKey encodes the exact float64 bits as fixed-width hex so lexical key
// order matches numeric order: the sign bit is flipped for positives and
// every bit for negatives.
func tsKey(ts float64) string {
	bits := math.Float64bits(ts)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}

	return fmt.Sprintf("%016x", bits)
}

func mappingKey(workflowID, channelID string, ts float64) []byte {
	return key(mappingPrefix, workflowID, channelID, tsKey(ts))
}

func (r *MappingRepository) Get(_ context.Context, workflowID, channelID string, sourceTS float64) (*models.MessageMapping, error) {
	var mapping models.MessageMapping

	found, err := r.store.getJSON(mappingKey(workflowID, channelID, sourceTS), &mapping)
	if err != nil || !found {
		return nil, err
	}

	return &mapping, nil
}

// Put inserts a mapping, failing with persistence.ErrMappingExists when the key is taken.
func (r *MappingRepository) Put(ctx context.Context, mapping *models.MessageMapping) (*models.MessageMapping, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, err := r.Get(ctx, mapping.WorkflowID, mapping.SourceChannelID, mapping.SourceTS)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return nil, persistence.NewMappingError("Put", mapping.WorkflowID, mapping.SourceChannelID, mapping.SourceTS, persistence.ErrMappingExists)
	}

	now := time.Now().UTC()

	stored := *mapping
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}

	stored.UpdatedAt = now

	err = r.store.setJSON(mappingKey(stored.WorkflowID, stored.SourceChannelID, stored.SourceTS), &stored)
	if err != nil {
		return nil, persistence.NewMappingError("Put", stored.WorkflowID, stored.SourceChannelID, stored.SourceTS, err)
	}

	return &stored, nil
}

func (r *MappingRepository) ListSince(_ context.Context, workflowID, channelID string, minSourceTS float64) ([]*models.MessageMapping, error) {
	bounds := prefixBounds(mappingPrefix, workflowID, channelID)
	opts := &pebble.IterOptions{
		LowerBound: mappingKey(workflowID, channelID, minSourceTS),
		UpperBound: bounds.UpperBound,
	}

	mappings := make([]*models.MessageMapping, 0)

	err := r.store.scan(opts, func(value []byte) error {
		var mapping models.MessageMapping

		err := json.Unmarshal(value, &mapping)
		if err != nil {
			return fmt.Errorf("failed to decode message mapping: %w", err)
		}

		mappings = append(mappings, &mapping)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return mappings, nil
}

func (r *MappingRepository) MarkDeleted(ctx context.Context, workflowID, channelID string, sourceTS float64, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	mapping, err := r.Get(ctx, workflowID, channelID, sourceTS)
	if err != nil {
		return err
	}

	if mapping == nil {
		return persistence.NewMappingError("MarkDeleted", workflowID, channelID, sourceTS, persistence.ErrMappingNotFound)
	}

	deletedAt := at.UTC()
	mapping.DeletedAt = &deletedAt
	mapping.UpdatedAt = deletedAt

	return r.store.setJSON(mappingKey(workflowID, channelID, sourceTS), mapping)
}
