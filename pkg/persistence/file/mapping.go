package file

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/dukex/chanmirror/pkg/models"
	"github.com/dukex/chanmirror/pkg/persistence"
)

// MappingRepository keeps one JSON file of mappings per workflow channel,
// sorted by source timestamp.
type MappingRepository struct {
	locker

	root string
}

// NewMappingRepository creates a new message mapping repository.
func NewMappingRepository(root string) *MappingRepository {
	return &MappingRepository{root: root}
}

func (mr *MappingRepository) path(workflowID, channelID string) string {
	return filepath.Join(mr.root, "mappings", dirName(workflowID), fileName(channelID))
}

func (mr *MappingRepository) load(workflowID, channelID string) ([]*models.MessageMapping, error) {
	mappings := make([]*models.MessageMapping, 0)

	_, err := readJSON(mr.path(workflowID, channelID), &mappings)
	if err != nil {
		return nil, err
	}

	return mappings, nil
}

// search returns the index of sourceTS in mappings, or where it would be inserted.
func search(mappings []*models.MessageMapping, sourceTS float64) (int, bool) {
	i := sort.Search(len(mappings), func(i int) bool {
		return mappings[i].SourceTS >= sourceTS
	})

	return i, i < len(mappings) && mappings[i].SourceTS == sourceTS
}

func (mr *MappingRepository) Get(_ context.Context, workflowID, channelID string, sourceTS float64) (*models.MessageMapping, error) {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	mappings, err := mr.load(workflowID, channelID)
	if err != nil {
		return nil, err
	}

	i, found := search(mappings, sourceTS)
	if !found {
		return nil, nil
	}

	return mappings[i], nil
}

// Put inserts a mapping, failing with persistence.ErrMappingExists when the key is taken.
func (mr *MappingRepository) Put(_ context.Context, mapping *models.MessageMapping) (*models.MessageMapping, error) {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	mappings, err := mr.load(mapping.WorkflowID, mapping.SourceChannelID)
	if err != nil {
		return nil, err
	}

	i, found := search(mappings, mapping.SourceTS)
	if found {
		return nil, persistence.NewMappingError("Put", mapping.WorkflowID, mapping.SourceChannelID, mapping.SourceTS, persistence.ErrMappingExists)
	}

	now := time.Now().UTC()

	stored := *mapping
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}

	stored.UpdatedAt = now

	mappings = append(mappings, nil)
	copy(mappings[i+1:], mappings[i:])
	mappings[i] = &stored

	err = writeJSON(mr.path(mapping.WorkflowID, mapping.SourceChannelID), mappings)
	if err != nil {
		return nil, persistence.NewMappingError("Put", mapping.WorkflowID, mapping.SourceChannelID, mapping.SourceTS, err)
	}

	return &stored, nil
}

func (mr *MappingRepository) ListSince(_ context.Context, workflowID, channelID string, minSourceTS float64) ([]*models.MessageMapping, error) {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	mappings, err := mr.load(workflowID, channelID)
	if err != nil {
		return nil, err
	}

	i, _ := search(mappings, minSourceTS)

	return mappings[i:], nil
}

func (mr *MappingRepository) MarkDeleted(_ context.Context, workflowID, channelID string, sourceTS float64, at time.Time) error {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	mappings, err := mr.load(workflowID, channelID)
	if err != nil {
		return err
	}

	i, found := search(mappings, sourceTS)
	if !found {
		return persistence.NewMappingError("MarkDeleted", workflowID, channelID, sourceTS, persistence.ErrMappingNotFound)
	}

	deletedAt := at.UTC()
	mappings[i].DeletedAt = &deletedAt
	mappings[i].UpdatedAt = deletedAt

	return writeJSON(mr.path(workflowID, channelID), mappings)
}
