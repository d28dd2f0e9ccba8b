package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/chanmirror/pkg/models"
	"github.com/dukex/chanmirror/pkg/persistence"
)

const mappingColumns = `
			workflow_id
		  , source_channel_id
		  , source_ts
		  , parent_source_ts
		  , target_block_id
		  , created_at
		  , updated_at
		  , deleted_at
`

// MappingRepository handles message mapping database operations.
type MappingRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewMappingRepository creates a new message mapping repository.
func NewMappingRepository(db *sql.DB, logger *slog.Logger) *MappingRepository {
	return &MappingRepository{db: db, logger: logger}
}

// Get returns the mapping for a source message, or nil when none exists.
func (r *MappingRepository) Get(ctx context.Context, workflowID, channelID string, sourceTS float64) (*models.MessageMapping, error) {
	query := `SELECT ` + mappingColumns + `
		FROM message_mappings
		WHERE workflow_id = $1 AND source_channel_id = $2 AND source_ts = $3
	`

	mapping, err := scanMapping(r.db.QueryRowContext(ctx, query, workflowID, channelID, sourceTS))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan message mapping: %w", err)
	}

	return mapping, nil
}

// Put inserts a mapping. A concurrent writer that already holds the key
// makes Put fail with persistence.ErrMappingExists.
func (r *MappingRepository) Put(ctx context.Context, mapping *models.MessageMapping) (*models.MessageMapping, error) {
	now := time.Now().UTC()

	stored := *mapping
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}

	stored.UpdatedAt = now

	query := `
		INSERT INTO message_mappings (workflow_id, source_channel_id, source_ts, parent_source_ts, target_block_id, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (workflow_id, source_channel_id, source_ts) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		stored.WorkflowID,
		stored.SourceChannelID,
		stored.SourceTS,
		stored.ParentSourceTS,
		stored.TargetBlockID,
		stored.CreatedAt,
		stored.UpdatedAt,
		stored.DeletedAt,
	)
	if err != nil {
		return nil, persistence.NewMappingError("Put", stored.WorkflowID, stored.SourceChannelID, stored.SourceTS, err)
	}

	err = requireAffected(result,
		persistence.NewMappingError("Put", stored.WorkflowID, stored.SourceChannelID, stored.SourceTS, persistence.ErrMappingExists))
	if err != nil {
		return nil, err
	}

	return &stored, nil
}

// ListSince returns the mappings of a channel at or after minSourceTS, oldest first.
func (r *MappingRepository) ListSince(ctx context.Context, workflowID, channelID string, minSourceTS float64) ([]*models.MessageMapping, error) {
	query := `SELECT ` + mappingColumns + `
		FROM message_mappings
		WHERE workflow_id = $1 AND source_channel_id = $2 AND source_ts >= $3
		ORDER BY source_ts ASC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID, channelID, minSourceTS)
	if err != nil {
		return nil, fmt.Errorf("failed to query message mappings: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	mappings := make([]*models.MessageMapping, 0)

	for rows.Next() {
		mapping, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message mapping: %w", err)
		}

		mappings = append(mappings, mapping)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating message mappings: %w", err)
	}

	return mappings, nil
}

// MarkDeleted sets deleted_at on an existing mapping.
func (r *MappingRepository) MarkDeleted(ctx context.Context, workflowID, channelID string, sourceTS float64, at time.Time) error {
	query := `
		UPDATE message_mappings SET deleted_at = $4, updated_at = $4
		WHERE workflow_id = $1 AND source_channel_id = $2 AND source_ts = $3
	`

	result, err := r.db.ExecContext(ctx, query, workflowID, channelID, sourceTS, at.UTC())
	if err != nil {
		return persistence.NewMappingError("MarkDeleted", workflowID, channelID, sourceTS, err)
	}

	return requireAffected(result,
		persistence.NewMappingError("MarkDeleted", workflowID, channelID, sourceTS, persistence.ErrMappingNotFound))
}

func scanMapping(scanner rowScanner) (*models.MessageMapping, error) {
	var mapping models.MessageMapping

	err := scanner.Scan(
		&mapping.WorkflowID,
		&mapping.SourceChannelID,
		&mapping.SourceTS,
		&mapping.ParentSourceTS,
		&mapping.TargetBlockID,
		&mapping.CreatedAt,
		&mapping.UpdatedAt,
		&mapping.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	return &mapping, nil
}
