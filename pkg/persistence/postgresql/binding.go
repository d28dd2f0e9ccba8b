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
	"github.com/lib/pq"
)

// foreignKeyViolation is the PostgreSQL SQLSTATE for a missing referenced row.
const foreignKeyViolation = "23503"

const bindingColumns = `
			workflow_id
		  , source_channel_id
		  , source_channel_name
		  , target_subpage_id
		  , position
		  , created_at
		  , updated_at
`

// ChannelBindingRepository handles channel binding database operations.
type ChannelBindingRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewChannelBindingRepository creates a new channel binding repository.
func NewChannelBindingRepository(db *sql.DB, logger *slog.Logger) *ChannelBindingRepository {
	return &ChannelBindingRepository{db: db, logger: logger}
}

// ListBindings returns the bindings of a workflow in registry order.
func (r *ChannelBindingRepository) ListBindings(ctx context.Context, workflowID string) ([]*models.ChannelBinding, error) {
	query := `SELECT ` + bindingColumns + `
		FROM channel_bindings
		WHERE workflow_id = $1
		ORDER BY position, created_at
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query channel bindings: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	bindings := make([]*models.ChannelBinding, 0)

	for rows.Next() {
		binding, err := scanBinding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel binding: %w", err)
		}

		bindings = append(bindings, binding)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating channel bindings: %w", err)
	}

	return bindings, nil
}

// GetBinding returns the binding, or nil when the channel is not bound.
func (r *ChannelBindingRepository) GetBinding(ctx context.Context, workflowID, channelID string) (*models.ChannelBinding, error) {
	query := `SELECT ` + bindingColumns + `
		FROM channel_bindings
		WHERE workflow_id = $1 AND source_channel_id = $2
	`

	binding, err := scanBinding(r.db.QueryRowContext(ctx, query, workflowID, channelID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan channel binding: %w", err)
	}

	return binding, nil
}

// BindChannel upserts a binding. New bindings are appended after the
// existing ones; a stored subpage id is kept.
func (r *ChannelBindingRepository) BindChannel(ctx context.Context, binding *models.ChannelBinding) (*models.ChannelBinding, error) {
	now := time.Now().UTC()

	query := `
		INSERT INTO channel_bindings (workflow_id, source_channel_id, source_channel_name, target_subpage_id, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, (SELECT COALESCE(MAX(position) + 1, 0) FROM channel_bindings WHERE workflow_id = $1), $5, $5)
		ON CONFLICT (workflow_id, source_channel_id) DO UPDATE SET
			source_channel_name = EXCLUDED.source_channel_name,
			target_subpage_id = COALESCE(NULLIF(channel_bindings.target_subpage_id, ''), EXCLUDED.target_subpage_id),
			updated_at = EXCLUDED.updated_at
		RETURNING ` + bindingColumns

	stored, err := scanBinding(r.db.QueryRowContext(ctx, query,
		binding.WorkflowID,
		binding.SourceChannelID,
		binding.SourceChannelName,
		binding.TargetSubpageID,
		now,
	))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return nil, persistence.NewBindingError("BindChannel", binding.WorkflowID, binding.SourceChannelID, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewBindingError("BindChannel", binding.WorkflowID, binding.SourceChannelID, err)
	}

	return stored, nil
}

// DeleteBinding removes a channel from a workflow. Mappings are kept.
func (r *ChannelBindingRepository) DeleteBinding(ctx context.Context, workflowID, channelID string) error {
	query := `DELETE FROM channel_bindings WHERE workflow_id = $1 AND source_channel_id = $2`

	result, err := r.db.ExecContext(ctx, query, workflowID, channelID)
	if err != nil {
		return fmt.Errorf("failed to delete channel binding: %w", err)
	}

	return requireAffected(result, persistence.NewBindingError("DeleteBinding", workflowID, channelID, persistence.ErrBindingNotFound))
}

func scanBinding(scanner rowScanner) (*models.ChannelBinding, error) {
	var binding models.ChannelBinding

	err := scanner.Scan(
		&binding.WorkflowID,
		&binding.SourceChannelID,
		&binding.SourceChannelName,
		&binding.TargetSubpageID,
		&binding.Position,
		&binding.CreatedAt,
		&binding.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &binding, nil
}
