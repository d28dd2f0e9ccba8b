package protocol

import (
	"context"

	"github.com/dukex/chanmirror/pkg/models"
)

// Target mutates the document tree that mirrors a workflow.
type Target interface {
	// CreateSubpage creates a child page under parentID and returns its id.
	CreateSubpage(ctx context.Context, parentID, title string) (string, error)

	// AppendItems appends one list block per item under parentID. The returned
	// ids have the same length and order as items.
	AppendItems(ctx context.Context, parentID string, items []string) ([]string, error)

	// UpdateItem replaces the text of an existing block.
	UpdateItem(ctx context.Context, blockID, text string) (bool, error)
}

// TargetFactory builds the Target used for one workflow run.
type TargetFactory func(ctx context.Context, workflow *models.Workflow) (Target, error)
