// Package protocol defines the contracts between the mirror engine and the
// systems it reads from and writes to.
package protocol

import (
	"context"

	"github.com/dukex/chanmirror/pkg/models"
)

// Source is read-only access to a channel-based messaging system.
// Implementations normalize raw API records into models.Message.
type Source interface {
	// ListRecentMessages returns up to limit of the most recent root messages
	// of a channel. Order is not guaranteed.
	ListRecentMessages(ctx context.Context, channelID string, limit int) ([]models.Message, error)

	// ListThread returns a thread; element 0 is the root message.
	ListThread(ctx context.Context, channelID string, rootTS float64) ([]models.Message, error)

	// ResolveActorName returns the display name of a user or bot.
	ResolveActorName(ctx context.Context, actorID string) (string, error)
}

// SourceFactory builds the Source used for one workflow run.
type SourceFactory func(ctx context.Context, workflow *models.Workflow) (Source, error)
