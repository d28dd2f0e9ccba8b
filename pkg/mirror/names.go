package mirror

import (
	"context"
	"log/slog"

	"github.com/dukex/chanmirror/pkg/protocol"
)

const unknownAuthor = "unknown"

// NameResolver caches actor display names for the duration of one run.
// Failed lookups are cached as the raw id so a bad id is asked for once.
type NameResolver struct {
	source protocol.Source
	logger *slog.Logger
	cache  map[string]string
}

func NewNameResolver(source protocol.Source, logger *slog.Logger) *NameResolver {
	return &NameResolver{
		source: source,
		logger: logger,
		cache:  make(map[string]string),
	}
}

func (r *NameResolver) Resolve(ctx context.Context, actorID string) string {
	if actorID == "" {
		return unknownAuthor
	}

	if name, ok := r.cache[actorID]; ok {
		return name
	}

	name, err := r.source.ResolveActorName(ctx, actorID)
	if err != nil || name == "" {
		r.logger.WarnContext(ctx, "Falling back to raw actor id", "actor_id", actorID, "error", err)

		name = actorID
	}

	r.cache[actorID] = name

	return name
}
