// Package cmd holds the wiring shared by the chanmirror binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/chanmirror/pkg/persistence"
	"github.com/dukex/chanmirror/pkg/persistence/file"
	"github.com/dukex/chanmirror/pkg/persistence/kv"
	"github.com/dukex/chanmirror/pkg/persistence/postgresql"
)

// NewPersistence picks a backend from the URL scheme: file://, pebble:// or
// postgres://. A bare path is treated as file://.
//
// nolint:ireturn
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider := parsePersistenceProvider(databaseURL)

	logger.InfoContext(ctx, "Initializing persistence", "provider", provider)

	switch provider {
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return store, nil
	case "pebble":
		store, err := kv.NewPersistence(logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return store, nil
	case "file":
		return file.NewPersistence(databaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported persistence provider %q (supported: file, pebble, postgres)", provider)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
