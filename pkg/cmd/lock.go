package cmd

import (
	"context"
	"log/slog"

	"github.com/dukex/chanmirror/pkg/lock"
)

// NewLocker shares run locks through Redis when redisURL is set and falls
// back to an in-process locker otherwise.
//
// nolint:ireturn
func NewLocker(ctx context.Context, logger *slog.Logger, redisURL string) (lock.Locker, error) {
	if redisURL == "" {
		logger.WarnContext(ctx, "REDIS_URL not set, run locks only cover this process")

		return lock.NewMemoryLocker(), nil
	}

	return lock.NewRedisLocker(ctx, logger, redisURL)
}
