package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quantnest/executor/pkg/tokens"
)

// NewTokenStore keeps broker tokens in Redis when redisURL is set and in memory otherwise.
// The returned close function releases the backend.
func NewTokenStore(ctx context.Context, logger *slog.Logger, redisURL string) (*tokens.Store, func() error, error) {
	if redisURL == "" {
		logger.WarnContext(ctx, "No Redis URL configured, broker tokens are kept in memory")

		return tokens.NewStore(logger, tokens.NewMemoryBackend()), func() error { return nil }, nil
	}

	backend, err := tokens.NewRedisBackend(ctx, redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect token store: %w", err)
	}

	return tokens.NewStore(logger, backend), backend.Close, nil
}
