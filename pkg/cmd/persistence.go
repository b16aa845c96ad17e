// Package cmd provides the constructors shared by the command-line entry points.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quantnest/executor/pkg/persistence"
	"github.com/quantnest/executor/pkg/persistence/file"
	"github.com/quantnest/executor/pkg/persistence/postgresql"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql"}

// NewPersistence picks the implementation from the URL scheme. Anything without a known scheme
// is treated as a directory for file persistence.
//
//nolint:ireturn // the caller only needs the interface
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider := parsePersistenceProvider(databaseURL)
	logger.InfoContext(ctx, "Initializing persistence", "provider", provider)

	switch provider {
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger.With("module", "postgresql"), databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgresql persistence: %w", err)
		}

		return store, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
