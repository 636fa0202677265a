package store

import (
	"context"
	"strings"
	"time"
)

// NewStore creates a postgres-backed store when configured, otherwise in-memory.
func NewStore(ctx context.Context, databaseURL string, dedupWindow time.Duration, searchLimit int) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(dedupWindow, searchLimit), nil
	}
	return NewPostgresStore(ctx, databaseURL, dedupWindow, searchLimit)
}
