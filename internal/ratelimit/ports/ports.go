// Package ports defines the interfaces the ratelimit module consumes.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"gatekeeper/internal/ratelimit/models"
)

// CounterStore holds per-key sliding windows of request instants.
type CounterStore interface {
	// CheckAndIncrement is one atomic step: drop instants at or before
	// now-window, deny if the remainder is >= limit, else record now.
	// Denials never record an instant.
	CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (*models.RateLimitResult, error)

	// Count returns the instants inside the window ending at now and the
	// time the oldest of them leaves the window (zero if none).
	Count(ctx context.Context, key string, window time.Duration, now time.Time) (count int, resetAt time.Time, err error)

	// Reset clears the counter for a key.
	Reset(ctx context.Context, key string) error
}
