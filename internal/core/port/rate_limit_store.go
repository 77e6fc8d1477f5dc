package port

import (
	"context"
	"time"
)

// WindowUsage is the state of one sliding window right after a hit was evaluated.
type WindowUsage struct {
	Admitted bool
	// Count includes the evaluated hit when it was admitted.
	Count int
	// Oldest is the earliest hit still inside the window, zero when the window is empty.
	Oldest time.Time
}

// RateLimitStore evaluates a hit against a sliding window of the given length.
// Trimming, counting and recording happen as one atomic step so concurrent
// replicas never admit more than limit hits per window.
type RateLimitStore interface {
	Hit(ctx context.Context, identifier string, limit int, window time.Duration, at time.Time) (WindowUsage, error)
}
