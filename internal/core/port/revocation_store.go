package port

import (
	"context"
	"time"
)

// RevocationStore records access tokens that were explicitly logged out.
// Entries are keyed by token identity and expire with the token itself.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenIdentity string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenIdentity string) (bool, error)
}
