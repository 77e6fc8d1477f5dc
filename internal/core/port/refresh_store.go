package port

import (
	"context"
	"time"

	"github.com/arklim/social-login-auth/internal/core/domain"
)

// RefreshStore holds at most one live refresh token per user.
type RefreshStore interface {
	Save(ctx context.Context, userID, token string, ttl time.Duration) error
	Get(ctx context.Context, userID string) (string, bool, error)
	Clear(ctx context.Context, userID string) error
	// Rotate replaces expected with next atomically. The stored value is left
	// untouched unless it equals expected.
	Rotate(ctx context.Context, userID, expected, next string, ttl time.Duration) (domain.RotateOutcome, error)
}
