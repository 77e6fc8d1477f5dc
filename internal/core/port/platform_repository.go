package port

import (
	"context"

	"github.com/arklim/social-login-auth/internal/core/domain"
)

// PlatformRepository persists SNS platform links scoped to their owner.
type PlatformRepository interface {
	Create(ctx context.Context, platform domain.SnsPlatform) (*domain.SnsPlatform, error)
	Exists(ctx context.Context, userID, platformType, accountURL string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]domain.SnsPlatform, error)
	Get(ctx context.Context, userID string, platformID int64) (*domain.SnsPlatform, error)
	Update(ctx context.Context, platform domain.SnsPlatform) (*domain.SnsPlatform, error)
	Delete(ctx context.Context, userID string, platformID int64) error
}
