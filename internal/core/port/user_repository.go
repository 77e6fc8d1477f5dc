package port

import (
	"context"

	"github.com/arklim/social-login-auth/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	// FindOrCreate returns the user bound to (provider, providerUserID), creating
	// it from the supplied template when absent. The flag reports creation.
	FindOrCreate(ctx context.Context, user domain.User) (*domain.User, bool, error)
	TouchLastLogin(ctx context.Context, id string) error
}
