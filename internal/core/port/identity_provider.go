package port

import (
	"context"

	"github.com/arklim/social-login-auth/internal/core/domain"
)

// IdentityProvider is an external OAuth provider able to vouch for a user.
type IdentityProvider interface {
	Name() string
	AuthorizationURL(redirectURI string) string
	ExchangeCode(ctx context.Context, code, redirectURI string) (domain.ProviderToken, error)
	FetchProfile(ctx context.Context, token domain.ProviderToken) (domain.ProviderProfile, error)
}
