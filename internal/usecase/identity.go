package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/social-login-auth/internal/core/domain"
	"github.com/arklim/social-login-auth/internal/core/port"
	"github.com/arklim/social-login-auth/internal/infra/logger"
	"github.com/arklim/social-login-auth/internal/infra/telemetry"
)

// IdentityResolver maps an external provider identity onto an internal user.
type IdentityResolver struct {
	providers map[string]port.IdentityProvider
	users     port.UserRepository
	metrics   *telemetry.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewIdentityResolver registers the supplied providers by name.
func NewIdentityResolver(users port.UserRepository, logger *zap.Logger, providers ...port.IdentityProvider) *IdentityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := make(map[string]port.IdentityProvider, len(providers))
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		registry[strings.ToLower(provider.Name())] = provider
	}
	return &IdentityResolver{
		providers: registry,
		users:     users,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithMetrics records provider latency on the supplied collectors.
func (r *IdentityResolver) WithMetrics(metrics *telemetry.Metrics) *IdentityResolver {
	r.metrics = metrics
	return r
}

// WithClock overrides the internal clock for deterministic tests.
func (r *IdentityResolver) WithClock(now func() time.Time) *IdentityResolver {
	if now != nil {
		r.now = now
	}
	return r
}

// Provider looks up a registered provider by case-insensitive name.
func (r *IdentityResolver) Provider(name string) (port.IdentityProvider, error) {
	provider, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	return provider, nil
}

// Providers lists the registered provider names in sorted order.
func (r *IdentityResolver) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExchangeCode trades an authorization code for a provider token. The redirect URI
// must already have passed the allowlist check.
func (r *IdentityResolver) ExchangeCode(ctx context.Context, provider port.IdentityProvider, code, redirectURI string) (domain.ProviderToken, error) {
	started := time.Now()
	token, err := provider.ExchangeCode(ctx, code, redirectURI)
	r.metrics.ProviderRequest(provider.Name(), time.Since(started).Seconds(), err)
	if err != nil {
		r.log(ctx).Warn("provider code exchange failed", zap.String("provider", provider.Name()), zap.Error(err))
		return domain.ProviderToken{}, fmt.Errorf("%w: %w", ErrUpstreamAuth, err)
	}
	return token, nil
}

// FetchProfile reads the provider-side profile for an exchanged token.
func (r *IdentityResolver) FetchProfile(ctx context.Context, provider port.IdentityProvider, token domain.ProviderToken) (domain.ProviderProfile, error) {
	started := time.Now()
	profile, err := provider.FetchProfile(ctx, token)
	r.metrics.ProviderRequest(provider.Name(), time.Since(started).Seconds(), err)
	if err != nil {
		r.log(ctx).Warn("provider profile fetch failed", zap.String("provider", provider.Name()), zap.Error(err))
		return domain.ProviderProfile{}, fmt.Errorf("%w: %w", ErrUpstreamAuth, err)
	}
	if strings.TrimSpace(profile.ID) == "" {
		return domain.ProviderProfile{}, fmt.Errorf("%w: profile without id", ErrUpstreamAuth)
	}
	return profile, nil
}

// FindOrCreateUser returns the user bound to the provider identity, creating it on first sight.
// Repeated calls for the same identity return the same user; isNew is informational only.
func (r *IdentityResolver) FindOrCreateUser(ctx context.Context, provider string, profile domain.ProviderProfile) (*domain.User, bool, error) {
	now := r.now().UTC()
	user, isNew, err := r.users.FindOrCreate(ctx, domain.User{
		ID:             uuid.NewString(),
		Provider:       provider,
		ProviderUserID: profile.ID,
		Nickname:       profile.Nickname,
		Email:          profile.Email,
		ProfileImage:   profile.AvatarURL,
		Role:           domain.UserRoleUser,
		CreatedAt:      now,
		LastLogin:      &now,
	})
	if err != nil {
		return nil, false, fmt.Errorf("find or create user: %w", err)
	}

	if !isNew {
		if err := r.users.TouchLastLogin(ctx, user.ID); err != nil {
			r.log(ctx).Warn("update last login failed", zap.String("user_id", user.ID), zap.Error(err))
		} else {
			user.LastLogin = &now
		}
	}

	r.log(ctx).Debug("identity resolved",
		zap.String("provider", provider),
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
		zap.Bool("new_user", isNew),
	)

	return user, isNew, nil
}

// Resolve runs the full exchange, profile and binding sequence for one login.
func (r *IdentityResolver) Resolve(ctx context.Context, provider port.IdentityProvider, code, redirectURI string) (*domain.User, bool, error) {
	token, err := r.ExchangeCode(ctx, provider, code, redirectURI)
	if err != nil {
		return nil, false, err
	}

	profile, err := r.FetchProfile(ctx, provider, token)
	if err != nil {
		return nil, false, err
	}

	user, isNew, err := r.FindOrCreateUser(ctx, provider.Name(), profile)
	if err != nil {
		return nil, false, err
	}
	return user, isNew, nil
}

func (r *IdentityResolver) log(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, r.logger)
}
