package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/social-login-auth/internal/core/domain"
	"github.com/arklim/social-login-auth/internal/core/port"
	"github.com/arklim/social-login-auth/internal/infra/logger"
	"github.com/arklim/social-login-auth/internal/infra/security"
	"github.com/arklim/social-login-auth/internal/infra/telemetry"
)

// Session operation names used for logging and metrics.
const (
	OperationLogin         = "login"
	OperationLogout        = "logout"
	OperationRefresh       = "refresh"
	OperationLoginRedirect = "login_redirect"
	OperationAuthenticate  = "authenticate"
)

// LoginInput carries the provider callback parameters.
type LoginInput struct {
	Provider    string
	Code        string
	RedirectURI string
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	LoginType domain.LoginType
	Tokens    domain.TokenPair
	ExpiresIn int
	User      domain.User
}

// RefreshResult is returned after a successful rotation.
type RefreshResult struct {
	UserID    string
	Tokens    domain.TokenPair
	ExpiresIn int
}

// SessionService composes the signer, the two session stores and the identity resolver
// into the login, logout, refresh and redirect flows. A user holds at most one refresh token.
type SessionService struct {
	signer      *security.Signer
	identities  *IdentityResolver
	revocations port.RevocationStore
	refreshes   port.RefreshStore
	events      port.EventPublisher
	redirects   map[string]struct{}
	metrics     *telemetry.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewSessionService constructs a SessionService. allowedRedirects are matched as exact strings.
func NewSessionService(
	signer *security.Signer,
	identities *IdentityResolver,
	revocations port.RevocationStore,
	refreshes port.RefreshStore,
	events port.EventPublisher,
	allowedRedirects []string,
	logger *zap.Logger,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}

	redirects := make(map[string]struct{}, len(allowedRedirects))
	for _, uri := range allowedRedirects {
		if uri == "" {
			continue
		}
		redirects[uri] = struct{}{}
	}

	return &SessionService{
		signer:      signer,
		identities:  identities,
		revocations: revocations,
		refreshes:   refreshes,
		events:      events,
		redirects:   redirects,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	if now != nil {
		s.now = now
	}
	return s
}

// WithMetrics records operation outcomes on the supplied collectors.
func (s *SessionService) WithMetrics(metrics *telemetry.Metrics) *SessionService {
	s.metrics = metrics
	return s
}

// RedirectAllowed reports whether uri is on the allowlist.
func (s *SessionService) RedirectAllowed(uri string) bool {
	_, ok := s.redirects[uri]
	return ok
}

// Login resolves the provider identity and starts a new session, superseding any previous one.
func (s *SessionService) Login(ctx context.Context, input LoginInput) (result *LoginResult, err error) {
	defer func() { s.metrics.SessionOperation(OperationLogin, err) }()

	if !s.RedirectAllowed(input.RedirectURI) {
		return nil, ErrInvalidRedirect
	}
	if strings.TrimSpace(input.Code) == "" {
		return nil, fmt.Errorf("%w: authorization code is required", ErrInvalidRequest)
	}

	provider, err := s.identities.Provider(input.Provider)
	if err != nil {
		return nil, err
	}

	user, isNew, err := s.identities.Resolve(ctx, provider, input.Code, input.RedirectURI)
	if err != nil {
		return nil, err
	}

	now := s.now()
	pair, err := s.signer.IssuePair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token pair: %w", err)
	}

	if err := s.refreshes.Save(ctx, user.ID, pair.RefreshToken, pair.RefreshTTL(now)); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	loginType := domain.LoginTypeFor(isNew)
	s.log(ctx).Info("user logged in",
		zap.String("user_id", user.ID),
		zap.String("provider", provider.Name()),
		zap.String("login_type", string(loginType)),
	)

	if isNew {
		s.publish(ctx, "user registered", func(ctx context.Context, events port.EventPublisher) error {
			return events.PublishUserRegistered(ctx, domain.UserRegisteredEvent{
				EventID:        uuid.NewString(),
				UserID:         user.ID,
				Provider:       user.Provider,
				ProviderUserID: user.ProviderUserID,
				Nickname:       user.Nickname,
				Email:          user.Email,
				RegisteredAt:   now,
			})
		})
	}
	s.publish(ctx, "user logged in", func(ctx context.Context, events port.EventPublisher) error {
		return events.PublishUserLoggedIn(ctx, domain.UserLoggedInEvent{
			EventID:    uuid.NewString(),
			UserID:     user.ID,
			Provider:   provider.Name(),
			LoginType:  loginType,
			LoggedInAt: now,
		})
	})

	return &LoginResult{
		LoginType: loginType,
		Tokens:    pair,
		ExpiresIn: pair.ExpiresIn(now),
		User:      *user,
	}, nil
}

// Logout revokes the presented access token for its remaining lifetime and clears the
// owner's refresh record. A second logout with the same token reports ErrAlreadyLoggedOut.
func (s *SessionService) Logout(ctx context.Context, authorization string) (err error) {
	defer func() { s.metrics.SessionOperation(OperationLogout, err) }()

	token, ok := security.ExtractBearer(authorization)
	if !ok {
		return ErrMalformedCredential
	}

	identity := security.HashToken(token)
	revoked, err := s.revocations.IsRevoked(ctx, identity)
	if err != nil {
		return fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return ErrAlreadyLoggedOut
	}

	claims, err := s.signer.Verify(token)
	if err != nil {
		return mapVerifyError(err)
	}

	now := s.now()
	ttl := domain.RemainingLifetime(claims.Expiry(), now)
	if ttl > 0 {
		if err := s.revocations.Revoke(ctx, identity, ttl); err != nil {
			return fmt.Errorf("revoke access token: %w", err)
		}
	}

	userID := claims.UserID()
	if err := s.refreshes.Clear(ctx, userID); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}

	s.log(ctx).Info("user logged out", zap.String("user_id", userID), zap.Duration("revocation_ttl", ttl))

	s.publish(ctx, "user logged out", func(ctx context.Context, events port.EventPublisher) error {
		return events.PublishUserLoggedOut(ctx, domain.UserLoggedOutEvent{
			EventID:        uuid.NewString(),
			UserID:         userID,
			TokenID:        claims.ID,
			LoggedOutAt:    now,
			RevocationTTL:  ttl,
			RefreshCleared: true,
		})
	})

	return nil
}

// Refresh exchanges the current access/refresh pair for a new one. The access token may be
// expired but must be correctly signed and not logged out; the refresh token must equal the
// stored one. The stored value is swapped atomically so a refresh token is spent at most once.
func (s *SessionService) Refresh(ctx context.Context, authorization, refreshToken string) (result *RefreshResult, err error) {
	defer func() { s.metrics.SessionOperation(OperationRefresh, err) }()

	token, ok := security.ExtractBearer(authorization)
	if !ok {
		return nil, ErrMalformedCredential
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrMalformedCredential
	}

	claims, err := s.signer.VerifyIgnoringExpiry(token)
	if err != nil {
		return nil, ErrMalformedCredential
	}

	revoked, err := s.revocations.IsRevoked(ctx, security.HashToken(token))
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrLoggedOutCredential
	}

	userID := claims.UserID()
	stored, found, err := s.refreshes.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	if !found {
		return nil, ErrNoActiveSession
	}
	if !security.TokensEqual(stored, refreshToken) {
		s.log(ctx).Warn("superseded refresh token presented", zap.String("user_id", userID))
		return nil, ErrRefreshMismatch
	}

	now := s.now()
	pair, err := s.signer.IssuePair(userID)
	if err != nil {
		return nil, fmt.Errorf("issue token pair: %w", err)
	}

	outcome, err := s.refreshes.Rotate(ctx, userID, refreshToken, pair.RefreshToken, pair.RefreshTTL(now))
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	switch outcome {
	case domain.RotateSwapped:
	case domain.RotateNotFound:
		return nil, ErrNoActiveSession
	default:
		s.log(ctx).Warn("concurrent refresh lost rotation", zap.String("user_id", userID))
		return nil, ErrRefreshMismatch
	}

	s.log(ctx).Info("session refreshed", zap.String("user_id", userID))

	s.publish(ctx, "token refreshed", func(ctx context.Context, events port.EventPublisher) error {
		return events.PublishTokenRefreshed(ctx, domain.TokenRefreshedEvent{
			EventID:     uuid.NewString(),
			UserID:      userID,
			PreviousJTI: claims.ID,
			RefreshedAt: now,
		})
	})

	return &RefreshResult{
		UserID:    userID,
		Tokens:    pair,
		ExpiresIn: pair.ExpiresIn(now),
	}, nil
}

// LoginRedirect builds the provider authorization URL for an allowlisted redirect URI.
// It neither contacts the provider nor touches any store.
func (s *SessionService) LoginRedirect(providerName, redirectURI string) (location string, err error) {
	defer func() { s.metrics.SessionOperation(OperationLoginRedirect, err) }()

	if !s.RedirectAllowed(redirectURI) {
		return "", ErrInvalidRedirect
	}

	provider, err := s.identities.Provider(providerName)
	if err != nil {
		return "", err
	}

	return provider.AuthorizationURL(redirectURI), nil
}

// Authenticate gates protected calls: the bearer token must verify strictly and must not be logged out.
func (s *SessionService) Authenticate(ctx context.Context, authorization string) (claims *security.Claims, err error) {
	defer func() { s.metrics.SessionOperation(OperationAuthenticate, err) }()

	token, ok := security.ExtractBearer(authorization)
	if !ok {
		return nil, ErrMalformedCredential
	}

	claims, err = s.signer.Verify(token)
	if err != nil {
		return nil, mapVerifyError(err)
	}

	revoked, err := s.revocations.IsRevoked(ctx, security.HashToken(token))
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrLoggedOutCredential
	}

	return claims, nil
}

// publish emits a domain event after the state change has been committed.
// Failures are logged and never fail the request.
func (s *SessionService) publish(ctx context.Context, name string, send func(context.Context, port.EventPublisher) error) {
	if s.events == nil {
		return
	}
	if err := send(ctx, s.events); err != nil {
		s.log(ctx).Warn("publish event failed", zap.String("event", name), zap.Error(err))
	}
}

// IsCredentialError reports whether err is one of the expected 401 outcomes.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrMalformedCredential) ||
		errors.Is(err, ErrExpiredCredential) ||
		errors.Is(err, ErrLoggedOutCredential) ||
		errors.Is(err, ErrAlreadyLoggedOut) ||
		errors.Is(err, ErrNoActiveSession) ||
		errors.Is(err, ErrRefreshMismatch)
}

func (s *SessionService) log(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.logger)
}
