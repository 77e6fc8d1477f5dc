package usecase

import (
	"errors"

	"github.com/arklim/social-login-auth/internal/infra/security"
)

var (
	// ErrMalformedCredential indicates a missing bearer prefix or a token with an invalid signature or structure.
	ErrMalformedCredential = errors.New("malformed credential")
	// ErrExpiredCredential indicates a correctly signed token past its expiry on the strict path.
	ErrExpiredCredential = errors.New("credential expired")
	// ErrLoggedOutCredential indicates a valid token that was revoked by logout.
	ErrLoggedOutCredential = errors.New("credential logged out")
	// ErrAlreadyLoggedOut indicates logout was repeated for an already revoked token.
	ErrAlreadyLoggedOut = errors.New("already logged out")
	// ErrNoActiveSession indicates no refresh record exists for the token subject.
	ErrNoActiveSession = errors.New("no active session")
	// ErrRefreshMismatch indicates the presented refresh token is not the current one.
	ErrRefreshMismatch = errors.New("refresh token mismatch")
	// ErrInvalidRedirect indicates a redirect URI outside the configured allowlist.
	ErrInvalidRedirect = errors.New("invalid redirect uri")
	// ErrUpstreamAuth indicates the identity provider rejected or failed the exchange.
	ErrUpstreamAuth = errors.New("identity provider error")
	// ErrUnsupportedProvider indicates no identity provider is registered under the requested name.
	ErrUnsupportedProvider = errors.New("unsupported identity provider")
	// ErrInvalidRequest indicates required input was missing or blank.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrPlatformNotFound indicates the platform does not exist or belongs to another user.
	ErrPlatformNotFound = errors.New("platform not found")
	// ErrPlatformAlreadyExists indicates the user already linked the same platform account.
	ErrPlatformAlreadyExists = errors.New("platform already registered")
)

// mapVerifyError folds signer failures into the credential taxonomy.
func mapVerifyError(err error) error {
	if errors.Is(err, security.ErrTokenExpired) {
		return ErrExpiredCredential
	}
	return ErrMalformedCredential
}
