package domain

import "time"

// TokenPair groups the credentials handed to a client after login or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// ExpiresIn reports the whole seconds left on the access token at the supplied moment.
func (p TokenPair) ExpiresIn(at time.Time) int {
	remaining := p.AccessExpiresAt.Sub(at)
	if remaining <= 0 {
		return 0
	}
	return int(remaining / time.Second)
}

// RefreshTTL reports how long the refresh record must be retained from the supplied moment.
func (p TokenPair) RefreshTTL(at time.Time) time.Duration {
	remaining := p.RefreshExpiresAt.Sub(at)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RotateOutcome enumerates the results of a compare-and-swap refresh rotation.
type RotateOutcome int

const (
	RotateNotFound RotateOutcome = iota
	RotateMismatch
	RotateSwapped
)

// RemainingLifetime computes the revocation TTL for a token expiring at expiresAt.
// The result is clamped to zero for tokens that have already expired.
func RemainingLifetime(expiresAt, now time.Time) time.Duration {
	remaining := expiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
