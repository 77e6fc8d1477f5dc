package domain

import "time"

// UserRegisteredEvent represents the payload for auth.user.registered messages.
type UserRegisteredEvent struct {
	EventID        string
	UserID         string
	Provider       string
	ProviderUserID string
	Nickname       string
	Email          string
	RegisteredAt   time.Time
}

// UserLoggedInEvent represents the payload for auth.user.logged_in messages.
type UserLoggedInEvent struct {
	EventID    string
	UserID     string
	Provider   string
	LoginType  LoginType
	LoggedInAt time.Time
}

// UserLoggedOutEvent represents the payload for auth.user.logged_out messages.
type UserLoggedOutEvent struct {
	EventID        string
	UserID         string
	TokenID        string
	LoggedOutAt    time.Time
	RevocationTTL  time.Duration
	RefreshCleared bool
}

// TokenRefreshedEvent represents the payload for auth.token.refreshed messages.
type TokenRefreshedEvent struct {
	EventID     string
	UserID      string
	PreviousJTI string
	RefreshedAt time.Time
}
