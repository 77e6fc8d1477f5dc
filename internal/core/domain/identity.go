package domain

import "time"

// UserRole enumerates authorization roles carried in the user summary.
type UserRole string

const (
	UserRoleUser  UserRole = "USER"
	UserRoleAdmin UserRole = "ADMIN"
)

// User mirrors the persisted representation in the users table.
// The (Provider, ProviderUserID) pair is bound 1:1 to the internal ID.
type User struct {
	ID             string
	Provider       string
	ProviderUserID string
	Nickname       string
	Email          string
	ProfileImage   string
	Role           UserRole
	CreatedAt      time.Time
	LastLogin      *time.Time
}

// ProviderProfile is the identity an external provider reports for an access token.
type ProviderProfile struct {
	ID        string
	Nickname  string
	Email     string
	AvatarURL string
}

// ProviderToken is the credential returned by an external provider code exchange.
type ProviderToken struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
}

// LoginType distinguishes the first sight of an external identity from subsequent logins.
type LoginType string

const (
	LoginTypeRegistration LoginType = "registration"
	LoginTypeLogin        LoginType = "login"
)

// LoginTypeFor maps the newly-created flag onto the reported login type.
func LoginTypeFor(isNew bool) LoginType {
	if isNew {
		return LoginTypeRegistration
	}
	return LoginTypeLogin
}
