package domain

import "time"

// SnsPlatform is a social-network account a user has attached to their profile.
// Verified is controlled by operators only and is never set from user input.
type SnsPlatform struct {
	ID           int64
	UserID       string
	PlatformType string
	AccountURL   string
	AccountName  string
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
