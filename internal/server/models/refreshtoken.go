package models

import "time"

// RefreshToken is one issued long-lived opaque credential. Rows are only ever
// mutated to set RevokedAt; the token value itself is never rotated.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	RevokedAt *time.Time
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}
