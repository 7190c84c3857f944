package models

import "time"

// VerificationCode is a one-time 6-digit code proving control of an email
// address. At most one unused, unexpired code exists per (email, purpose);
// the store deletes prior codes before inserting a new one.
type VerificationCode struct {
	ID        string
	Email     string
	Code      string
	Purpose   string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}
