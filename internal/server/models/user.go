package models

import "time"

// User is the account record. Email is stored normalized (lowercased and
// trimmed). APIKeyEncrypted and APIKeyIV are either both set or both empty;
// TrialCredits never goes below zero (enforced by the storage layer).
type User struct {
	ID              string
	Email           string
	Name            string
	Avatar          string
	PasswordHash    string
	EmailVerified   bool
	EmailVerifiedAt *time.Time
	APIProvider     string
	APIKeyEncrypted string
	APIKeyIV        string
	UseTrialMode    bool
	TrialCredits    float64
	TrialStartedAt  *time.Time
	LastLoginAt     *time.Time
	CreatedAt       time.Time
}

// HasAPIKey reports whether the user has a vaulted credential.
func (u *User) HasAPIKey() bool {
	return u.APIKeyEncrypted != "" && u.APIKeyIV != ""
}
