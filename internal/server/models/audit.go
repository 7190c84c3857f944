package models

import "time"

// AuditLogEntry is an immutable append-only record of a security-relevant
// action. Writing one is best-effort and never fails the triggering request.
type AuditLogEntry struct {
	ID         string
	UserID     string
	Action     string
	Resource   string
	ResourceID string
	Metadata   map[string]any
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
}
