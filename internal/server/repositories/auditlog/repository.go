// Package auditlog declares the append-only storage contract for audit
// entries.
package auditlog

import (
	"context"

	"github.com/relativit/relativit/internal/server/models"
)

// Repository appends immutable audit entries. There is deliberately no read
// or mutate surface here; entries are queried by operators out of band.
type Repository interface {
	Append(ctx context.Context, entry *models.AuditLogEntry) error
}
