// Package audit implements the append-only audit side channel. Writes are
// fire-and-forget: a failing sink is reported to the writer's own logger and
// never propagates into the request that triggered the entry.
package audit

import (
	"context"

	"github.com/relativit/relativit/internal/logging"
	"github.com/relativit/relativit/internal/server/models"
)

// Sink is a durable destination for audit entries.
type Sink interface {
	Append(ctx context.Context, entry *models.AuditLogEntry) error
}

// Writer records audit entries to a sink.
type Writer struct {
	sink   Sink
	logger logging.Logger
}

// NewWriter constructs a Writer over the given sink.
func NewWriter(sink Sink, l logging.Logger) *Writer {
	return &Writer{sink: sink, logger: l.With("module", "audit")}
}

// Record appends one entry. Errors are swallowed after logging; the audit
// channel must never fail the triggering operation.
func (w *Writer) Record(ctx context.Context, userID, action, resource, resourceID string, metadata map[string]any, ipAddress, userAgent string) {
	entry := &models.AuditLogEntry{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Metadata:   metadata,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
	}
	if err := w.sink.Append(ctx, entry); err != nil {
		w.logger.Error(ctx, "audit append failed", "action", action, "error", err.Error())
	}
}
