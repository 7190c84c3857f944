// Package logging defines the structured logger the rest of the server is
// written against. The concrete implementation wraps slog.
package logging

import "context"

// Logger logs structured key-value pairs and carries the request context
// through to the handler.
//
//	log.Info(ctx, "session issued", "user_id", id)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that attaches the given pairs to every record.
	With(args ...any) Logger
}
