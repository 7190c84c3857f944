// Package repomanager wires repository constructors together behind one
// interface so services can obtain repositories bound to either the shared
// connection pool or an open transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/relativit/relativit/internal/dbx"
	"github.com/relativit/relativit/internal/server/repositories/apiusage"
	"github.com/relativit/relativit/internal/server/repositories/auditlog"
	"github.com/relativit/relativit/internal/server/repositories/refreshtokens"
	"github.com/relativit/relativit/internal/server/repositories/users"
	"github.com/relativit/relativit/internal/server/repositories/verificationcodes"
)

// RepositoryManager vends repository implementations bound to a DBTX and
// exposes a schema migration hook.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	VerificationCodes(db dbx.DBTX) verificationcodes.Repository
	AuditLog(db dbx.DBTX) auditlog.Repository
	APIUsage(db dbx.DBTX) apiusage.Repository
}
