package verificationcodes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/relativit/relativit/internal/common"
	"github.com/relativit/relativit/internal/dbx"
	"github.com/relativit/relativit/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) DeleteForEmail(ctx context.Context, email string, purpose string) error {
	query := `DELETE FROM verification_codes WHERE email = $1 AND purpose = $2`
	if _, err := r.db.ExecContext(ctx, query, email, purpose); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, code *models.VerificationCode) error {
	query := `
		INSERT INTO verification_codes (email, code, purpose, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query,
		code.Email, code.Code, code.Purpose, code.ExpiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Consume sets used_at on the matching live code. The predicate and the
// update run as one statement, so a replayed code loses the race and fails.
func (r *PostgresRepository) Consume(ctx context.Context, email string, code string) error {
	query := `
		UPDATE verification_codes SET used_at = now()
		WHERE email = $1 AND code = $2 AND used_at IS NULL AND expires_at > now()
	`
	res, err := r.db.ExecContext(ctx, query, email, code)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) HasRecentlyUsed(ctx context.Context, email string, window time.Duration) (bool, error) {
	query := `
		SELECT 1 FROM verification_codes
		WHERE email = $1 AND used_at IS NOT NULL AND used_at > $2
		LIMIT 1
	`
	var one int
	err := r.db.QueryRowContext(ctx, query, email, time.Now().Add(-window)).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}
