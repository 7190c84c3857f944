package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

const userColumns = `id, email, name, avatar, password_hash,
	email_verified, email_verified_at,
	api_provider, api_key_encrypted, api_key_iv,
	use_trial_mode, trial_credits, trial_started_at,
	last_login_at, created_at`

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Avatar, &u.PasswordHash,
		&u.EmailVerified, &u.EmailVerifiedAt,
		&u.APIProvider, &u.APIKeyEncrypted, &u.APIKeyIV,
		&u.UseTrialMode, &u.TrialCredits, &u.TrialStartedAt,
		&u.LastLoginAt, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (email, name, password_hash, email_verified, email_verified_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.Name, user.PasswordHash,
		user.EmailVerified, user.EmailVerifiedAt, user.LastLoginAt).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string) error {
	query := `UPDATE users SET last_login_at = now() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, name, avatar *string) (*models.User, error) {
	query := `
		UPDATE users
		SET name = COALESCE($2, name), avatar = COALESCE($3, avatar)
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, query, id, name, avatar))
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	query := `UPDATE users SET password_hash = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, hash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetAPICredential(ctx context.Context, id, provider, ciphertext, iv string) error {
	query := `
		UPDATE users
		SET api_provider = $2, api_key_encrypted = $3, api_key_iv = $4
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, provider, ciphertext, iv); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ClearAPICredential(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET api_provider = '', api_key_encrypted = '', api_key_iv = ''
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// EnableTrialMode flips trial mode on and grants the starting balance in a
// single conditional statement, so repeated calls can never reset credits.
func (r *PostgresRepository) EnableTrialMode(ctx context.Context, id string, credits float64) (bool, error) {
	query := `
		UPDATE users
		SET use_trial_mode = TRUE, trial_credits = $2, trial_started_at = now()
		WHERE id = $1 AND NOT use_trial_mode
	`
	res, err := r.db.ExecContext(ctx, query, id, credits)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

// DebitTrialCredits is the single atomic check-then-decrement the trial
// ledger relies on. The positive-balance predicate and the clamped decrement
// execute as one statement, so two concurrent calls cannot jointly overdraw
// the balance and the stored value never goes negative.
func (r *PostgresRepository) DebitTrialCredits(ctx context.Context, id string, amount float64) (float64, error) {
	query := `
		UPDATE users
		SET trial_credits = GREATEST(trial_credits - $2, 0)
		WHERE id = $1 AND use_trial_mode AND trial_credits > 0
		RETURNING trial_credits
	`
	var remaining float64
	err := r.db.QueryRowContext(ctx, query, id, amount).Scan(&remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrTrialCreditsExhausted
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return remaining, nil
}
