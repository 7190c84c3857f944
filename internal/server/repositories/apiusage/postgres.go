package apiusage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/relativit/relativit/internal/dbx"
	"github.com/relativit/relativit/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, usage *models.APIUsage) error {
	if usage.ID == "" {
		usage.ID = uuid.NewString()
	}
	query := `
		INSERT INTO api_usage (id, user_id, provider, model, endpoint, tokens, cost, duration_ms, success, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := r.db.ExecContext(ctx, query,
		usage.ID, usage.UserID, usage.Provider, usage.Model, usage.Endpoint,
		usage.Tokens, usage.Cost, usage.Duration.Milliseconds(), usage.Success, usage.Error); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) TotalsForUser(ctx context.Context, userID string, since time.Time) (*models.UsageTotals, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(tokens), 0), COALESCE(SUM(cost), 0)
		FROM api_usage
		WHERE user_id = $1 AND created_at >= $2
	`
	totals := &models.UsageTotals{}
	if err := r.db.QueryRowContext(ctx, query, userID, since).
		Scan(&totals.Requests, &totals.Tokens, &totals.Cost); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return totals, nil
}

func (r *PostgresRepository) GroupedForUser(ctx context.Context, userID string, since time.Time) ([]models.UsageGroup, error) {
	query := `
		SELECT provider, endpoint, COUNT(*), COALESCE(SUM(tokens), 0), COALESCE(SUM(cost), 0)
		FROM api_usage
		WHERE user_id = $1 AND created_at >= $2
		GROUP BY provider, endpoint
		ORDER BY provider, endpoint
	`
	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var groups []models.UsageGroup
	for rows.Next() {
		var g models.UsageGroup
		if err := rows.Scan(&g.Provider, &g.Endpoint, &g.Requests, &g.Tokens, &g.Cost); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return groups, nil
}

func (r *PostgresRepository) DailyForUser(ctx context.Context, userID string, since time.Time) ([]models.UsageDay, error) {
	query := `
		SELECT created_at::date AS day, COUNT(*), COALESCE(SUM(tokens), 0)
		FROM api_usage
		WHERE user_id = $1 AND created_at >= $2
		GROUP BY day
		ORDER BY day DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var days []models.UsageDay
	for rows.Next() {
		var d models.UsageDay
		if err := rows.Scan(&d.Date, &d.Requests, &d.Tokens); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return days, nil
}
