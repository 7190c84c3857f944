// Package apiusage declares the storage contract for AI call usage records:
// append-only writes plus read-side rollups for the usage endpoint.
package apiusage

import (
	"context"
	"time"

	"github.com/relativit/relativit/internal/server/models"
)

// Repository appends one usage row per proxied AI call, success or failure,
// and aggregates the ledger per user over a period.
type Repository interface {
	Append(ctx context.Context, usage *models.APIUsage) error
	TotalsForUser(ctx context.Context, userID string, since time.Time) (*models.UsageTotals, error)
	GroupedForUser(ctx context.Context, userID string, since time.Time) ([]models.UsageGroup, error)
	DailyForUser(ctx context.Context, userID string, since time.Time) ([]models.UsageDay, error)
}
