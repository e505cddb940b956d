package store

import (
	"context"
	"time"

	"github.com/Sevenatila/dashdesenrolado/internal/models"
)

// AggregateStore holds one DailyPerformance row per calendar date. Upsert is
// a field-level merge: only the patch's non-nil fields are written, and a
// concurrent upsert for the same date is applied atomically (one winner per
// field set, no lost updates).
type AggregateStore interface {
	Upsert(ctx context.Context, date time.Time, patch models.PerformancePatch) error
	FindByDate(ctx context.Context, date time.Time) (*models.DailyPerformance, error)
	FindLatest(ctx context.Context) (*models.DailyPerformance, error)
	FindRange(ctx context.Context, start, end time.Time) ([]models.DailyPerformance, error)
}

// SaleStore holds webhook-ingested sale records keyed by external order id.
type SaleStore interface {
	UpsertSale(ctx context.Context, s models.Sale) error
	// SumPaidRevenueAndCount totals PAID sales whose creation time falls in
	// [dayStart, dayEnd).
	SumPaidRevenueAndCount(ctx context.Context, dayStart, dayEnd time.Time) (float64, int, error)
}
