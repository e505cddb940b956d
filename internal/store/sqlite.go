package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Sevenatila/dashdesenrolado/internal/models"
)

const dateLayout = "2006-01-02"

// SQLite implements AggregateStore and SaleStore on a single database file.
// Use ":memory:" for tests. Upserts go through a read-modify-write under the
// mutex so per-date field merges stay atomic even when a manual and a
// scheduled sync race on the same day.
type SQLite struct {
	db *sql.DB
	mu sync.RWMutex
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS daily_performance (
		date TEXT PRIMARY KEY,
		spend REAL NOT NULL DEFAULT 0,
		link_clicks INTEGER NOT NULL DEFAULT 0,
		impressions INTEGER NOT NULL DEFAULT 0,
		page_views INTEGER NOT NULL DEFAULT 0,
		unique_plays INTEGER NOT NULL DEFAULT 0,
		views INTEGER NOT NULL DEFAULT 0,
		finishes INTEGER NOT NULL DEFAULT 0,
		lead_retention INTEGER NOT NULL DEFAULT 0,
		engagement INTEGER NOT NULL DEFAULT 0,
		pitch_retention INTEGER NOT NULL DEFAULT 0,
		sales INTEGER NOT NULL DEFAULT 0,
		revenue REAL NOT NULL DEFAULT 0,
		cpa REAL NOT NULL DEFAULT 0,
		avg_ticket REAL NOT NULL DEFAULT 0,
		vsl_conversion REAL NOT NULL DEFAULT 0,
		checkout_conversion INTEGER NOT NULL DEFAULT 0,
		order_bump_conversion INTEGER NOT NULL DEFAULT 0,
		back_redirect_conversion INTEGER NOT NULL DEFAULT 0,
		upsell_conversion INTEGER NOT NULL DEFAULT 0,
		upsell2_conversion INTEGER NOT NULL DEFAULT 0,
		downsell_conversion INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS sales (
		external_id TEXT PRIMARY KEY,
		platform TEXT NOT NULL,
		status TEXT NOT NULL,
		amount REAL NOT NULL DEFAULT 0,
		customer_email TEXT NOT NULL DEFAULT '',
		utm_source TEXT NOT NULL DEFAULT '',
		utm_medium TEXT NOT NULL DEFAULT '',
		utm_campaign TEXT NOT NULL DEFAULT '',
		utm_content TEXT NOT NULL DEFAULT '',
		utm_term TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_status_created ON sales(status, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

const perfCols = `date, spend, link_clicks, impressions, page_views,
	unique_plays, views, finishes, lead_retention, engagement, pitch_retention,
	sales, revenue, cpa, avg_ticket, vsl_conversion,
	checkout_conversion, order_bump_conversion, back_redirect_conversion,
	upsell_conversion, upsell2_conversion, downsell_conversion`

func (s *SQLite) Upsert(ctx context.Context, date time.Time, patch models.PerformancePatch) error {
	day := models.DayUTC(date)
	s.mu.Lock()
	defer s.mu.Unlock()

	agg, err := s.findByDateLocked(ctx, day)
	if err != nil {
		return err
	}
	if agg == nil {
		agg = &models.DailyPerformance{Date: day}
	}
	patch.Apply(agg)

	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO daily_performance (`+perfCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		day.Format(dateLayout), agg.Spend, agg.LinkClicks, agg.Impressions, agg.PageViews,
		agg.UniquePlays, agg.Views, agg.Finishes, agg.LeadRetention, agg.Engagement, agg.PitchRetention,
		agg.Sales, agg.Revenue, agg.CPA, agg.AvgTicket, agg.VSLConversion,
		agg.CheckoutConversion, agg.OrderBumpConversion, agg.BackRedirectConversion,
		agg.UpsellConversion, agg.Upsell2Conversion, agg.DownsellConversion)
	if err != nil {
		return fmt.Errorf("upsert daily_performance: %w", err)
	}
	return nil
}

func (s *SQLite) FindByDate(ctx context.Context, date time.Time) (*models.DailyPerformance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findByDateLocked(ctx, models.DayUTC(date))
}

func (s *SQLite) findByDateLocked(ctx context.Context, day time.Time) (*models.DailyPerformance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+perfCols+` FROM daily_performance WHERE date = ?`,
		day.Format(dateLayout))
	return scanPerf(row)
}

func (s *SQLite) FindLatest(ctx context.Context) (*models.DailyPerformance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+perfCols+` FROM daily_performance ORDER BY date DESC LIMIT 1`)
	return scanPerf(row)
}

func (s *SQLite) FindRange(ctx context.Context, start, end time.Time) ([]models.DailyPerformance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT `+perfCols+` FROM daily_performance
		WHERE date >= ? AND date <= ? ORDER BY date ASC`,
		models.DayUTC(start).Format(dateLayout), models.DayUTC(end).Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.DailyPerformance
	for rows.Next() {
		p, err := scanPerfRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerfRow(r rowScanner) (*models.DailyPerformance, error) {
	var p models.DailyPerformance
	var date string
	err := r.Scan(&date, &p.Spend, &p.LinkClicks, &p.Impressions, &p.PageViews,
		&p.UniquePlays, &p.Views, &p.Finishes, &p.LeadRetention, &p.Engagement, &p.PitchRetention,
		&p.Sales, &p.Revenue, &p.CPA, &p.AvgTicket, &p.VSLConversion,
		&p.CheckoutConversion, &p.OrderBumpConversion, &p.BackRedirectConversion,
		&p.UpsellConversion, &p.Upsell2Conversion, &p.DownsellConversion)
	if err != nil {
		return nil, err
	}
	p.Date, err = time.ParseInLocation(dateLayout, date, time.UTC)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPerf(row *sql.Row) (*models.DailyPerformance, error) {
	p, err := scanPerfRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (s *SQLite) UpsertSale(ctx context.Context, sale models.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	created := sale.CreatedAt
	if created.IsZero() {
		created = now
	}
	// New rows take the full record; replays only move status and amount.
	_, err := s.db.ExecContext(ctx, `INSERT INTO sales
		(external_id, platform, status, amount, customer_email,
		 utm_source, utm_medium, utm_campaign, utm_content, utm_term,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			status = excluded.status,
			amount = CASE WHEN excluded.amount != 0 THEN excluded.amount ELSE amount END,
			updated_at = excluded.updated_at`,
		sale.ExternalID, sale.Platform, string(sale.Status), sale.Amount, sale.CustomerEmail,
		sale.UTMSource, sale.UTMMedium, sale.UTMCampaign, sale.UTMContent, sale.UTMTerm,
		created.UTC().Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert sale: %w", err)
	}
	return nil
}

func (s *SQLite) SumPaidRevenueAndCount(ctx context.Context, dayStart, dayEnd time.Time) (float64, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var revenue float64
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0), COUNT(*)
		FROM sales WHERE status = ? AND created_at >= ? AND created_at < ?`,
		string(models.SalePaid),
		dayStart.UTC().Format(time.RFC3339), dayEnd.UTC().Format(time.RFC3339)).
		Scan(&revenue, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("sum paid sales: %w", err)
	}
	return revenue, count, nil
}
