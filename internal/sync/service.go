package sync

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Sevenatila/dashdesenrolado/internal/models"
	"github.com/Sevenatila/dashdesenrolado/internal/source"
	"github.com/Sevenatila/dashdesenrolado/internal/store"
)

// Duration assumed for a player id the account list does not know.
const defaultVideoDuration = 600

// Remote orders count toward sales only with one of these statuses.
// Exact, case-sensitive match.
var acceptedOrderStatus = map[string]bool{
	"approved": true,
	"paid":     true,
	"complete": true,
}

type AdSource interface {
	DailyMetrics(ctx context.Context, date time.Time) (source.AdMetrics, error)
}

type EngagementSource interface {
	ListPlayers(ctx context.Context) ([]models.Player, error)
	GetEvents(ctx context.Context, playerID string, start, end time.Time) (source.EventCounts, error)
	GetEngagement(ctx context.Context, playerID string, duration int, start, end time.Time) (source.Engagement, error)
}

type SalesSource interface {
	GetOrders(ctx context.Context, start, end time.Time) ([]source.Order, error)
}

// Sources are the three upstream clients. Any of them may be nil when its
// credentials are absent; a nil source contributes zeros, same as a failing
// one.
type Sources struct {
	Ads    AdSource
	Video  EngagementSource
	Orders SalesSource
}

// Service is the reconciliation engine. One SyncDay call produces exactly one
// upsert against the aggregate store; individual source failures are logged
// and degraded to zero values, and only a failing upsert propagates.
type Service struct {
	aggs  store.AggregateStore
	sales store.SaleStore // nil disables the local-webhook sales path
	src   Sources
	log   *slog.Logger
	tz    *time.Location
}

func NewService(aggs store.AggregateStore, sales store.SaleStore, src Sources, log *slog.Logger, tz *time.Location) *Service {
	if tz == nil {
		tz = time.UTC
	}
	return &Service{aggs: aggs, sales: sales, src: src, log: log, tz: tz}
}

// SyncDay reconciles one calendar day. playerID optionally pins the video
// asset; empty means "first player in the account".
func (s *Service) SyncDay(ctx context.Context, date time.Time, playerID string) error {
	day := models.DayUTC(date)
	dayStr := day.Format("2006-01-02")
	s.log.Info("sync day start", slog.String("date", dayStr))

	var patch models.PerformancePatch

	// Ad spend: zeros on failure or when the source is not configured.
	var ads source.AdMetrics
	if s.src.Ads != nil {
		m, err := s.src.Ads.DailyMetrics(ctx, day)
		if err != nil {
			sourceFailures.WithLabelValues("ads").Inc()
			s.log.Error("ad-spend fetch failed", slog.String("date", dayStr), slog.String("err", err.Error()))
		} else {
			ads = m
		}
	} else {
		s.log.Debug("ad-spend source not configured, recording zeros")
	}
	patch.Spend = models.F(ads.Spend)
	patch.LinkClicks = models.I(ads.Clicks)
	patch.Impressions = models.I(ads.Impressions)

	// Engagement funnel. When no player can be resolved the engagement
	// fields are left out of the patch entirely, so stored values survive.
	var events source.EventCounts
	player, haveAsset := s.resolvePlayer(ctx, playerID)
	if haveAsset {
		ev, err := s.src.Video.GetEvents(ctx, player.ID, day, day)
		if err != nil {
			sourceFailures.WithLabelValues("video").Inc()
			s.log.Error("funnel events fetch failed", slog.String("date", dayStr), slog.String("player", player.ID), slog.String("err", err.Error()))
		} else {
			events = ev
		}

		leadRet, pitchRet := 0, 0
		if events.Started > 0 {
			leadRet = roundPct(events.Viewed, events.Started)
			pitchRet = roundPct(events.Finished, events.Started)
		}
		patch.UniquePlays = models.I(events.Started)
		patch.Views = models.I(events.Viewed)
		patch.Finishes = models.I(events.Finished)
		patch.LeadRetention = models.I(leadRet)
		patch.PitchRetention = models.I(pitchRet)
		patch.Engagement = models.I(s.engagementPct(ctx, player, day, events))
	}

	// Sales: local webhook sum wins when non-zero, the polled figure is the
	// fallback (keeps historical dates that predate webhook ingestion
	// backfillable).
	salesCount, revenue := s.resolveSales(ctx, day)
	patch.Sales = models.I(salesCount)
	patch.Revenue = models.F(revenue)
	patch.CPA = models.F(round2(safeDiv(ads.Spend, float64(salesCount))))
	patch.AvgTicket = models.F(round2(safeDiv(revenue, float64(salesCount))))
	if haveAsset {
		vsl := 0.0
		if events.Started > 0 {
			vsl = round2(float64(salesCount) / float64(events.Started) * 100)
		}
		patch.VSLConversion = models.F(vsl)
	}

	if err := s.aggs.Upsert(ctx, day, patch); err != nil {
		return fmt.Errorf("upsert aggregate for %s: %w", dayStr, err)
	}
	syncRuns.Inc()
	s.log.Info("sync day done",
		slog.String("date", dayStr),
		slog.Float64("spend", ads.Spend),
		slog.Int("plays", events.Started),
		slog.Int("sales", salesCount),
		slog.Float64("revenue", revenue))
	return nil
}

// SyncRange runs SyncDay for every day in [start, end], ascending,
// sequentially. It stops at the first persistence failure; days already
// upserted stay upserted. Cancellation is honored between days.
func (s *Service) SyncRange(ctx context.Context, start, end time.Time, playerID string) error {
	r := NewDateRange(start, end)
	it := r.Iter()
	for d, ok := it.Next(); ok; d, ok = it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.SyncDay(ctx, d, playerID); err != nil {
			return err
		}
	}
	s.log.Info("sync range done",
		slog.String("start", r.Start.Format("2006-01-02")),
		slog.String("end", r.End.Format("2006-01-02")),
		slog.Int("days", r.Len()))
	return nil
}

// resolvePlayer picks the video asset for this sync. An explicit id that the
// account list does not contain is used anyway with the default duration; no
// id means the first listed player; no players means no engagement metrics.
func (s *Service) resolvePlayer(ctx context.Context, playerID string) (models.Player, bool) {
	if s.src.Video == nil {
		s.log.Debug("engagement source not configured, skipping")
		return models.Player{}, false
	}
	players, err := s.src.Video.ListPlayers(ctx)
	if err != nil {
		sourceFailures.WithLabelValues("video").Inc()
		s.log.Error("player list fetch failed", slog.String("err", err.Error()))
		players = nil
	}
	if playerID != "" {
		for _, p := range players {
			if p.ID == playerID {
				return p, true
			}
		}
		return models.Player{ID: playerID, Duration: defaultVideoDuration}, true
	}
	if len(players) == 0 {
		s.log.Warn("no players in account, skipping engagement metrics")
		return models.Player{}, false
	}
	return players[0], true
}

// engagementPct resolves the engagement percentage: the API figure when it
// yields one (fractions in (0,1] scaled to percent), otherwise viewed/started
// from the funnel counts, capped at 100.
func (s *Service) engagementPct(ctx context.Context, player models.Player, day time.Time, events source.EventCounts) int {
	dur := player.Duration
	if dur == 0 {
		dur = defaultVideoDuration
	}
	eng, err := s.src.Video.GetEngagement(ctx, player.ID, dur, day, day)
	if err != nil {
		sourceFailures.WithLabelValues("video").Inc()
		s.log.Error("engagement fetch failed", slog.String("player", player.ID), slog.String("err", err.Error()))
	}
	rate := eng.Rate
	if rate > 0 {
		if rate <= 1 {
			rate *= 100
		}
		return capPct(int(math.Round(rate)))
	}
	if events.Started > 0 {
		return capPct(roundPct(events.Viewed, events.Started))
	}
	return 0
}

// resolveSales returns (count, revenue) for the day. The local PAID sum is
// consulted first when a sale store is wired; a zero local sum falls back to
// the polled source when one is configured.
func (s *Service) resolveSales(ctx context.Context, day time.Time) (int, float64) {
	if s.sales != nil {
		y, m, d := day.Date()
		dayStart := time.Date(y, m, d, 0, 0, 0, 0, s.tz)
		dayEnd := dayStart.AddDate(0, 0, 1)
		revenue, count, err := s.sales.SumPaidRevenueAndCount(ctx, dayStart, dayEnd)
		if err != nil {
			s.log.Error("local sales sum failed", slog.String("err", err.Error()))
		} else if count > 0 {
			return count, revenue
		}
	}
	if s.src.Orders == nil {
		return 0, 0
	}
	orders, err := s.src.Orders.GetOrders(ctx, day, day)
	if err != nil {
		sourceFailures.WithLabelValues("orders").Inc()
		s.log.Error("order poll failed", slog.String("err", err.Error()))
		return 0, 0
	}
	var count int
	revenue := decimal.Zero
	for _, o := range orders {
		if !acceptedOrderStatus[o.Status] {
			continue
		}
		count++
		revenue = revenue.Add(decimal.NewFromInt(o.AmountCents).Div(decimal.NewFromInt(100)))
	}
	return count, revenue.InexactFloat64()
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func roundPct(part, whole int) int {
	return int(math.Round(float64(part) / float64(whole) * 100))
}

func capPct(v int) int {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
