package metrics

import (
	"context"
	"math"
	"time"

	"github.com/Sevenatila/dashdesenrolado/internal/models"
	"github.com/Sevenatila/dashdesenrolado/internal/store"
)

// Service serves the dashboard's read path: the most recent day, or a range
// rolled up into one row (counters summed, percentage fields averaged,
// CPA and ticket recomputed over the summed figures).
type Service struct{ st store.AggregateStore }

func NewService(st store.AggregateStore) *Service { return &Service{st: st} }

func (s *Service) Latest(ctx context.Context) (*models.DailyPerformance, error) {
	return s.st.FindLatest(ctx)
}

func (s *Service) QueryRange(ctx context.Context, start, end time.Time) (*models.DailyPerformance, error) {
	rows, err := s.st.FindRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	out := models.DailyPerformance{Date: models.DayUTC(end)}
	var vslSum float64
	var leadSum, engSum, pitchSum, checkoutSum, bumpSum, backSum, upSum, up2Sum, downSum int
	for _, r := range rows {
		out.Spend += r.Spend
		out.LinkClicks += r.LinkClicks
		out.Impressions += r.Impressions
		out.PageViews += r.PageViews
		out.UniquePlays += r.UniquePlays
		out.Views += r.Views
		out.Finishes += r.Finishes
		out.Sales += r.Sales
		out.Revenue += r.Revenue

		vslSum += r.VSLConversion
		leadSum += r.LeadRetention
		engSum += r.Engagement
		pitchSum += r.PitchRetention
		checkoutSum += r.CheckoutConversion
		bumpSum += r.OrderBumpConversion
		backSum += r.BackRedirectConversion
		upSum += r.UpsellConversion
		up2Sum += r.Upsell2Conversion
		downSum += r.DownsellConversion
	}

	n := len(rows)
	out.CPA = round2(safeDiv(out.Spend, float64(out.Sales)))
	out.AvgTicket = round2(safeDiv(out.Revenue, float64(out.Sales)))
	out.VSLConversion = round2(vslSum / float64(n))
	out.LeadRetention = avgInt(leadSum, n)
	out.Engagement = avgInt(engSum, n)
	out.PitchRetention = avgInt(pitchSum, n)
	out.CheckoutConversion = avgInt(checkoutSum, n)
	out.OrderBumpConversion = avgInt(bumpSum, n)
	out.BackRedirectConversion = avgInt(backSum, n)
	out.UpsellConversion = avgInt(upSum, n)
	out.Upsell2Conversion = avgInt(up2Sum, n)
	out.DownsellConversion = avgInt(downSum, n)
	return &out, nil
}

func avgInt(sum, n int) int {
	return int(math.Round(float64(sum) / float64(n)))
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
