package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Sevenatila/dashdesenrolado/internal/models"
)

// Memory implements AggregateStore and SaleStore in process. Used by tests
// and available as a no-persistence fallback.
type Memory struct {
	mu    sync.RWMutex
	aggs  map[time.Time]*models.DailyPerformance
	sales map[string]*models.Sale
}

func NewMemory() *Memory {
	return &Memory{
		aggs:  make(map[time.Time]*models.DailyPerformance),
		sales: make(map[string]*models.Sale),
	}
}

func (s *Memory) Upsert(_ context.Context, date time.Time, patch models.PerformancePatch) error {
	k := models.DayUTC(date)
	s.mu.Lock()
	defer s.mu.Unlock()
	agg, ok := s.aggs[k]
	if !ok {
		agg = &models.DailyPerformance{Date: k}
		s.aggs[k] = agg
	}
	patch.Apply(agg)
	return nil
}

func (s *Memory) FindByDate(_ context.Context, date time.Time) (*models.DailyPerformance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agg, ok := s.aggs[models.DayUTC(date)]
	if !ok {
		return nil, nil
	}
	cp := *agg
	return &cp, nil
}

func (s *Memory) FindLatest(_ context.Context) (*models.DailyPerformance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.DailyPerformance
	for _, agg := range s.aggs {
		if latest == nil || agg.Date.After(latest.Date) {
			latest = agg
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *Memory) FindRange(_ context.Context, start, end time.Time) ([]models.DailyPerformance, error) {
	from, to := models.DayUTC(start), models.DayUTC(end)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DailyPerformance
	for _, agg := range s.aggs {
		if !agg.Date.Before(from) && !agg.Date.After(to) {
			out = append(out, *agg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Memory) UpsertSale(_ context.Context, sale models.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.sales[sale.ExternalID]; ok {
		existing.Status = sale.Status
		if sale.Amount != 0 {
			existing.Amount = sale.Amount
		}
		existing.UpdatedAt = now
		return nil
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	sale.UpdatedAt = now
	cp := sale
	s.sales[sale.ExternalID] = &cp
	return nil
}

func (s *Memory) SumPaidRevenueAndCount(_ context.Context, dayStart, dayEnd time.Time) (float64, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var revenue float64
	var count int
	for _, sale := range s.sales {
		if sale.Status != models.SalePaid {
			continue
		}
		if sale.CreatedAt.Before(dayStart) || !sale.CreatedAt.Before(dayEnd) {
			continue
		}
		revenue += sale.Amount
		count++
	}
	return revenue, count, nil
}
