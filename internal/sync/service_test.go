package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sevenatila/dashdesenrolado/internal/models"
	"github.com/Sevenatila/dashdesenrolado/internal/source"
	"github.com/Sevenatila/dashdesenrolado/internal/store"
)

// =============================================================================
// FAKES
// =============================================================================

type adsFunc func(ctx context.Context, date time.Time) (source.AdMetrics, error)

func (f adsFunc) DailyMetrics(ctx context.Context, date time.Time) (source.AdMetrics, error) {
	return f(ctx, date)
}

func fixedAds(m source.AdMetrics) adsFunc {
	return func(context.Context, time.Time) (source.AdMetrics, error) { return m, nil }
}

func failingAds() adsFunc {
	return func(context.Context, time.Time) (source.AdMetrics, error) {
		return source.AdMetrics{}, errors.New("connection refused")
	}
}

type fakeVideo struct {
	players   []models.Player
	listErr   error
	events    source.EventCounts
	eventsErr error
	eng       source.Engagement
	engErr    error
}

func (f *fakeVideo) ListPlayers(context.Context) ([]models.Player, error) {
	return f.players, f.listErr
}

func (f *fakeVideo) GetEvents(context.Context, string, time.Time, time.Time) (source.EventCounts, error) {
	return f.events, f.eventsErr
}

func (f *fakeVideo) GetEngagement(context.Context, string, int, time.Time, time.Time) (source.Engagement, error) {
	return f.eng, f.engErr
}

type fakeOrders struct {
	orders []source.Order
	err    error
}

func (f *fakeOrders) GetOrders(context.Context, time.Time, time.Time) ([]source.Order, error) {
	return f.orders, f.err
}

type recordingStore struct {
	*store.Memory
	upserts []time.Time
}

func (r *recordingStore) Upsert(ctx context.Context, date time.Time, patch models.PerformancePatch) error {
	r.upserts = append(r.upserts, models.DayUTC(date))
	return r.Memory.Upsert(ctx, date, patch)
}

type brokenStore struct{ *store.Memory }

func (brokenStore) Upsert(context.Context, time.Time, models.PerformancePatch) error {
	return errors.New("disk full")
}

// =============================================================================
// HELPERS
// =============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func paidSale(id string, amount float64, at time.Time) models.Sale {
	return models.Sale{
		Platform:   "KIWIFY",
		ExternalID: id,
		Status:     models.SalePaid,
		Amount:     amount,
		CreatedAt:  at,
	}
}

func onePlayer() *fakeVideo {
	return &fakeVideo{players: []models.Player{{ID: "vsl-1", Name: "Main VSL", Duration: 720}}}
}

// =============================================================================
// SYNC DAY
// =============================================================================

func TestSyncDay_Idempotent(t *testing.T) {
	// Two syncs with identical source responses leave the store in the same
	// state as one.
	st := store.NewMemory()
	video := onePlayer()
	video.events = source.EventCounts{Started: 100, Viewed: 40, Finished: 10}
	svc := NewService(st, st, Sources{Ads: fixedAds(source.AdMetrics{Spend: 150, Clicks: 30, Impressions: 900}), Video: video}, testLogger(), time.UTC)

	ctx := context.Background()
	d := day("2024-03-05")
	require.NoError(t, svc.SyncDay(ctx, d, ""))
	first, err := st.FindByDate(ctx, d)
	require.NoError(t, err)

	require.NoError(t, svc.SyncDay(ctx, d, ""))
	second, err := st.FindByDate(ctx, d)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSyncDay_AdSourceFailureRecordsZeroSpend(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(st, st, Sources{Ads: failingAds(), Video: onePlayer()}, testLogger(), time.UTC)

	ctx := context.Background()
	d := day("2024-03-05")
	require.NoError(t, svc.SyncDay(ctx, d, ""), "source failure must not propagate")

	agg, err := st.FindByDate(ctx, d)
	require.NoError(t, err)
	require.NotNil(t, agg)
	assert.Zero(t, agg.Spend)
	assert.Zero(t, agg.LinkClicks)
	assert.Zero(t, agg.Impressions)
}

func TestSyncDay_RetentionPercentages(t *testing.T) {
	st := store.NewMemory()
	video := onePlayer()
	video.events = source.EventCounts{Started: 100, Viewed: 40, Finished: 10}
	svc := NewService(st, st, Sources{Video: video}, testLogger(), time.UTC)

	ctx := context.Background()
	d := day("2024-03-05")
	require.NoError(t, svc.SyncDay(ctx, d, ""))

	agg, err := st.FindByDate(ctx, d)
	require.NoError(t, err)
	require.NotNil(t, agg)
	assert.Equal(t, 100, agg.UniquePlays)
	assert.Equal(t, 40, agg.LeadRetention)
	assert.Equal(t, 10, agg.PitchRetention)
}

func TestSyncDay_VSLConversion(t *testing.T) {
	// 7 sales over 200 unique plays is 3.5%, kept to two decimals.
	st := store.NewMemory()
	ctx := context.Background()
	d := day("2024-03-05")
	at := d.Add(12 * time.Hour)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		require.NoError(t, st.UpsertSale(ctx, paidSale(id, 100, at)))
	}

	video := onePlayer()
	video.events = source.EventCounts{Started: 200, Viewed: 80, Finished: 20}
	svc := NewService(st, st, Sources{Video: video}, testLogger(), time.UTC)
	require.NoError(t, svc.SyncDay(ctx, d, ""))

	agg, err := st.FindByDate(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, 7, agg.Sales)
	assert.InDelta(t, 3.5, agg.VSLConversion, 0.001)
}

func TestSyncDay_RemoteOrdersFallbackWhenLocalZero(t *testing.T) {
	st := store.NewMemory()
	orders := &fakeOrders{orders: []source.Order{
		{Status: "approved", AmountCents: 20000},
		{Status: "paid", AmountCents: 20000},
		{Status: "complete", AmountCents: 10000},
		{Status: "refunded", AmountCents: 99900}, // not in the allow-list
		{Status: "Paid", AmountCents: 5000},      // case-sensitive: rejected
	}}
	svc := NewService(st, st, Sources{Orders: orders}, testLogger(), time.UTC)

	ctx := context.Background()
	d := day("2023-11-20")
	require.NoError(t, svc.SyncDay(ctx, d, ""))

	agg, err := st.FindByDate(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, 3, agg.Sales)
	assert.InDelta(t, 500.0, agg.Revenue, 0.001)
}

func TestSyncDay_LocalSalesWinWhenNonZero(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	d := day("2024-03-05")
	require.NoError(t, st.UpsertSale(ctx, paidSale("local-1", 120, d.Add(10*time.Hour))))

	orders := &fakeOrders{orders: []source.Order{
		{Status: "paid", AmountCents: 50000},
		{Status: "paid", AmountCents: 50000},
	}}
	svc := NewService(st, st, Sources{Orders: orders}, testLogger(), time.UTC)
	require.NoError(t, svc.SyncDay(ctx, d, ""))

	agg, err := st.FindByDate(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, 1, agg.Sales, "local webhook figure wins over the poll")
	assert.InDelta(t, 120.0, agg.Revenue, 0.001)
}

func TestSyncDay_DerivedSalesMetrics(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	d := day("2024-03-05")
	require.NoError(t, st.UpsertSale(ctx, paidSale("s1", 100, d.Add(time.Hour))))
	require.NoError(t, st.UpsertSale(ctx, paidSale("s2", 200, d.Add(2*time.Hour))))

	svc := NewService(st, st, Sources{Ads: fixedAds(source.AdMetrics{Spend: 90})}, testLogger(), time.UTC)
	require.NoError(t, svc.SyncDay(ctx, d, ""))

	agg, err := st.FindByDate(ctx, d)
	require.NoError(t, err)
	assert.InDelta(t, 45.0, agg.CPA, 0.001)
	assert.InDelta(t, 150.0, agg.AvgTicket, 0.001)
}

func TestSyncDay_ZeroSalesZeroRatios(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(st, st, Sources{Ads: fixedAds(source.AdMetrics{Spend: 500})}, testLogger(), time.UTC)

	ctx := context.Background()
	d := day("2024-03-05")
	require.NoError(t, svc.SyncDay(ctx, d, ""))

	agg, err := st.FindByDate(ctx, d)
	require.NoError(t, err)
	assert.Zero(t, agg.CPA)
	assert.Zero(t, agg.AvgTicket)
}

func TestSyncDay_EngagementRateScaling(t *testing.T) {
	cases := []struct {
		name string
		rate float64
		want int
	}{
		{"fraction is scaled", 0.42, 42},
		{"percentage kept as-is", 42, 42},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := store.NewMemory()
			video := onePlayer()
			video.eng = source.Engagement{Rate: tc.rate}
			svc := NewService(st, st, Sources{Video: video}, testLogger(), time.UTC)

			ctx := context.Background()
			d := day("2024-03-05")
			require.NoError(t, svc.SyncDay(ctx, d, ""))

			agg, err := st.FindByDate(ctx, d)
			require.NoError(t, err)
			assert.Equal(t, tc.want, agg.Engagement)
		})
	}
}

func TestSyncDay_EngagementFallsBackToFunnel(t *testing.T) {
	st := store.NewMemory()
	video := onePlayer()
	video.engErr = errors.New("upstream 500")
	video.events = source.EventCounts{Started: 100, Viewed: 63}
	svc := NewService(st, st, Sources{Video: video}, testLogger(), time.UTC)

	ctx := context.Background()
	d := day("2024-03-05")
	require.NoError(t, svc.SyncDay(ctx, d, ""))

	agg, err := st.FindByDate(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, 63, agg.Engagement)
}

func TestSyncDay_PartialSyncRetainsFunnelStageFields(t *testing.T) {
	// Funnel-stage conversions the sync does not source must survive an
	// upsert untouched.
	st := store.NewMemory()
	ctx := context.Background()
	d := day("2024-03-05")
	require.NoError(t, st.Upsert(ctx, d, models.PerformancePatch{
		CheckoutConversion: models.I(35),
		UpsellConversion:   models.I(12),
	}))

	svc := NewService(st, st, Sources{Ads: fixedAds(source.AdMetrics{Spend: 10})}, testLogger(), time.UTC)
	require.NoError(t, svc.SyncDay(ctx, d, ""))

	agg, err := st.FindByDate(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, 35, agg.CheckoutConversion)
	assert.Equal(t, 12, agg.UpsellConversion)
	assert.InDelta(t, 10.0, agg.Spend, 0.001)
}

func TestSyncDay_NoPlayersSkipsEngagementMetrics(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	d := day("2024-03-05")
	require.NoError(t, st.Upsert(ctx, d, models.PerformancePatch{
		UniquePlays: models.I(500),
		Engagement:  models.I(70),
	}))

	svc := NewService(st, st, Sources{Video: &fakeVideo{}}, testLogger(), time.UTC)
	require.NoError(t, svc.SyncDay(ctx, d, ""))

	agg, err := st.FindByDate(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, 500, agg.UniquePlays, "skipped engagement must not zero stored plays")
	assert.Equal(t, 70, agg.Engagement)
}

func TestSyncDay_UnknownPlayerIDUsedWithDefaultDuration(t *testing.T) {
	st := store.NewMemory()
	video := onePlayer()
	video.events = source.EventCounts{Started: 10, Viewed: 5}
	svc := NewService(st, st, Sources{Video: video}, testLogger(), time.UTC)

	ctx := context.Background()
	d := day("2024-03-05")
	require.NoError(t, svc.SyncDay(ctx, d, "not-in-account"))

	agg, err := st.FindByDate(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, 10, agg.UniquePlays, "unresolved id still syncs with the default duration")
}

func TestSyncDay_UpsertFailurePropagates(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(brokenStore{st}, st, Sources{}, testLogger(), time.UTC)

	err := svc.SyncDay(context.Background(), day("2024-03-05"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

// =============================================================================
// SYNC RANGE
// =============================================================================

func TestSyncRange_ThreeUpsertsAscending(t *testing.T) {
	// Three days, middle day's only source fails: still three upserts, in
	// ascending date order, middle day degraded to zeros instead of skipped.
	rec := &recordingStore{Memory: store.NewMemory()}
	mid := day("2024-01-02")
	ads := adsFunc(func(_ context.Context, date time.Time) (source.AdMetrics, error) {
		if date.Equal(mid) {
			return source.AdMetrics{}, errors.New("rate limited")
		}
		return source.AdMetrics{Spend: 100, Clicks: 10, Impressions: 50}, nil
	})
	svc := NewService(rec, rec.Memory, Sources{Ads: ads}, testLogger(), time.UTC)

	ctx := context.Background()
	require.NoError(t, svc.SyncRange(ctx, day("2024-01-01"), day("2024-01-03"), ""))

	require.Equal(t, []time.Time{day("2024-01-01"), mid, day("2024-01-03")}, rec.upserts)
	agg, err := rec.FindByDate(ctx, mid)
	require.NoError(t, err)
	require.NotNil(t, agg)
	assert.Zero(t, agg.Spend)
}

func TestSyncRange_StartAfterEndIsNoOp(t *testing.T) {
	rec := &recordingStore{Memory: store.NewMemory()}
	svc := NewService(rec, rec.Memory, Sources{}, testLogger(), time.UTC)

	require.NoError(t, svc.SyncRange(context.Background(), day("2024-01-03"), day("2024-01-01"), ""))
	assert.Empty(t, rec.upserts)
}

func TestSyncRange_AbortsOnPersistenceFailure(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(brokenStore{st}, st, Sources{}, testLogger(), time.UTC)

	err := svc.SyncRange(context.Background(), day("2024-01-01"), day("2024-01-05"), "")
	require.Error(t, err)
}

func TestSyncRange_CancelledBetweenDays(t *testing.T) {
	rec := &recordingStore{Memory: store.NewMemory()}
	svc := NewService(rec, rec.Memory, Sources{}, testLogger(), time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := svc.SyncRange(ctx, day("2024-01-01"), day("2024-01-05"), "")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.upserts)
}
