package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rcourtman/coachkit/internal/store"
	"github.com/rcourtman/coachkit/pkg/entitlements"
)

type fakeUsage struct {
	limit    int64
	capped   bool
	used     int64
	since    time.Time
	limitErr error
	countErr error
}

func (f *fakeUsage) UsageLimit(context.Context, string, string) (int64, bool, error) {
	return f.limit, f.capped, f.limitErr
}

func (f *fakeUsage) CountUsage(_ context.Context, _, _, _ string, since time.Time) (int64, error) {
	f.since = since
	return f.used, f.countErr
}

func TestMonthlyMeter(t *testing.T) {
	tests := []struct {
		name          string
		usage         fakeUsage
		wantRemaining int64
		wantCapped    bool
		wantErr       bool
	}{
		{name: "uncapped", usage: fakeUsage{}, wantCapped: false},
		{name: "under cap", usage: fakeUsage{limit: 10, capped: true, used: 4}, wantRemaining: 6, wantCapped: true},
		{name: "at cap", usage: fakeUsage{limit: 3, capped: true, used: 3}, wantRemaining: 0, wantCapped: true},
		{name: "over cap clamps", usage: fakeUsage{limit: 3, capped: true, used: 5}, wantRemaining: 0, wantCapped: true},
		{name: "limit lookup fails", usage: fakeUsage{limitErr: errors.New("boom")}, wantErr: true},
		{name: "count fails", usage: fakeUsage{limit: 3, capped: true, countErr: errors.New("boom")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usage := tt.usage
			m := NewMonthlyMeter(&usage, fixedClock())
			remaining, capped, err := m.Remaining(context.Background(), "u", entitlements.FeatureAICoachChat, entitlements.SourceAddOn)
			if tt.wantErr {
				require.Error(t, err)
				require.False(t, capped)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantCapped, capped)
			require.Equal(t, tt.wantRemaining, remaining)
			if capped {
				require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), usage.since)
			}
		})
	}
}

func TestPeriodStart(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	// 2026-04-01 05:00 in UTC+10 is still March in UTC.
	now := time.Date(2026, 4, 1, 5, 0, 0, 0, loc)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), PeriodStart(now))
}

func TestProvidersAgainstSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Seed(ctx))

	clock := Clock(time.Now)
	agg := entitlements.NewAggregator(store.DemoMemberID, Default(s, clock),
		entitlements.WithUsageMeter(NewMonthlyMeter(s, clock)))

	rec, err := agg.Resolve(ctx, entitlements.FeatureSessionBooking)
	require.NoError(t, err)
	require.True(t, rec.Usable())
	require.Equal(t, entitlements.SourceSubscription, *rec.Source)

	rec, err = agg.Resolve(ctx, entitlements.FeatureAICoachChat)
	require.NoError(t, err)
	require.Equal(t, entitlements.SourceAddOn, *rec.Source)
	require.NotNil(t, rec.RemainingUsage)
	require.EqualValues(t, 20, *rec.RemainingUsage)

	_, err = s.RecordUsage(ctx, store.DemoMemberID, string(entitlements.FeatureAICoachChat), string(entitlements.SourceAddOn))
	require.NoError(t, err)
	rec, err = agg.Resolve(ctx, entitlements.FeatureAICoachChat)
	require.NoError(t, err)
	require.EqualValues(t, 19, *rec.RemainingUsage)

	all, err := agg.ResolveAll(ctx)
	require.NoError(t, err)
	require.True(t, all.Has(entitlements.FeatureDevelopmentPlans))
	require.True(t, all.Has(entitlements.FeatureGroupCoaching), "active program enrollment grants plan features")

	orgAgg := entitlements.NewAggregator(store.DemoOrgID, Default(s, clock))
	orgAll, err := orgAgg.ResolveAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []entitlements.FeatureKey{
		entitlements.FeatureAICoachChat,
		entitlements.FeatureAIInsights,
		entitlements.FeatureCertificates,
	}, orgAll.Sorted())
}
