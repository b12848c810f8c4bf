package providers

import (
	"context"
	"time"

	"github.com/rcourtman/coachkit/pkg/entitlements"
)

// UsageStore is the subset of the database the usage meter reads.
type UsageStore interface {
	UsageLimit(ctx context.Context, source, feature string) (int64, bool, error)
	CountUsage(ctx context.Context, userID, feature, source string, since time.Time) (int64, error)
}

// MonthlyMeter meters capped features over calendar months (UTC).
type MonthlyMeter struct {
	store UsageStore
	clock Clock
}

// NewMonthlyMeter creates a usage meter over s.
func NewMonthlyMeter(s UsageStore, clock Clock) *MonthlyMeter {
	return &MonthlyMeter{store: s, clock: clock}
}

// Remaining implements entitlements.UsageMeter.
func (m *MonthlyMeter) Remaining(ctx context.Context, userID string, feature entitlements.FeatureKey, source entitlements.AccessSource) (int64, bool, error) {
	limit, capped, err := m.store.UsageLimit(ctx, string(source), string(feature))
	if err != nil || !capped {
		return 0, false, err
	}
	used, err := m.store.CountUsage(ctx, userID, string(feature), string(source), PeriodStart(m.clock.now()))
	if err != nil {
		return 0, false, err
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true, nil
}

// PeriodStart returns the start of the usage period containing now.
func PeriodStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
