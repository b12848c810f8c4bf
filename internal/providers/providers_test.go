package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	internalerrors "github.com/rcourtman/coachkit/internal/errors"
	"github.com/rcourtman/coachkit/internal/store"
	"github.com/rcourtman/coachkit/pkg/enrollment"
	"github.com/rcourtman/coachkit/pkg/entitlements"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() Clock { return func() time.Time { return testNow } }

func ts(d time.Duration) *time.Time {
	t := testNow.Add(d)
	return &t
}

type fakeStore struct {
	subs         []store.Subscription
	enrollments  []store.Enrollment
	grants       []store.AddOnGrant
	tracks       []store.TrackMembership
	sponsorships []store.Sponsorship
	features     []string
	err          error
	featuresErr  error
}

func (f *fakeStore) Subscriptions(context.Context, string) ([]store.Subscription, error) {
	return f.subs, f.err
}
func (f *fakeStore) Enrollments(context.Context, string) ([]store.Enrollment, error) {
	return f.enrollments, f.err
}
func (f *fakeStore) AddOnGrants(context.Context, string) ([]store.AddOnGrant, error) {
	return f.grants, f.err
}
func (f *fakeStore) TrackMemberships(context.Context, string) ([]store.TrackMembership, error) {
	return f.tracks, f.err
}
func (f *fakeStore) Sponsorships(context.Context, string) ([]store.Sponsorship, error) {
	return f.sponsorships, f.err
}
func (f *fakeStore) FeatureKeys(context.Context) ([]string, error) {
	return f.features, f.featuresErr
}

func featureSet(keys ...string) entitlements.FeatureSet {
	set := entitlements.NewFeatureSet()
	addAll(set, keys)
	return set
}

func TestSubscriptionProvider(t *testing.T) {
	fs := &fakeStore{subs: []store.Subscription{
		{ID: "live", Status: "active", CurrentPeriodEnd: ts(time.Hour), Features: []string{"session_booking"}},
		{ID: "trial", Status: "trialing", Features: []string{"assessments"}},
		{ID: "lapsed", Status: "active", CurrentPeriodEnd: ts(-time.Hour), Features: []string{"calendar_sync"}},
		{ID: "boundary", Status: "active", CurrentPeriodEnd: ts(0), Features: []string{"certificates"}},
		{ID: "canceled", Status: "canceled", Features: []string{"advanced_analytics"}},
	}}

	got, err := NewSubscriptionProvider(fs, fixedClock()).EnabledFeatures(context.Background(), "u")
	require.NoError(t, err)
	require.Equal(t, featureSet("session_booking", "assessments"), got)
}

func TestUserTier(t *testing.T) {
	tests := []struct {
		name string
		subs []store.Subscription
		want *int
	}{
		{name: "no subscriptions", want: nil},
		{
			name: "only lapsed",
			subs: []store.Subscription{{Status: "canceled", TierLevel: 3}},
			want: nil,
		},
		{
			name: "highest live tier wins",
			subs: []store.Subscription{
				{Status: "active", TierLevel: 1},
				{Status: "trialing", TierLevel: 2},
				{Status: "past_due", TierLevel: 4},
			},
			want: intPtr(2),
		},
		{
			name: "tier zero is still a tier",
			subs: []store.Subscription{{Status: "active", TierLevel: 0}},
			want: intPtr(0),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, UserTier(tt.subs, testNow))
		})
	}
}

func intPtr(v int) *int { return &v }

func TestProgramPlanProvider(t *testing.T) {
	fs := &fakeStore{enrollments: []store.Enrollment{
		{ID: "a", Status: enrollment.StatusActive, PlanFeatures: []string{"group_coaching"}},
		{ID: "p", Status: enrollment.StatusPaused, PlanFeatures: []string{"assessments"}},
		{ID: "c", Status: enrollment.StatusCompleted, CompletedAt: ts(-time.Hour), PlanFeatures: []string{"certificates"}},
	}}

	got, err := NewProgramPlanProvider(fs).EnabledFeatures(context.Background(), "u")
	require.NoError(t, err)
	require.Equal(t, featureSet("group_coaching"), got)
}

func TestAddOnProvider(t *testing.T) {
	fs := &fakeStore{grants: []store.AddOnGrant{
		{AddOnID: "forever", Features: []string{"ai_insights"}},
		{AddOnID: "future", ExpiresAt: ts(24 * time.Hour), Features: []string{"ai_coach_chat"}},
		{AddOnID: "past", ExpiresAt: ts(-time.Second), Features: []string{"calendar_sync"}},
	}}

	got, err := NewAddOnProvider(fs, fixedClock()).EnabledFeatures(context.Background(), "u")
	require.NoError(t, err)
	require.Equal(t, featureSet("ai_insights", "ai_coach_chat"), got)
}

func TestTrackProvider(t *testing.T) {
	fs := &fakeStore{tracks: []store.TrackMembership{
		{TrackID: "on", IsActive: true, Features: []string{"development_plans"}},
		{TrackID: "off", IsActive: false, Features: []string{"resource_library"}},
	}}

	got, err := NewTrackProvider(fs).EnabledFeatures(context.Background(), "u")
	require.NoError(t, err)
	require.Equal(t, featureSet("development_plans"), got)
}

func TestOrgSponsorProvider_ExpandsPatterns(t *testing.T) {
	fs := &fakeStore{
		sponsorships: []store.Sponsorship{
			{OrgID: "acme", Pattern: "ai_*"},
			{OrgID: "acme", Pattern: "certificates"},
			{OrgID: "acme", Pattern: "custom_*"},
			{OrgID: "old", Pattern: "calendar_sync", ExpiresAt: ts(-time.Hour)},
		},
		features: []string{"custom_reports"},
	}

	got, err := NewOrgSponsorProvider(fs, fixedClock()).EnabledFeatures(context.Background(), "u")
	require.NoError(t, err)
	require.Equal(t, featureSet("ai_insights", "ai_coach_chat", "certificates", "custom_reports"), got)
}

func TestOrgSponsorProvider_LiteralPatternsSkipCatalog(t *testing.T) {
	fs := &fakeStore{
		sponsorships: []store.Sponsorship{{OrgID: "acme", Pattern: "certificates"}},
		featuresErr:  errors.New("catalog down"),
	}

	got, err := NewOrgSponsorProvider(fs, fixedClock()).EnabledFeatures(context.Background(), "u")
	require.NoError(t, err)
	require.Equal(t, featureSet("certificates"), got)
}

func TestOrgSponsorProvider_DottedKeysAreLiteral(t *testing.T) {
	fs := &fakeStore{
		sponsorships: []store.Sponsorship{
			{OrgID: "acme", Pattern: "reports.export"},
			{OrgID: "acme", Pattern: "reports.v2"},
		},
		featuresErr: errors.New("catalog down"),
	}

	got, err := NewOrgSponsorProvider(fs, fixedClock()).EnabledFeatures(context.Background(), "u")
	require.NoError(t, err)
	require.Equal(t, featureSet("reports.export", "reports.v2"), got)
}

func TestIsPattern(t *testing.T) {
	tests := map[string]bool{
		"ai_*":           true,
		"report?":        true,
		"certificates":   false,
		"reports.export": false,
		"":               false,
	}
	for in, want := range tests {
		if got := isPattern(in); got != want {
			t.Errorf("isPattern(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestOrgSponsorProvider_CatalogFailure(t *testing.T) {
	fs := &fakeStore{
		sponsorships: []store.Sponsorship{{OrgID: "acme", Pattern: "ai_*"}},
		featuresErr:  errors.New("catalog down"),
	}

	_, err := NewOrgSponsorProvider(fs, fixedClock()).EnabledFeatures(context.Background(), "u")
	require.ErrorIs(t, err, internalerrors.ErrUnavailable)
}

func TestProvidersWrapBackendErrors(t *testing.T) {
	fs := &fakeStore{err: errors.New("database is locked")}

	for _, p := range Default(fs, fixedClock()) {
		t.Run(string(p.Source()), func(t *testing.T) {
			_, err := p.EnabledFeatures(context.Background(), "u")
			require.Error(t, err)
			require.ErrorIs(t, err, internalerrors.ErrUnavailable)

			var srcErr *internalerrors.SourceError
			require.ErrorAs(t, err, &srcErr)
			require.Equal(t, string(p.Source()), srcErr.Source)
			require.Equal(t, "u", srcErr.UserID)
		})
	}
}

func TestDefaultCoversEverySourceInPriorityOrder(t *testing.T) {
	ps := Default(&fakeStore{}, nil)
	require.Len(t, ps, len(entitlements.AllSources))
	for i, p := range ps {
		require.Equal(t, entitlements.DefaultPriority[i], p.Source())
	}
}
