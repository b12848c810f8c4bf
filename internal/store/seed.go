package store

import (
	"context"
	"time"

	"github.com/rcourtman/coachkit/pkg/enrollment"
	"github.com/rcourtman/coachkit/pkg/entitlements"
)

// Demo user IDs written by Seed.
const (
	DemoMemberID = "demo-member"
	DemoAlumniID = "demo-alumni"
	DemoOrgID    = "demo-org-member"
	DemoCoachID  = "demo-coach"
)

func keys(fs ...entitlements.FeatureKey) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = string(f)
	}
	return out
}

// Seed writes a small demo catalog and one user per access source. It is
// idempotent.
func (s *Store) Seed(ctx context.Context) error {
	now := s.now().UTC().Truncate(time.Second)

	for _, f := range entitlements.CatalogFeatures() {
		if err := s.UpsertFeature(ctx, string(f), entitlements.DisplayName(f)); err != nil {
			return err
		}
	}

	plans := []Plan{
		{ID: "starter", Name: "Starter", TierLevel: 1, IsPurchasable: true,
			Features: keys(entitlements.FeatureSessionBooking, entitlements.FeatureResourceLibrary)},
		{ID: "growth", Name: "Growth", TierLevel: 2, IsPurchasable: true,
			Features: keys(entitlements.FeatureSessionBooking, entitlements.FeatureResourceLibrary,
				entitlements.FeatureGroupCoaching, entitlements.FeatureAssessments)},
		{ID: "pro", Name: "Pro", TierLevel: 3, IsPurchasable: true,
			Features: keys(entitlements.FeatureSessionBooking, entitlements.FeatureResourceLibrary,
				entitlements.FeatureGroupCoaching, entitlements.FeatureAssessments,
				entitlements.FeatureAdvancedAnalytics, entitlements.FeatureCalendarSync)},
		{ID: "enterprise", Name: "Enterprise", TierLevel: 4, IsPurchasable: false,
			Features: keys(entitlements.CatalogFeatures()...)},
		{ID: "program-exec", Name: "Executive Program", TierLevel: 0, IsPurchasable: false,
			Features: keys(entitlements.FeatureGroupCoaching, entitlements.FeatureAssessments,
				entitlements.FeatureCertificates)},
	}
	for _, p := range plans {
		if err := s.UpsertPlan(ctx, p); err != nil {
			return err
		}
	}

	periodEnd := now.AddDate(0, 1, 0)
	if err := s.UpsertSubscription(ctx, Subscription{
		ID: "sub-demo-member", UserID: DemoMemberID, PlanID: "starter",
		Status: "active", CurrentPeriodEnd: &periodEnd,
	}); err != nil {
		return err
	}

	if err := s.UpsertAddOn(ctx, AddOn{ID: "ai-pack", Name: "AI Pack",
		Features: keys(entitlements.FeatureAIInsights, entitlements.FeatureAICoachChat)}); err != nil {
		return err
	}
	if _, err := s.GrantAddOn(ctx, DemoMemberID, "ai-pack", nil); err != nil {
		return err
	}
	if err := s.SetUsageLimit(ctx, string(entitlements.SourceAddOn), string(entitlements.FeatureAICoachChat), 20); err != nil {
		return err
	}

	if err := s.UpsertTrack(ctx, Track{ID: "leadership", Name: "Leadership",
		Features: keys(entitlements.FeatureDevelopmentPlans)}); err != nil {
		return err
	}
	if err := s.SetTrackMembership(ctx, DemoMemberID, "leadership", true); err != nil {
		return err
	}

	if err := s.UpsertProgram(ctx, Program{ID: "exec-coaching", Name: "Executive Coaching", PlanID: "program-exec"}); err != nil {
		return err
	}
	completed := now.AddDate(0, 0, -20)
	if err := s.UpsertEnrollment(ctx, Enrollment{
		ID: "enr-demo-alumni", UserID: DemoAlumniID, ProgramID: "exec-coaching",
		Status: enrollment.StatusCompleted, CreatedAt: now.AddDate(0, -6, 0), CompletedAt: &completed,
	}); err != nil {
		return err
	}
	deadline := now.AddDate(0, 0, 12)
	if err := s.UpsertEnrollment(ctx, Enrollment{
		ID: "enr-demo-member", UserID: DemoMemberID, ProgramID: "exec-coaching",
		Status: enrollment.StatusActive, CreatedAt: now.AddDate(0, -1, 0), ExpiresAt: &deadline,
	}); err != nil {
		return err
	}

	if err := s.UpsertOrganization(ctx, Organization{ID: "acme", Name: "Acme Corp", AdminManaged: true}); err != nil {
		return err
	}
	if err := s.AddOrgMember(ctx, "acme", DemoOrgID); err != nil {
		return err
	}
	// Sponsorship rows are append-only; only seed them on first run.
	existing, err := s.Sponsorships(ctx, DemoOrgID)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		for _, pattern := range []string{"ai_*", string(entitlements.FeatureCertificates)} {
			if err := s.AddSponsorship(ctx, "acme", pattern, nil); err != nil {
				return err
			}
		}
	}

	return s.AddUserRole(ctx, DemoCoachID, enrollment.RoleCoach)
}
