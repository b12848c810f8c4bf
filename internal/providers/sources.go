package providers

import (
	"context"
	"strings"
	"time"

	"github.com/IGLOU-EU/go-wildcard/v2"
	"github.com/rs/zerolog/log"

	"github.com/rcourtman/coachkit/internal/store"
	"github.com/rcourtman/coachkit/pkg/enrollment"
	"github.com/rcourtman/coachkit/pkg/entitlements"
)

// SubscriptionProvider grants the plan features of every live subscription.
type SubscriptionProvider struct {
	store Store
	clock Clock
}

// NewSubscriptionProvider creates a subscription provider.
func NewSubscriptionProvider(s Store, clock Clock) *SubscriptionProvider {
	return &SubscriptionProvider{store: s, clock: clock}
}

// Source implements entitlements.Provider.
func (p *SubscriptionProvider) Source() entitlements.AccessSource {
	return entitlements.SourceSubscription
}

// EnabledFeatures implements entitlements.Provider.
func (p *SubscriptionProvider) EnabledFeatures(ctx context.Context, userID string) (entitlements.FeatureSet, error) {
	subs, err := p.store.Subscriptions(ctx, userID)
	if err != nil {
		return nil, unavailable(p.Source(), "list_subscriptions", userID, err)
	}
	set := entitlements.NewFeatureSet()
	for _, sub := range LiveSubscriptions(subs, p.clock.now()) {
		addAll(set, sub.Features)
	}
	return set, nil
}

// SubscriptionLive reports whether sub currently grants access: status
// active or trialing with no period end or one in the future.
func SubscriptionLive(sub store.Subscription, now time.Time) bool {
	switch strings.ToLower(sub.Status) {
	case "active", "trialing":
		return notExpired(sub.CurrentPeriodEnd, now)
	}
	return false
}

// LiveSubscriptions filters subs down to the live ones.
func LiveSubscriptions(subs []store.Subscription, now time.Time) []store.Subscription {
	var out []store.Subscription
	for _, sub := range subs {
		if SubscriptionLive(sub, now) {
			out = append(out, sub)
		}
	}
	return out
}

// UserTier returns the highest tier level among live subscriptions, or nil
// when the user has none.
func UserTier(subs []store.Subscription, now time.Time) *int {
	var tier *int
	for _, sub := range LiveSubscriptions(subs, now) {
		if tier == nil || sub.TierLevel > *tier {
			level := sub.TierLevel
			tier = &level
		}
	}
	return tier
}

// ProgramPlanProvider grants the plan features of programs the user is
// actively enrolled in.
type ProgramPlanProvider struct {
	store Store
}

// NewProgramPlanProvider creates a program plan provider.
func NewProgramPlanProvider(s Store) *ProgramPlanProvider {
	return &ProgramPlanProvider{store: s}
}

// Source implements entitlements.Provider.
func (p *ProgramPlanProvider) Source() entitlements.AccessSource {
	return entitlements.SourceProgramPlan
}

// EnabledFeatures implements entitlements.Provider.
func (p *ProgramPlanProvider) EnabledFeatures(ctx context.Context, userID string) (entitlements.FeatureSet, error) {
	enrollments, err := p.store.Enrollments(ctx, userID)
	if err != nil {
		return nil, unavailable(p.Source(), "list_enrollments", userID, err)
	}
	set := entitlements.NewFeatureSet()
	for _, e := range enrollments {
		if e.Status != enrollment.StatusActive {
			continue
		}
		addAll(set, e.PlanFeatures)
	}
	return set, nil
}

// AddOnProvider grants the features of unexpired add-ons.
type AddOnProvider struct {
	store Store
	clock Clock
}

// NewAddOnProvider creates an add-on provider.
func NewAddOnProvider(s Store, clock Clock) *AddOnProvider {
	return &AddOnProvider{store: s, clock: clock}
}

// Source implements entitlements.Provider.
func (p *AddOnProvider) Source() entitlements.AccessSource {
	return entitlements.SourceAddOn
}

// EnabledFeatures implements entitlements.Provider.
func (p *AddOnProvider) EnabledFeatures(ctx context.Context, userID string) (entitlements.FeatureSet, error) {
	grants, err := p.store.AddOnGrants(ctx, userID)
	if err != nil {
		return nil, unavailable(p.Source(), "list_add_ons", userID, err)
	}
	now := p.clock.now()
	set := entitlements.NewFeatureSet()
	for _, g := range grants {
		if notExpired(g.ExpiresAt, now) {
			addAll(set, g.Features)
		}
	}
	return set, nil
}

// TrackProvider grants the features of active track memberships.
type TrackProvider struct {
	store Store
}

// NewTrackProvider creates a track provider.
func NewTrackProvider(s Store) *TrackProvider {
	return &TrackProvider{store: s}
}

// Source implements entitlements.Provider.
func (p *TrackProvider) Source() entitlements.AccessSource {
	return entitlements.SourceTrack
}

// EnabledFeatures implements entitlements.Provider.
func (p *TrackProvider) EnabledFeatures(ctx context.Context, userID string) (entitlements.FeatureSet, error) {
	memberships, err := p.store.TrackMemberships(ctx, userID)
	if err != nil {
		return nil, unavailable(p.Source(), "list_tracks", userID, err)
	}
	set := entitlements.NewFeatureSet()
	for _, m := range memberships {
		if m.IsActive {
			addAll(set, m.Features)
		}
	}
	return set, nil
}

// OrgSponsorProvider grants features sponsored by the user's organizations.
// Sponsorship patterns may use wildcards and are expanded against the
// feature catalog.
type OrgSponsorProvider struct {
	store Store
	clock Clock
}

// NewOrgSponsorProvider creates an org sponsorship provider.
func NewOrgSponsorProvider(s Store, clock Clock) *OrgSponsorProvider {
	return &OrgSponsorProvider{store: s, clock: clock}
}

// Source implements entitlements.Provider.
func (p *OrgSponsorProvider) Source() entitlements.AccessSource {
	return entitlements.SourceOrgSponsored
}

// EnabledFeatures implements entitlements.Provider.
func (p *OrgSponsorProvider) EnabledFeatures(ctx context.Context, userID string) (entitlements.FeatureSet, error) {
	sponsorships, err := p.store.Sponsorships(ctx, userID)
	if err != nil {
		return nil, unavailable(p.Source(), "list_sponsorships", userID, err)
	}
	now := p.clock.now()

	var patterns []string
	for _, sp := range sponsorships {
		if notExpired(sp.ExpiresAt, now) {
			patterns = append(patterns, sp.Pattern)
		}
	}
	set := entitlements.NewFeatureSet()
	if len(patterns) == 0 {
		return set, nil
	}

	var catalog []entitlements.FeatureKey
	for _, pattern := range patterns {
		if !isPattern(pattern) {
			set.Add(entitlements.FeatureKey(pattern))
			continue
		}
		if catalog == nil {
			catalog, err = p.catalog(ctx)
			if err != nil {
				return nil, unavailable(p.Source(), "list_features", userID, err)
			}
		}
		matched := 0
		for _, key := range catalog {
			if wildcard.Match(pattern, string(key)) {
				set.Add(key)
				matched++
			}
		}
		if matched == 0 {
			log.Debug().
				Str("user_id", userID).
				Str("pattern", pattern).
				Msg("Sponsorship pattern matched no features")
		}
	}
	return set, nil
}

// catalog is the union of the stored feature table and the built-in catalog.
func (p *OrgSponsorProvider) catalog(ctx context.Context) ([]entitlements.FeatureKey, error) {
	stored, err := p.store.FeatureKeys(ctx)
	if err != nil {
		return nil, err
	}
	set := entitlements.NewFeatureSet(entitlements.CatalogFeatures()...)
	addAll(set, stored)
	return set.Sorted(), nil
}

// isPattern reports whether a sponsorship names more than one feature. Only
// '*' and '?' mark a pattern, so dotted keys such as "reports.export" are
// granted literally. Inside a pattern, go-wildcard still matches '.' as any
// single character.
func isPattern(s string) bool {
	return strings.ContainsAny(s, "*?")
}
