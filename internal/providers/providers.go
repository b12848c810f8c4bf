// Package providers implements the concrete access sources over the store.
// Each provider owns its own validity rule; the aggregator only sees the
// resulting feature sets.
package providers

import (
	"context"
	"time"

	internalerrors "github.com/rcourtman/coachkit/internal/errors"
	"github.com/rcourtman/coachkit/internal/store"
	"github.com/rcourtman/coachkit/pkg/entitlements"
)

// Store is the subset of the database the providers read.
type Store interface {
	Subscriptions(ctx context.Context, userID string) ([]store.Subscription, error)
	Enrollments(ctx context.Context, userID string) ([]store.Enrollment, error)
	AddOnGrants(ctx context.Context, userID string) ([]store.AddOnGrant, error)
	TrackMemberships(ctx context.Context, userID string) ([]store.TrackMembership, error)
	Sponsorships(ctx context.Context, userID string) ([]store.Sponsorship, error)
	FeatureKeys(ctx context.Context) ([]string, error)
}

// Clock returns the current time.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// Default returns one provider per access source, in default priority order.
func Default(s Store, clock Clock) []entitlements.Provider {
	return []entitlements.Provider{
		NewSubscriptionProvider(s, clock),
		NewProgramPlanProvider(s),
		NewAddOnProvider(s, clock),
		NewTrackProvider(s),
		NewOrgSponsorProvider(s, clock),
	}
}

func unavailable(source entitlements.AccessSource, op, userID string, err error) error {
	return internalerrors.WrapUnavailable(string(source), op, userID, err)
}

func notExpired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt == nil || expiresAt.After(now)
}

func addAll(set entitlements.FeatureSet, keys []string) {
	for _, k := range keys {
		set.Add(entitlements.FeatureKey(k))
	}
}
