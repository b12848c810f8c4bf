package access

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	internalerrors "github.com/rcourtman/coachkit/internal/errors"
	"github.com/rcourtman/coachkit/internal/settings"
	"github.com/rcourtman/coachkit/internal/store"
	"github.com/rcourtman/coachkit/pkg/audit"
	"github.com/rcourtman/coachkit/pkg/enrollment"
	"github.com/rcourtman/coachkit/pkg/entitlements"
)

const adminID = "admin-1"

func TestAlumniAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		user      string
		program   string
		state     enrollment.State
		hasAccess bool
		readOnly  bool
		days      int
	}{
		{name: "active member", user: store.DemoMemberID, program: "exec-coaching", state: enrollment.StateActive, hasAccess: true},
		{name: "alumni in grace", user: store.DemoAlumniID, program: "exec-coaching", state: enrollment.StateGrace, hasAccess: true, readOnly: true, days: 70},
		{name: "staff bypass", user: store.DemoCoachID, program: "exec-coaching", state: enrollment.StateActive, hasAccess: true},
		{name: "never enrolled", user: store.DemoOrgID, program: "exec-coaching", state: enrollment.StateNone},
		{name: "missing program", user: store.DemoAlumniID, program: "", state: enrollment.StateNone},
		{name: "anonymous", user: "", program: "exec-coaching", state: enrollment.StateNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.AlumniAccess(ctx, tt.user, tt.program)
			require.NoError(t, err)
			require.Equal(t, tt.state, got.State)
			require.Equal(t, tt.hasAccess, got.HasAccess)
			require.Equal(t, tt.readOnly, got.ReadOnly)
			require.Equal(t, tt.readOnly, got.InGracePeriod)
			require.Equal(t, tt.days, got.DaysRemaining)
		})
	}

	got, err := f.svc.AlumniAccess(ctx, store.DemoAlumniID, "exec-coaching")
	require.NoError(t, err)
	require.Equal(t, enrollment.UrgencyHidden, got.Urgency, "70 days left is outside the 30 day window")
	require.NotNil(t, got.GraceExpiresAt)
}

func TestRequireWritable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RequireWritable(ctx, store.DemoMemberID, "exec-coaching"))
	require.NoError(t, f.svc.RequireWritable(ctx, store.DemoCoachID, "exec-coaching"))
	require.ErrorIs(t, f.svc.RequireWritable(ctx, store.DemoAlumniID, "exec-coaching"), internalerrors.ErrReadOnly)
	require.ErrorIs(t, f.svc.RequireWritable(ctx, store.DemoOrgID, "exec-coaching"), internalerrors.ErrForbidden)
	require.ErrorIs(t, f.svc.RequireWritable(ctx, "", "exec-coaching"), internalerrors.ErrUnauthenticated)
	require.ErrorIs(t, f.svc.RequireWritable(ctx, store.DemoMemberID, ""), internalerrors.ErrInvalidInput)
}

func TestSetGracePeriodDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.AddUserRole(ctx, adminID, enrollment.RoleAdmin))

	// Prime the settings cache so the update has to invalidate it.
	require.Equal(t, 90, f.svc.Settings(ctx).AlumniGracePeriodDays)

	require.ErrorIs(t, f.svc.SetGracePeriodDays(ctx, "", 10), internalerrors.ErrUnauthenticated)
	require.ErrorIs(t, f.svc.SetGracePeriodDays(ctx, store.DemoCoachID, 10), internalerrors.ErrForbidden)
	require.ErrorIs(t, f.svc.SetGracePeriodDays(ctx, adminID, -1), internalerrors.ErrInvalidInput)
	require.Empty(t, f.audit.events)

	require.NoError(t, f.svc.SetGracePeriodDays(ctx, adminID, 10))
	require.Equal(t, 10, f.svc.Settings(ctx).AlumniGracePeriodDays)

	// Completed 20 days ago with a 10 day grace period: expired.
	got, err := f.svc.AlumniAccess(ctx, store.DemoAlumniID, "exec-coaching")
	require.NoError(t, err)
	require.Equal(t, enrollment.StateExpired, got.State)
	require.False(t, got.HasAccess)
	require.ErrorIs(t, f.svc.RequireWritable(ctx, store.DemoAlumniID, "exec-coaching"), internalerrors.ErrForbidden)

	require.Len(t, f.audit.events, 1)
	ev := f.audit.events[0]
	require.Equal(t, ActionSettingsUpdate, ev.Action)
	require.Equal(t, settings.KeyAlumniGracePeriodDays, ev.EntityID)
	require.Equal(t, adminID, ev.ActorID)
	require.Empty(t, ev.Before)
	require.JSONEq(t, `{"alumni_grace_period_days":"10"}`, string(ev.After))

	require.NoError(t, f.svc.SetGracePeriodDays(ctx, adminID, 30))
	require.Len(t, f.audit.events, 2)
	require.JSONEq(t, `{"alumni_grace_period_days":"10"}`, string(f.audit.events[1].Before))
}

func TestGrantAndRevokeAddOn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.Resolve(ctx, store.DemoAlumniID, entitlements.FeatureAIInsights)
	require.NoError(t, err)
	require.False(t, rec.Enabled)

	future := time.Now().Add(48 * time.Hour)
	past := time.Now().Add(-time.Hour)

	_, err = f.svc.GrantAddOn(ctx, "", store.DemoAlumniID, "ai-pack", nil)
	require.ErrorIs(t, err, internalerrors.ErrUnauthenticated)
	_, err = f.svc.GrantAddOn(ctx, store.DemoMemberID, store.DemoAlumniID, "ai-pack", nil)
	require.ErrorIs(t, err, internalerrors.ErrForbidden)
	_, err = f.svc.GrantAddOn(ctx, store.DemoCoachID, store.DemoAlumniID, "no-such-pack", nil)
	require.ErrorIs(t, err, internalerrors.ErrNotFound)
	_, err = f.svc.GrantAddOn(ctx, store.DemoCoachID, store.DemoAlumniID, "ai-pack", &past)
	require.ErrorIs(t, err, internalerrors.ErrInvalidInput)
	_, err = f.svc.GrantAddOn(ctx, store.DemoCoachID, "", "ai-pack", nil)
	require.ErrorIs(t, err, internalerrors.ErrInvalidInput)
	require.Empty(t, f.audit.events)

	grant, err := f.svc.GrantAddOn(ctx, store.DemoCoachID, store.DemoAlumniID, "ai-pack", &future)
	require.NoError(t, err)
	require.Equal(t, "ai-pack", grant.AddOnID)
	require.NotNil(t, grant.ExpiresAt)

	rec, err = f.svc.Resolve(ctx, store.DemoAlumniID, entitlements.FeatureAIInsights)
	require.NoError(t, err)
	require.Equal(t, "add_on", rec.SourceName())

	removed, err := f.svc.RevokeAddOn(ctx, store.DemoCoachID, store.DemoAlumniID, "ai-pack")
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = f.svc.RevokeAddOn(ctx, store.DemoCoachID, store.DemoAlumniID, "ai-pack")
	require.NoError(t, err)
	require.False(t, removed)

	rec, err = f.svc.Resolve(ctx, store.DemoAlumniID, entitlements.FeatureAIInsights)
	require.NoError(t, err)
	require.False(t, rec.Enabled)

	require.Len(t, f.audit.events, 2)
	require.Equal(t, ActionAddOnGrant, f.audit.events[0].Action)
	require.Empty(t, f.audit.events[0].Before)
	require.NotEmpty(t, f.audit.events[0].After)
	require.Equal(t, ActionAddOnRevoke, f.audit.events[1].Action)
	require.Equal(t, store.DemoAlumniID+"/ai-pack", f.audit.events[1].EntityID)
	require.NotEmpty(t, f.audit.events[1].Before)
	require.Empty(t, f.audit.events[1].After)
}

func TestAuditEventsRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.AddUserRole(ctx, adminID, enrollment.RoleAdmin))

	_, err := f.svc.GrantAddOn(ctx, adminID, store.DemoAlumniID, "ai-pack", nil)
	require.NoError(t, err)

	_, err = f.svc.AuditEvents(ctx, store.DemoCoachID, audit.QueryFilter{})
	require.ErrorIs(t, err, internalerrors.ErrForbidden)

	events, err := f.svc.AuditEvents(ctx, adminID, audit.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, ActionAddOnGrant, events[0].Action)
}
