package access

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	internalerrors "github.com/rcourtman/coachkit/internal/errors"
	"github.com/rcourtman/coachkit/internal/providers"
	"github.com/rcourtman/coachkit/internal/settings"
	"github.com/rcourtman/coachkit/internal/store"
	"github.com/rcourtman/coachkit/pkg/audit"
	"github.com/rcourtman/coachkit/pkg/enrollment"
	"github.com/rcourtman/coachkit/pkg/entitlements"
)

// Audit actions recorded by the service.
const (
	ActionAddOnGrant     = "add_on.grant"
	ActionAddOnRevoke    = "add_on.revoke"
	ActionSettingsUpdate = "settings.update"
)

// requireStaff checks that actorID is authenticated and holds a staff role.
func (s *Service) requireStaff(ctx context.Context, actorID string, admin bool) error {
	if strings.TrimSpace(actorID) == "" {
		return internalerrors.ErrUnauthenticated
	}
	roles, err := s.store.UserRoles(ctx, actorID)
	if err != nil {
		return fmt.Errorf("load roles for %s: %w", actorID, err)
	}
	if admin {
		for _, r := range roles {
			if strings.EqualFold(strings.TrimSpace(r), enrollment.RoleAdmin) {
				return nil
			}
		}
		return fmt.Errorf("%s is not an admin: %w", actorID, internalerrors.ErrForbidden)
	}
	if !enrollment.IsStaff(roles) {
		return fmt.Errorf("%s is not staff: %w", actorID, internalerrors.ErrForbidden)
	}
	return nil
}

// GrantAddOn grants (or re-grants) an add-on to userID on behalf of actorID.
// expiresAt, when set, must be in the future.
func (s *Service) GrantAddOn(ctx context.Context, actorID, userID, addOnID string, expiresAt *time.Time) (*store.AddOnGrant, error) {
	if err := s.requireStaff(ctx, actorID, false); err != nil {
		return nil, err
	}
	if userID == "" || addOnID == "" {
		return nil, fmt.Errorf("user id and add-on id are required: %w", internalerrors.ErrInvalidInput)
	}
	if expiresAt != nil && !expiresAt.After(s.now()) {
		return nil, fmt.Errorf("expiry %s is in the past: %w", expiresAt.Format(time.RFC3339), internalerrors.ErrInvalidInput)
	}
	exists, err := s.store.AddOnExists(ctx, addOnID)
	if err != nil {
		return nil, fmt.Errorf("check add-on %s: %w", addOnID, err)
	}
	if !exists {
		return nil, fmt.Errorf("add-on %s: %w", addOnID, internalerrors.ErrNotFound)
	}

	before, err := s.store.AddOnGrant(ctx, userID, addOnID)
	if err != nil {
		return nil, fmt.Errorf("load current grant: %w", err)
	}
	grant, err := s.store.GrantAddOn(ctx, userID, addOnID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("grant add-on: %w", err)
	}

	audit.Record(s.audit, audit.NewEvent(ActionAddOnGrant, "user_add_on", userID+"/"+addOnID, actorID, grantSnapshot(before), grant))
	return grant, nil
}

// RevokeAddOn removes an add-on from userID. It reports whether a grant
// existed.
func (s *Service) RevokeAddOn(ctx context.Context, actorID, userID, addOnID string) (bool, error) {
	if err := s.requireStaff(ctx, actorID, false); err != nil {
		return false, err
	}
	if userID == "" || addOnID == "" {
		return false, fmt.Errorf("user id and add-on id are required: %w", internalerrors.ErrInvalidInput)
	}

	before, err := s.store.AddOnGrant(ctx, userID, addOnID)
	if err != nil {
		return false, fmt.Errorf("load current grant: %w", err)
	}
	removed, err := s.store.RevokeAddOn(ctx, userID, addOnID)
	if err != nil {
		return false, fmt.Errorf("revoke add-on: %w", err)
	}
	if removed {
		audit.Record(s.audit, audit.NewEvent(ActionAddOnRevoke, "user_add_on", userID+"/"+addOnID, actorID, grantSnapshot(before), nil))
	}
	return removed, nil
}

// grantSnapshot keeps a missing grant out of the audit record instead of
// encoding a typed nil as "null".
func grantSnapshot(g *store.AddOnGrant) any {
	if g == nil {
		return nil
	}
	return g
}

// SetGracePeriodDays updates the alumni grace period. Only admins may change
// it.
func (s *Service) SetGracePeriodDays(ctx context.Context, actorID string, days int) error {
	if err := s.requireStaff(ctx, actorID, true); err != nil {
		return err
	}
	if days < 0 {
		return fmt.Errorf("grace period must not be negative: %w", internalerrors.ErrInvalidInput)
	}

	value := strconv.Itoa(days)
	previous, existed, err := s.store.SetSetting(ctx, settings.KeyAlumniGracePeriodDays, value)
	if err != nil {
		return fmt.Errorf("update %s: %w", settings.KeyAlumniGracePeriodDays, err)
	}
	s.settings.Invalidate()

	var before any
	if existed {
		before = map[string]string{settings.KeyAlumniGracePeriodDays: previous}
	}
	audit.Record(s.audit, audit.NewEvent(ActionSettingsUpdate, "system_setting", settings.KeyAlumniGracePeriodDays, actorID,
		before, map[string]string{settings.KeyAlumniGracePeriodDays: value}))
	return nil
}

// RecordUsage consumes one use of feature for userID against the source that
// currently grants it and returns the record after the use. The cap is
// checked again when the use is stored, so concurrent callers cannot overrun
// it.
func (s *Service) RecordUsage(ctx context.Context, userID string, feature entitlements.FeatureKey) (entitlements.Record, error) {
	if userID == "" {
		return entitlements.Record{}, internalerrors.ErrUnauthenticated
	}
	rec, err := s.Resolve(ctx, userID, feature)
	if err != nil {
		return entitlements.Record{}, err
	}
	if !rec.Usable() {
		if rec.LimitReached() {
			return rec, fmt.Errorf("%s: %w", feature, internalerrors.ErrUsageLimit)
		}
		return rec, fmt.Errorf("%s is not enabled: %w", feature, internalerrors.ErrForbidden)
	}

	remaining, capped, err := s.store.ConsumeUsage(ctx, userID, string(feature), rec.SourceName(), providers.PeriodStart(s.now()))
	if err != nil {
		if errors.Is(err, internalerrors.ErrUsageLimit) {
			var none int64
			return entitlements.Record{Feature: feature, RemainingUsage: &none}, err
		}
		return rec, fmt.Errorf("record usage: %w", err)
	}
	rec.RemainingUsage = nil
	if capped {
		rec.RemainingUsage = &remaining
	}
	return rec, nil
}

// AuditEvents returns recorded audit events. Only admins may read them.
func (s *Service) AuditEvents(ctx context.Context, actorID string, filter audit.QueryFilter) ([]audit.Event, error) {
	if err := s.requireStaff(ctx, actorID, true); err != nil {
		return nil, err
	}
	l := s.audit
	if l == nil {
		l = audit.GetLogger()
	}
	events, err := l.Query(filter)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return events, nil
}
