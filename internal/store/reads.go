package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rcourtman/coachkit/pkg/enrollment"
)

// UserRoles returns the platform roles held by userID.
func (s *Store) UserRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role FROM user_roles WHERE user_id = ? ORDER BY role`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// Subscriptions returns every subscription of userID with its plan features,
// regardless of status. Callers apply their own validity rules.
func (s *Store) Subscriptions(ctx context.Context, userID string) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.user_id, s.plan_id, s.status, s.current_period_end, p.tier_level, pf.feature_key
		FROM subscriptions s
		JOIN plans p ON p.id = s.plan_id
		LEFT JOIN plan_features pf ON pf.plan_id = s.plan_id
		WHERE s.user_id = ?
		ORDER BY s.id, pf.feature_key`, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		var sub Subscription
		var periodEnd sql.NullInt64
		var feature sql.NullString
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.PlanID, &sub.Status, &periodEnd, &sub.TierLevel, &feature); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].ID != sub.ID {
			sub.CurrentPeriodEnd = timeFromNullable(periodEnd)
			out = append(out, sub)
		}
		if feature.Valid {
			last := &out[len(out)-1]
			last.Features = append(last.Features, feature.String)
		}
	}
	return out, rows.Err()
}

// Enrollments returns every enrollment of userID, newest first, with the
// features of each program's plan.
func (s *Store) Enrollments(ctx context.Context, userID string) ([]Enrollment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.user_id, e.program_id, e.status, e.created_at, e.completed_at, e.expires_at, pf.feature_key
		FROM enrollments e
		JOIN programs pr ON pr.id = e.program_id
		LEFT JOIN plan_features pf ON pf.plan_id = pr.plan_id
		WHERE e.user_id = ?
		ORDER BY e.created_at DESC, e.id, pf.feature_key`, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var out []Enrollment
	for rows.Next() {
		var feature sql.NullString
		e, err := scanEnrollment(rows, &feature)
		if err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].ID != e.ID {
			out = append(out, *e)
		}
		if feature.Valid {
			last := &out[len(out)-1]
			last.PlanFeatures = append(last.PlanFeatures, feature.String)
		}
	}
	return out, rows.Err()
}

// LatestEnrollment returns the most recent enrollment of userID in
// programID, or nil when there is none.
func (s *Store) LatestEnrollment(ctx context.Context, userID, programID string) (*Enrollment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, program_id, status, created_at, completed_at, expires_at
		FROM enrollments
		WHERE user_id = ? AND program_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, userID, programID)
	e, err := scanEnrollment(row, nil)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func scanEnrollment(sc scanner, feature *sql.NullString) (*Enrollment, error) {
	var e Enrollment
	var status string
	var createdAt int64
	var completedAt, expiresAt sql.NullInt64

	dest := []any{&e.ID, &e.UserID, &e.ProgramID, &status, &createdAt, &completedAt, &expiresAt}
	if feature != nil {
		dest = append(dest, feature)
	}
	if err := sc.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan enrollment: %w", err)
	}
	e.Status = enrollment.Status(status)
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	e.CompletedAt = timeFromNullable(completedAt)
	e.ExpiresAt = timeFromNullable(expiresAt)
	return &e, nil
}

// AddOnGrants returns every add-on held by userID, including expired ones.
func (s *Store) AddOnGrants(ctx context.Context, userID string) ([]AddOnGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ua.user_id, ua.add_on_id, ua.granted_at, ua.expires_at, af.feature_key
		FROM user_add_ons ua
		LEFT JOIN add_on_features af ON af.add_on_id = ua.add_on_id
		WHERE ua.user_id = ?
		ORDER BY ua.add_on_id, af.feature_key`, userID)
	if err != nil {
		return nil, fmt.Errorf("list add-on grants: %w", err)
	}
	defer rows.Close()

	var out []AddOnGrant
	for rows.Next() {
		var g AddOnGrant
		var grantedAt int64
		var expiresAt sql.NullInt64
		var feature sql.NullString
		if err := rows.Scan(&g.UserID, &g.AddOnID, &grantedAt, &expiresAt, &feature); err != nil {
			return nil, fmt.Errorf("scan add-on grant: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].AddOnID != g.AddOnID {
			g.GrantedAt = time.Unix(grantedAt, 0).UTC()
			g.ExpiresAt = timeFromNullable(expiresAt)
			out = append(out, g)
		}
		if feature.Valid {
			last := &out[len(out)-1]
			last.Features = append(last.Features, feature.String)
		}
	}
	return out, rows.Err()
}

// AddOnGrant returns the grant of addOnID to userID, or nil.
func (s *Store) AddOnGrant(ctx context.Context, userID, addOnID string) (*AddOnGrant, error) {
	var g AddOnGrant
	var grantedAt int64
	var expiresAt sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, add_on_id, granted_at, expires_at
		FROM user_add_ons WHERE user_id = ? AND add_on_id = ?`, userID, addOnID).
		Scan(&g.UserID, &g.AddOnID, &grantedAt, &expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get add-on grant: %w", err)
	}
	g.GrantedAt = time.Unix(grantedAt, 0).UTC()
	g.ExpiresAt = timeFromNullable(expiresAt)
	return &g, nil
}

// AddOnExists reports whether an add-on with id is defined.
func (s *Store) AddOnExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM add_ons WHERE id = ?)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check add-on: %w", err)
	}
	return exists, nil
}

// TrackMemberships returns every track membership of userID.
func (s *Store) TrackMemberships(ctx context.Context, userID string) ([]TrackMembership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ut.user_id, ut.track_id, ut.is_active, tf.feature_key
		FROM user_tracks ut
		LEFT JOIN track_features tf ON tf.track_id = ut.track_id
		WHERE ut.user_id = ?
		ORDER BY ut.track_id, tf.feature_key`, userID)
	if err != nil {
		return nil, fmt.Errorf("list track memberships: %w", err)
	}
	defer rows.Close()

	var out []TrackMembership
	for rows.Next() {
		var m TrackMembership
		var active int
		var feature sql.NullString
		if err := rows.Scan(&m.UserID, &m.TrackID, &active, &feature); err != nil {
			return nil, fmt.Errorf("scan track membership: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].TrackID != m.TrackID {
			m.IsActive = active != 0
			out = append(out, m)
		}
		if feature.Valid {
			last := &out[len(out)-1]
			last.Features = append(last.Features, feature.String)
		}
	}
	return out, rows.Err()
}

// Sponsorships returns the sponsored feature patterns of every org userID
// belongs to, including expired sponsorships.
func (s *Store) Sponsorships(ctx context.Context, userID string) ([]Sponsorship, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sp.org_id, sp.feature_pattern, sp.expires_at
		FROM org_sponsorships sp
		JOIN org_members m ON m.org_id = sp.org_id
		WHERE m.user_id = ?
		ORDER BY sp.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sponsorships: %w", err)
	}
	defer rows.Close()

	var out []Sponsorship
	for rows.Next() {
		var sp Sponsorship
		var expiresAt sql.NullInt64
		if err := rows.Scan(&sp.OrgID, &sp.Pattern, &expiresAt); err != nil {
			return nil, fmt.Errorf("scan sponsorship: %w", err)
		}
		sp.ExpiresAt = timeFromNullable(expiresAt)
		out = append(out, sp)
	}
	return out, rows.Err()
}

// IsOrgManaged reports whether userID belongs to an org that manages plan
// choices for its members.
func (s *Store) IsOrgManaged(ctx context.Context, userID string) (bool, error) {
	var managed bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM org_members m
			JOIN organizations o ON o.id = m.org_id
			WHERE m.user_id = ? AND o.admin_managed = 1
		)`, userID).Scan(&managed)
	if err != nil {
		return false, fmt.Errorf("check org management: %w", err)
	}
	return managed, nil
}

// Plans returns every plan ordered by tier.
func (s *Store) Plans(ctx context.Context) ([]Plan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, tier_level, is_purchasable FROM plans ORDER BY tier_level, id`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var out []Plan
	for rows.Next() {
		var p Plan
		var purchasable int
		if err := rows.Scan(&p.ID, &p.Name, &p.TierLevel, &purchasable); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		p.IsPurchasable = purchasable != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// FeatureKeys returns every feature key in the catalog table.
func (s *Store) FeatureKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM features ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list features: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// Settings returns every system setting as raw strings.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM system_settings`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Setting returns one system setting.
func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM system_settings WHERE key = ?`, key).Scan(&v)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, true, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
