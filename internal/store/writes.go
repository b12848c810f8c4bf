package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UpsertFeature inserts or renames a catalog feature.
func (s *Store) UpsertFeature(ctx context.Context, key, name string) error {
	if key == "" {
		return fmt.Errorf("feature key is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO features (key, name) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET name = excluded.name`, key, name)
	if err != nil {
		return fmt.Errorf("upsert feature %s: %w", key, err)
	}
	return nil
}

// AddUserRole grants a platform role to userID.
func (s *Store) AddUserRole(ctx context.Context, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO user_roles (user_id, role) VALUES (?, ?)`, userID, role)
	if err != nil {
		return fmt.Errorf("add user role: %w", err)
	}
	return nil
}

// UpsertPlan writes a plan and replaces its feature list.
func (s *Store) UpsertPlan(ctx context.Context, p Plan) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO plans (id, name, tier_level, is_purchasable) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				tier_level = excluded.tier_level,
				is_purchasable = excluded.is_purchasable`,
			p.ID, p.Name, p.TierLevel, boolToInt(p.IsPurchasable))
		if err != nil {
			return fmt.Errorf("upsert plan %s: %w", p.ID, err)
		}
		return replaceFeatures(ctx, tx, "plan_features", "plan_id", p.ID, p.Features)
	})
}

// UpsertSubscription writes a subscription row.
func (s *Store) UpsertSubscription(ctx context.Context, sub Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, user_id, plan_id, status, current_period_end) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			plan_id = excluded.plan_id,
			status = excluded.status,
			current_period_end = excluded.current_period_end`,
		sub.ID, sub.UserID, sub.PlanID, sub.Status, nullableTimeUnix(sub.CurrentPeriodEnd))
	if err != nil {
		return fmt.Errorf("upsert subscription %s: %w", sub.ID, err)
	}
	return nil
}

// UpsertProgram writes a program row. An empty PlanID stores NULL.
func (s *Store) UpsertProgram(ctx context.Context, p Program) error {
	var planID any
	if p.PlanID != "" {
		planID = p.PlanID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO programs (id, name, plan_id) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, plan_id = excluded.plan_id`,
		p.ID, p.Name, planID)
	if err != nil {
		return fmt.Errorf("upsert program %s: %w", p.ID, err)
	}
	return nil
}

// UpsertEnrollment writes an enrollment row. A zero CreatedAt is set to now.
func (s *Store) UpsertEnrollment(ctx context.Context, e Enrollment) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO enrollments (id, user_id, program_id, status, created_at, completed_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			completed_at = excluded.completed_at,
			expires_at = excluded.expires_at`,
		e.ID, e.UserID, e.ProgramID, string(e.Status), e.CreatedAt.Unix(),
		nullableTimeUnix(e.CompletedAt), nullableTimeUnix(e.ExpiresAt))
	if err != nil {
		return fmt.Errorf("upsert enrollment %s: %w", e.ID, err)
	}
	return nil
}

// UpsertAddOn writes an add-on and replaces its feature list.
func (s *Store) UpsertAddOn(ctx context.Context, a AddOn) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO add_ons (id, name) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name`, a.ID, a.Name)
		if err != nil {
			return fmt.Errorf("upsert add-on %s: %w", a.ID, err)
		}
		return replaceFeatures(ctx, tx, "add_on_features", "add_on_id", a.ID, a.Features)
	})
}

// GrantAddOn grants addOnID to userID, replacing any previous grant.
func (s *Store) GrantAddOn(ctx context.Context, userID, addOnID string, expiresAt *time.Time) (*AddOnGrant, error) {
	g := AddOnGrant{
		UserID:    userID,
		AddOnID:   addOnID,
		GrantedAt: s.now().UTC().Truncate(time.Second),
		ExpiresAt: expiresAt,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_add_ons (user_id, add_on_id, granted_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, add_on_id) DO UPDATE SET
			granted_at = excluded.granted_at,
			expires_at = excluded.expires_at`,
		g.UserID, g.AddOnID, g.GrantedAt.Unix(), nullableTimeUnix(g.ExpiresAt))
	if err != nil {
		return nil, fmt.Errorf("grant add-on %s: %w", addOnID, err)
	}
	return &g, nil
}

// RevokeAddOn removes the grant of addOnID from userID. It reports whether a
// grant existed.
func (s *Store) RevokeAddOn(ctx context.Context, userID, addOnID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_add_ons WHERE user_id = ? AND add_on_id = ?`, userID, addOnID)
	if err != nil {
		return false, fmt.Errorf("revoke add-on %s: %w", addOnID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UpsertTrack writes a track and replaces its feature list.
func (s *Store) UpsertTrack(ctx context.Context, t Track) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tracks (id, name) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name`, t.ID, t.Name)
		if err != nil {
			return fmt.Errorf("upsert track %s: %w", t.ID, err)
		}
		return replaceFeatures(ctx, tx, "track_features", "track_id", t.ID, t.Features)
	})
}

// SetTrackMembership adds userID to trackID or updates its active flag.
func (s *Store) SetTrackMembership(ctx context.Context, userID, trackID string, active bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_tracks (user_id, track_id, is_active) VALUES (?, ?, ?)
		ON CONFLICT(user_id, track_id) DO UPDATE SET is_active = excluded.is_active`,
		userID, trackID, boolToInt(active))
	if err != nil {
		return fmt.Errorf("set track membership: %w", err)
	}
	return nil
}

// UpsertOrganization writes an organization row.
func (s *Store) UpsertOrganization(ctx context.Context, o Organization) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO organizations (id, name, admin_managed) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, admin_managed = excluded.admin_managed`,
		o.ID, o.Name, boolToInt(o.AdminManaged))
	if err != nil {
		return fmt.Errorf("upsert organization %s: %w", o.ID, err)
	}
	return nil
}

// AddOrgMember adds userID to orgID.
func (s *Store) AddOrgMember(ctx context.Context, orgID, userID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO org_members (org_id, user_id) VALUES (?, ?)`, orgID, userID)
	if err != nil {
		return fmt.Errorf("add org member: %w", err)
	}
	return nil
}

// AddSponsorship records that orgID sponsors features matching pattern.
func (s *Store) AddSponsorship(ctx context.Context, orgID, pattern string, expiresAt *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO org_sponsorships (org_id, feature_pattern, expires_at) VALUES (?, ?, ?)`,
		orgID, pattern, nullableTimeUnix(expiresAt))
	if err != nil {
		return fmt.Errorf("add sponsorship: %w", err)
	}
	return nil
}

// SetSetting writes a system setting and returns the previous value, if any.
func (s *Store) SetSetting(ctx context.Context, key, value string) (previous string, existed bool, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		scanErr := tx.QueryRowContext(ctx, `SELECT value FROM system_settings WHERE key = ?`, key).Scan(&previous)
		switch {
		case scanErr == nil:
			existed = true
		case scanErr != sql.ErrNoRows:
			return fmt.Errorf("read setting %s: %w", key, scanErr)
		}
		_, execErr := tx.ExecContext(ctx, `
			INSERT INTO system_settings (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, s.now().Unix())
		if execErr != nil {
			return fmt.Errorf("write setting %s: %w", key, execErr)
		}
		return nil
	})
	return previous, existed, err
}

// SetUsageLimit caps monthly usage of feature when granted by source. A
// negative limit removes the cap.
func (s *Store) SetUsageLimit(ctx context.Context, source, feature string, monthlyLimit int64) error {
	if monthlyLimit < 0 {
		_, err := s.db.ExecContext(ctx, `DELETE FROM usage_limits WHERE source = ? AND feature_key = ?`, source, feature)
		if err != nil {
			return fmt.Errorf("clear usage limit: %w", err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_limits (source, feature_key, monthly_limit) VALUES (?, ?, ?)
		ON CONFLICT(source, feature_key) DO UPDATE SET monthly_limit = excluded.monthly_limit`,
		source, feature, monthlyLimit)
	if err != nil {
		return fmt.Errorf("set usage limit: %w", err)
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// replaceFeatures rewrites the feature rows of one owner. table and column are
// package constants, never user input.
func replaceFeatures(ctx context.Context, tx *sql.Tx, table, column, ownerID string, features []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+column+` = ?`, ownerID); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	for _, f := range features {
		if f == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO `+table+` (`+column+`, feature_key) VALUES (?, ?)`, ownerID, f); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}
