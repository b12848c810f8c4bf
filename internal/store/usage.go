package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	internalerrors "github.com/rcourtman/coachkit/internal/errors"
)

const (
	selectUsageLimitSQL = `SELECT monthly_limit FROM usage_limits WHERE source = ? AND feature_key = ?`
	countUsageSQL       = `
		SELECT COUNT(*) FROM feature_usage
		WHERE user_id = ? AND feature_key = ? AND source = ? AND used_at >= ?`
	insertUsageSQL = `
		INSERT INTO feature_usage (id, user_id, feature_key, source, used_at) VALUES (?, ?, ?, ?, ?)`
)

// UsageLimit returns the monthly cap for feature granted by source.
func (s *Store) UsageLimit(ctx context.Context, source, feature string) (int64, bool, error) {
	var limit int64
	err := s.db.QueryRowContext(ctx, selectUsageLimitSQL, source, feature).Scan(&limit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get usage limit: %w", err)
	}
	return limit, true, nil
}

// CountUsage counts usage events of feature via source by userID at or after
// since.
func (s *Store) CountUsage(ctx context.Context, userID, feature, source string, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, countUsageSQL, userID, feature, source, since.Unix()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count usage: %w", err)
	}
	return n, nil
}

// RecordUsage stores one usage event without checking any cap and returns
// its ID. IDs are ULIDs so they sort by time.
func (s *Store) RecordUsage(ctx context.Context, userID, feature, source string) (string, error) {
	return s.insertUsage(ctx, s.db, userID, feature, source)
}

// ConsumeUsage records one use of feature via source unless the source's
// monthly cap is already used up in the period starting at since. The cap
// check and the insert run in one transaction. remaining is what is left
// after this use; capped is false when source has no cap for feature.
func (s *Store) ConsumeUsage(ctx context.Context, userID, feature, source string, since time.Time) (remaining int64, capped bool, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var limit int64
		switch err := tx.QueryRowContext(ctx, selectUsageLimitSQL, source, feature).Scan(&limit); {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("get usage limit: %w", err)
		default:
			var used int64
			if err := tx.QueryRowContext(ctx, countUsageSQL, userID, feature, source, since.Unix()).Scan(&used); err != nil {
				return fmt.Errorf("count usage: %w", err)
			}
			if used >= limit {
				return fmt.Errorf("%s via %s: %w", feature, source, internalerrors.ErrUsageLimit)
			}
			capped = true
			remaining = limit - used - 1
		}
		_, err := s.insertUsage(ctx, tx, userID, feature, source)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	return remaining, capped, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertUsage(ctx context.Context, db execer, userID, feature, source string) (string, error) {
	now := s.now().UTC()
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	if _, err := db.ExecContext(ctx, insertUsageSQL, id, userID, feature, source, now.Unix()); err != nil {
		return "", fmt.Errorf("record usage: %w", err)
	}
	return id, nil
}
