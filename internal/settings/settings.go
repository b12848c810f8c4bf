// Package settings loads typed system settings with an explicit cache.
package settings

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Setting keys stored in system_settings.
const (
	KeyAlumniGracePeriodDays = "alumni_grace_period_days"
	KeyCreditRatio           = "credit_ratio"
	KeyMaxRecurrenceCount    = "max_recurrence_count"
	KeyDeadlineWarningDays   = "deadline_warning_days"
)

// DefaultTTL is the cache lifetime used when none is configured.
const DefaultTTL = 5 * time.Minute

// Settings is the typed view of system settings.
type Settings struct {
	AlumniGracePeriodDays int     `json:"alumni_grace_period_days"`
	CreditRatio           float64 `json:"credit_ratio"`
	MaxRecurrenceCount    int     `json:"max_recurrence_count"`
	DeadlineWarningDays   int     `json:"deadline_warning_days"`
}

// Defaults returns the hardcoded fallbacks used when a setting is missing,
// malformed, or the store is unreachable.
func Defaults() Settings {
	return Settings{
		AlumniGracePeriodDays: 90,
		CreditRatio:           1,
		MaxRecurrenceCount:    52,
		DeadlineWarningDays:   30,
	}
}

// Store reads raw settings.
type Store interface {
	Settings(ctx context.Context) (map[string]string, error)
}

// Loader serves settings from a TTL cache over Store.
type Loader struct {
	store     Store
	ttl       time.Duration
	now       func() time.Time
	mu        sync.RWMutex
	cache     *Settings
	cacheTime time.Time
}

// NewLoader creates a settings loader.
//
// ttl semantics:
//   - ttl > 0: cache for that duration
//   - ttl == 0: no caching (always read the store)
//   - ttl < 0: defaults only (never consult the store)
func NewLoader(store Store, ttl time.Duration) *Loader {
	return &Loader{store: store, ttl: ttl, now: time.Now}
}

// Load returns the current settings. It never fails: on a store error the
// last good value is served, or the defaults if there is none.
func (l *Loader) Load(ctx context.Context) Settings {
	if l == nil || l.ttl < 0 {
		return Defaults()
	}

	now := l.now()
	l.mu.RLock()
	if l.ttl > 0 && l.cache != nil && now.Sub(l.cacheTime) <= l.ttl {
		cached := *l.cache
		l.mu.RUnlock()
		return cached
	}
	var stale *Settings
	if l.cache != nil {
		cp := *l.cache
		stale = &cp
	}
	l.mu.RUnlock()

	if l.store == nil {
		if stale != nil {
			return *stale
		}
		return Defaults()
	}

	raw, err := l.store.Settings(ctx)
	if err != nil {
		log.Warn().Err(err).Bool("stale", stale != nil).Msg("Failed to load system settings, using fallback")
		if stale != nil {
			return *stale
		}
		return Defaults()
	}

	fresh := Parse(raw)
	l.mu.Lock()
	l.cache = &fresh
	l.cacheTime = now
	l.mu.Unlock()
	return fresh
}

// Invalidate drops the cached value so the next Load reads the store.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = nil
	l.cacheTime = time.Time{}
}

// Parse converts raw rows into Settings, keeping the default for any key
// that is missing or malformed.
func Parse(raw map[string]string) Settings {
	s := Defaults()
	if v, ok := parseInt(raw, KeyAlumniGracePeriodDays, 0); ok {
		s.AlumniGracePeriodDays = v
	}
	if v, ok := raw[KeyCreditRatio]; ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || f <= 0 {
			log.Warn().Str("key", KeyCreditRatio).Str("value", v).Msg("Ignoring invalid setting")
		} else {
			s.CreditRatio = f
		}
	}
	if v, ok := parseInt(raw, KeyMaxRecurrenceCount, 1); ok {
		s.MaxRecurrenceCount = v
	}
	if v, ok := parseInt(raw, KeyDeadlineWarningDays, 0); ok {
		s.DeadlineWarningDays = v
	}
	return s
}

func parseInt(raw map[string]string, key string, minimum int) (int, bool) {
	v, ok := raw[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < minimum {
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring invalid setting")
		return 0, false
	}
	return n, true
}
