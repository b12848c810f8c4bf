// Package enrollment models the access lifecycle of a program enrollment:
// full access while active, read-only alumni access during a grace period,
// and no access once the grace period has run out.
package enrollment

import (
	"math"
	"strings"
	"time"
)

// State is the access state of one (user, program) pair.
type State string

const (
	StateNone    State = "none" // no enrollment on record
	StateActive  State = "active"
	StateGrace   State = "grace"
	StateExpired State = "expired"
)

// Status is the stored enrollment status.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
	StatusWithdrawn Status = "withdrawn"
)

// Facts are the enrollment fields the lifecycle depends on.
type Facts struct {
	EnrollmentID string     `json:"enrollment_id"`
	ProgramID    string     `json:"program_id"`
	Status       Status     `json:"status"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Ended reports whether active access has ended and, if known, when the
// grace window starts. Completion time takes precedence over the enrollment
// deadline, and neither can start the window later than now. A withdrawn
// enrollment ends with no grace window.
func (f Facts) Ended(now time.Time) (time.Time, bool) {
	switch f.Status {
	case StatusActive, StatusPaused:
		return time.Time{}, false
	case StatusWithdrawn:
		return time.Time{}, true
	}
	var endedAt time.Time
	switch {
	case f.CompletedAt != nil:
		endedAt = *f.CompletedAt
	case f.ExpiresAt != nil:
		endedAt = *f.ExpiresAt
	default:
		return time.Time{}, true
	}
	if endedAt.After(now) {
		endedAt = now
	}
	return endedAt, true
}

const day = 24 * time.Hour

// DaysUntil returns the ceiling of the whole days from now until t, never
// negative.
func DaysUntil(t, now time.Time) int {
	remaining := t.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(float64(remaining) / float64(day)))
}

// GraceExpiry returns when the grace window that starts at endedAt closes.
func GraceExpiry(endedAt time.Time, graceDays int) time.Time {
	if graceDays < 0 {
		graceDays = 0
	}
	return endedAt.Add(time.Duration(graceDays) * day)
}

// Step computes the current lifecycle state of an enrollment. The window is
// closed: once fewer than one partial day remains the enrollment is expired.
func Step(f Facts, graceDays int, now time.Time) State {
	if f.EnrollmentID == "" && f.Status == "" {
		return StateNone
	}
	endedAt, ended := f.Ended(now)
	if !ended {
		return StateActive
	}
	if endedAt.IsZero() {
		return StateExpired
	}
	if DaysUntil(GraceExpiry(endedAt, graceDays), now) <= 0 {
		return StateExpired
	}
	return StateGrace
}

// Roles that bypass the alumni lifecycle entirely.
const (
	RoleAdmin      = "admin"
	RoleInstructor = "instructor"
	RoleCoach      = "coach"
)

// IsStaff reports whether any role grants staff access.
func IsStaff(roles []string) bool {
	for _, r := range roles {
		switch strings.ToLower(strings.TrimSpace(r)) {
		case RoleAdmin, RoleInstructor, RoleCoach:
			return true
		}
	}
	return false
}
