package enrollment

import "time"

// Urgency is how prominently a countdown banner should be shown.
type Urgency string

const (
	UrgencyHidden Urgency = "hidden"
	UrgencyNotice Urgency = "notice"
	UrgencyUrgent Urgency = "urgent"
)

// UrgentThresholdDays is the countdown at or below which a banner is urgent.
const UrgentThresholdDays = 7

// DefaultDeadlineWindowDays is how far ahead deadline warnings are shown.
const DefaultDeadlineWindowDays = 30

// ClassifyUrgency buckets a countdown. A window of zero or less never hides.
func ClassifyUrgency(daysRemaining, windowDays int) Urgency {
	if windowDays > 0 && daysRemaining > windowDays {
		return UrgencyHidden
	}
	if daysRemaining <= UrgentThresholdDays {
		return UrgencyUrgent
	}
	return UrgencyNotice
}

// DeadlineWarning is the pre-expiry countdown for an active enrollment.
type DeadlineWarning struct {
	EnrollmentID  string     `json:"enrollment_id,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at"`
	DaysRemaining int        `json:"days_remaining"`
	Urgency       Urgency    `json:"urgency"`
	Passed        bool       `json:"passed"`
}

// ResolveDeadlineWarning computes the countdown to an active enrollment's
// deadline. Enrollments that are not active or have no deadline are hidden.
func ResolveDeadlineWarning(f Facts, windowDays int, now time.Time) DeadlineWarning {
	w := DeadlineWarning{EnrollmentID: f.EnrollmentID, Urgency: UrgencyHidden}
	if f.Status != StatusActive || f.ExpiresAt == nil {
		return w
	}
	expires := *f.ExpiresAt
	w.ExpiresAt = &expires
	w.DaysRemaining = DaysUntil(expires, now)
	w.Passed = w.DaysRemaining <= 0
	w.Urgency = ClassifyUrgency(w.DaysRemaining, windowDays)
	return w
}

// GraceUrgency buckets an alumni grace countdown. Expired access has no banner.
func GraceUrgency(a AlumniAccess, windowDays int) Urgency {
	if !a.InGracePeriod {
		return UrgencyHidden
	}
	return ClassifyUrgency(a.DaysRemaining, windowDays)
}
