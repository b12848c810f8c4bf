package store

import (
	"time"

	"github.com/rcourtman/coachkit/pkg/enrollment"
)

// Plan is a purchasable (or legacy) subscription plan.
type Plan struct {
	ID            string
	Name          string
	TierLevel     int
	IsPurchasable bool
	Features      []string
}

// Subscription is a user's subscription row joined with its plan.
type Subscription struct {
	ID               string
	UserID           string
	PlanID           string
	Status           string // active, trialing, past_due, canceled
	CurrentPeriodEnd *time.Time
	TierLevel        int
	Features         []string
}

// Program is a coaching program, optionally backed by a plan.
type Program struct {
	ID     string
	Name   string
	PlanID string
}

// Enrollment is a user's enrollment in a program. PlanFeatures holds the
// features of the program's plan.
type Enrollment struct {
	ID           string
	UserID       string
	ProgramID    string
	Status       enrollment.Status
	CreatedAt    time.Time
	CompletedAt  *time.Time
	ExpiresAt    *time.Time
	PlanFeatures []string
}

// Facts returns the lifecycle fields of the enrollment.
func (e Enrollment) Facts() enrollment.Facts {
	return enrollment.Facts{
		EnrollmentID: e.ID,
		ProgramID:    e.ProgramID,
		Status:       e.Status,
		CompletedAt:  e.CompletedAt,
		ExpiresAt:    e.ExpiresAt,
	}
}

// AddOn is a standalone purchasable feature bundle.
type AddOn struct {
	ID       string
	Name     string
	Features []string
}

// AddOnGrant is an add-on held by a user.
type AddOnGrant struct {
	UserID    string     `json:"user_id"`
	AddOnID   string     `json:"add_on_id"`
	GrantedAt time.Time  `json:"granted_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Features  []string   `json:"-"`
}

// Track is a learning track that unlocks features for its members.
type Track struct {
	ID       string
	Name     string
	Features []string
}

// TrackMembership is a user's membership in a track.
type TrackMembership struct {
	UserID   string
	TrackID  string
	IsActive bool
	Features []string
}

// Organization sponsors features for its members. AdminManaged orgs choose
// plans on behalf of their members.
type Organization struct {
	ID           string
	Name         string
	AdminManaged bool
}

// Sponsorship is one sponsored feature pattern visible to a member.
type Sponsorship struct {
	OrgID     string
	Pattern   string
	ExpiresAt *time.Time
}
