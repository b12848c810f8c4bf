package enrollment

import "time"

// AlumniInput is everything needed to decide alumni access for one program.
type AlumniInput struct {
	ProgramID  string
	Roles      []string
	Enrollment *Facts
	GraceDays  int
}

// AlumniAccess is the computed access for a (user, program) pair. It is
// recomputed on every check and never stored.
type AlumniAccess struct {
	State          State      `json:"state"`
	HasAccess      bool       `json:"has_access"`
	ReadOnly       bool       `json:"read_only"`
	InGracePeriod  bool       `json:"in_grace_period"`
	GraceExpiresAt *time.Time `json:"grace_expires_at"`
	DaysRemaining  int        `json:"days_remaining"`
	EnrollmentID   string     `json:"enrollment_id,omitempty"`
}

// NoAccess is returned for invalid input or a missing enrollment.
func NoAccess() AlumniAccess {
	return AlumniAccess{State: StateNone}
}

// ResolveAlumniAccess applies the staff bypass first, then the enrollment
// lifecycle.
func ResolveAlumniAccess(in AlumniInput, now time.Time) AlumniAccess {
	if IsStaff(in.Roles) {
		out := AlumniAccess{State: StateActive, HasAccess: true}
		if in.Enrollment != nil {
			out.EnrollmentID = in.Enrollment.EnrollmentID
		}
		return out
	}
	if in.ProgramID == "" || in.Enrollment == nil {
		return NoAccess()
	}

	f := *in.Enrollment
	out := AlumniAccess{EnrollmentID: f.EnrollmentID}
	out.State = Step(f, in.GraceDays, now)

	switch out.State {
	case StateNone:
		return NoAccess()
	case StateActive:
		out.HasAccess = true
		return out
	}

	if endedAt, _ := f.Ended(now); !endedAt.IsZero() {
		expires := GraceExpiry(endedAt, in.GraceDays)
		out.GraceExpiresAt = &expires
		out.DaysRemaining = DaysUntil(expires, now)
	}
	if out.State == StateGrace {
		out.HasAccess = true
		out.ReadOnly = true
		out.InGracePeriod = true
	}
	return out
}
