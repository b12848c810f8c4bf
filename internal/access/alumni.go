package access

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	internalerrors "github.com/rcourtman/coachkit/internal/errors"
	"github.com/rcourtman/coachkit/pkg/enrollment"
)

// AlumniStatus is the alumni access for a program plus the banner urgency
// of its grace countdown.
type AlumniStatus struct {
	enrollment.AlumniAccess
	Urgency enrollment.Urgency `json:"urgency"`
}

// AlumniAccess resolves userID's access to programID. Missing identifiers
// yield the no-access value.
func (s *Service) AlumniAccess(ctx context.Context, userID, programID string) (AlumniStatus, error) {
	cfg := s.settings.Load(ctx)
	access, err := s.alumniAccess(ctx, userID, programID, cfg.AlumniGracePeriodDays)
	if err != nil {
		return AlumniStatus{AlumniAccess: enrollment.NoAccess(), Urgency: enrollment.UrgencyHidden}, err
	}
	return AlumniStatus{
		AlumniAccess: access,
		Urgency:      enrollment.GraceUrgency(access, cfg.DeadlineWarningDays),
	}, nil
}

func (s *Service) alumniAccess(ctx context.Context, userID, programID string, graceDays int) (enrollment.AlumniAccess, error) {
	if userID == "" {
		return enrollment.NoAccess(), nil
	}

	roles, err := s.store.UserRoles(ctx, userID)
	if err != nil {
		// Staff bypass is skipped; the enrollment still decides.
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to load user roles for alumni check")
	}

	in := enrollment.AlumniInput{ProgramID: programID, Roles: roles, GraceDays: graceDays}
	if programID != "" {
		enr, err := s.store.LatestEnrollment(ctx, userID, programID)
		if err != nil {
			return enrollment.NoAccess(), internalerrors.WrapUnavailable("enrollment", "latest_enrollment", userID, err)
		}
		if enr != nil {
			facts := enr.Facts()
			in.Enrollment = &facts
		}
	}
	return enrollment.ResolveAlumniAccess(in, s.now()), nil
}

// DeadlineWarning returns the countdown to userID's active enrollment
// deadline in programID.
func (s *Service) DeadlineWarning(ctx context.Context, userID, programID string) (enrollment.DeadlineWarning, error) {
	hidden := enrollment.DeadlineWarning{Urgency: enrollment.UrgencyHidden}
	if userID == "" || programID == "" {
		return hidden, nil
	}
	enr, err := s.store.LatestEnrollment(ctx, userID, programID)
	if err != nil {
		return hidden, internalerrors.WrapUnavailable("enrollment", "latest_enrollment", userID, err)
	}
	if enr == nil {
		return hidden, nil
	}
	cfg := s.settings.Load(ctx)
	return enrollment.ResolveDeadlineWarning(enr.Facts(), cfg.DeadlineWarningDays, s.now()), nil
}

// RequireWritable fails unless userID has full (non read-only) access to
// programID. Alumni in their grace period get ErrReadOnly.
func (s *Service) RequireWritable(ctx context.Context, userID, programID string) error {
	if userID == "" {
		return internalerrors.ErrUnauthenticated
	}
	if programID == "" {
		return fmt.Errorf("program id is required: %w", internalerrors.ErrInvalidInput)
	}
	cfg := s.settings.Load(ctx)
	access, err := s.alumniAccess(ctx, userID, programID, cfg.AlumniGracePeriodDays)
	if err != nil {
		return err
	}
	switch {
	case !access.HasAccess:
		return fmt.Errorf("no access to program %s: %w", programID, internalerrors.ErrForbidden)
	case access.ReadOnly:
		return fmt.Errorf("program %s: %w", programID, internalerrors.ErrReadOnly)
	}
	return nil
}
