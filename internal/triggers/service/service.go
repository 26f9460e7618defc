// Package service turns inbound trigger events into enrollments. The
// trigger endpoint is the write path the capture forms and the quiz funnel
// call; everything it does is a composition of the sequence registry and the
// enrollment service.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"nurture_backend/internal/enrollment/domain"
	enrollrepo "nurture_backend/internal/enrollment/repository"
	"nurture_backend/internal/sequence"
	"nurture_backend/platform/logger"
)

type Enroller interface {
	Enroll(ctx context.Context, leadID uuid.UUID, sequenceID string, triggerTime time.Time) (enrollrepo.Enrollment, error)
	AdvanceStage(ctx context.Context, id uuid.UUID, next domain.Stage) error
}

type Service struct {
	registry *sequence.Registry
	enrolls  Enroller
	log      *logger.Logger
	now      func() time.Time
}

func New(registry *sequence.Registry, enrolls Enroller, log *logger.Logger) *Service {
	return &Service{
		registry: registry,
		enrolls:  enrolls,
		log:      log,
		now:      time.Now,
	}
}

// Fire resolves the trigger to its sequence and enrolls the lead. A
// guide_downloaded trigger also moves the fresh enrollment to the
// guide_downloaded stage. Duplicate enrollments surface as a conflict so
// the caller can tell a replayed form submit from a new one.
func (s *Service) Fire(ctx context.Context, leadID uuid.UUID, event string) (enrollrepo.Enrollment, error) {
	sequenceID, err := s.registry.ForTrigger(event)
	if err != nil {
		return enrollrepo.Enrollment{}, err
	}

	enrollment, err := s.enrolls.Enroll(ctx, leadID, sequenceID, s.now().UTC())
	if err != nil {
		return enrollrepo.Enrollment{}, err
	}

	if event == sequence.TriggerGuideDownloaded {
		if err := s.enrolls.AdvanceStage(ctx, enrollment.ID, domain.StageGuideDownloaded); err != nil {
			// The enrollment exists and will dispatch; the stage catches up
			// on the next engagement signal.
			s.log.Warn("stage advance after trigger failed",
				"enrollmentId", enrollment.ID, "event", event, "error", err)
		} else {
			enrollment.Stage = domain.StageGuideDownloaded
		}
	}

	s.log.Info("trigger enrolled lead",
		"leadId", leadID, "event", event, "sequenceId", sequenceID, "enrollmentId", enrollment.ID)
	return enrollment, nil
}
