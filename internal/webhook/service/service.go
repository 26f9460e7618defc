// Package service ingests email provider engagement events: dedup by event
// id, resolve the message back to its dispatch job, stamp the step slot and
// feed the engagement tracker. Unsubscribe-class events fan out over the
// event bus.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"nurture_backend/internal/dispatch"
	"nurture_backend/internal/events"
	"nurture_backend/internal/webhook/repository"
	"nurture_backend/platform/apperr"
	"nurture_backend/platform/logger"
)

// Event types accepted from the provider.
const (
	TypeDelivered    = "delivered"
	TypeOpened       = "opened"
	TypeClicked      = "clicked"
	TypeBounced      = "bounced"
	TypeComplained   = "complained"
	TypeUnsubscribed = "unsubscribed"
)

// Event is one normalized provider notification.
type Event struct {
	EventID   string
	MessageID string
	Type      string
	At        time.Time
}

// JobResolver maps a provider message id to the dispatch job that sent it.
type JobResolver interface {
	GetByMessageID(ctx context.Context, messageID string) (dispatch.Job, error)
}

// EventLog records event ids for dedup.
type EventLog interface {
	RecordEvent(ctx context.Context, eventID, eventType string) (bool, error)
}

// StepStamper records first-time open and click timestamps on step slots.
// Implemented by the enrollment service.
type StepStamper interface {
	StampOpened(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error)
	StampClicked(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error)
}

// EngagementTracker bumps the per-lead engagement counters. Implemented by
// the engagement service.
type EngagementTracker interface {
	RecordOpened(ctx context.Context, leadID uuid.UUID, at time.Time) error
	RecordClicked(ctx context.Context, leadID uuid.UUID, at time.Time) error
}

type Service struct {
	log         *logger.Logger
	eventLog    EventLog
	jobs        JobResolver
	enrollments StepStamper
	engagement  EngagementTracker
	bus         events.Bus
}

func New(eventLog EventLog, jobs JobResolver, enrollments StepStamper, engagement EngagementTracker, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		log:         log,
		eventLog:    eventLog,
		jobs:        jobs,
		enrollments: enrollments,
		engagement:  engagement,
		bus:         bus,
	}
}

var _ EventLog = (*repository.Repository)(nil)

// Ingest processes one provider event. Duplicates and events for unknown
// messages are acked silently; the provider only needs to know we took it.
func (s *Service) Ingest(ctx context.Context, ev Event) error {
	const op = "webhook.Ingest"

	fresh, err := s.eventLog.RecordEvent(ctx, ev.EventID, ev.Type)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "event dedup failed", err).WithOp(op)
	}
	if !fresh {
		return nil
	}

	job, err := s.jobs.GetByMessageID(ctx, ev.MessageID)
	if errors.Is(err, dispatch.ErrJobNotFound) {
		// Retention may have pruned the job, or the message predates this
		// system. Nothing to attribute the event to.
		s.log.Info("webhook event for unknown message", "eventType", ev.Type, "messageId", ev.MessageID)
		return nil
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "message lookup failed", err).WithOp(op)
	}

	switch ev.Type {
	case TypeDelivered:
		return nil
	case TypeOpened:
		return s.recordOpen(ctx, job, ev.At)
	case TypeClicked:
		return s.recordClick(ctx, job, ev.At)
	case TypeBounced:
		s.publishUnsubscribe(ctx, job.LeadID, "bounced")
		return nil
	case TypeComplained:
		s.publishUnsubscribe(ctx, job.LeadID, "complained")
		return nil
	case TypeUnsubscribed:
		s.publishUnsubscribe(ctx, job.LeadID, "unsubscribed")
		return nil
	default:
		return apperr.Validation("unknown event type: " + ev.Type)
	}
}

func (s *Service) recordOpen(ctx context.Context, job dispatch.Job, at time.Time) error {
	// The slot keeps only the first open; counters track every distinct
	// provider event.
	if _, err := s.enrollments.StampOpened(ctx, job.EnrollmentID, job.StepIndex, at); err != nil {
		return err
	}
	return s.engagement.RecordOpened(ctx, job.LeadID, at)
}

func (s *Service) recordClick(ctx context.Context, job dispatch.Job, at time.Time) error {
	if _, err := s.enrollments.StampClicked(ctx, job.EnrollmentID, job.StepIndex, at); err != nil {
		return err
	}
	return s.engagement.RecordClicked(ctx, job.LeadID, at)
}

func (s *Service) publishUnsubscribe(ctx context.Context, leadID uuid.UUID, reason string) {
	s.bus.Publish(ctx, events.LeadUnsubscribed{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		Reason:    reason,
	})
}
