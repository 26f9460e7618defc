// Package service implements the enrollment manager: entering leads into
// sequences, the journey stage machine, cancellation cascades and the
// write-once step send slots the dispatch worker records into.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"nurture_backend/internal/enrollment/domain"
	"nurture_backend/internal/enrollment/repository"
	"nurture_backend/internal/events"
	"nurture_backend/internal/sequence"
	"nurture_backend/platform/apperr"
	"nurture_backend/platform/logger"
)

// Store is the persistence surface the service needs. Implemented by
// repository.Repository; test doubles implement it in memory.
type Store interface {
	Create(ctx context.Context, params repository.CreateParams) (repository.Enrollment, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Enrollment, error)
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]repository.Enrollment, error)
	ListSteps(ctx context.Context, enrollmentID uuid.UUID) ([]repository.StepSend, error)
	Cancel(ctx context.Context, id uuid.UUID, reason domain.CancelReason) (bool, error)
	CancelAllForLead(ctx context.Context, leadID uuid.UUID, reason domain.CancelReason) ([]uuid.UUID, error)
	SetStage(ctx context.Context, id uuid.UUID, from, to domain.Stage) (bool, error)
	MarkUnsubscribedForLead(ctx context.Context, leadID uuid.UUID) error
	MarkStepSent(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error)
	MarkStepFailed(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error)
	StepSendRecorded(ctx context.Context, enrollmentID uuid.UUID, stepIndex int) (bool, error)
	StampStepOpened(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error)
	StampStepClicked(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error)
	CompleteIfDone(ctx context.Context, enrollmentID uuid.UUID) (bool, error)
}

// LeadChecker verifies a lead still exists before enrollment.
type LeadChecker interface {
	Exists(ctx context.Context, leadID uuid.UUID) (bool, error)
}

type Service struct {
	store    Store
	leads    LeadChecker
	registry *sequence.Registry
	bus      events.Bus
	log      *logger.Logger
}

func New(store Store, leads LeadChecker, registry *sequence.Registry, bus events.Bus, log *logger.Logger) *Service {
	svc := &Service{store: store, leads: leads, registry: registry, bus: bus, log: log}
	svc.subscribe()
	return svc
}

// subscribe wires the cascade handlers: lead erasure cancels everything,
// unsubscribe-class events cancel and move the stage to unsubscribed.
func (s *Service) subscribe() {
	s.bus.Subscribe(events.LeadDeleted{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.LeadDeleted)
		if !ok {
			return nil
		}
		_, err := s.CancelAllForLead(ctx, e.LeadID, domain.ReasonLeadDeleted)
		return err
	}))

	s.bus.Subscribe(events.LeadUnsubscribed{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.LeadUnsubscribed)
		if !ok {
			return nil
		}
		return s.HandleUnsubscribe(ctx, e.LeadID, e.Reason)
	}))
}

// Enroll enters a lead into a sequence at triggerTime. Each registry step
// becomes a step slot with its due time precomputed from the offset.
func (s *Service) Enroll(ctx context.Context, leadID uuid.UUID, sequenceID string, triggerTime time.Time) (repository.Enrollment, error) {
	const op = "enrollment.Enroll"

	steps, err := s.registry.Resolve(sequenceID)
	if err != nil {
		return repository.Enrollment{}, apperr.Validation("unknown sequence: " + sequenceID)
	}

	exists, err := s.leads.Exists(ctx, leadID)
	if err != nil {
		return repository.Enrollment{}, apperr.Wrap(apperr.KindInternal, "lead lookup failed", err).WithOp(op)
	}
	if !exists {
		return repository.Enrollment{}, apperr.NotFound("lead not found")
	}

	params := repository.CreateParams{
		LeadID:     leadID,
		SequenceID: sequenceID,
		EnrolledAt: triggerTime,
	}
	for i, step := range steps {
		params.Steps = append(params.Steps, repository.StepSend{
			StepIndex:  i,
			TemplateID: step.TemplateID,
			DueAt:      triggerTime.Add(time.Duration(step.OffsetDays) * 24 * time.Hour),
		})
	}

	enr, err := s.store.Create(ctx, params)
	if errors.Is(err, repository.ErrAlreadyEnrolled) {
		return repository.Enrollment{}, apperr.Conflict("lead already enrolled in sequence")
	}
	if err != nil {
		return repository.Enrollment{}, apperr.Wrap(apperr.KindInternal, "enrollment create failed", err).WithOp(op)
	}

	s.bus.Publish(ctx, events.EnrollmentCreated{
		BaseEvent:    events.NewBaseEvent(),
		EnrollmentID: enr.ID,
		LeadID:       enr.LeadID,
		SequenceID:   enr.SequenceID,
	})

	return enr, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Enrollment, error) {
	enr, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Enrollment{}, apperr.NotFound("enrollment not found")
	}
	if err != nil {
		return repository.Enrollment{}, apperr.Wrap(apperr.KindInternal, "enrollment lookup failed", err).WithOp("enrollment.Get")
	}
	return enr, nil
}

func (s *Service) ListByLead(ctx context.Context, leadID uuid.UUID) ([]repository.Enrollment, error) {
	items, err := s.store.ListByLead(ctx, leadID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "enrollment list failed", err).WithOp("enrollment.ListByLead")
	}
	return items, nil
}

func (s *Service) ListSteps(ctx context.Context, enrollmentID uuid.UUID) ([]repository.StepSend, error) {
	steps, err := s.store.ListSteps(ctx, enrollmentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "step list failed", err).WithOp("enrollment.ListSteps")
	}
	return steps, nil
}

// Cancel stops an enrollment. Cancelling an already-terminal enrollment is
// a no-op; pending dispatch jobs notice via the worker's pre-send re-check.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason domain.CancelReason) error {
	const op = "enrollment.Cancel"

	if !reason.Valid() {
		return apperr.Validation("unknown cancellation reason")
	}

	enr, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	changed, err := s.store.Cancel(ctx, id, reason)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "enrollment cancel failed", err).WithOp(op)
	}
	if !changed {
		return nil
	}

	s.bus.Publish(ctx, events.EnrollmentCancelled{
		BaseEvent:    events.NewBaseEvent(),
		EnrollmentID: enr.ID,
		LeadID:       enr.LeadID,
		SequenceID:   enr.SequenceID,
		Reason:       string(reason),
	})
	return nil
}

// CancelAllForLead cancels every live enrollment of a lead and returns the
// cancelled ids.
func (s *Service) CancelAllForLead(ctx context.Context, leadID uuid.UUID, reason domain.CancelReason) ([]uuid.UUID, error) {
	ids, err := s.store.CancelAllForLead(ctx, leadID, reason)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "cascade cancel failed", err).WithOp("enrollment.CancelAllForLead")
	}
	for _, id := range ids {
		s.bus.Publish(ctx, events.EnrollmentCancelled{
			BaseEvent:    events.NewBaseEvent(),
			EnrollmentID: id,
			LeadID:       leadID,
			Reason:       string(reason),
		})
	}
	return ids, nil
}

// HandleUnsubscribe applies the unsubscribe-class cascade. Unsubscribes and
// complaints also move the journey stage to unsubscribed; a hard bounce only
// cancels, the lead may still come back through another address.
func (s *Service) HandleUnsubscribe(ctx context.Context, leadID uuid.UUID, reason string) error {
	cancelReason := domain.CancelReason(reason)
	if !cancelReason.Valid() {
		cancelReason = domain.ReasonUnsubscribed
	}

	if _, err := s.CancelAllForLead(ctx, leadID, cancelReason); err != nil {
		return err
	}

	if cancelReason == domain.ReasonUnsubscribed || cancelReason == domain.ReasonComplained {
		if err := s.store.MarkUnsubscribedForLead(ctx, leadID); err != nil {
			return apperr.Wrap(apperr.KindInternal, "stage cascade failed", err).WithOp("enrollment.HandleUnsubscribe")
		}
	}
	return nil
}

// AdvanceStage moves the journey stage forward. Backward moves and moves
// out of a terminal stage are conflicts.
func (s *Service) AdvanceStage(ctx context.Context, id uuid.UUID, next domain.Stage) error {
	const op = "enrollment.AdvanceStage"

	if !next.Valid() {
		return apperr.Validation("unknown stage")
	}

	enr, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if enr.Stage == next {
		return nil
	}
	if !enr.Stage.CanTransition(next) {
		return apperr.Conflict("invalid stage transition")
	}

	changed, err := s.store.SetStage(ctx, id, enr.Stage, next)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "stage update failed", err).WithOp(op)
	}
	if !changed {
		// Lost a concurrent stage race; the other writer decided.
		return apperr.Conflict("stage changed concurrently")
	}
	return nil
}

// Convert marks the enrollment's lead as a customer: stage to customer and
// the enrollment cancelled with reason converted.
func (s *Service) Convert(ctx context.Context, id uuid.UUID) error {
	if err := s.AdvanceStage(ctx, id, domain.StageCustomer); err != nil {
		return err
	}
	return s.Cancel(ctx, id, domain.ReasonConverted)
}

// IsActive reports whether the enrollment is still live. The dispatch worker
// re-checks this immediately before sending.
func (s *Service) IsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	enr, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return enr.Status == domain.StatusActive, nil
}

// MarkStepSent records the write-once send timestamp and completes the
// enrollment when it was the last unsent step. Reports whether this caller
// won the slot.
func (s *Service) MarkStepSent(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error) {
	won, err := s.store.MarkStepSent(ctx, enrollmentID, stepIndex, at)
	if err != nil {
		return false, err
	}
	if !won {
		return false, nil
	}
	if _, err := s.store.CompleteIfDone(ctx, enrollmentID); err != nil {
		// Completion is a bookkeeping update; the send already happened.
		s.log.DatabaseError("enrollment completion check", err)
	}
	return true, nil
}

// MarkStepFailed records a permanent delivery failure on the step slot and
// completes the enrollment when it was the last unresolved step. Reports
// whether this caller won the write-once stamp.
func (s *Service) MarkStepFailed(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error) {
	won, err := s.store.MarkStepFailed(ctx, enrollmentID, stepIndex, at)
	if err != nil {
		return false, err
	}
	if !won {
		return false, nil
	}
	if _, err := s.store.CompleteIfDone(ctx, enrollmentID); err != nil {
		s.log.DatabaseError("enrollment completion check", err)
	}
	return true, nil
}

// StepSendRecorded reports whether the step's send slot is already stamped.
func (s *Service) StepSendRecorded(ctx context.Context, enrollmentID uuid.UUID, stepIndex int) (bool, error) {
	return s.store.StepSendRecorded(ctx, enrollmentID, stepIndex)
}

// StampOpened records the first open of a step slot.
func (s *Service) StampOpened(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error) {
	return s.store.StampStepOpened(ctx, enrollmentID, stepIndex, at)
}

// StampClicked records the first click of a step slot.
func (s *Service) StampClicked(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error) {
	return s.store.StampStepClicked(ctx, enrollmentID, stepIndex, at)
}
