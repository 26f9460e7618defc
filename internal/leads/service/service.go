// Package service implements lead store use cases: capture, lookup, consent
// backfill and right-to-erasure deletion.
package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"nurture_backend/internal/events"
	"nurture_backend/internal/leads/repository"
	"nurture_backend/platform/apperr"
)

// Store is the persistence surface the service needs, implemented by
// repository.Repository.
type Store interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	GetByEmail(ctx context.Context, email string) (repository.Lead, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	BackfillContact(ctx context.Context, id uuid.UUID, email string, consent bool) (repository.Lead, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo Store
	bus  events.Bus
}

func New(repo Store, bus events.Bus) *Service {
	return &Service{repo: repo, bus: bus}
}

type CaptureParams struct {
	Email   string
	Name    string
	Consent bool
	Source  string
}

// Capture stores a new lead. When the email is already registered the
// existing lead is returned instead; public capture forms retry and
// double-submit, so capture is idempotent on email.
func (s *Service) Capture(ctx context.Context, params CaptureParams) (repository.Lead, error) {
	const op = "leads.Capture"

	create := repository.CreateLeadParams{
		Consent: params.Consent,
		Source:  params.Source,
	}
	if create.Source == "" {
		create.Source = "unknown"
	}
	if email := strings.TrimSpace(strings.ToLower(params.Email)); email != "" {
		create.Email = &email
	}
	if name := strings.TrimSpace(params.Name); name != "" {
		create.Name = &name
	}

	lead, err := s.repo.Create(ctx, create)
	if errors.Is(err, repository.ErrEmailTaken) {
		existing, lookupErr := s.repo.GetByEmail(ctx, *create.Email)
		if lookupErr != nil {
			return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "lead lookup failed", lookupErr).WithOp(op)
		}
		return existing, nil
	}
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "lead create failed", err).WithOp(op)
	}

	s.bus.Publish(ctx, events.LeadCaptured{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Email:     params.Email,
		Source:    create.Source,
	})

	return lead, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "lead lookup failed", err).WithOp("leads.Get")
	}
	return lead, nil
}

// Exists reports whether a lead row is present. Used by sibling modules
// before attaching work to a lead id.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// BackfillContact adds the email address and consent flag to a lead that was
// captured without them. Existing email is immutable.
func (s *Service) BackfillContact(ctx context.Context, id uuid.UUID, email string, consent bool) (repository.Lead, error) {
	const op = "leads.BackfillContact"

	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return repository.Lead{}, apperr.Validation("email is required")
	}

	lead, err := s.repo.BackfillContact(ctx, id, email, consent)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return repository.Lead{}, apperr.NotFound("lead not found")
	case errors.Is(err, repository.ErrEmailTaken):
		return repository.Lead{}, apperr.Conflict("email already registered")
	case err != nil:
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "contact backfill failed", err).WithOp(op)
	}
	return lead, nil
}

// Delete erases the lead and publishes LeadDeleted so other modules can
// cascade. Row-level cascades already remove enrollments and counters; the
// event lets in-flight work notice.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("lead not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "lead delete failed", err).WithOp("leads.Delete")
	}

	s.bus.Publish(ctx, events.LeadDeleted{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    id,
	})
	return nil
}
