// Package service implements the engagement tracker. Counters are bumped by
// the dispatch worker and the webhook ingester; scoring reads them through
// the configured thresholds.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"nurture_backend/internal/engagement/repository"
	"nurture_backend/internal/engagement/scoring"
	"nurture_backend/platform/apperr"
	"nurture_backend/platform/config"
)

// Store is the counter persistence surface, implemented by
// repository.Repository.
type Store interface {
	Get(ctx context.Context, leadID uuid.UUID) (repository.Counters, error)
	IncrementSent(ctx context.Context, leadID uuid.UUID) error
	IncrementOpened(ctx context.Context, leadID uuid.UUID, at time.Time) error
	IncrementClicked(ctx context.Context, leadID uuid.UUID, at time.Time) error
	Rebuild(ctx context.Context, leadID uuid.UUID) (repository.Counters, error)
}

type Service struct {
	store      Store
	thresholds scoring.Thresholds
}

func New(store Store, cfg config.EngagementConfig) *Service {
	return &Service{
		store: store,
		thresholds: scoring.Thresholds{
			HotWindow:    cfg.GetHotWindow(),
			WarmWindow:   cfg.GetWarmWindow(),
			HotClickRate: cfg.GetHotClickRate(),
			WarmMinOpens: cfg.GetWarmMinOpens(),
		},
	}
}

// RecordSent counts a delivered step. Deliveries are volume, not engagement,
// so last_engagement is untouched.
func (s *Service) RecordSent(ctx context.Context, leadID uuid.UUID) error {
	if err := s.store.IncrementSent(ctx, leadID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "record sent failed", err).WithOp("engagement.RecordSent")
	}
	return nil
}

func (s *Service) RecordOpened(ctx context.Context, leadID uuid.UUID, at time.Time) error {
	if err := s.store.IncrementOpened(ctx, leadID, at); err != nil {
		return apperr.Wrap(apperr.KindInternal, "record open failed", err).WithOp("engagement.RecordOpened")
	}
	return nil
}

func (s *Service) RecordClicked(ctx context.Context, leadID uuid.UUID, at time.Time) error {
	if err := s.store.IncrementClicked(ctx, leadID, at); err != nil {
		return apperr.Wrap(apperr.KindInternal, "record click failed", err).WithOp("engagement.RecordClicked")
	}
	return nil
}

// Counters returns the live counter row for a lead.
func (s *Service) Counters(ctx context.Context, leadID uuid.UUID) (repository.Counters, error) {
	c, err := s.store.Get(ctx, leadID)
	if err != nil {
		return repository.Counters{}, apperr.Wrap(apperr.KindInternal, "counter lookup failed", err).WithOp("engagement.Counters")
	}
	return c, nil
}

// Score classifies a lead at the given instant.
func (s *Service) Score(ctx context.Context, leadID uuid.UUID, now time.Time) (scoring.Level, error) {
	c, err := s.Counters(ctx, leadID)
	if err != nil {
		return scoring.LevelCold, err
	}
	return s.ScoreCounters(c, now), nil
}

// ScoreCounters classifies an already-loaded counter row.
func (s *Service) ScoreCounters(c repository.Counters, now time.Time) scoring.Level {
	return scoring.Score(scoring.Input{
		Sent:           c.Sent,
		Opened:         c.Opened,
		Clicked:        c.Clicked,
		LastEngagement: c.LastEngagement,
	}, s.thresholds, now)
}

// Rebuild recomputes the counters for a lead from the per-step facts. Only
// runs when explicitly asked; counters are never recomputed implicitly.
func (s *Service) Rebuild(ctx context.Context, leadID uuid.UUID) (repository.Counters, error) {
	c, err := s.store.Rebuild(ctx, leadID)
	if err != nil {
		return repository.Counters{}, apperr.Wrap(apperr.KindInternal, "counter rebuild failed", err).WithOp("engagement.Rebuild")
	}
	return c, nil
}
