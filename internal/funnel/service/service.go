// Package service aggregates the funnel health snapshot. Every metric is an
// independent query: a failing one degrades that metric to unknown and is
// listed in degraded, the snapshot itself always comes back. Alerts are
// derived on read from config thresholds.
package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"nurture_backend/internal/funnel/repository"
	"nurture_backend/platform/config"
	"nurture_backend/platform/logger"
)

const cacheKey = "funnel:health:snapshot"

// Store is the metric query surface, implemented by repository.Repository.
type Store interface {
	CountLeadsSince(ctx context.Context, since time.Time) (int64, error)
	CountJobsInState(ctx context.Context, state string) (int64, error)
	CountSentSince(ctx context.Context, since time.Time) (int64, error)
	CountActiveEnrollments(ctx context.Context) (int64, error)
	TemplateFailuresSince(ctx context.Context, since time.Time) ([]repository.TemplateFailureCount, error)
	OldestPendingSince(ctx context.Context) (time.Time, bool, error)
}

type QueueCounts struct {
	Pending *int64 `json:"pending"`
	Sending *int64 `json:"sending"`
	Sent    *int64 `json:"sent"`
	Failed  *int64 `json:"failed"`
}

type Alert struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type Snapshot struct {
	LeadsToday        *int64                            `json:"leadsToday"`
	Queue             QueueCounts                       `json:"queue"`
	SentToday         *int64                            `json:"sentToday"`
	SentWeekly        *int64                            `json:"sentWeekly"`
	FailedByTemplate  []repository.TemplateFailureCount `json:"failedByTemplate"`
	ActiveEnrollments *int64                            `json:"activeEnrollments"`
	Alerts            []Alert                           `json:"alerts"`
	Degraded          []string                          `json:"degraded,omitempty"`
	GeneratedAt       time.Time                         `json:"generatedAt"`
}

type Service struct {
	store Store
	cache *redis.Client
	log   *logger.Logger

	failedThreshold int64
	failureRatePct  float64
	staleAfter      time.Duration
	cacheTTL        time.Duration
	now             func() time.Time
}

// New builds the aggregator. cache may be nil; the snapshot then computes
// directly on every read.
func New(store Store, cache *redis.Client, cfg config.FunnelConfig, log *logger.Logger) *Service {
	return &Service{
		store:           store,
		cache:           cache,
		log:             log,
		failedThreshold: cfg.GetFailedAlertThreshold(),
		failureRatePct:  cfg.GetFailureRateAlertPct(),
		staleAfter:      cfg.GetPendingStaleAfter(),
		cacheTTL:        cfg.GetSnapshotTTL(),
		now:             time.Now,
	}
}

// Snapshot returns the funnel health view, served from the redis cache when
// fresh. Cache failures degrade to a direct compute, never to an error.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var snap Snapshot
			if json.Unmarshal(cached, &snap) == nil {
				return snap, nil
			}
		}
	}

	snap := s.compute(ctx)

	if s.cache != nil && s.cacheTTL > 0 {
		if data, err := json.Marshal(snap); err == nil {
			if err := s.cache.Set(ctx, cacheKey, data, s.cacheTTL).Err(); err != nil {
				s.log.Warn("snapshot cache write failed", "error", err)
			}
		}
	}
	return snap, nil
}

func (s *Service) compute(ctx context.Context) Snapshot {
	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := now.Add(-7 * 24 * time.Hour)

	snap := Snapshot{GeneratedAt: now, Alerts: []Alert{}}

	// Every metric is queried concurrently and writes its own field; a
	// failure degrades that field only, so none of the goroutines return
	// an error to the group.
	var mu sync.Mutex
	degrade := func(metric string) {
		mu.Lock()
		snap.Degraded = append(snap.Degraded, metric)
		mu.Unlock()
	}

	countInto := func(metric string, dst **int64, query func(context.Context) (int64, error)) func() error {
		return func() error {
			if n, err := query(ctx); err != nil {
				degrade(metric)
			} else {
				*dst = &n
			}
			return nil
		}
	}

	var g errgroup.Group
	g.Go(countInto("leadsToday", &snap.LeadsToday, func(ctx context.Context) (int64, error) {
		return s.store.CountLeadsSince(ctx, dayStart)
	}))
	for _, state := range []struct {
		name string
		dst  **int64
	}{
		{"pending", &snap.Queue.Pending},
		{"sending", &snap.Queue.Sending},
		{"sent", &snap.Queue.Sent},
		{"failed", &snap.Queue.Failed},
	} {
		g.Go(countInto("queue."+state.name, state.dst, func(ctx context.Context) (int64, error) {
			return s.store.CountJobsInState(ctx, state.name)
		}))
	}
	g.Go(countInto("sentToday", &snap.SentToday, func(ctx context.Context) (int64, error) {
		return s.store.CountSentSince(ctx, dayStart)
	}))
	g.Go(countInto("sentWeekly", &snap.SentWeekly, func(ctx context.Context) (int64, error) {
		return s.store.CountSentSince(ctx, weekStart)
	}))
	g.Go(countInto("activeEnrollments", &snap.ActiveEnrollments, func(ctx context.Context) (int64, error) {
		return s.store.CountActiveEnrollments(ctx)
	}))
	g.Go(func() error {
		if items, err := s.store.TemplateFailuresSince(ctx, dayStart); err != nil {
			degrade("failedByTemplate")
		} else {
			snap.FailedByTemplate = items
		}
		return nil
	})

	var (
		oldestDue  time.Time
		hasPending bool
		oldestErr  error
	)
	g.Go(func() error {
		oldestDue, hasPending, oldestErr = s.store.OldestPendingSince(ctx)
		if oldestErr != nil {
			degrade("oldestPending")
		}
		return nil
	})

	_ = g.Wait()

	snap.Alerts = s.deriveAlerts(snap, now, oldestDue, hasPending, oldestErr == nil)
	return snap
}

func (s *Service) deriveAlerts(snap Snapshot, now time.Time, oldestDue time.Time, hasPending, oldestKnown bool) []Alert {
	alerts := []Alert{}

	if snap.Queue.Failed != nil && *snap.Queue.Failed > s.failedThreshold {
		alerts = append(alerts, Alert{Level: "error", Message: "failed job count above threshold"})
	}

	// Failure rate of today's volume, only when both sides are known.
	if snap.SentToday != nil && snap.FailedByTemplate != nil {
		var failedToday int64
		for _, f := range snap.FailedByTemplate {
			failedToday += f.Count
		}
		volume := *snap.SentToday + failedToday
		if volume > 0 {
			rate := float64(failedToday) / float64(volume) * 100
			if rate > s.failureRatePct {
				alerts = append(alerts, Alert{Level: "error", Message: "delivery failure rate above threshold"})
			}
		}
	}

	if oldestKnown && hasPending && now.Sub(oldestDue) > s.staleAfter {
		alerts = append(alerts, Alert{Level: "warning", Message: "oldest pending job exceeds processing window"})
	}

	if len(alerts) == 0 {
		alerts = append(alerts, Alert{Level: "info", Message: "funnel operating normally"})
	}
	return alerts
}
