package dispatch

import (
	"context"
	"time"

	"nurture_backend/platform/config"
	"nurture_backend/platform/logger"
)

// Cleanup prunes terminal dispatch jobs past their retention windows. Sent
// jobs are kept long enough for webhook message-id lookups to resolve;
// failed jobs longer, for postmortems. Pruning a failed job cannot bring its
// step back: the step slot's failed_at stamp is the durable tombstone.
type Cleanup struct {
	repo            *Repository
	log             *logger.Logger
	sentRetention   time.Duration
	failedRetention time.Duration
}

func NewCleanup(cfg config.SchedulerConfig, repo *Repository, log *logger.Logger) *Cleanup {
	sent := cfg.GetSentJobRetention()
	if sent <= 0 {
		sent = 14 * 24 * time.Hour
	}
	failed := cfg.GetFailedJobRetention()
	if failed <= 0 {
		failed = 30 * 24 * time.Hour
	}
	return &Cleanup{repo: repo, log: log, sentRetention: sent, failedRetention: failed}
}

// Run prunes once an hour until the context ends.
func (c *Cleanup) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.prune(ctx)
		}
	}
}

func (c *Cleanup) prune(ctx context.Context) {
	now := time.Now().UTC()

	removed, err := c.repo.DeleteTerminalBefore(ctx, StateSent, now.Add(-c.sentRetention))
	if err != nil {
		c.log.Warn("sent job cleanup failed", "error", err)
	} else if removed > 0 {
		c.log.Info("sent jobs pruned", "count", removed)
	}

	removed, err = c.repo.DeleteTerminalBefore(ctx, StateFailed, now.Add(-c.failedRetention))
	if err != nil {
		c.log.Warn("failed job cleanup failed", "error", err)
	} else if removed > 0 {
		c.log.Info("failed jobs pruned", "count", removed)
	}
}
