package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"nurture_backend/internal/adapters"
	"nurture_backend/internal/dispatch"
	"nurture_backend/internal/email"
	engagerepo "nurture_backend/internal/engagement/repository"
	engagesvc "nurture_backend/internal/engagement/service"
	enrollrepo "nurture_backend/internal/enrollment/repository"
	enrollsvc "nurture_backend/internal/enrollment/service"
	"nurture_backend/internal/events"
	leadsrepo "nurture_backend/internal/leads/repository"
	leadssvc "nurture_backend/internal/leads/service"
	"nurture_backend/internal/sequence"
	"nurture_backend/platform/config"
	"nurture_backend/platform/db"
	"nurture_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	registry := sequence.NewDefaultRegistry()

	// Worker-side service wiring; no HTTP handlers on this binary.
	leadService := leadssvc.New(leadsrepo.New(pool), eventBus)
	enrollmentService := enrollsvc.New(enrollrepo.New(pool), leadService, registry, eventBus, log)
	engagementService := engagesvc.New(engagerepo.New(pool), cfg)

	var sender email.Sender
	if cfg.EmailEnabled {
		sender = email.NewSMTPSender(cfg)
		log.Info("smtp sender initialized", "host", cfg.SMTPHost, "from", cfg.EmailFromAddress)
	} else {
		sender = email.NoopSender{}
		log.Warn("email sending disabled; steps deliver to the noop sender")
	}

	jobRepo := dispatch.NewRepository(pool)

	dispatcher, err := dispatch.NewDispatcher(cfg, jobRepo, log)
	if err != nil {
		log.Error("failed to initialize dispatcher", "error", err)
		panic("failed to initialize dispatcher: " + err.Error())
	}
	defer func() { _ = dispatcher.Close() }()

	cleanup := dispatch.NewCleanup(cfg, jobRepo, log)

	worker, err := dispatch.NewWorker(cfg, cfg, dispatch.WorkerDeps{
		Store:       jobRepo,
		Enrollments: enrollmentService,
		Leads:       adapters.NewLeadDirectoryAdapter(leadService),
		Engagement:  engagementService,
		Sender:      sender,
		Bus:         eventBus,
		Log:         log,
	})
	if err != nil {
		log.Error("failed to initialize dispatch worker", "error", err)
		panic("failed to initialize dispatch worker: " + err.Error())
	}

	var g errgroup.Group
	g.Go(func() error {
		dispatcher.Run(ctx)
		return nil
	})
	g.Go(func() error {
		cleanup.Run(ctx)
		return nil
	})
	g.Go(func() error {
		worker.Run(ctx)
		return nil
	})
	_ = g.Wait()
	log.Info("scheduler stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return lastErr
}
