package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"nurture_backend/platform/config"
	"nurture_backend/platform/logger"
)

// dispatcherStore is the repository surface the scheduler loop needs.
type dispatcherStore interface {
	InsertDueJobs(ctx context.Context, now time.Time) (int64, error)
	ClaimDue(ctx context.Context, now time.Time, limit int, requeueAfter time.Duration) ([]Job, error)
	ReleaseStuckSending(ctx context.Context, now time.Time, lease time.Duration) (int64, error)
	Defer(ctx context.Context, id uuid.UUID, until time.Time) error
}

// Dispatcher is the scheduler loop: every tick it materializes jobs for due
// steps and hands claimed jobs to the queue.
type Dispatcher struct {
	client       *asynq.Client
	queue        string
	repo         dispatcherStore
	log          *logger.Logger
	tick         time.Duration
	batchSize    int
	requeueAfter time.Duration
	maxAttempts  int
}

func NewDispatcher(cfg config.SchedulerConfig, repo *Repository, log *logger.Logger) (*Dispatcher, error) {
	client, queue, err := newAsynqClient(cfg)
	if err != nil {
		return nil, err
	}

	tick := cfg.GetDispatchTick()
	if tick <= 0 {
		tick = 2 * time.Minute
	}
	batch := cfg.GetDispatchBatchSize()
	if batch <= 0 {
		batch = 100
	}
	requeueAfter := cfg.GetDispatchRequeueAfter()
	if requeueAfter <= 0 {
		requeueAfter = 30 * time.Minute
	}
	maxAttempts := cfg.GetDispatchMaxAttempts()
	if maxAttempts < 1 {
		maxAttempts = 5
	}

	return &Dispatcher{
		client:       client,
		queue:        queue,
		repo:         repo,
		log:          log,
		tick:         tick,
		batchSize:    batch,
		requeueAfter: requeueAfter,
		maxAttempts:  maxAttempts,
	}, nil
}

func (d *Dispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

// Run loops until the context ends. One pass runs immediately so a restart
// catches up without waiting out the first tick.
func (d *Dispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil {
		return
	}

	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	d.pass(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pass(ctx)
		}
	}
}

func (d *Dispatcher) pass(ctx context.Context) {
	now := time.Now().UTC()

	released, err := d.repo.ReleaseStuckSending(ctx, now, d.requeueAfter)
	if err != nil {
		d.log.Warn("stuck job release failed", "error", err)
	} else if released > 0 {
		d.log.Info("stuck sending jobs released", "count", released)
	}

	created, err := d.repo.InsertDueJobs(ctx, now)
	if err != nil {
		d.log.Warn("dispatch job materialization failed", "error", err)
		return
	}
	if created > 0 {
		d.log.Info("dispatch jobs created", "count", created)
	}

	for {
		jobs, err := d.repo.ClaimDue(ctx, now, d.batchSize, d.requeueAfter)
		if err != nil {
			d.log.Warn("dispatch claim failed", "error", err)
			return
		}
		if len(jobs) == 0 {
			return
		}

		for _, job := range jobs {
			if err := d.enqueue(ctx, job); err != nil {
				d.log.Warn("dispatch enqueue failed", "error", err, "jobId", job.ID)
				// Clearing the stamp lets the next pass retry the enqueue.
				_ = d.repo.Defer(ctx, job.ID, job.DueAt)
			}
		}
		if len(jobs) < d.batchSize {
			return
		}
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, job Job) error {
	task, err := NewSendStepTask(SendStepPayload{JobID: job.ID.String()})
	if err != nil {
		return err
	}
	_, err = d.client.EnqueueContext(ctx, task,
		asynq.Queue(d.queue),
		asynq.MaxRetry(d.maxAttempts),
	)
	return err
}
