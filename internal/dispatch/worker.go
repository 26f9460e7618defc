package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"nurture_backend/internal/email"
	"nurture_backend/internal/events"
	"nurture_backend/platform/config"
	"nurture_backend/platform/logger"
)

const (
	failureEnrollmentInactive = "enrollment_inactive"
	failureNoAddress          = "no_recipient_address"
)

// jobStore is the repository surface the worker needs. Satisfied by
// *Repository; tests swap in an in-memory double.
type jobStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (Job, error)
	MarkSending(ctx context.Context, id uuid.UUID) (int, bool, error)
	MarkSent(ctx context.Context, id uuid.UUID, messageID string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	ResetPending(ctx context.Context, id uuid.UUID, failure string) error
	Defer(ctx context.Context, id uuid.UUID, until time.Time) error
	CountNurtureSentSince(ctx context.Context, leadID uuid.UUID, since time.Time) (int, error)
	IncrementTemplateFailure(ctx context.Context, templateID string, day time.Time) error
}

// EnrollmentGateway is the enrollment surface the worker needs: the pre-send
// liveness re-check and the write-once send and failure slots.
type EnrollmentGateway interface {
	IsActive(ctx context.Context, enrollmentID uuid.UUID) (bool, error)
	StepSendRecorded(ctx context.Context, enrollmentID uuid.UUID, stepIndex int) (bool, error)
	MarkStepSent(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error)
	MarkStepFailed(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error)
}

// LeadContact is a lead's deliverable address.
type LeadContact struct {
	Email string
	Name  string
}

// LeadDirectory resolves a lead id to its contact. A missing or erased lead
// returns ok false.
type LeadDirectory interface {
	Contact(ctx context.Context, leadID uuid.UUID) (LeadContact, bool, error)
}

// EngagementRecorder counts delivered steps.
type EngagementRecorder interface {
	RecordSent(ctx context.Context, leadID uuid.UUID) error
}

// Worker consumes send-step tasks from the queue and delivers them.
type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	store       jobStore
	enrollments EnrollmentGateway
	leads       LeadDirectory
	engagement  EngagementRecorder
	sender      email.Sender
	bus         events.Bus
	log         *logger.Logger

	siteURL     string
	sendTimeout time.Duration
	maxAttempts int
	dailyCap    int
	now         func() time.Time
}

// WorkerDeps bundle the worker's collaborators.
type WorkerDeps struct {
	Store       jobStore
	Enrollments EnrollmentGateway
	Leads       LeadDirectory
	Engagement  EngagementRecorder
	Sender      email.Sender
	Bus         events.Bus
	Log         *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, emailCfg config.EmailConfig, deps WorkerDeps) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := newWorker(cfg, emailCfg, deps)
	w.server = server
	w.mux = asynq.NewServeMux()
	w.mux.HandleFunc(TaskSendStep, w.handleSendStep)

	return w, nil
}

// newWorker builds the handler half without a queue server. Tests use it to
// drive handleSendStep directly.
func newWorker(cfg config.SchedulerConfig, emailCfg config.EmailConfig, deps WorkerDeps) *Worker {
	maxAttempts := cfg.GetDispatchMaxAttempts()
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	sendTimeout := emailCfg.GetSendTimeout()
	if sendTimeout <= 0 {
		sendTimeout = 15 * time.Second
	}

	return &Worker{
		store:       deps.Store,
		enrollments: deps.Enrollments,
		leads:       deps.Leads,
		engagement:  deps.Engagement,
		sender:      deps.Sender,
		bus:         deps.Bus,
		log:         deps.Log,
		siteURL:     emailCfg.GetSiteURL(),
		sendTimeout: sendTimeout,
		maxAttempts: maxAttempts,
		dailyCap:    cfg.GetDailyNurtureCap(),
		now:         time.Now,
	}
}

// Run serves the queue until the context ends.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("dispatch worker stopped", "error", err)
	}
}

// handleSendStep processes one send-step task. Returning nil acks the task;
// returning an error lets asynq retry with backoff. Every path is safe to
// replay: terminal jobs ack, the pending->sending transition admits one
// worker, and the step send slot is write-once.
func (w *Worker) handleSendStep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSendStepPayload(task)
	if err != nil {
		return err
	}
	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return err
	}

	job, err := w.store.GetByID(ctx, jobID)
	if errors.Is(err, ErrJobNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return nil
	}

	now := w.now().UTC()

	// Cancellation race: the enrollment may have been cancelled after this
	// job was enqueued. A dead enrollment fails the job without touching
	// the template failure counters.
	active, err := w.enrollments.IsActive(ctx, job.EnrollmentID)
	if err != nil {
		return err
	}
	if !active {
		if err := w.store.MarkFailed(ctx, jobID, failureEnrollmentInactive); err != nil {
			return err
		}
		w.log.DispatchEvent("job skipped, enrollment inactive", jobID.String(), job.TemplateID, job.Attempts)
		return nil
	}

	// Daily nurture cap. Step 0 delivers a requested asset and is exempt;
	// everything beyond the cap moves to tomorrow, never to the bin.
	if job.StepIndex > 0 && w.dailyCap > 0 {
		sentToday, err := w.store.CountNurtureSentSince(ctx, job.LeadID, startOfDay(now))
		if err != nil {
			return err
		}
		if sentToday >= w.dailyCap {
			if err := w.store.Defer(ctx, jobID, now.Add(24*time.Hour)); err != nil {
				return err
			}
			w.log.DispatchEvent("job deferred, daily cap reached", jobID.String(), job.TemplateID, job.Attempts)
			return nil
		}
	}

	attempt, won, err := w.store.MarkSending(ctx, jobID)
	if err != nil {
		return err
	}
	if !won {
		// Another worker holds the job.
		return nil
	}

	// A previous attempt may have delivered and stamped the step, then died
	// before finishing the job. Finalize without a second email.
	recorded, err := w.enrollments.StepSendRecorded(ctx, job.EnrollmentID, job.StepIndex)
	if err != nil {
		if resetErr := w.store.ResetPending(ctx, jobID, err.Error()); resetErr != nil {
			return resetErr
		}
		return err
	}
	if recorded {
		if err := w.store.MarkSent(ctx, jobID, ""); err != nil {
			return err
		}
		w.log.DispatchEvent("replayed delivery finalized", jobID.String(), job.TemplateID, attempt)
		return nil
	}

	contact, ok, err := w.leads.Contact(ctx, job.LeadID)
	if err != nil {
		if resetErr := w.store.ResetPending(ctx, jobID, err.Error()); resetErr != nil {
			return resetErr
		}
		return err
	}
	if !ok || contact.Email == "" {
		return w.failPermanently(ctx, job, attempt, failureNoAddress, nil)
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	messageID, sendErr := w.sender.SendSequenceEmail(sendCtx, job.TemplateID, contact.Email, w.templateVars(contact))
	cancel()

	if sendErr != nil {
		if email.IsPermanent(sendErr) || attempt >= w.maxAttempts {
			return w.failPermanently(ctx, job, attempt, sendErr.Error(), sendErr)
		}
		if err := w.store.ResetPending(ctx, jobID, sendErr.Error()); err != nil {
			return err
		}
		w.log.DispatchFailure(jobID.String(), job.TemplateID, attempt, false, sendErr)
		return sendErr
	}

	wonSlot, err := w.enrollments.MarkStepSent(ctx, job.EnrollmentID, job.StepIndex, now)
	if err != nil {
		return err
	}
	if err := w.store.MarkSent(ctx, jobID, messageID); err != nil {
		return err
	}
	if !wonSlot {
		// Someone already recorded a send for this step; this delivery's
		// result is stale and must not count twice.
		w.log.DispatchEvent("duplicate send discarded", jobID.String(), job.TemplateID, attempt)
		return nil
	}

	if err := w.engagement.RecordSent(ctx, job.LeadID); err != nil {
		w.log.Error("record sent failed", "error", err, "jobId", jobID)
	}
	w.bus.Publish(ctx, events.StepSent{
		BaseEvent:    events.NewBaseEvent(),
		EnrollmentID: job.EnrollmentID,
		LeadID:       job.LeadID,
		SequenceID:   job.SequenceID,
		StepIndex:    job.StepIndex,
		TemplateID:   job.TemplateID,
		MessageID:    messageID,
	})
	w.log.DispatchEvent("step sent", jobID.String(), job.TemplateID, attempt)
	return nil
}

// failPermanently stamps the step slot's failure tombstone, moves the job to
// failed and counts the template failure exactly once. The step stamp goes
// first: it is what keeps the scheduler from re-materializing the step after
// the job row ages out of retention. Acks the task.
func (w *Worker) failPermanently(ctx context.Context, job Job, attempt int, reason string, cause error) error {
	wonTombstone, err := w.enrollments.MarkStepFailed(ctx, job.EnrollmentID, job.StepIndex, w.now().UTC())
	if err != nil {
		return err
	}
	if err := w.store.MarkFailed(ctx, job.ID, reason); err != nil {
		return err
	}
	if wonTombstone {
		if err := w.store.IncrementTemplateFailure(ctx, job.TemplateID, w.now().UTC()); err != nil {
			w.log.Error("template failure counter update failed", "error", err, "templateId", job.TemplateID)
		}
	}
	w.log.DispatchFailure(job.ID.String(), job.TemplateID, attempt, true, cause)
	return nil
}

func (w *Worker) templateVars(contact LeadContact) email.Vars {
	name := contact.Name
	if name == "" {
		name = "there"
	}
	return email.Vars{
		"first_name":   name,
		"site_url":     w.siteURL,
		"download_url": w.siteURL + "/downloads/host-guide.pdf",
		"results_url":  w.siteURL + "/quiz/results",
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
