package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrJobNotFound = errors.New("dispatch job not found")

type State string

const (
	StatePending State = "pending"
	StateSending State = "sending"
	StateSent    State = "sent"
	StateFailed  State = "failed"
)

// Terminal reports whether the state accepts no further transitions.
func (s State) Terminal() bool {
	return s == StateSent || s == StateFailed
}

type Job struct {
	ID           uuid.UUID
	EnrollmentID uuid.UUID
	LeadID       uuid.UUID
	SequenceID   string
	StepIndex    int
	TemplateID   string
	State        State
	Attempts     int
	DueAt        time.Time
	EnqueuedAt   *time.Time
	MessageID    *string
	Failure      *string
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const jobColumns = `id, enrollment_id, lead_id, sequence_id, step_index, template_id,
	state, attempts, due_at, enqueued_at, message_id, failure`

func scanJob(row pgx.Row) (Job, error) {
	var j Job
	err := row.Scan(
		&j.ID, &j.EnrollmentID, &j.LeadID, &j.SequenceID, &j.StepIndex, &j.TemplateID,
		&j.State, &j.Attempts, &j.DueAt, &j.EnqueuedAt, &j.MessageID, &j.Failure,
	)
	return j, err
}

// InsertDueJobs materializes one job per due, unresolved step of every
// active enrollment. The unique constraint on (enrollment_id, step_index)
// with ON CONFLICT DO NOTHING makes concurrent passes and downtime catch-up
// idempotent. Steps stamped failed_at carry their tombstone on the step row
// itself, so a pruned job row cannot resurrect them.
func (r *Repository) InsertDueJobs(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO dispatch_jobs (id, enrollment_id, lead_id, sequence_id, step_index, template_id, due_at)
		SELECT gen_random_uuid(), e.id, e.lead_id, e.sequence_id, s.step_index, s.template_id, s.due_at
		FROM enrollment_steps s
		JOIN enrollments e ON e.id = s.enrollment_id
		WHERE e.status = 'active'
		  AND s.sent_at IS NULL
		  AND s.failed_at IS NULL
		  AND s.due_at <= $1
		ON CONFLICT (enrollment_id, step_index) DO NOTHING
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ClaimDue locks and returns pending jobs ready to enqueue, stamping
// enqueued_at so other scheduler passes skip them. Jobs whose stamp is older
// than requeueAfter are reclaimed; their queue task was lost.
func (r *Repository) ClaimDue(ctx context.Context, now time.Time, limit int, requeueAfter time.Duration) ([]Job, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE dispatch_jobs
		SET enqueued_at = $1, updated_at = now()
		WHERE id IN (
			SELECT id FROM dispatch_jobs
			WHERE state = 'pending'
			  AND due_at <= $1
			  AND (enqueued_at IS NULL OR enqueued_at < $2)
			ORDER BY due_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns,
		now, now.Add(-requeueAfter), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Job, error) {
	j, err := scanJob(r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM dispatch_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	return j, err
}

// GetByMessageID resolves a provider message id back to its job. Used by
// webhook ingestion to find the step an engagement event belongs to.
func (r *Repository) GetByMessageID(ctx context.Context, messageID string) (Job, error) {
	j, err := scanJob(r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM dispatch_jobs WHERE message_id = $1`, messageID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	return j, err
}

// MarkSending transitions pending to sending and counts the attempt.
// Returns the attempt number and whether this caller won the transition.
func (r *Repository) MarkSending(ctx context.Context, id uuid.UUID) (int, bool, error) {
	var attempts int
	err := r.pool.QueryRow(ctx, `
		UPDATE dispatch_jobs
		SET state = 'sending', attempts = attempts + 1, updated_at = now()
		WHERE id = $1 AND state = 'pending'
		RETURNING attempts
	`, id).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return attempts, true, nil
}

// MarkSent finishes a sending job and stores the provider message id. An
// empty message id keeps any previously stored one; a reclaimed replay that
// skipped the resend has no fresh id to offer.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, messageID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE dispatch_jobs
		SET state = 'sent', message_id = COALESCE(NULLIF($2, ''), message_id), failure = NULL, updated_at = now()
		WHERE id = $1 AND state = 'sending'
	`, id, messageID)
	return err
}

// MarkFailed moves a job to its terminal failed state with a reason.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE dispatch_jobs
		SET state = 'failed', failure = $2, updated_at = now()
		WHERE id = $1 AND state IN ('pending', 'sending')
	`, id, reason)
	return err
}

// ResetPending puts a sending job back to pending after a transient failure
// so the queue retry picks it up again.
func (r *Repository) ResetPending(ctx context.Context, id uuid.UUID, failure string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE dispatch_jobs
		SET state = 'pending', failure = $2, updated_at = now()
		WHERE id = $1 AND state = 'sending'
	`, id, failure)
	return err
}

// ReleaseStuckSending reclaims jobs stranded in sending back to pending. A
// job sits in sending only for the duration of one SMTP attempt; one older
// than the lease belongs to a worker that crashed or lost its bookkeeping
// write, and no queue redelivery will pick it up again.
func (r *Repository) ReleaseStuckSending(ctx context.Context, now time.Time, lease time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE dispatch_jobs
		SET state = 'pending', enqueued_at = NULL, updated_at = now()
		WHERE state = 'sending' AND updated_at < $1
	`, now.Add(-lease))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Defer pushes a pending job's due time out and clears the enqueue stamp so
// the scheduler re-enqueues it. Used by the daily nurture cap; a deferred
// step is postponed, never dropped.
func (r *Repository) Defer(ctx context.Context, id uuid.UUID, until time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE dispatch_jobs
		SET due_at = $2, enqueued_at = NULL, updated_at = now()
		WHERE id = $1 AND state = 'pending'
	`, id, until)
	return err
}

// CountNurtureSentSince counts nurture steps delivered to a lead since the
// cutoff. Step 0 delivery emails are exempt from the cap and excluded.
func (r *Repository) CountNurtureSentSince(ctx context.Context, leadID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM enrollment_steps s
		JOIN enrollments e ON e.id = s.enrollment_id
		WHERE e.lead_id = $1
		  AND s.step_index > 0
		  AND s.sent_at >= $2
	`, leadID, since).Scan(&n)
	return n, err
}

// IncrementTemplateFailure upserts the per-template daily failure counter
// read by funnel health.
func (r *Repository) IncrementTemplateFailure(ctx context.Context, templateID string, day time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO dispatch_template_failures (template_id, day, count)
		VALUES ($1, $2::date, 1)
		ON CONFLICT (template_id, day)
		DO UPDATE SET count = dispatch_template_failures.count + 1
	`, templateID, day)
	return err
}

// DeleteTerminalBefore removes terminal jobs older than the cutoff.
func (r *Repository) DeleteTerminalBefore(ctx context.Context, state State, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM dispatch_jobs
		WHERE state = $1 AND updated_at < $2
	`, string(state), cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
