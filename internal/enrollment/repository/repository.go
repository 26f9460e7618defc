package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"nurture_backend/internal/enrollment/domain"
)

var (
	ErrNotFound        = errors.New("enrollment not found")
	ErrAlreadyEnrolled = errors.New("lead already actively enrolled in sequence")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Enrollment struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	SequenceID string
	Stage      domain.Stage
	Status     domain.Status
	Reason     *string
	EnrolledAt time.Time
	UpdatedAt  time.Time
}

// StepSend is one step slot of an enrollment with its delivery facts.
type StepSend struct {
	StepIndex  int
	TemplateID string
	DueAt      time.Time
	SentAt     *time.Time
	OpenedAt   *time.Time
	ClickedAt  *time.Time
	FailedAt   *time.Time
}

type CreateParams struct {
	LeadID     uuid.UUID
	SequenceID string
	EnrolledAt time.Time
	Steps      []StepSend
}

// Create inserts the enrollment and its step slots in one transaction. The
// partial unique index on (lead_id, sequence_id) where status is active
// rejects a second live enrollment.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Enrollment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Enrollment{}, err
	}
	defer tx.Rollback(ctx)

	var enr Enrollment
	err = tx.QueryRow(ctx, `
		INSERT INTO enrollments (id, lead_id, sequence_id, enrolled_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, lead_id, sequence_id, stage, status, reason, enrolled_at, updated_at
	`, uuid.New(), params.LeadID, params.SequenceID, params.EnrolledAt).Scan(
		&enr.ID, &enr.LeadID, &enr.SequenceID, &enr.Stage, &enr.Status,
		&enr.Reason, &enr.EnrolledAt, &enr.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return Enrollment{}, ErrAlreadyEnrolled
	}
	if err != nil {
		return Enrollment{}, err
	}

	for _, step := range params.Steps {
		if _, err := tx.Exec(ctx, `
			INSERT INTO enrollment_steps (enrollment_id, step_index, template_id, due_at)
			VALUES ($1, $2, $3, $4)
		`, enr.ID, step.StepIndex, step.TemplateID, step.DueAt); err != nil {
			return Enrollment{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Enrollment{}, err
	}
	return enr, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Enrollment, error) {
	var enr Enrollment
	err := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, sequence_id, stage, status, reason, enrolled_at, updated_at
		FROM enrollments
		WHERE id = $1
	`, id).Scan(
		&enr.ID, &enr.LeadID, &enr.SequenceID, &enr.Stage, &enr.Status,
		&enr.Reason, &enr.EnrolledAt, &enr.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Enrollment{}, ErrNotFound
	}
	if err != nil {
		return Enrollment{}, err
	}
	return enr, nil
}

func (r *Repository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]Enrollment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, sequence_id, stage, status, reason, enrolled_at, updated_at
		FROM enrollments
		WHERE lead_id = $1
		ORDER BY enrolled_at DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Enrollment, 0)
	for rows.Next() {
		var enr Enrollment
		if err := rows.Scan(
			&enr.ID, &enr.LeadID, &enr.SequenceID, &enr.Stage, &enr.Status,
			&enr.Reason, &enr.EnrolledAt, &enr.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, enr)
	}
	return items, rows.Err()
}

func (r *Repository) ListSteps(ctx context.Context, enrollmentID uuid.UUID) ([]StepSend, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT step_index, template_id, due_at, sent_at, opened_at, clicked_at, failed_at
		FROM enrollment_steps
		WHERE enrollment_id = $1
		ORDER BY step_index ASC
	`, enrollmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := make([]StepSend, 0)
	for rows.Next() {
		var s StepSend
		if err := rows.Scan(&s.StepIndex, &s.TemplateID, &s.DueAt, &s.SentAt, &s.OpenedAt, &s.ClickedAt, &s.FailedAt); err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// Cancel moves an active or paused enrollment to cancelled with a reason.
// Reports whether a row changed; false covers both a missing enrollment and
// one already in a terminal status.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID, reason domain.CancelReason) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE enrollments
		SET status = 'cancelled', reason = $2, updated_at = now()
		WHERE id = $1 AND status IN ('active', 'paused')
	`, id, string(reason))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CancelAllForLead cancels every live enrollment of a lead. Returns the ids
// that were actually cancelled.
func (r *Repository) CancelAllForLead(ctx context.Context, leadID uuid.UUID, reason domain.CancelReason) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE enrollments
		SET status = 'cancelled', reason = $2, updated_at = now()
		WHERE lead_id = $1 AND status IN ('active', 'paused')
		RETURNING id
	`, leadID, string(reason))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetStage updates the journey stage. The caller validates the transition;
// the conditional guards against concurrent terminal moves.
func (r *Repository) SetStage(ctx context.Context, id uuid.UUID, from, to domain.Stage) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE enrollments
		SET stage = $3, updated_at = now()
		WHERE id = $1 AND stage = $2
	`, id, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkUnsubscribedForLead moves every non-terminal enrollment stage of a
// lead to unsubscribed.
func (r *Repository) MarkUnsubscribedForLead(ctx context.Context, leadID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE enrollments
		SET stage = 'unsubscribed', updated_at = now()
		WHERE lead_id = $1 AND stage NOT IN ('customer', 'unsubscribed')
	`, leadID)
	return err
}

// MarkStepSent records the send timestamp for a step, write-once. Reports
// whether this caller won the write; a false return with no error means the
// slot was already stamped and the caller's result is stale.
func (r *Repository) MarkStepSent(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE enrollment_steps
		SET sent_at = $3
		WHERE enrollment_id = $1 AND step_index = $2 AND sent_at IS NULL
	`, enrollmentID, stepIndex, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkStepFailed records a permanent delivery failure for a step, write-once.
// The stamp outlives the dispatch job row, so retention pruning cannot bring
// the step back as sendable. Reports whether this caller won the write.
func (r *Repository) MarkStepFailed(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE enrollment_steps
		SET failed_at = $3
		WHERE enrollment_id = $1 AND step_index = $2 AND sent_at IS NULL AND failed_at IS NULL
	`, enrollmentID, stepIndex, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// StepSendRecorded reports whether the step slot already carries a send
// timestamp. The dispatch worker consults this before redelivering a task
// whose previous attempt died between the SMTP send and the bookkeeping.
func (r *Repository) StepSendRecorded(ctx context.Context, enrollmentID uuid.UUID, stepIndex int) (bool, error) {
	var recorded bool
	err := r.pool.QueryRow(ctx, `
		SELECT sent_at IS NOT NULL
		FROM enrollment_steps
		WHERE enrollment_id = $1 AND step_index = $2
	`, enrollmentID, stepIndex).Scan(&recorded)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return recorded, nil
}

// StampStepOpened records the first open of a step. Later opens keep the
// original timestamp.
func (r *Repository) StampStepOpened(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE enrollment_steps
		SET opened_at = $3
		WHERE enrollment_id = $1 AND step_index = $2 AND opened_at IS NULL
	`, enrollmentID, stepIndex, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// StampStepClicked records the first click of a step.
func (r *Repository) StampStepClicked(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE enrollment_steps
		SET clicked_at = $3
		WHERE enrollment_id = $1 AND step_index = $2 AND clicked_at IS NULL
	`, enrollmentID, stepIndex, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CompleteIfDone moves an active enrollment to completed once every step
// slot is resolved, either sent or permanently failed. Without the failed
// case an enrollment with one undeliverable step would stay active forever.
func (r *Repository) CompleteIfDone(ctx context.Context, enrollmentID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE enrollments
		SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status = 'active'
		  AND NOT EXISTS (
			SELECT 1 FROM enrollment_steps
			WHERE enrollment_id = $1 AND sent_at IS NULL AND failed_at IS NULL
		  )
	`, enrollmentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
