package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Counters struct {
	LeadID         uuid.UUID
	Sent           int64
	Opened         int64
	Clicked        int64
	LastEngagement *time.Time
}

// Get returns the counters row for a lead, zero-valued when none exists yet.
func (r *Repository) Get(ctx context.Context, leadID uuid.UUID) (Counters, error) {
	c := Counters{LeadID: leadID}
	err := r.pool.QueryRow(ctx, `
		SELECT sent, opened, clicked, last_engagement
		FROM engagement_counters
		WHERE lead_id = $1
	`, leadID).Scan(&c.Sent, &c.Opened, &c.Clicked, &c.LastEngagement)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return Counters{}, err
	}
	return c, nil
}

// IncrementSent bumps the sent counter. Sends do not count as engagement.
func (r *Repository) IncrementSent(ctx context.Context, leadID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO engagement_counters (lead_id, sent)
		VALUES ($1, 1)
		ON CONFLICT (lead_id)
		DO UPDATE SET sent = engagement_counters.sent + 1, updated_at = now()
	`, leadID)
	return err
}

// IncrementOpened bumps the opened counter and last engagement.
func (r *Repository) IncrementOpened(ctx context.Context, leadID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO engagement_counters (lead_id, opened, last_engagement)
		VALUES ($1, 1, $2)
		ON CONFLICT (lead_id)
		DO UPDATE SET
			opened = engagement_counters.opened + 1,
			last_engagement = GREATEST(COALESCE(engagement_counters.last_engagement, $2), $2),
			updated_at = now()
	`, leadID, at)
	return err
}

// IncrementClicked bumps the clicked counter and last engagement.
func (r *Repository) IncrementClicked(ctx context.Context, leadID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO engagement_counters (lead_id, clicked, last_engagement)
		VALUES ($1, 1, $2)
		ON CONFLICT (lead_id)
		DO UPDATE SET
			clicked = engagement_counters.clicked + 1,
			last_engagement = GREATEST(COALESCE(engagement_counters.last_engagement, $2), $2),
			updated_at = now()
	`, leadID, at)
	return err
}

// Rebuild recomputes the counters from the per-step facts. Opens and clicks
// are first-time stamps, so the rebuilt counts are distinct steps engaged,
// the auditable floor for the live counters.
func (r *Repository) Rebuild(ctx context.Context, leadID uuid.UUID) (Counters, error) {
	c := Counters{LeadID: leadID}
	err := r.pool.QueryRow(ctx, `
		WITH facts AS (
			SELECT s.sent_at, s.opened_at, s.clicked_at
			FROM enrollment_steps s
			JOIN enrollments e ON e.id = s.enrollment_id
			WHERE e.lead_id = $1
		)
		INSERT INTO engagement_counters (lead_id, sent, opened, clicked, last_engagement)
		SELECT $1,
			count(sent_at),
			count(opened_at),
			count(clicked_at),
			GREATEST(max(opened_at), max(clicked_at))
		FROM facts
		ON CONFLICT (lead_id)
		DO UPDATE SET
			sent = EXCLUDED.sent,
			opened = EXCLUDED.opened,
			clicked = EXCLUDED.clicked,
			last_engagement = EXCLUDED.last_engagement,
			updated_at = now()
		RETURNING sent, opened, clicked, last_engagement
	`, leadID).Scan(&c.Sent, &c.Opened, &c.Clicked, &c.LastEngagement)
	if err != nil {
		return Counters{}, err
	}
	return c, nil
}
