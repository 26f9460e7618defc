package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type TemplateFailureCount struct {
	TemplateID string `json:"templateId"`
	Count      int64  `json:"count"`
}

func (r *Repository) CountLeadsSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM leads WHERE created_at >= $1`, since).Scan(&n)
	return n, err
}

func (r *Repository) CountJobsInState(ctx context.Context, state string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM dispatch_jobs WHERE state = $1`, state).Scan(&n)
	return n, err
}

func (r *Repository) CountSentSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM enrollment_steps WHERE sent_at >= $1
	`, since).Scan(&n)
	return n, err
}

func (r *Repository) CountActiveEnrollments(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM enrollments WHERE status = 'active'`).Scan(&n)
	return n, err
}

func (r *Repository) TemplateFailuresSince(ctx context.Context, since time.Time) ([]TemplateFailureCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT template_id, sum(count)
		FROM dispatch_template_failures
		WHERE day >= $1::date
		GROUP BY template_id
		ORDER BY sum(count) DESC
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]TemplateFailureCount, 0)
	for rows.Next() {
		var item TemplateFailureCount
		if err := rows.Scan(&item.TemplateID, &item.Count); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// OldestPendingSince returns the due time of the oldest pending job. The
// second return is false when the queue has no pending jobs.
func (r *Repository) OldestPendingSince(ctx context.Context) (time.Time, bool, error) {
	var due time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT due_at FROM dispatch_jobs
		WHERE state = 'pending'
		ORDER BY due_at ASC
		LIMIT 1
	`).Scan(&due)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return due, true, nil
}
