// Package repository holds the admin read-side projection queries. Everything
// here is a join over state owned by other modules; no table is written.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LeadEngagementRow is one lead with its engagement counters and enrollment
// summary, the unit of the subscriber list and the CSV export.
type LeadEngagementRow struct {
	LeadID          uuid.UUID
	Email           *string
	Name            *string
	Consent         bool
	Source          string
	CreatedAt       time.Time
	ActiveSequences []string
	LatestStage     *string
	Sent            int64
	Opened          int64
	Clicked         int64
	LastEngagement  *time.Time
}

// EachLeadEngagement streams every lead row, newest first, through fn.
// Returning an error from fn stops the scan and surfaces that error, which
// lets callers paginate without loading the full set.
func (r *Repository) EachLeadEngagement(ctx context.Context, fn func(LeadEngagementRow) error) error {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.email, l.name, l.consent, l.source, l.created_at,
		       COALESCE(act.sequences, '{}'),
		       latest.stage,
		       COALESCE(ec.sent, 0), COALESCE(ec.opened, 0), COALESCE(ec.clicked, 0),
		       ec.last_engagement
		FROM leads l
		LEFT JOIN engagement_counters ec ON ec.lead_id = l.id
		LEFT JOIN LATERAL (
			SELECT array_agg(e.sequence_id ORDER BY e.enrolled_at) AS sequences
			FROM enrollments e
			WHERE e.lead_id = l.id AND e.status = 'active'
		) act ON true
		LEFT JOIN LATERAL (
			SELECT e.stage
			FROM enrollments e
			WHERE e.lead_id = l.id
			ORDER BY e.updated_at DESC
			LIMIT 1
		) latest ON true
		ORDER BY l.created_at DESC, l.id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var row LeadEngagementRow
		if err := rows.Scan(
			&row.LeadID, &row.Email, &row.Name, &row.Consent, &row.Source, &row.CreatedAt,
			&row.ActiveSequences, &row.LatestStage,
			&row.Sent, &row.Opened, &row.Clicked, &row.LastEngagement,
		); err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}
