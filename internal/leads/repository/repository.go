package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound   = errors.New("lead not found")
	ErrEmailTaken = errors.New("email already registered")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID        uuid.UUID
	Email     *string
	Name      *string
	Consent   bool
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateLeadParams struct {
	Email   *string
	Name    *string
	Consent bool
	Source  string
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	var lead Lead
	err := r.pool.QueryRow(ctx, `
		INSERT INTO leads (id, email, name, consent, source)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, email, name, consent, source, created_at, updated_at
	`, uuid.New(), params.Email, params.Name, params.Consent, params.Source).Scan(
		&lead.ID, &lead.Email, &lead.Name, &lead.Consent, &lead.Source,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return Lead{}, ErrEmailTaken
	}
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	var lead Lead
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, consent, source, created_at, updated_at
		FROM leads
		WHERE id = $1
	`, id).Scan(
		&lead.ID, &lead.Email, &lead.Name, &lead.Consent, &lead.Source,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (Lead, error) {
	var lead Lead
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, consent, source, created_at, updated_at
		FROM leads
		WHERE lower(email) = lower($1)
	`, email).Scan(
		&lead.ID, &lead.Email, &lead.Name, &lead.Consent, &lead.Source,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

func (r *Repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// BackfillContact sets email and consent on a lead captured without them.
// An already-present email is never overwritten.
func (r *Repository) BackfillContact(ctx context.Context, id uuid.UUID, email string, consent bool) (Lead, error) {
	var lead Lead
	err := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET email = COALESCE(email, $2), consent = $3, updated_at = now()
		WHERE id = $1
		RETURNING id, email, name, consent, source, created_at, updated_at
	`, id, email, consent).Scan(
		&lead.ID, &lead.Email, &lead.Name, &lead.Consent, &lead.Source,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if isUniqueViolation(err) {
		return Lead{}, ErrEmailTaken
	}
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

// Delete removes the lead row. Enrollments, jobs and counters follow through
// ON DELETE CASCADE.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
