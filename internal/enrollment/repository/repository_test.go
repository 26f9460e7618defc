package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"nurture_backend/internal/enrollment/domain"
	"nurture_backend/migrations"
	"nurture_backend/platform/db"
)

type testDatabaseConfig string

func (c testDatabaseConfig) GetDatabaseURL() string { return string(c) }

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	if err := db.RunMigrations(ctx, testDatabaseConfig(url), migrations.FS, "."); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, `TRUNCATE leads CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

func seedLead(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()

	leadID := uuid.New()
	email := leadID.String() + "@example.com"
	if _, err := pool.Exec(context.Background(),
		`INSERT INTO leads (id, email, consent) VALUES ($1, $2, TRUE)`, leadID, email); err != nil {
		t.Fatalf("insert lead: %v", err)
	}
	return leadID
}

func TestCompleteIfDoneTreatsFailedStepsAsResolved(t *testing.T) {
	pool := testPool(t)
	repo := New(pool)
	ctx := context.Background()

	leadID := seedLead(t, pool)
	now := time.Now().UTC()
	enr, err := repo.Create(ctx, CreateParams{
		LeadID:     leadID,
		SequenceID: "welcome",
		EnrolledAt: now,
		Steps: []StepSend{
			{StepIndex: 0, TemplateID: "welcome-tpl", DueAt: now},
			{StepIndex: 1, TemplateID: "welcome-tpl", DueAt: now.Add(24 * time.Hour)},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := repo.MarkStepSent(ctx, enr.ID, 0, now); err != nil {
		t.Fatal(err)
	}
	done, err := repo.CompleteIfDone(ctx, enr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Fatal("enrollment completed with an unresolved step")
	}

	// Step 1 is undeliverable; the failure stamp resolves it and lets the
	// enrollment complete instead of lingering active.
	won, err := repo.MarkStepFailed(ctx, enr.ID, 1, now)
	if err != nil || !won {
		t.Fatalf("MarkStepFailed: won=%v err=%v", won, err)
	}
	done, err = repo.CompleteIfDone(ctx, enr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("enrollment must complete once every step is sent or failed")
	}

	got, err := repo.GetByID(ctx, enr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
}

func TestMarkStepFailedWriteOnce(t *testing.T) {
	pool := testPool(t)
	repo := New(pool)
	ctx := context.Background()

	leadID := seedLead(t, pool)
	now := time.Now().UTC()
	enr, err := repo.Create(ctx, CreateParams{
		LeadID:     leadID,
		SequenceID: "welcome",
		EnrolledAt: now,
		Steps:      []StepSend{{StepIndex: 0, TemplateID: "welcome-tpl", DueAt: now}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	won, err := repo.MarkStepFailed(ctx, enr.ID, 0, now)
	if err != nil || !won {
		t.Fatalf("first stamp: won=%v err=%v", won, err)
	}
	won, err = repo.MarkStepFailed(ctx, enr.ID, 0, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Error("second stamp must lose the write-once race")
	}

	recorded, err := repo.StepSendRecorded(ctx, enr.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if recorded {
		t.Error("failed step must not read as a recorded send")
	}
}
