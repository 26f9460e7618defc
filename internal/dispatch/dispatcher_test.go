package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"nurture_backend/platform/logger"
)

type fakeDispStore struct {
	due      []Job
	claimed  int
	inserted int
	released int
	deferred []uuid.UUID
	stuck    int64
}

func (f *fakeDispStore) InsertDueJobs(ctx context.Context, now time.Time) (int64, error) {
	f.inserted++
	return int64(len(f.due)), nil
}

func (f *fakeDispStore) ClaimDue(ctx context.Context, now time.Time, limit int, requeueAfter time.Duration) ([]Job, error) {
	if f.claimed > 0 {
		return nil, nil
	}
	f.claimed++
	return f.due, nil
}

func (f *fakeDispStore) ReleaseStuckSending(ctx context.Context, now time.Time, lease time.Duration) (int64, error) {
	f.released++
	return f.stuck, nil
}

func (f *fakeDispStore) Defer(ctx context.Context, id uuid.UUID, until time.Time) error {
	f.deferred = append(f.deferred, id)
	return nil
}

func newDispatcherFixture(t *testing.T, store *fakeDispStore) (*Dispatcher, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return &Dispatcher{
		client:       client,
		queue:        "dispatch",
		repo:         store,
		log:          logger.New("test"),
		tick:         time.Minute,
		batchSize:    50,
		requeueAfter: 15 * time.Minute,
		maxAttempts:  5,
	}, mr
}

func TestDispatcherPassEnqueuesClaimedJobs(t *testing.T) {
	job := Job{ID: uuid.New(), EnrollmentID: uuid.New(), LeadID: uuid.New(), TemplateID: "welcome-01-hello", DueAt: time.Now()}
	store := &fakeDispStore{due: []Job{job}}
	d, mr := newDispatcherFixture(t, store)

	d.pass(context.Background())

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer inspector.Close()

	tasks, err := inspector.ListPendingTasks("dispatch")
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("got %d pending tasks, want 1", len(tasks))
	}
	if tasks[0].Type != TaskSendStep {
		t.Errorf("task type = %q, want %q", tasks[0].Type, TaskSendStep)
	}

	payload, err := ParseSendStepPayload(asynq.NewTask(tasks[0].Type, tasks[0].Payload))
	if err != nil {
		t.Fatal(err)
	}
	if payload.JobID != job.ID.String() {
		t.Errorf("payload job id = %q, want %q", payload.JobID, job.ID)
	}
	if len(store.deferred) != 0 {
		t.Error("successful enqueue must not defer the job")
	}
	if store.released != 1 {
		t.Errorf("ReleaseStuckSending calls = %d, want 1 per pass", store.released)
	}
}

func TestDispatcherPassReclaimsStuckSendingJobs(t *testing.T) {
	store := &fakeDispStore{stuck: 2}
	d, _ := newDispatcherFixture(t, store)

	// Jobs stranded in sending must come back before the claim runs, so a
	// single pass can requeue what a crashed worker left behind.
	d.pass(context.Background())
	d.pass(context.Background())

	if store.released != 2 {
		t.Errorf("ReleaseStuckSending calls = %d, want one per pass", store.released)
	}
}

func TestDispatcherPassDefersOnEnqueueFailure(t *testing.T) {
	job := Job{ID: uuid.New(), DueAt: time.Now()}
	store := &fakeDispStore{due: []Job{job}}
	d, mr := newDispatcherFixture(t, store)

	// A dead queue backend must not strand the claim stamp.
	mr.Close()
	d.pass(context.Background())

	if len(store.deferred) != 1 || store.deferred[0] != job.ID {
		t.Fatalf("deferred = %v, want [%s]", store.deferred, job.ID)
	}
}
