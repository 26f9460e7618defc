package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"nurture_backend/internal/enrollment/domain"
	"nurture_backend/internal/enrollment/repository"
	"nurture_backend/internal/events"
	"nurture_backend/internal/sequence"
	"nurture_backend/platform/apperr"
	"nurture_backend/platform/logger"
	platformevents "nurture_backend/platform/events"
)

type fakeStore struct {
	enrollments map[uuid.UUID]*repository.Enrollment
	steps       map[uuid.UUID][]repository.StepSend
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		enrollments: make(map[uuid.UUID]*repository.Enrollment),
		steps:       make(map[uuid.UUID][]repository.StepSend),
	}
}

func (f *fakeStore) Create(ctx context.Context, params repository.CreateParams) (repository.Enrollment, error) {
	for _, enr := range f.enrollments {
		if enr.LeadID == params.LeadID && enr.SequenceID == params.SequenceID && enr.Status == domain.StatusActive {
			return repository.Enrollment{}, repository.ErrAlreadyEnrolled
		}
	}
	enr := repository.Enrollment{
		ID:         uuid.New(),
		LeadID:     params.LeadID,
		SequenceID: params.SequenceID,
		Stage:      domain.StageSubscribed,
		Status:     domain.StatusActive,
		EnrolledAt: params.EnrolledAt,
	}
	f.enrollments[enr.ID] = &enr
	f.steps[enr.ID] = append([]repository.StepSend(nil), params.Steps...)
	return enr, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (repository.Enrollment, error) {
	enr, ok := f.enrollments[id]
	if !ok {
		return repository.Enrollment{}, repository.ErrNotFound
	}
	return *enr, nil
}

func (f *fakeStore) ListByLead(ctx context.Context, leadID uuid.UUID) ([]repository.Enrollment, error) {
	var out []repository.Enrollment
	for _, enr := range f.enrollments {
		if enr.LeadID == leadID {
			out = append(out, *enr)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSteps(ctx context.Context, enrollmentID uuid.UUID) ([]repository.StepSend, error) {
	return append([]repository.StepSend(nil), f.steps[enrollmentID]...), nil
}

func (f *fakeStore) Cancel(ctx context.Context, id uuid.UUID, reason domain.CancelReason) (bool, error) {
	enr, ok := f.enrollments[id]
	if !ok || (enr.Status != domain.StatusActive && enr.Status != domain.StatusPaused) {
		return false, nil
	}
	r := string(reason)
	enr.Status = domain.StatusCancelled
	enr.Reason = &r
	return true, nil
}

func (f *fakeStore) CancelAllForLead(ctx context.Context, leadID uuid.UUID, reason domain.CancelReason) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, enr := range f.enrollments {
		if enr.LeadID == leadID && (enr.Status == domain.StatusActive || enr.Status == domain.StatusPaused) {
			r := string(reason)
			enr.Status = domain.StatusCancelled
			enr.Reason = &r
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeStore) SetStage(ctx context.Context, id uuid.UUID, from, to domain.Stage) (bool, error) {
	enr, ok := f.enrollments[id]
	if !ok || enr.Stage != from {
		return false, nil
	}
	enr.Stage = to
	return true, nil
}

func (f *fakeStore) MarkUnsubscribedForLead(ctx context.Context, leadID uuid.UUID) error {
	for _, enr := range f.enrollments {
		if enr.LeadID == leadID && enr.Stage != domain.StageCustomer && enr.Stage != domain.StageUnsubscribed {
			enr.Stage = domain.StageUnsubscribed
		}
	}
	return nil
}

func (f *fakeStore) MarkStepSent(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error) {
	steps := f.steps[enrollmentID]
	for i := range steps {
		if steps[i].StepIndex == stepIndex {
			if steps[i].SentAt != nil {
				return false, nil
			}
			steps[i].SentAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) MarkStepFailed(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error) {
	steps := f.steps[enrollmentID]
	for i := range steps {
		if steps[i].StepIndex == stepIndex {
			if steps[i].SentAt != nil || steps[i].FailedAt != nil {
				return false, nil
			}
			steps[i].FailedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) StepSendRecorded(ctx context.Context, enrollmentID uuid.UUID, stepIndex int) (bool, error) {
	for _, s := range f.steps[enrollmentID] {
		if s.StepIndex == stepIndex {
			return s.SentAt != nil, nil
		}
	}
	return false, nil
}

func (f *fakeStore) StampStepOpened(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error) {
	steps := f.steps[enrollmentID]
	for i := range steps {
		if steps[i].StepIndex == stepIndex && steps[i].OpenedAt == nil {
			steps[i].OpenedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) StampStepClicked(ctx context.Context, enrollmentID uuid.UUID, stepIndex int, at time.Time) (bool, error) {
	steps := f.steps[enrollmentID]
	for i := range steps {
		if steps[i].StepIndex == stepIndex && steps[i].ClickedAt == nil {
			steps[i].ClickedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CompleteIfDone(ctx context.Context, enrollmentID uuid.UUID) (bool, error) {
	enr, ok := f.enrollments[enrollmentID]
	if !ok || enr.Status != domain.StatusActive {
		return false, nil
	}
	for _, s := range f.steps[enrollmentID] {
		if s.SentAt == nil && s.FailedAt == nil {
			return false, nil
		}
	}
	enr.Status = domain.StatusCompleted
	return true, nil
}

type fakeLeads struct{ known map[uuid.UUID]bool }

func (f fakeLeads) Exists(ctx context.Context, leadID uuid.UUID) (bool, error) {
	return f.known[leadID], nil
}

func newTestService(t *testing.T) (*Service, *fakeStore, uuid.UUID, events.Bus) {
	t.Helper()
	store := newFakeStore()
	leadID := uuid.New()
	log := logger.New("test")
	bus := platformevents.NewInMemoryBus(log)
	svc := New(store, fakeLeads{known: map[uuid.UUID]bool{leadID: true}}, sequence.NewDefaultRegistry(), bus, log)
	return svc, store, leadID, bus
}

func TestEnrollComputesStepSchedule(t *testing.T) {
	svc, store, leadID, _ := newTestService(t)
	enrolledAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	enr, err := svc.Enroll(context.Background(), leadID, sequence.SequenceWelcome, enrolledAt)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	steps := store.steps[enr.ID]
	if len(steps) != 5 {
		t.Fatalf("got %d steps, want 5", len(steps))
	}
	wantOffsets := []int{0, 3, 7, 10, 14}
	for i, s := range steps {
		if s.StepIndex != i {
			t.Errorf("step %d has index %d", i, s.StepIndex)
		}
		want := enrolledAt.Add(time.Duration(wantOffsets[i]) * 24 * time.Hour)
		if !s.DueAt.Equal(want) {
			t.Errorf("step %d due %v, want %v", i, s.DueAt, want)
		}
	}
}

func TestEnrollDuplicateActiveIsConflict(t *testing.T) {
	svc, _, leadID, _ := newTestService(t)
	now := time.Now()

	if _, err := svc.Enroll(context.Background(), leadID, sequence.SequenceWelcome, now); err != nil {
		t.Fatalf("first Enroll: %v", err)
	}
	_, err := svc.Enroll(context.Background(), leadID, sequence.SequenceWelcome, now)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("second Enroll kind = %v, want conflict", apperr.GetKind(err))
	}
}

func TestEnrollUnknownSequenceAndLead(t *testing.T) {
	svc, _, leadID, _ := newTestService(t)
	now := time.Now()

	if _, err := svc.Enroll(context.Background(), leadID, "nope", now); apperr.GetKind(err) != apperr.KindValidation {
		t.Errorf("unknown sequence kind = %v, want validation", apperr.GetKind(err))
	}
	if _, err := svc.Enroll(context.Background(), uuid.New(), sequence.SequenceWelcome, now); apperr.GetKind(err) != apperr.KindNotFound {
		t.Errorf("unknown lead kind = %v, want not found", apperr.GetKind(err))
	}
}

func TestAdvanceStageForwardOnly(t *testing.T) {
	svc, store, leadID, _ := newTestService(t)
	enr, err := svc.Enroll(context.Background(), leadID, sequence.SequenceWelcome, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := svc.AdvanceStage(ctx, enr.ID, domain.StageEngaged); err != nil {
		t.Fatalf("forward move: %v", err)
	}
	if err := svc.AdvanceStage(ctx, enr.ID, domain.StageGuideDownloaded); apperr.GetKind(err) != apperr.KindConflict {
		t.Errorf("backward move kind = %v, want conflict", apperr.GetKind(err))
	}
	// Same-stage is an idempotent no-op.
	if err := svc.AdvanceStage(ctx, enr.ID, domain.StageEngaged); err != nil {
		t.Errorf("same-stage move: %v", err)
	}
	if store.enrollments[enr.ID].Stage != domain.StageEngaged {
		t.Errorf("stage = %q, want engaged", store.enrollments[enr.ID].Stage)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	svc, store, leadID, _ := newTestService(t)
	enr, err := svc.Enroll(context.Background(), leadID, sequence.SequenceWelcome, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := svc.Cancel(ctx, enr.ID, domain.ReasonManual); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := svc.Cancel(ctx, enr.ID, domain.ReasonManual); err != nil {
		t.Fatalf("second cancel should be a no-op: %v", err)
	}
	if store.enrollments[enr.ID].Status != domain.StatusCancelled {
		t.Errorf("status = %q", store.enrollments[enr.ID].Status)
	}
	if err := svc.Cancel(ctx, enr.ID, domain.CancelReason("whatever")); apperr.GetKind(err) != apperr.KindValidation {
		t.Errorf("free-form reason kind = %v, want validation", apperr.GetKind(err))
	}
}

func TestLeadDeletedEventCascades(t *testing.T) {
	svc, store, leadID, bus := newTestService(t)
	enr, err := svc.Enroll(context.Background(), leadID, sequence.SequenceWelcome, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	err = bus.PublishSync(context.Background(), events.LeadDeleted{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
	})
	if err != nil {
		t.Fatalf("PublishSync: %v", err)
	}

	if store.enrollments[enr.ID].Status != domain.StatusCancelled {
		t.Fatalf("status = %q, want cancelled", store.enrollments[enr.ID].Status)
	}
	if *store.enrollments[enr.ID].Reason != string(domain.ReasonLeadDeleted) {
		t.Errorf("reason = %q", *store.enrollments[enr.ID].Reason)
	}
}

func TestHandleUnsubscribeStageEffects(t *testing.T) {
	tests := []struct {
		reason    string
		wantStage domain.Stage
	}{
		{"unsubscribed", domain.StageUnsubscribed},
		{"complained", domain.StageUnsubscribed},
		// A hard bounce cancels delivery but does not mark the journey
		// unsubscribed.
		{"bounced", domain.StageSubscribed},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			svc, store, leadID, _ := newTestService(t)
			enr, err := svc.Enroll(context.Background(), leadID, sequence.SequenceWelcome, time.Now())
			if err != nil {
				t.Fatal(err)
			}

			if err := svc.HandleUnsubscribe(context.Background(), leadID, tt.reason); err != nil {
				t.Fatalf("HandleUnsubscribe: %v", err)
			}

			got := store.enrollments[enr.ID]
			if got.Status != domain.StatusCancelled {
				t.Errorf("status = %q, want cancelled", got.Status)
			}
			if got.Stage != tt.wantStage {
				t.Errorf("stage = %q, want %q", got.Stage, tt.wantStage)
			}
			if *got.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", *got.Reason, tt.reason)
			}
		})
	}
}

func TestMarkStepSentWriteOnce(t *testing.T) {
	svc, _, leadID, _ := newTestService(t)
	enr, err := svc.Enroll(context.Background(), leadID, sequence.SequenceGuideDownload, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	first := time.Now()
	won, err := svc.MarkStepSent(ctx, enr.ID, 0, first)
	if err != nil || !won {
		t.Fatalf("first mark: won=%v err=%v", won, err)
	}
	won, err = svc.MarkStepSent(ctx, enr.ID, 0, first.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Error("second mark must lose the write-once race")
	}

	steps, _ := svc.ListSteps(ctx, enr.ID)
	if steps[0].SentAt == nil || !steps[0].SentAt.Equal(first) {
		t.Error("first timestamp must be preserved")
	}
}

func TestCompletionAfterLastStep(t *testing.T) {
	svc, store, leadID, _ := newTestService(t)
	enr, err := svc.Enroll(context.Background(), leadID, sequence.SequenceGuideDownload, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := svc.MarkStepSent(ctx, enr.ID, i, time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	if store.enrollments[enr.ID].Status != domain.StatusCompleted {
		t.Errorf("status = %q, want completed", store.enrollments[enr.ID].Status)
	}
}

func TestMarkStepFailedResolvesStep(t *testing.T) {
	svc, store, leadID, _ := newTestService(t)
	enr, err := svc.Enroll(context.Background(), leadID, sequence.SequenceGuideDownload, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if _, err := svc.MarkStepSent(ctx, enr.ID, i, time.Now()); err != nil {
			t.Fatal(err)
		}
	}

	// The last step never delivers; its failure stamp resolves the slot and
	// the enrollment completes instead of staying active forever.
	won, err := svc.MarkStepFailed(ctx, enr.ID, 4, time.Now())
	if err != nil || !won {
		t.Fatalf("first failure stamp: won=%v err=%v", won, err)
	}
	if store.enrollments[enr.ID].Status != domain.StatusCompleted {
		t.Errorf("status = %q, want completed", store.enrollments[enr.ID].Status)
	}

	won, err = svc.MarkStepFailed(ctx, enr.ID, 4, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if won {
		t.Error("second failure stamp must lose the write-once race")
	}

	steps, _ := svc.ListSteps(ctx, enr.ID)
	if steps[4].FailedAt == nil {
		t.Error("failure timestamp missing on the step slot")
	}
	if recorded, _ := svc.StepSendRecorded(ctx, enr.ID, 4); recorded {
		t.Error("failed step must not count as a recorded send")
	}
}

func TestConvert(t *testing.T) {
	svc, store, leadID, _ := newTestService(t)
	enr, err := svc.Enroll(context.Background(), leadID, sequence.SequenceWelcome, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Convert(context.Background(), enr.ID); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	got := store.enrollments[enr.ID]
	if got.Stage != domain.StageCustomer {
		t.Errorf("stage = %q, want customer", got.Stage)
	}
	if got.Status != domain.StatusCancelled || *got.Reason != string(domain.ReasonConverted) {
		t.Errorf("status = %q reason = %v", got.Status, got.Reason)
	}
}
