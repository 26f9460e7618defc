package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"nurture_backend/internal/enrollment/domain"
	enrollrepo "nurture_backend/internal/enrollment/repository"
	"nurture_backend/internal/sequence"
	"nurture_backend/platform/apperr"
	"nurture_backend/platform/logger"
)

type fakeEnroller struct {
	enrollErr   error
	advanceErr  error
	enrolled    []string
	advanced    []domain.Stage
	enrollTimes []time.Time
}

func (f *fakeEnroller) Enroll(ctx context.Context, leadID uuid.UUID, sequenceID string, triggerTime time.Time) (enrollrepo.Enrollment, error) {
	if f.enrollErr != nil {
		return enrollrepo.Enrollment{}, f.enrollErr
	}
	f.enrolled = append(f.enrolled, sequenceID)
	f.enrollTimes = append(f.enrollTimes, triggerTime)
	return enrollrepo.Enrollment{
		ID:         uuid.New(),
		LeadID:     leadID,
		SequenceID: sequenceID,
		Stage:      domain.StageSubscribed,
		Status:     domain.StatusActive,
	}, nil
}

func (f *fakeEnroller) AdvanceStage(ctx context.Context, id uuid.UUID, next domain.Stage) error {
	if f.advanceErr != nil {
		return f.advanceErr
	}
	f.advanced = append(f.advanced, next)
	return nil
}

func newTestService(enrolls *fakeEnroller) *Service {
	return New(sequence.NewDefaultRegistry(), enrolls, logger.New("test"))
}

func TestFireMapsTriggersToSequences(t *testing.T) {
	cases := []struct {
		event    string
		sequence string
	}{
		{sequence.TriggerSubscribed, sequence.SequenceWelcome},
		{sequence.TriggerGuideDownloaded, sequence.SequenceGuideDownload},
		{sequence.TriggerQuizCompleted, sequence.SequenceQuizSoapOpera},
	}
	for _, tc := range cases {
		t.Run(tc.event, func(t *testing.T) {
			enrolls := &fakeEnroller{}
			svc := newTestService(enrolls)

			enrollment, err := svc.Fire(context.Background(), uuid.New(), tc.event)
			if err != nil {
				t.Fatal(err)
			}
			if enrollment.SequenceID != tc.sequence {
				t.Errorf("sequence = %q, want %q", enrollment.SequenceID, tc.sequence)
			}
			if len(enrolls.enrolled) != 1 || enrolls.enrolled[0] != tc.sequence {
				t.Errorf("enrolled = %v", enrolls.enrolled)
			}
		})
	}
}

func TestFireGuideDownloadAdvancesStage(t *testing.T) {
	enrolls := &fakeEnroller{}
	svc := newTestService(enrolls)

	enrollment, err := svc.Fire(context.Background(), uuid.New(), sequence.TriggerGuideDownloaded)
	if err != nil {
		t.Fatal(err)
	}
	if len(enrolls.advanced) != 1 || enrolls.advanced[0] != domain.StageGuideDownloaded {
		t.Errorf("advanced = %v", enrolls.advanced)
	}
	if enrollment.Stage != domain.StageGuideDownloaded {
		t.Errorf("stage = %q", enrollment.Stage)
	}

	// The other triggers leave the stage alone.
	enrolls2 := &fakeEnroller{}
	svc2 := newTestService(enrolls2)
	enrollment2, err := svc2.Fire(context.Background(), uuid.New(), sequence.TriggerSubscribed)
	if err != nil {
		t.Fatal(err)
	}
	if len(enrolls2.advanced) != 0 || enrollment2.Stage != domain.StageSubscribed {
		t.Errorf("advanced = %v stage = %q", enrolls2.advanced, enrollment2.Stage)
	}
}

func TestFireStageAdvanceFailureDoesNotFailTrigger(t *testing.T) {
	enrolls := &fakeEnroller{advanceErr: errors.New("stage race")}
	svc := newTestService(enrolls)

	enrollment, err := svc.Fire(context.Background(), uuid.New(), sequence.TriggerGuideDownloaded)
	if err != nil {
		t.Fatal(err)
	}
	if enrollment.Stage != domain.StageSubscribed {
		t.Errorf("stage = %q, must stay as enrolled when the advance loses", enrollment.Stage)
	}
}

func TestFireUnknownTrigger(t *testing.T) {
	svc := newTestService(&fakeEnroller{})

	_, err := svc.Fire(context.Background(), uuid.New(), "page_viewed")
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestFireDuplicateEnrollmentSurfacesConflict(t *testing.T) {
	enrolls := &fakeEnroller{enrollErr: apperr.Conflict("lead already enrolled in sequence")}
	svc := newTestService(enrolls)

	_, err := svc.Fire(context.Background(), uuid.New(), sequence.TriggerSubscribed)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindConflict {
		t.Fatalf("err = %v, want conflict", err)
	}
}
