package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"nurture_backend/internal/admin/repository"
	engagerepo "nurture_backend/internal/engagement/repository"
	"nurture_backend/internal/engagement/scoring"
	"nurture_backend/internal/enrollment/domain"
	enrollrepo "nurture_backend/internal/enrollment/repository"
	leadsrepo "nurture_backend/internal/leads/repository"
	"nurture_backend/platform/apperr"
)

type fakeRows struct {
	rows []repository.LeadEngagementRow
}

func (f *fakeRows) EachLeadEngagement(ctx context.Context, fn func(repository.LeadEngagementRow) error) error {
	for _, row := range f.rows {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

type fakeLeads struct {
	leads map[uuid.UUID]leadsrepo.Lead
}

func (f *fakeLeads) Get(ctx context.Context, id uuid.UUID) (leadsrepo.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return leadsrepo.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, nil
}

type fakeEnrolls struct {
	enrollments map[uuid.UUID][]enrollrepo.Enrollment
	steps       map[uuid.UUID][]enrollrepo.StepSend
}

func (f *fakeEnrolls) ListByLead(ctx context.Context, leadID uuid.UUID) ([]enrollrepo.Enrollment, error) {
	return f.enrollments[leadID], nil
}

func (f *fakeEnrolls) ListSteps(ctx context.Context, enrollmentID uuid.UUID) ([]enrollrepo.StepSend, error) {
	return f.steps[enrollmentID], nil
}

// fakeEngagement scores purely from counters so list tests can steer levels:
// any click is hot, any open warm, otherwise cold.
type fakeEngagement struct {
	counters map[uuid.UUID]engagerepo.Counters
}

func (f *fakeEngagement) Counters(ctx context.Context, leadID uuid.UUID) (engagerepo.Counters, error) {
	return f.counters[leadID], nil
}

func (f *fakeEngagement) ScoreCounters(c engagerepo.Counters, now time.Time) scoring.Level {
	switch {
	case c.Clicked > 0:
		return scoring.LevelHot
	case c.Opened > 0:
		return scoring.LevelWarm
	default:
		return scoring.LevelCold
	}
}

func summaryRow(id uuid.UUID, clicked, opened int64) repository.LeadEngagementRow {
	email := id.String() + "@example.com"
	return repository.LeadEngagementRow{
		LeadID:    id,
		Email:     &email,
		Source:    "quiz",
		CreatedAt: time.Now().UTC(),
		Clicked:   clicked,
		Opened:    opened,
		Sent:      5,
	}
}

func TestGetAssemblesSubscriber(t *testing.T) {
	leadID := uuid.New()
	enrollID := uuid.New()
	email := "guest@example.com"
	opened := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	leads := &fakeLeads{leads: map[uuid.UUID]leadsrepo.Lead{
		leadID: {ID: leadID, Email: &email, Consent: true, Source: "guide"},
	}}
	enrolls := &fakeEnrolls{
		enrollments: map[uuid.UUID][]enrollrepo.Enrollment{
			leadID: {{ID: enrollID, LeadID: leadID, SequenceID: "welcome", Stage: domain.StageEngaged, Status: domain.StatusActive}},
		},
		steps: map[uuid.UUID][]enrollrepo.StepSend{
			enrollID: {
				{StepIndex: 0, TemplateID: "welcome-01-hello", SentAt: &opened, OpenedAt: &opened},
				{StepIndex: 1, TemplateID: "welcome-02-story"},
			},
		},
	}
	engagement := &fakeEngagement{counters: map[uuid.UUID]engagerepo.Counters{
		leadID: {LeadID: leadID, Sent: 1, Opened: 1, LastEngagement: &opened},
	}}

	svc := New(&fakeRows{}, leads, enrolls, engagement)
	sub, err := svc.Get(context.Background(), leadID)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Email == nil || *sub.Email != email {
		t.Errorf("email = %v", sub.Email)
	}
	if len(sub.Enrollments) != 1 || len(sub.Enrollments[0].Steps) != 2 {
		t.Fatalf("enrollments = %+v", sub.Enrollments)
	}
	if sub.Enrollments[0].Stage != "engaged" {
		t.Errorf("stage = %q", sub.Enrollments[0].Stage)
	}
	if sub.Enrollments[0].Steps[1].SentAt != nil {
		t.Error("unsent step must have nil sentAt")
	}
	if sub.Counters.Opened != 1 || sub.Score != scoring.LevelWarm {
		t.Errorf("counters = %+v score = %q", sub.Counters, sub.Score)
	}
}

func TestGetUnknownLead(t *testing.T) {
	svc := New(&fakeRows{}, &fakeLeads{leads: map[uuid.UUID]leadsrepo.Lead{}}, &fakeEnrolls{}, &fakeEngagement{})
	_, err := svc.Get(context.Background(), uuid.New())
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindNotFound {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestListScoreFilterAndPagination(t *testing.T) {
	rows := &fakeRows{}
	hot := make([]uuid.UUID, 0, 5)
	for i := 0; i < 5; i++ {
		id := uuid.New()
		hot = append(hot, id)
		rows.rows = append(rows.rows, summaryRow(id, 1, 0))
		rows.rows = append(rows.rows, summaryRow(uuid.New(), 0, 0)) // cold filler
	}
	svc := New(rows, &fakeLeads{}, &fakeEnrolls{}, &fakeEngagement{})

	page, err := svc.List(context.Background(), ListParams{Score: scoring.LevelHot, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}
	// Offset counts filtered rows, so the page starts at the third hot lead.
	if page[0].LeadID != hot[2] || page[1].LeadID != hot[3] {
		t.Errorf("page = [%s %s], want [%s %s]", page[0].LeadID, page[1].LeadID, hot[2], hot[3])
	}
	for _, row := range page {
		if row.Score != scoring.LevelHot {
			t.Errorf("score = %q leaked through the filter", row.Score)
		}
	}
}

func TestListValidation(t *testing.T) {
	svc := New(&fakeRows{}, &fakeLeads{}, &fakeEnrolls{}, &fakeEngagement{})

	if _, err := svc.List(context.Background(), ListParams{Score: "tepid"}); err == nil {
		t.Error("unknown score accepted")
	}
	if _, err := svc.List(context.Background(), ListParams{Offset: -1}); err == nil {
		t.Error("negative offset accepted")
	}
}

func TestEachProjectsEveryRow(t *testing.T) {
	rows := &fakeRows{rows: []repository.LeadEngagementRow{
		summaryRow(uuid.New(), 0, 1),
		summaryRow(uuid.New(), 0, 0),
	}}
	svc := New(rows, &fakeLeads{}, &fakeEnrolls{}, &fakeEngagement{})

	var got []SubscriberSummary
	err := svc.Each(context.Background(), func(row SubscriberSummary) error {
		got = append(got, row)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("rows = %d, want 2", len(got))
	}
	if got[0].Score != scoring.LevelWarm || got[1].Score != scoring.LevelCold {
		t.Errorf("scores = %q %q", got[0].Score, got[1].Score)
	}
}
