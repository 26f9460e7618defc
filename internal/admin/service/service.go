// Package service builds the admin subscriber projections. It composes the
// other modules' read paths instead of owning state: the detail view walks
// the lead, enrollment and engagement services, the list and the CSV export
// stream the joined projection query.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"nurture_backend/internal/admin/repository"
	engagerepo "nurture_backend/internal/engagement/repository"
	"nurture_backend/internal/engagement/scoring"
	enrollrepo "nurture_backend/internal/enrollment/repository"
	leadsrepo "nurture_backend/internal/leads/repository"
	"nurture_backend/platform/apperr"
)

// errPageFull stops the projection scan once a page is filled.
var errPageFull = errors.New("page full")

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

type LeadSource interface {
	Get(ctx context.Context, id uuid.UUID) (leadsrepo.Lead, error)
}

type EnrollmentSource interface {
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]enrollrepo.Enrollment, error)
	ListSteps(ctx context.Context, enrollmentID uuid.UUID) ([]enrollrepo.StepSend, error)
}

type EngagementSource interface {
	Counters(ctx context.Context, leadID uuid.UUID) (engagerepo.Counters, error)
	ScoreCounters(c engagerepo.Counters, now time.Time) scoring.Level
}

type RowSource interface {
	EachLeadEngagement(ctx context.Context, fn func(repository.LeadEngagementRow) error) error
}

type Service struct {
	rows       RowSource
	leads      LeadSource
	enrolls    EnrollmentSource
	engagement EngagementSource
	now        func() time.Time
}

func New(rows RowSource, leads LeadSource, enrolls EnrollmentSource, engagement EngagementSource) *Service {
	return &Service{
		rows:       rows,
		leads:      leads,
		enrolls:    enrolls,
		engagement: engagement,
		now:        time.Now,
	}
}

// SubscriberStep is the send state of one sequence step.
type SubscriberStep struct {
	StepIndex  int        `json:"stepIndex"`
	TemplateID string     `json:"templateId"`
	DueAt      time.Time  `json:"dueAt"`
	SentAt     *time.Time `json:"sentAt"`
	OpenedAt   *time.Time `json:"openedAt"`
	ClickedAt  *time.Time `json:"clickedAt"`
	FailedAt   *time.Time `json:"failedAt"`
}

// SubscriberEnrollment is one enrollment with its step states.
type SubscriberEnrollment struct {
	ID         uuid.UUID        `json:"id"`
	SequenceID string           `json:"sequenceId"`
	Stage      string           `json:"stage"`
	Status     string           `json:"status"`
	Reason     *string          `json:"reason,omitempty"`
	EnrolledAt time.Time        `json:"enrolledAt"`
	Steps      []SubscriberStep `json:"steps"`
}

// SubscriberCounters is the engagement counter snapshot.
type SubscriberCounters struct {
	Sent           int64      `json:"sent"`
	Opened         int64      `json:"opened"`
	Clicked        int64      `json:"clicked"`
	LastEngagement *time.Time `json:"lastEngagement"`
}

// Subscriber is the full detail projection of one lead.
type Subscriber struct {
	LeadID      uuid.UUID              `json:"leadId"`
	Email       *string                `json:"email"`
	Name        *string                `json:"name"`
	Consent     bool                   `json:"consent"`
	Source      string                 `json:"source"`
	CreatedAt   time.Time              `json:"createdAt"`
	Enrollments []SubscriberEnrollment `json:"enrollments"`
	Counters    SubscriberCounters     `json:"counters"`
	Score       scoring.Level          `json:"score"`
}

// SubscriberSummary is one list row.
type SubscriberSummary struct {
	LeadID          uuid.UUID     `json:"leadId"`
	Email           *string       `json:"email"`
	Name            *string       `json:"name"`
	Consent         bool          `json:"consent"`
	Source          string        `json:"source"`
	CreatedAt       time.Time     `json:"createdAt"`
	ActiveSequences []string      `json:"activeSequences"`
	Stage           *string       `json:"stage"`
	Sent            int64         `json:"sent"`
	Opened          int64         `json:"opened"`
	Clicked         int64         `json:"clicked"`
	Score           scoring.Level `json:"score"`
}

// Get assembles the subscriber detail view for one lead.
func (s *Service) Get(ctx context.Context, leadID uuid.UUID) (Subscriber, error) {
	lead, err := s.leads.Get(ctx, leadID)
	if err != nil {
		return Subscriber{}, err
	}

	enrollments, err := s.enrolls.ListByLead(ctx, leadID)
	if err != nil {
		return Subscriber{}, err
	}

	sub := Subscriber{
		LeadID:      lead.ID,
		Email:       lead.Email,
		Name:        lead.Name,
		Consent:     lead.Consent,
		Source:      lead.Source,
		CreatedAt:   lead.CreatedAt,
		Enrollments: make([]SubscriberEnrollment, 0, len(enrollments)),
	}

	for _, e := range enrollments {
		steps, err := s.enrolls.ListSteps(ctx, e.ID)
		if err != nil {
			return Subscriber{}, err
		}
		se := SubscriberEnrollment{
			ID:         e.ID,
			SequenceID: e.SequenceID,
			Stage:      string(e.Stage),
			Status:     string(e.Status),
			Reason:     e.Reason,
			EnrolledAt: e.EnrolledAt,
			Steps:      make([]SubscriberStep, 0, len(steps)),
		}
		for _, st := range steps {
			se.Steps = append(se.Steps, SubscriberStep{
				StepIndex:  st.StepIndex,
				TemplateID: st.TemplateID,
				DueAt:      st.DueAt,
				SentAt:     st.SentAt,
				OpenedAt:   st.OpenedAt,
				ClickedAt:  st.ClickedAt,
				FailedAt:   st.FailedAt,
			})
		}
		sub.Enrollments = append(sub.Enrollments, se)
	}

	counters, err := s.engagement.Counters(ctx, leadID)
	if err != nil {
		return Subscriber{}, err
	}
	sub.Counters = SubscriberCounters{
		Sent:           counters.Sent,
		Opened:         counters.Opened,
		Clicked:        counters.Clicked,
		LastEngagement: counters.LastEngagement,
	}
	sub.Score = s.engagement.ScoreCounters(counters, s.now())

	return sub, nil
}

// ListParams filter and paginate the subscriber list.
type ListParams struct {
	Score  scoring.Level // empty means all
	Limit  int
	Offset int
}

// List returns one page of subscriber summaries, scored at read time. The
// score filter is applied while streaming so pagination counts filtered rows.
func (s *Service) List(ctx context.Context, params ListParams) ([]SubscriberSummary, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if params.Offset < 0 {
		return nil, apperr.Validation("offset must not be negative")
	}
	if params.Score != "" && params.Score != scoring.LevelHot &&
		params.Score != scoring.LevelWarm && params.Score != scoring.LevelCold {
		return nil, apperr.Validation("score must be hot, warm or cold")
	}

	now := s.now()
	skipped := 0
	page := make([]SubscriberSummary, 0, limit)

	err := s.rows.EachLeadEngagement(ctx, func(row repository.LeadEngagementRow) error {
		summary := s.toSummary(row, now)
		if params.Score != "" && summary.Score != params.Score {
			return nil
		}
		if skipped < params.Offset {
			skipped++
			return nil
		}
		page = append(page, summary)
		if len(page) == limit {
			return errPageFull
		}
		return nil
	})
	if err != nil && !errors.Is(err, errPageFull) {
		return nil, err
	}
	return page, nil
}

// Each streams every scored summary through fn, for the CSV export.
func (s *Service) Each(ctx context.Context, fn func(SubscriberSummary) error) error {
	now := s.now()
	return s.rows.EachLeadEngagement(ctx, func(row repository.LeadEngagementRow) error {
		return fn(s.toSummary(row, now))
	})
}

func (s *Service) toSummary(row repository.LeadEngagementRow, now time.Time) SubscriberSummary {
	score := s.engagement.ScoreCounters(engagerepo.Counters{
		LeadID:         row.LeadID,
		Sent:           row.Sent,
		Opened:         row.Opened,
		Clicked:        row.Clicked,
		LastEngagement: row.LastEngagement,
	}, now)

	return SubscriberSummary{
		LeadID:          row.LeadID,
		Email:           row.Email,
		Name:            row.Name,
		Consent:         row.Consent,
		Source:          row.Source,
		CreatedAt:       row.CreatedAt,
		ActiveSequences: row.ActiveSequences,
		Stage:           row.LatestStage,
		Sent:            row.Sent,
		Opened:          row.Opened,
		Clicked:         row.Clicked,
		Score:           score,
	}
}
