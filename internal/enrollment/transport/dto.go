package transport

import (
	"time"

	"github.com/google/uuid"

	"nurture_backend/internal/enrollment/repository"
)

type CancelEnrollmentRequest struct {
	Reason string `json:"reason" validate:"required,oneof=unsubscribed complained bounced converted lead_deleted manual"`
}

type AdvanceStageRequest struct {
	Stage string `json:"stage" validate:"required,oneof=subscribed guide_downloaded engaged customer unsubscribed"`
}

type StepSendResponse struct {
	StepIndex  int        `json:"stepIndex"`
	TemplateID string     `json:"templateId"`
	DueAt      time.Time  `json:"dueAt"`
	SentAt     *time.Time `json:"sentAt,omitempty"`
	OpenedAt   *time.Time `json:"openedAt,omitempty"`
	ClickedAt  *time.Time `json:"clickedAt,omitempty"`
}

type EnrollmentResponse struct {
	ID         uuid.UUID          `json:"id"`
	LeadID     uuid.UUID          `json:"leadId"`
	SequenceID string             `json:"sequenceId"`
	Stage      string             `json:"stage"`
	Status     string             `json:"status"`
	Reason     *string            `json:"reason,omitempty"`
	EnrolledAt time.Time          `json:"enrolledAt"`
	Steps      []StepSendResponse `json:"steps,omitempty"`
}

func ToEnrollmentResponse(enr repository.Enrollment, steps []repository.StepSend) EnrollmentResponse {
	resp := EnrollmentResponse{
		ID:         enr.ID,
		LeadID:     enr.LeadID,
		SequenceID: enr.SequenceID,
		Stage:      string(enr.Stage),
		Status:     string(enr.Status),
		Reason:     enr.Reason,
		EnrolledAt: enr.EnrolledAt,
	}
	for _, s := range steps {
		resp.Steps = append(resp.Steps, StepSendResponse{
			StepIndex:  s.StepIndex,
			TemplateID: s.TemplateID,
			DueAt:      s.DueAt,
			SentAt:     s.SentAt,
			OpenedAt:   s.OpenedAt,
			ClickedAt:  s.ClickedAt,
		})
	}
	return resp
}
