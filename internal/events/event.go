// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"nurture_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadCaptured is published when a new lead is stored.
type LeadCaptured struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Email  string    `json:"email,omitempty"`
	Source string    `json:"source,omitempty"`
}

func (e LeadCaptured) EventName() string { return "leads.lead.captured" }

// LeadDeleted is published when a lead is erased (right-to-erasure).
// Subscribers must cascade-cancel anything tied to the lead.
type LeadDeleted struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
}

func (e LeadDeleted) EventName() string { return "leads.lead.deleted" }

// LeadUnsubscribed is published when a lead opts out, hard-bounces, or files
// a spam complaint. All active enrollments for the lead must be cancelled.
type LeadUnsubscribed struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Reason string    `json:"reason"`
}

func (e LeadUnsubscribed) EventName() string { return "leads.lead.unsubscribed" }

// =============================================================================
// Enrollment Domain Events
// =============================================================================

// EnrollmentCreated is published when a lead enters a sequence.
type EnrollmentCreated struct {
	BaseEvent
	EnrollmentID uuid.UUID `json:"enrollmentId"`
	LeadID       uuid.UUID `json:"leadId"`
	SequenceID   string    `json:"sequenceId"`
}

func (e EnrollmentCreated) EventName() string { return "enrollments.enrollment.created" }

// EnrollmentCancelled is published when an enrollment is cancelled.
type EnrollmentCancelled struct {
	BaseEvent
	EnrollmentID uuid.UUID `json:"enrollmentId"`
	LeadID       uuid.UUID `json:"leadId"`
	SequenceID   string    `json:"sequenceId"`
	Reason       string    `json:"reason"`
}

func (e EnrollmentCancelled) EventName() string { return "enrollments.enrollment.cancelled" }

// StepSent is published after a sequence step has been delivered to the mail
// sender and its send timestamp recorded.
type StepSent struct {
	BaseEvent
	EnrollmentID uuid.UUID `json:"enrollmentId"`
	LeadID       uuid.UUID `json:"leadId"`
	SequenceID   string    `json:"sequenceId"`
	StepIndex    int       `json:"stepIndex"`
	TemplateID   string    `json:"templateId"`
	MessageID    string    `json:"messageId,omitempty"`
}

func (e StepSent) EventName() string { return "dispatch.step.sent" }
