package domain

// Status is the lifecycle state of an enrollment.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// CancelReason is the closed set of reasons an enrollment leaves the active
// state early. Free-form reason strings are not accepted.
type CancelReason string

const (
	ReasonUnsubscribed CancelReason = "unsubscribed"
	ReasonComplained   CancelReason = "complained"
	ReasonBounced      CancelReason = "bounced"
	ReasonConverted    CancelReason = "converted"
	ReasonLeadDeleted  CancelReason = "lead_deleted"
	ReasonManual       CancelReason = "manual"
)

// Valid reports whether r is a known cancellation reason.
func (r CancelReason) Valid() bool {
	switch r {
	case ReasonUnsubscribed, ReasonComplained, ReasonBounced,
		ReasonConverted, ReasonLeadDeleted, ReasonManual:
		return true
	}
	return false
}
