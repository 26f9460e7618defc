// Package domain holds the enrollment journey stage machine. All stage
// validation happens here; callers never compare stage strings themselves.
package domain

// Stage is the position of an enrollment in the lead journey.
type Stage string

const (
	StageSubscribed      Stage = "subscribed"
	StageGuideDownloaded Stage = "guide_downloaded"
	StageEngaged         Stage = "engaged"
	StageCustomer        Stage = "customer"
	StageUnsubscribed    Stage = "unsubscribed"
)

// order gives each forward stage a rank. Unsubscribed is terminal and sits
// outside the forward ordering.
var order = map[Stage]int{
	StageSubscribed:      0,
	StageGuideDownloaded: 1,
	StageEngaged:         2,
	StageCustomer:        3,
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	if s == StageUnsubscribed {
		return true
	}
	_, ok := order[s]
	return ok
}

// Terminal reports whether no further transitions are allowed from s.
func (s Stage) Terminal() bool {
	return s == StageUnsubscribed || s == StageCustomer
}

// CanTransition reports whether moving from s to next is allowed. The
// machine is forward-only: backward moves are rejected, as is any move out
// of a terminal stage. Unsubscribed is reachable from every non-terminal
// stage. A same-stage move is a no-op and allowed so retried commands stay
// idempotent.
func (s Stage) CanTransition(next Stage) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	if next == StageUnsubscribed {
		return true
	}
	return order[next] > order[s]
}
