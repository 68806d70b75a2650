// Package lifecycle implements the application status state machine: a fixed
// transition table, an append-only event log, and optimistic versioning for
// concurrent updates.
package lifecycle

// Status is an application's lifecycle state
type Status string

// Application statuses
const (
	StatusPending            Status = "pending"
	StatusApplied            Status = "applied"
	StatusFollowupScheduled  Status = "followup_scheduled"
	StatusInterviewScheduled Status = "interview_scheduled"
	StatusOfferReceived      Status = "offer_received"
	StatusRejected           Status = "rejected"
	StatusWithdrawn          Status = "withdrawn"
	StatusNoResponseClosed   Status = "no_response_closed"
)

// AllStatuses lists every valid status
var AllStatuses = []Status{
	StatusPending,
	StatusApplied,
	StatusFollowupScheduled,
	StatusInterviewScheduled,
	StatusOfferReceived,
	StatusRejected,
	StatusWithdrawn,
	StatusNoResponseClosed,
}

// transitions is the full edge table. Terminal states have no entry: every
// transition out of them is invalid, as is any self-transition.
var transitions = map[Status][]Status{
	StatusPending: {StatusApplied, StatusWithdrawn},
	StatusApplied: {StatusFollowupScheduled, StatusInterviewScheduled,
		StatusRejected, StatusNoResponseClosed, StatusWithdrawn},
	StatusFollowupScheduled: {StatusInterviewScheduled, StatusRejected,
		StatusNoResponseClosed, StatusWithdrawn},
	StatusInterviewScheduled: {StatusOfferReceived, StatusRejected, StatusWithdrawn},
}

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no outgoing transitions
func IsTerminal(s Status) bool {
	return s.IsValid() && len(transitions[s]) == 0
}

// CanTransition reports whether the edge from -> to is in the table
func CanTransition(from, to Status) bool {
	for _, target := range transitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// AllowedTargets returns the valid targets from a status. Terminal states
// return nil.
func AllowedTargets(from Status) []Status {
	targets := transitions[from]
	if len(targets) == 0 {
		return nil
	}
	out := make([]Status, len(targets))
	copy(out, targets)
	return out
}
