package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// UpdateStatus is the lifecycle state of a PendingUpdate.
type UpdateStatus string

const (
	UpdateStatusPending  UpdateStatus = "pending"
	UpdateStatusAccepted UpdateStatus = "accepted"
	UpdateStatusRejected UpdateStatus = "rejected"
)

// Decision is an operator's verdict on a PendingUpdate.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// DecisionFromBool maps the accept flag used by the review API to a Decision.
func DecisionFromBool(accept bool) Decision {
	if accept {
		return DecisionAccept
	}
	return DecisionReject
}

// ErrInvalidTransition is returned when a decision is applied to a status
// that does not allow it.
var ErrInvalidTransition = eris.New("invalid status transition")

// transitions lists every legal edge of the state machine. Terminal states
// have no outgoing edges.
var transitions = map[UpdateStatus]map[Decision]UpdateStatus{
	UpdateStatusPending: {
		DecisionAccept: UpdateStatusAccepted,
		DecisionReject: UpdateStatusRejected,
	},
}

// Apply returns the status reached by applying d to s.
func (s UpdateStatus) Apply(d Decision) (UpdateStatus, error) {
	next, ok := transitions[s][d]
	if !ok {
		return s, eris.Wrapf(ErrInvalidTransition, "%s on %s", d, s)
	}
	return next, nil
}

// IsTerminal reports whether no further transition is possible from s.
func (s UpdateStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether s is a known status.
func (s UpdateStatus) Valid() bool {
	switch s {
	case UpdateStatusPending, UpdateStatusAccepted, UpdateStatusRejected:
		return true
	default:
		return false
	}
}

// PendingUpdate is a persisted, reviewable change proposal awaiting an
// operator decision.
type PendingUpdate struct {
	ID            string       `json:"id"`
	DetectedItem  string       `json:"detected_item"`
	CurrentRate   *float64     `json:"current_db_val"` // snapshot at detection; nil if the item was unknown
	ProposedRate  float64      `json:"new_web_val"`
	EvidencePath  string       `json:"evidence_pdf_path"`
	EvidenceQuote string       `json:"evidence_quote"`
	Status        UpdateStatus `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Resolution is the outcome of applying a Decision to a PendingUpdate.
type Resolution struct {
	UpdateID  string       `json:"id"`
	OldStatus UpdateStatus `json:"old_status"`
	NewStatus UpdateStatus `json:"new_status"`
	Audit     AuditEntry   `json:"audit"`
}
