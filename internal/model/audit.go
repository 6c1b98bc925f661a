package model

import "time"

// AuditAction names the kind of change recorded in the audit log.
type AuditAction string

const (
	AuditUpdateAccepted AuditAction = "update_accepted"
	AuditUpdateRejected AuditAction = "update_rejected"
)

// AuditActionFor returns the audit action recorded for a decision.
func AuditActionFor(d Decision) AuditAction {
	if d == DecisionAccept {
		return AuditUpdateAccepted
	}
	return AuditUpdateRejected
}

// AuditEntry is an append-only record of one resolved PendingUpdate.
type AuditEntry struct {
	ID        string      `json:"id"`
	Action    AuditAction `json:"action"`
	ItemName  string      `json:"item_name"`
	OldValue  *float64    `json:"old_value"`
	NewValue  float64     `json:"new_value"`
	UpdateID  string      `json:"update_id,omitempty"`
	ManagerID string      `json:"manager_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
