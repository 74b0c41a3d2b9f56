package model

import "time"

// AuditEvent is one immutable entry in the lifecycle audit trail. Replaying a
// concentrator's events in insertion order reconstructs its current state and
// location; the concentrator row is only a materialized cursor over this log.
type AuditEvent struct {
	ID           int64     `json:"id"`
	Action       Action    `json:"action"`
	OccurredAt   time.Time `json:"occurred_at"`
	PrevState    State     `json:"prev_state,omitempty"`
	NewState     State     `json:"new_state,omitempty"`
	PrevLocation string    `json:"prev_location,omitempty"`
	NewLocation  string    `json:"new_location,omitempty"`
	Comment      string    `json:"comment,omitempty"`
	Scanned      bool      `json:"scanned"`
	UserID       int64     `json:"user_id"`
	Serial       string    `json:"serial,omitempty"`
	BatchRef     string    `json:"batch_ref,omitempty"`
	SiteID       *int64    `json:"site_id,omitempty"`

	// Joined fields (not always populated).
	UserName string `json:"user_name,omitempty"`
	UserRole Role   `json:"user_role,omitempty"`
}

// Action identifies the kind of operator action recorded in the audit trail.
type Action string

// Action kinds. Scrapping keeps its historical wire value so that older
// exports stay comparable.
const (
	ActionReception    Action = "reception"
	ActionTransfer     Action = "transfer"
	ActionPose         Action = "pose"
	ActionDepose       Action = "depose"
	ActionLabTest      Action = "lab_test"
	ActionScrap        Action = "mise_au_rebut"
	ActionManualUpdate Action = "manual_update"
)

// ValidAction reports whether a is a known action kind.
func ValidAction(a Action) bool {
	switch a {
	case ActionReception, ActionTransfer, ActionPose, ActionDepose,
		ActionLabTest, ActionScrap, ActionManualUpdate:
		return true
	}
	return false
}

// Lab test results.
const (
	LabResultRepairable = "reparable"
	LabResultFaulty     = "hs"
)
