package types

import "time"

type EventKind string

const (
	EventRosterChanged  EventKind = "ROSTER_CHANGED"
	EventActionCreated  EventKind = "ACTION_CREATED"
	EventApproval       EventKind = "APPROVAL"
	EventActionExecuted EventKind = "ACTION_EXECUTED"
)

type Event struct {
	UUID        string     `json:"event_uuid"`
	Seq         int64      `json:"seq"`
	Kind        EventKind  `json:"kind"`
	At          time.Time  `json:"at"`
	ActionID    *ActionID  `json:"action_id,omitempty"`
	Target      Identity   `json:"target,omitempty"`
	Description string     `json:"description,omitempty"`
	Payload     []byte     `json:"payload,omitempty"`
	Approver    Identity   `json:"approver,omitempty"`
	Members     []Identity `json:"members,omitempty"`
}
