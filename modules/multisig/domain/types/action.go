package types

import "slices"

type ActionID int64

type Action struct {
	ID          ActionID   `json:"id"`
	Target      Identity   `json:"target"`
	Description string     `json:"description"`
	Payload     []byte     `json:"payload"`
	Approvals   []Identity `json:"approvals"`
	Executed    bool       `json:"executed"`
}

func (a Action) ApprovalCount() int { return len(a.Approvals) }

func (a Action) HasApproved(id Identity) bool {
	return slices.Contains(a.Approvals, id)
}

// Clone returns a deep copy so callers never share slices with the ledger.
func (a Action) Clone() Action {
	out := a
	out.Payload = slices.Clone(a.Payload)
	out.Approvals = slices.Clone(a.Approvals)
	return out
}
