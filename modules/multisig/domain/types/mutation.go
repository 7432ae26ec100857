package types

type MutationKind string

const (
	MutationPropose MutationKind = "PROPOSE"
	MutationApprove MutationKind = "APPROVE"
)

// Mutation is one committed ledger change: the post-state of a single action
// and the events describing it. Approver is always the last entry of
// Action.Approvals.
type Mutation struct {
	Kind     MutationKind
	Action   Action
	Approver Identity
	Events   []Event
}

// LedgerState is everything a store hands back on restore.
type LedgerState struct {
	Roster  []Identity
	Actions []Action
	LastSeq int64
}
