package services

import "github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"

// Threshold is ceil(rosterSize/2).
func Threshold(rosterSize int) int {
	if rosterSize <= 0 {
		return 0
	}
	return (rosterSize + 1) / 2
}

// advance is the only transition of an action: it records approver and, when
// the approval count reaches the threshold of the live roster size, marks the
// action executed. The caller must run the target call for execute=true and
// discard next if that call fails.
func advance(a types.Action, approver types.Identity, rosterSize int) (next types.Action, execute bool) {
	next = a.Clone()
	next.Approvals = append(next.Approvals, approver)
	if next.ApprovalCount() >= Threshold(rosterSize) {
		next.Executed = true
		execute = true
	}
	return next, execute
}
