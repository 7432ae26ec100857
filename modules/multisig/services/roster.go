package services

import (
	"context"
	"slices"

	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
	"github.com/jacksonlee411/board-multisig/pkg/authz"
)

// SetRoster replaces the whole board with members. Only the roster authority
// may call it. Duplicates collapse to their first occurrence.
func (e *Engine) SetRoster(ctx context.Context, caller types.Identity, members []types.Identity) error {
	caller = types.NormalizeIdentity(string(caller))

	e.mu.Lock()
	defer e.mu.Unlock()

	role := e.memberRole(caller)
	if caller == e.authority {
		role = authz.RoleRosterAuthority
	}
	if err := e.authorize(role, authz.ObjectMultisigRoster, authz.ActionAdmin); err != nil {
		return err
	}
	if caller != e.authority {
		return ErrUnauthorized
	}

	next, err := normalizeRoster(members)
	if err != nil {
		return err
	}

	at := e.now().UTC()
	eventUUID, err := newEventUUID(at)
	if err != nil {
		return err
	}
	ev := types.Event{
		UUID:    eventUUID,
		Seq:     e.seq + 1,
		Kind:    types.EventRosterChanged,
		At:      at,
		Members: slices.Clone(next),
	}
	if err := e.store.SaveRoster(ctx, next, ev); err != nil {
		return err
	}
	e.seq++
	e.setRosterLocked(next)
	e.publish(ctx, []types.Event{ev})
	return nil
}

func normalizeRoster(members []types.Identity) ([]types.Identity, error) {
	out := make([]types.Identity, 0, len(members))
	seen := make(map[types.Identity]struct{}, len(members))
	for _, m := range members {
		id := types.NormalizeIdentity(string(m))
		if id.IsZero() {
			return nil, ErrInvalidMember
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func (e *Engine) setRosterLocked(members []types.Identity) {
	e.roster = slices.Clone(members)
	e.members = make(map[types.Identity]struct{}, len(members))
	for _, m := range members {
		e.members[m] = struct{}{}
	}
}

func (e *Engine) isMemberLocked(id types.Identity) bool {
	_, ok := e.members[id]
	return ok
}

func (e *Engine) Roster() []types.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.roster)
}

func (e *Engine) IsMember(id types.Identity) bool {
	id = types.NormalizeIdentity(string(id))
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isMemberLocked(id)
}

func (e *Engine) Size() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.roster)
}

// CurrentThreshold is the approval count an action needs right now.
func (e *Engine) CurrentThreshold() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Threshold(len(e.roster))
}
