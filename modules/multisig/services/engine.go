package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/ports"
	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
	"github.com/jacksonlee411/board-multisig/pkg/authz"
	"github.com/jacksonlee411/board-multisig/pkg/httperr"
	"github.com/jacksonlee411/board-multisig/pkg/uuidv7"
)

var newEventUUID = uuidv7.NewStringAt

type Limits struct {
	MaxDescriptionLen int
	MaxPayloadBytes   int
}

type EngineOptions struct {
	BoardID      string
	Authority    types.Identity
	Store        ports.LedgerStore
	Invoker      ports.TargetInvoker
	Authorizer   ports.Authorizer
	TargetPolicy *TargetPolicy
	Observers    []EventObserver
	Limits       Limits
	Now          func() time.Time
}

// Engine owns the roster and the action ledger of one board. A single mutex
// serializes every call so each one observes all previously committed calls
// and nothing partially applied.
type Engine struct {
	mu sync.Mutex

	domain     string
	authority  types.Identity
	store      ports.LedgerStore
	invoker    ports.TargetInvoker
	authorizer ports.Authorizer
	policy     *TargetPolicy
	observers  []EventObserver
	limits     Limits
	now        func() time.Time

	roster  []types.Identity
	members map[types.Identity]struct{}
	actions []types.Action
	seq     int64

	// unconfirmed holds actions whose target call ran without the ledger
	// recording it. They accept no further approvals until a restart reloads
	// the ledger.
	unconfirmed map[types.ActionID]struct{}
}

func NewEngine(ctx context.Context, opts EngineOptions) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("multisig: store is required")
	}
	if opts.Invoker == nil {
		return nil, errors.New("multisig: target invoker is required")
	}
	authority := types.NormalizeIdentity(string(opts.Authority))
	if authority.IsZero() {
		return nil, errors.New("multisig: roster authority is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		domain:     authz.DomainFromBoardID(opts.BoardID),
		authority:  authority,
		store:      opts.Store,
		invoker:    opts.Invoker,
		authorizer: opts.Authorizer,
		policy:     opts.TargetPolicy,
		observers:  slices.Clone(opts.Observers),
		limits:     opts.Limits,
		now:        now,
		members:    map[types.Identity]struct{}{},

		unconfirmed: map[types.ActionID]struct{}{},
	}
	if err := e.restore(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) restore(ctx context.Context) error {
	state, err := e.store.LoadState(ctx)
	if err != nil {
		return err
	}
	for i, a := range state.Actions {
		if a.ID != types.ActionID(i) {
			return fmt.Errorf("multisig: ledger is not dense: position %d holds action %d", i, a.ID)
		}
	}
	e.setRosterLocked(state.Roster)
	e.actions = make([]types.Action, 0, len(state.Actions))
	for _, a := range state.Actions {
		e.actions = append(e.actions, a.Clone())
	}
	e.seq = state.LastSeq
	return nil
}

func (e *Engine) Authority() types.Identity { return e.authority }

// Propose appends a new action approved by caller and returns its id. When
// the proposer's approval alone meets the threshold the action executes in
// the same call; if that execution fails nothing is appended.
func (e *Engine) Propose(ctx context.Context, caller types.Identity, target types.Identity, description string, payload []byte) (types.ActionID, error) {
	caller = types.NormalizeIdentity(string(caller))
	target = types.NormalizeIdentity(string(target))

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authorize(e.memberRole(caller), authz.ObjectMultisigActions, authz.ActionPropose); err != nil {
		return 0, err
	}
	if !e.isMemberLocked(caller) {
		return 0, ErrUnauthorized
	}
	if target.IsZero() {
		return 0, ErrInvalidTarget
	}
	allowed, err := e.policy.Allow(target, description, payload)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	if !allowed {
		return 0, ErrInvalidTarget
	}
	if err := e.checkLimits(description, payload); err != nil {
		return 0, err
	}

	id := types.ActionID(len(e.actions))
	created := types.Action{
		ID:          id,
		Target:      target,
		Description: description,
		Payload:     slices.Clone(payload),
	}
	next, execute := advance(created, caller, len(e.roster))

	at := e.now()
	events := []types.Event{e.actionEvent(types.EventActionCreated, next, at)}
	if execute {
		events = append(events, e.actionEvent(types.EventActionExecuted, next, at))
	}
	if err := e.commit(ctx, types.MutationPropose, next, caller, events, execute); err != nil {
		return 0, err
	}
	e.actions = append(e.actions, next)
	e.publish(ctx, events)
	return id, nil
}

// Approve records caller's approval of id. It reports whether this approval
// executed the action.
func (e *Engine) Approve(ctx context.Context, caller types.Identity, id types.ActionID) (bool, error) {
	caller = types.NormalizeIdentity(string(caller))

	e.mu.Lock()
	defer e.mu.Unlock()

	if id < 0 || int(id) >= len(e.actions) {
		return false, ErrNotFound
	}
	if err := e.authorize(e.memberRole(caller), authz.ObjectMultisigActions, authz.ActionApprove); err != nil {
		return false, err
	}
	if !e.isMemberLocked(caller) {
		return false, ErrUnauthorized
	}
	current := e.actions[id]
	if current.Executed {
		return false, ErrAlreadyExecuted
	}
	if _, ok := e.unconfirmed[id]; ok {
		return false, fmt.Errorf("%w: action %d", ErrExecutionUnconfirmed, id)
	}
	if current.HasApproved(caller) {
		return false, ErrAlreadyApproved
	}

	next, execute := advance(current, caller, len(e.roster))

	at := e.now()
	approval := e.actionEvent(types.EventApproval, next, at)
	approval.Target, approval.Description, approval.Payload = "", "", nil
	approval.Approver = caller
	events := []types.Event{approval}
	if execute {
		events = append(events, e.actionEvent(types.EventActionExecuted, next, at))
	}
	if err := e.commit(ctx, types.MutationApprove, next, caller, events, execute); err != nil {
		return false, err
	}
	e.actions[id] = next
	e.publish(ctx, events)
	return execute, nil
}

// commit numbers the events, persists the mutation and, when execute is set,
// forwards the payload inside the store transaction. Engine state is only
// touched by the caller after commit succeeds. If the target ran but the
// store could not commit, the action is marked unconfirmed so no later
// approval can call the target again.
func (e *Engine) commit(ctx context.Context, kind types.MutationKind, next types.Action, approver types.Identity, events []types.Event, execute bool) error {
	for i := range events {
		eventUUID, err := newEventUUID(events[i].At)
		if err != nil {
			return err
		}
		events[i].UUID = eventUUID
		events[i].Seq = e.seq + int64(i) + 1
	}

	var effect func(context.Context) error
	if execute {
		target, payload := next.Target, slices.Clone(next.Payload)
		effect = func(ctx context.Context) error {
			if err := e.invoker.Invoke(ctx, target, payload); err != nil {
				return fmt.Errorf("%w: %w", ErrExecutionFailed, err)
			}
			return nil
		}
	}

	m := types.Mutation{Kind: kind, Action: next.Clone(), Approver: approver, Events: events}
	if err := e.store.CommitMutation(ctx, m, effect); err != nil {
		if execute && errors.Is(err, ports.ErrEffectUnrecorded) {
			if kind == types.MutationApprove {
				e.unconfirmed[next.ID] = struct{}{}
			}
			return fmt.Errorf("%w: %w", ErrExecutionUnconfirmed, err)
		}
		return err
	}
	e.seq += int64(len(events))
	return nil
}

func (e *Engine) publish(ctx context.Context, events []types.Event) {
	for _, ev := range events {
		for _, o := range e.observers {
			o.Observe(ctx, ev)
		}
	}
}

func (e *Engine) actionEvent(kind types.EventKind, a types.Action, at time.Time) types.Event {
	id := a.ID
	return types.Event{
		Kind:        kind,
		At:          at.UTC(),
		ActionID:    &id,
		Target:      a.Target,
		Description: a.Description,
		Payload:     slices.Clone(a.Payload),
	}
}

func (e *Engine) checkLimits(description string, payload []byte) error {
	if e.limits.MaxDescriptionLen > 0 && len(description) > e.limits.MaxDescriptionLen {
		return httperr.NewBadRequest("description too long")
	}
	if e.limits.MaxPayloadBytes > 0 && len(payload) > e.limits.MaxPayloadBytes {
		return httperr.NewBadRequest("payload too large")
	}
	return nil
}

func (e *Engine) authorize(role string, object string, action string) error {
	if e.authorizer == nil {
		return nil
	}
	allowed, enforced, err := e.authorizer.Authorize(authz.SubjectFromRoleSlug(role), e.domain, object, action)
	if err != nil {
		return err
	}
	if enforced && !allowed {
		return ErrUnauthorized
	}
	return nil
}

// memberRole prefers board membership over authority: the authority may also
// sit on the board.
func (e *Engine) memberRole(caller types.Identity) string {
	switch {
	case e.isMemberLocked(caller):
		return authz.RoleBoardMember
	case caller == e.authority:
		return authz.RoleRosterAuthority
	default:
		return authz.RoleAnonymous
	}
}

// RoleOf reports the authz role caller currently holds on this board.
func (e *Engine) RoleOf(caller types.Identity) string {
	caller = types.NormalizeIdentity(string(caller))
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.memberRole(caller)
}

func (e *Engine) Domain() string { return e.domain }
