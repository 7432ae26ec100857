package persistence

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/ports"
	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
)

// MemoryStore keeps the ledger in process. It is the default store when no
// database is configured and the store used by tests.
type MemoryStore struct {
	mu      sync.Mutex
	roster  []types.Identity
	actions []types.Action
	events  []types.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

var _ ports.LedgerStore = (*MemoryStore)(nil)

func (s *MemoryStore) LoadState(context.Context) (types.LedgerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := types.LedgerState{Roster: slices.Clone(s.roster)}
	for _, a := range s.actions {
		state.Actions = append(state.Actions, a.Clone())
	}
	if n := len(s.events); n > 0 {
		state.LastSeq = s.events[n-1].Seq
	}
	return state, nil
}

func (s *MemoryStore) SaveRoster(_ context.Context, members []types.Identity, event types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roster = slices.Clone(members)
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) CommitMutation(ctx context.Context, m types.Mutation, effect func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m.Kind {
	case types.MutationPropose:
		if int(m.Action.ID) != len(s.actions) {
			return errors.New("memory store: action id is not the next ledger position")
		}
	case types.MutationApprove:
		if m.Action.ID < 0 || int(m.Action.ID) >= len(s.actions) {
			return errors.New("memory store: action not found")
		}
	default:
		return errors.New("memory store: unknown mutation kind")
	}

	if effect != nil {
		if err := effect(ctx); err != nil {
			return err
		}
	}

	if m.Kind == types.MutationPropose {
		s.actions = append(s.actions, m.Action.Clone())
	} else {
		s.actions[m.Action.ID] = m.Action.Clone()
	}
	s.events = append(s.events, m.Events...)
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context, afterSeq int64, limit int) ([]types.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.Event, 0)
	for _, ev := range s.events {
		if ev.Seq <= afterSeq {
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, ev)
	}
	return out, nil
}
