package services

import (
	"context"
	"slices"

	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
)

// Actions returns up to limit actions starting at offset, in id order. An
// offset past the end yields an empty page.
func (e *Engine) Actions(offset int, limit int) ([]types.Action, error) {
	if offset < 0 || limit < 0 {
		return nil, ErrInvalidPage
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if offset >= len(e.actions) {
		return []types.Action{}, nil
	}
	end := offset + min(limit, len(e.actions)-offset)
	out := make([]types.Action, 0, end-offset)
	for _, a := range e.actions[offset:end] {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (e *Engine) ActionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.actions)
}

func (e *Engine) Action(id types.ActionID) (types.Action, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.actionLocked(id)
	if err != nil {
		return types.Action{}, err
	}
	return a.Clone(), nil
}

func (e *Engine) ApprovalCount(id types.ActionID) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.actionLocked(id)
	if err != nil {
		return 0, err
	}
	return a.ApprovalCount(), nil
}

func (e *Engine) IsExecuted(id types.ActionID) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.actionLocked(id)
	if err != nil {
		return false, err
	}
	return a.Executed, nil
}

func (e *Engine) Approvers(id types.ActionID) ([]types.Identity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.actionLocked(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(a.Approvals), nil
}

// Events reads the committed audit trail from the store.
func (e *Engine) Events(ctx context.Context, afterSeq int64, limit int) ([]types.Event, error) {
	if afterSeq < 0 || limit < 0 {
		return nil, ErrInvalidPage
	}
	return e.store.ListEvents(ctx, afterSeq, limit)
}

func (e *Engine) actionLocked(id types.ActionID) (types.Action, error) {
	if id < 0 || int(id) >= len(e.actions) {
		return types.Action{}, ErrNotFound
	}
	return e.actions[id], nil
}
