package targets

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/ports"
	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
)

var ErrUnknownTarget = errors.New("target not registered")

// TargetFunc is an in-process target. It receives the payload exactly as it
// was proposed.
type TargetFunc func(ctx context.Context, payload []byte) error

// Registry dispatches to in-process targets keyed by identity.
type Registry struct {
	mu      sync.RWMutex
	targets map[types.Identity]TargetFunc
}

func NewRegistry() *Registry {
	return &Registry{targets: map[types.Identity]TargetFunc{}}
}

var _ ports.TargetInvoker = (*Registry)(nil)

func (r *Registry) Register(id types.Identity, fn TargetFunc) error {
	id = types.NormalizeIdentity(string(id))
	if id.IsZero() {
		return errors.New("targets: zero identity")
	}
	if fn == nil {
		return errors.New("targets: nil target func")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.targets[id]; exists {
		return fmt.Errorf("targets: %s already registered", id)
	}
	r.targets[id] = fn
	return nil
}

func (r *Registry) Has(id types.Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.targets[id]
	return ok
}

func (r *Registry) Invoke(ctx context.Context, target types.Identity, payload []byte) error {
	r.mu.RLock()
	fn, ok := r.targets[target]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}
	return fn(ctx, payload)
}

// Chain tries each invoker in order and moves on only when one reports
// ErrUnknownTarget.
type Chain []ports.TargetInvoker

func (c Chain) Invoke(ctx context.Context, target types.Identity, payload []byte) error {
	for _, inv := range c {
		err := inv.Invoke(ctx, target, payload)
		if errors.Is(err, ErrUnknownTarget) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %s", ErrUnknownTarget, target)
}
