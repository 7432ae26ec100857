package ports

import (
	"context"
	"errors"

	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
)

// ErrEffectUnrecorded reports that the effect passed to CommitMutation ran
// but the mutation could not be committed afterwards.
var ErrEffectUnrecorded = errors.New("ledger: effect ran but the mutation was not committed")

type LedgerStore interface {
	LoadState(ctx context.Context) (types.LedgerState, error)
	SaveRoster(ctx context.Context, members []types.Identity, event types.Event) error
	// CommitMutation persists m and runs effect before committing. An effect
	// error rolls back everything written for m. A commit failure after a
	// non-nil effect succeeded wraps ErrEffectUnrecorded.
	CommitMutation(ctx context.Context, m types.Mutation, effect func(ctx context.Context) error) error
	ListEvents(ctx context.Context, afterSeq int64, limit int) ([]types.Event, error)
}
