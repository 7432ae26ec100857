package ports

import (
	"context"

	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
)

// TargetInvoker forwards an opaque payload to the target. Only success or
// failure is observed; return values are discarded.
type TargetInvoker interface {
	Invoke(ctx context.Context, target types.Identity, payload []byte) error
}

type Authorizer interface {
	Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error)
}
