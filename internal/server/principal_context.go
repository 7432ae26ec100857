package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jacksonlee411/board-multisig/internal/routing"
	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
)

// principalHeader carries the caller identity. It is set by the gateway that
// terminates wallet signatures in front of this service.
const principalHeader = "X-Principal"

type Principal struct {
	ID types.Identity
}

type principalContextKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

func currentPrincipal(ctx context.Context) (Principal, bool) {
	v := ctx.Value(principalContextKey{})
	if v == nil {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

func currentPrincipalID(ctx context.Context) (types.Identity, bool) {
	p, ok := currentPrincipal(ctx)
	if !ok {
		return "", false
	}
	return p.ID, true
}

// withPrincipalHeader attaches the X-Principal caller to the request context.
// A missing header leaves the request anonymous; a present but zero identity
// is rejected.
func withPrincipalHeader(classifier *routing.Classifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(principalHeader))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id := types.NormalizeIdentity(raw)
		if id.IsZero() {
			rc := routing.RouteClassInternalAPI
			if classifier != nil {
				rc = classifier.Classify(r.URL.Path)
			}
			routing.WriteError(w, r, rc, http.StatusUnauthorized, "invalid_principal", "invalid principal")
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), Principal{ID: id})))
	})
}
