package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jacksonlee411/board-multisig/internal/routing"
	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
	"github.com/jacksonlee411/board-multisig/pkg/authz"
)

// loadAuthorizer prefers AUTHZ_MODEL_PATH/AUTHZ_POLICY_PATH, then the files
// under config/access, then the policy compiled into pkg/authz.
func loadAuthorizer() (*authz.Authorizer, error) {
	mode, err := authz.ModeFromEnv()
	if err != nil {
		return nil, err
	}

	modelPath := os.Getenv("AUTHZ_MODEL_PATH")
	policyPath := os.Getenv("AUTHZ_POLICY_PATH")
	if modelPath == "" && policyPath == "" {
		m, mErr := defaultAuthzModelPath()
		p, pErr := defaultAuthzPolicyPath()
		if mErr != nil || pErr != nil {
			return authz.NewDefaultAuthorizer(mode)
		}
		modelPath, policyPath = m, p
	}
	if modelPath == "" || policyPath == "" {
		return nil, errors.New("server: AUTHZ_MODEL_PATH and AUTHZ_POLICY_PATH must be set together")
	}
	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

func defaultAuthzModelPath() (string, error) {
	path := "config/access/model.conf"
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: authz model not found")
}

func defaultAuthzPolicyPath() (string, error) {
	path := "config/access/policy.csv"
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: authz policy not found")
}

type authorizer interface {
	Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error)
}

type roleResolver interface {
	RoleOf(caller types.Identity) string
	Domain() string
}

// withAuthz gates reads. Writes are authorized by the engine under its lock,
// since the caller's role depends on the roster at that moment.
func withAuthz(classifier *routing.Classifier, a authorizer, roles roleResolver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := routing.RouteClassInternalAPI
		if classifier != nil {
			rc = classifier.Classify(path)
		}

		object, action, shouldCheck := authzRequirementForRoute(r.Method, path)
		if !shouldCheck {
			next.ServeHTTP(w, r)
			return
		}

		roleSlug := authz.RoleAnonymous
		if id, ok := currentPrincipalID(r.Context()); ok {
			roleSlug = roles.RoleOf(id)
		}

		allowed, enforced, err := a.Authorize(authz.SubjectFromRoleSlug(roleSlug), roles.Domain(), object, action)
		if err != nil {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if enforced && !allowed {
			routing.WriteError(w, r, rc, http.StatusForbidden, "forbidden", "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

var actionReadRoutes = []routing.PathPattern{
	mustPathPattern("/multisig/api/actions/{id}"),
	mustPathPattern("/multisig/api/actions/{id}/approvers"),
}

func authzRequirementForRoute(method string, path string) (object string, action string, ok bool) {
	if method != http.MethodGet {
		return "", "", false
	}
	switch path {
	case "/multisig/api/roster":
		return authz.ObjectMultisigRoster, authz.ActionRead, true
	case "/multisig/api/actions":
		return authz.ObjectMultisigActions, authz.ActionRead, true
	case "/multisig/api/events":
		return authz.ObjectMultisigEvents, authz.ActionRead, true
	}
	for _, p := range actionReadRoutes {
		if p.Match(path) {
			return authz.ObjectMultisigActions, authz.ActionRead, true
		}
	}
	return "", "", false
}

func mustPathPattern(raw string) routing.PathPattern {
	p, ok := routing.ParsePathPattern(raw)
	if !ok {
		panic("server: invalid path pattern " + raw)
	}
	return p
}
