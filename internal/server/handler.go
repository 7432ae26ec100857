package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jacksonlee411/board-multisig/internal/routing"
	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/ports"
	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
	"github.com/jacksonlee411/board-multisig/modules/multisig/infrastructure/persistence"
	"github.com/jacksonlee411/board-multisig/modules/multisig/infrastructure/targets"
	"github.com/jacksonlee411/board-multisig/modules/multisig/presentation/controllers"
	"github.com/jacksonlee411/board-multisig/modules/multisig/services"
)

const entrypointServer = "server"

func NewHandler() (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{})
}

type HandlerOptions struct {
	Store      ports.LedgerStore
	Invoker    ports.TargetInvoker
	Targets    *targets.Registry
	Authorizer authorizer
	Logger     *slog.Logger
	Now        func() time.Time
}

var openLedgerStore = newLedgerStoreFromEnv

func NewHandlerWithOptions(opts HandlerOptions) (_ http.Handler, err error) {
	allowlistPath := os.Getenv("ALLOWLIST_PATH")
	if allowlistPath == "" {
		p, err := defaultAllowlistPath()
		if err != nil {
			return nil, err
		}
		allowlistPath = p
	}

	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}

	classifier, err := routing.NewClassifier(a, entrypointServer)
	if err != nil {
		return nil, err
	}

	cfg, err := multisigConfigFromEnv()
	if err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		var closeStore func()
		store, closeStore, err = openLedgerStore(context.Background(), cfg.BoardID)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err != nil {
				closeStore()
			}
		}()
	}

	invoker := opts.Invoker
	if invoker == nil {
		chain := targets.Chain{}
		if opts.Targets != nil {
			chain = append(chain, opts.Targets)
		}
		invoker = append(chain, cfg.httpInvoker())
	}

	policy, err := services.CompileTargetPolicy(cfg.TargetPolicy, cfg.targetIDs())
	if err != nil {
		return nil, err
	}

	authorizer := opts.Authorizer
	if authorizer == nil {
		az, err := loadAuthorizer()
		if err != nil {
			return nil, err
		}
		authorizer = az
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine, err := services.NewEngine(context.Background(), services.EngineOptions{
		BoardID:      cfg.BoardID,
		Authority:    types.NormalizeIdentity(cfg.RosterAuthority),
		Store:        store,
		Invoker:      invoker,
		Authorizer:   authorizer,
		TargetPolicy: policy,
		Observers:    []services.EventObserver{services.NewSlogObserver(logger)},
		Limits:       cfg.limits(),
		Now:          opts.Now,
	})
	if err != nil {
		return nil, err
	}

	router := routing.NewRouter(classifier)
	reg := routeRegistrar{allowlist: a, router: router}

	health := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	reg.handle(routing.RouteClassOps, http.MethodGet, "/health", health)
	reg.handle(routing.RouteClassOps, http.MethodGet, "/healthz", health)

	c := controllers.MultisigController{
		Principal:    currentPrincipalID,
		Service:      engine,
		MaxPageLimit: cfg.Page.MaxLimit,
		Logger:       logger,
	}
	api := routing.RouteClassInternalAPI
	reg.handle(api, http.MethodGet, "/multisig/api/roster", http.HandlerFunc(c.HandleRosterAPI))
	reg.handle(api, http.MethodPut, "/multisig/api/roster", http.HandlerFunc(c.HandleRosterAPI))
	reg.handle(api, http.MethodGet, "/multisig/api/actions", http.HandlerFunc(c.HandleActionsAPI))
	reg.handle(api, http.MethodPost, "/multisig/api/actions", http.HandlerFunc(c.HandleActionsAPI))
	reg.handle(api, http.MethodGet, "/multisig/api/actions/{id}", http.HandlerFunc(c.HandleActionAPI))
	reg.handle(api, http.MethodGet, "/multisig/api/actions/{id}/approvers", http.HandlerFunc(c.HandleApproversAPI))
	reg.handle(api, http.MethodPost, "/multisig/api/actions/{id}/approvals", http.HandlerFunc(c.HandleApprovalsAPI))
	reg.handle(api, http.MethodGet, "/multisig/api/events", http.HandlerFunc(c.HandleEventsAPI))
	if reg.err != nil {
		return nil, reg.err
	}

	return withPrincipalHeader(classifier, withAuthz(classifier, authorizer, engine, router)), nil
}

// routeRegistrar refuses routes the allowlist does not declare.
type routeRegistrar struct {
	allowlist routing.Allowlist
	router    *routing.Router
	err       error
}

func (r *routeRegistrar) handle(rc routing.RouteClass, method string, path string, h http.Handler) {
	if !r.allowlist.Allows(entrypointServer, method, path) {
		r.err = errors.Join(r.err, fmt.Errorf("server: route %s %s missing from allowlist", method, path))
		return
	}
	r.router.Handle(rc, method, path, h)
}

// newLedgerStoreFromEnv opens the configured store. The returned func
// releases what the store holds.
func newLedgerStoreFromEnv(ctx context.Context, boardID string) (ports.LedgerStore, func(), error) {
	kind, err := storeKindFromEnv()
	if err != nil {
		return nil, nil, err
	}
	if kind == "memory" {
		return persistence.NewMemoryStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, dbDSNFromEnv())
	if err != nil {
		return nil, nil, err
	}
	s := persistence.NewMultisigPGStore(pool, boardID)
	if os.Getenv("MULTISIG_AUTO_MIGRATE") == "1" {
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return s, pool.Close, nil
}

func defaultAllowlistPath() (string, error) {
	path := "config/routing/allowlist.yaml"
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: allowlist not found")
}
