package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mvoka/fieldline/internal/routing"
	"github.com/mvoka/fieldline/modules/compliance/domain/ports"
	"github.com/mvoka/fieldline/modules/compliance/infrastructure/persistence"
	"github.com/mvoka/fieldline/modules/compliance/services"
)

func NewHandler() (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{})
}

type HandlerOptions struct {
	Tenants     map[string]Tenant
	Authorizer  authorizer
	ConfigStore ports.ConfigStore
	Resolver    *services.ScopeResolver
	SkipSlaSeed bool
	// BaseContext bounds the background work the handler starts itself,
	// in particular the refresh loop of a handler-owned resolver. Nil
	// means context.Background: the loop then runs for process life.
	// Callers that inject Resolver own its refresh loop and lifetime.
	BaseContext context.Context
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}

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

	classifier, err := routing.NewClassifier(a, "compliance")
	if err != nil {
		return nil, err
	}

	store := opts.ConfigStore
	if store == nil {
		pool, err := pgxpool.New(baseCtx, DBDSNFromEnv())
		if err != nil {
			return nil, err
		}
		store = persistence.NewPolicyPGStore(pool)
	}

	if !opts.SkipSlaSeed {
		seed, err := loadSlaSeed()
		if err != nil {
			return nil, err
		}
		if err := seedSlaPolicies(baseCtx, store, seed); err != nil {
			return nil, err
		}
	}

	resolver := opts.Resolver
	if resolver == nil {
		resolver = services.NewScopeResolver(store, services.ResolverConfig{
			RefreshInterval: RefreshIntervalFromEnv(),
		})
		go resolver.Run(baseCtx)
	}

	monitor := services.NewSlaMonitor(resolver, nil)
	engine, err := services.NewRuleEngine(resolver, monitor)
	if err != nil {
		return nil, err
	}

	tenants := opts.Tenants
	if tenants == nil {
		t, err := loadTenants()
		if err != nil {
			return nil, err
		}
		tenants = t
	}

	authorizer := opts.Authorizer
	if authorizer == nil {
		az, err := loadAuthorizer()
		if err != nil {
			return nil, err
		}
		authorizer = az
	}

	router := routing.NewRouter(classifier)

	router.Handle(routing.RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))
	router.Handle(routing.RouteClassOps, http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/compliance/api/policies", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePoliciesListAPI(w, r, resolver)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/compliance/api/policies/resolve", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePolicyResolveAPI(w, r, resolver)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPut, overridesRouteTemplate, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleOverridePutAPI(w, r, resolver)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodDelete, overridesRouteTemplate, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleOverrideDeleteAPI(w, r, resolver)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/compliance/api/authorize", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleAuthorizeAPI(w, r, engine)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/compliance/api/sla/evaluate", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleSlaEvaluateAPI(w, r, monitor)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/compliance/api/rules/evaluate", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleRulesEvaluateAPI(w, r)
	}))

	return withTenancy(classifier, tenants, withAuthz(classifier, authorizer, router)), nil
}

// RefreshIntervalFromEnv reads RESOLVER_REFRESH_SECONDS; zero lets the
// resolver apply its default.
func RefreshIntervalFromEnv() time.Duration {
	raw := os.Getenv("RESOLVER_REFRESH_SECONDS")
	if raw == "" {
		return 0
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func defaultAllowlistPath() (string, error) {
	path := "config/routing/allowlist.yaml"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: allowlist not found")
}
