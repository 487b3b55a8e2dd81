package server

import (
	"net/http"
	"strings"

	"github.com/mvoka/fieldline/internal/routing"
)

const (
	principalIDHeader   = "X-Principal-Id"
	principalRoleHeader = "X-Principal-Role"
)

// withTenancy resolves the tenant from the request host and attaches the
// gateway-asserted principal. Requests for unknown hosts never reach a
// handler.
func withTenancy(classifier *routing.Classifier, tenants map[string]Tenant, next http.Handler) http.Handler {
	hosts := newHostResolver()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := routing.RouteClassUnknown
		if classifier != nil {
			rc = classifier.Classify(path)
		}

		if path == "/health" || path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		t, ok := tenants[hosts.effectiveHost(r)]
		if !ok {
			routing.WriteError(w, r, rc, http.StatusNotFound, "tenant_not_found", "tenant not found")
			return
		}
		ctx := withTenant(r.Context(), t)

		if p, ok := principalFromHeaders(r); ok {
			ctx = withPrincipal(ctx, p)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFromHeaders(r *http.Request) (Principal, bool) {
	role := strings.ToLower(strings.TrimSpace(r.Header.Get(principalRoleHeader)))
	if role == "" {
		return Principal{}, false
	}
	return Principal{
		ID:       strings.TrimSpace(r.Header.Get(principalIDHeader)),
		RoleSlug: role,
	}, true
}
