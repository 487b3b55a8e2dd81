package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/mvoka/fieldline/internal/routing"
	"github.com/mvoka/fieldline/pkg/authz"
)

func loadAuthorizer() (*authz.Authorizer, error) {
	modelPath := os.Getenv("AUTHZ_MODEL_PATH")
	if modelPath == "" {
		p, err := defaultAuthzModelPath()
		if err != nil {
			return nil, err
		}
		modelPath = p
	}

	policyPath := os.Getenv("AUTHZ_POLICY_PATH")
	if policyPath == "" {
		p, err := defaultAuthzPolicyPath()
		if err != nil {
			return nil, err
		}
		policyPath = p
	}

	mode, err := authz.ModeFromEnv()
	if err != nil {
		return nil, err
	}

	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

func defaultAuthzModelPath() (string, error) {
	path := "config/access/model.conf"
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: authz model not found")
}

func defaultAuthzPolicyPath() (string, error) {
	path := "config/access/policy.csv"
	for i := 0; i < 8; i++ {
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

func withAuthz(classifier *routing.Classifier, a authorizer, next http.Handler) http.Handler {
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

		tenant, ok := currentTenant(r.Context())
		if !ok {
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "tenant_missing", "tenant missing")
			return
		}

		roleSlug := authz.RoleAnonymous
		if p, ok := currentPrincipal(r.Context()); ok {
			roleSlug = p.RoleSlug
		}

		subject := authz.SubjectFromRoleSlug(roleSlug)
		domain := authz.DomainFromTenantID(tenant.ID)

		object, action, shouldCheck := authzRequirementForRoute(r.Method, path)
		if !shouldCheck {
			next.ServeHTTP(w, r)
			return
		}

		allowed, enforced, err := a.Authorize(subject, domain, object, action)
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

func authzRequirementForRoute(method string, path string) (object string, action string, ok bool) {
	if routing.MatchPathTemplate(overridesRouteTemplate, path) {
		if method == http.MethodPut || method == http.MethodDelete {
			return authz.ObjectComplianceOverrides, authz.ActionAdmin, true
		}
		return "", "", false
	}

	switch path {
	case "/compliance/api/policies":
		if method == http.MethodGet {
			return authz.ObjectCompliancePolicies, authz.ActionRead, true
		}
		return "", "", false
	case "/compliance/api/policies/resolve":
		if method == http.MethodGet {
			return authz.ObjectCompliancePolicies, authz.ActionRead, true
		}
		return "", "", false
	case "/compliance/api/authorize":
		if method == http.MethodPost {
			return authz.ObjectComplianceDecisions, authz.ActionRead, true
		}
		return "", "", false
	case "/compliance/api/sla/evaluate":
		if method == http.MethodPost {
			return authz.ObjectComplianceDecisions, authz.ActionRead, true
		}
		return "", "", false
	case "/compliance/api/rules/evaluate":
		if method == http.MethodPost {
			return authz.ObjectComplianceRules, authz.ActionAdmin, true
		}
		return "", "", false
	default:
		return "", "", false
	}
}
