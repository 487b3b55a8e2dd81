package server

import (
	"net/http"
	"strings"

	"github.com/mvoka/fieldline/internal/routing"
	"github.com/mvoka/fieldline/modules/compliance/domain/types"
	"github.com/mvoka/fieldline/modules/compliance/services"
	"github.com/mvoka/fieldline/pkg/httperr"
)

type overrideDTO struct {
	OverrideID string   `json:"override_id"`
	Scope      scopeDTO `json:"scope"`
	Value      string   `json:"value"`
	ScopeName  string   `json:"scope_name,omitempty"`
}

type policyDTO struct {
	Key          string        `json:"key"`
	Category     string        `json:"category"`
	DefaultValue string        `json:"default_value"`
	Description  string        `json:"description,omitempty"`
	Overrides    []overrideDTO `json:"overrides"`
}

type policiesResponse struct {
	Policies []policyDTO `json:"policies"`
	Degraded bool        `json:"degraded"`
}

func handlePoliciesListAPI(w http.ResponseWriter, r *http.Request, resolver *services.ScopeResolver) {
	policies, degraded, err := resolver.ListPolicies(r.Context())
	if err != nil {
		writeComplianceAPIError(w, r, err)
		return
	}

	category := types.PolicyCategory(strings.TrimSpace(r.URL.Query().Get("category")))
	out := policiesResponse{Policies: make([]policyDTO, 0, len(policies)), Degraded: degraded}
	for _, p := range policies {
		if category != "" && p.Category != category {
			continue
		}
		dto := policyDTO{
			Key:          p.Key,
			Category:     string(p.Category),
			DefaultValue: p.DefaultValue,
			Description:  p.Description,
			Overrides:    make([]overrideDTO, 0, len(p.Overrides)),
		}
		for _, o := range p.Overrides {
			dto.Overrides = append(dto.Overrides, overrideDTO{
				OverrideID: o.ID,
				Scope:      scopeToDTO(o.Scope()),
				Value:      o.Value,
				ScopeName:  o.ScopeName,
			})
		}
		out.Policies = append(out.Policies, dto)
	}

	routing.WriteJSON(w, http.StatusOK, out)
}

type resolveResponse struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Source      string `json:"source"`
	SourceLevel string `json:"source_level"`
	Degraded    bool   `json:"degraded"`
}

func handlePolicyResolveAPI(w http.ResponseWriter, r *http.Request, resolver *services.ScopeResolver) {
	q := r.URL.Query()
	key := strings.TrimSpace(q.Get("key"))
	if key == "" {
		writeComplianceAPIError(w, r, httperr.NewBadRequest("key required"))
		return
	}
	scope := scopeDTO{Tag: q.Get("scope_type"), ID: q.Get("scope_id")}.toScope()

	res, err := resolver.Resolve(r.Context(), key, scope)
	if err != nil {
		writeComplianceAPIError(w, r, err)
		return
	}

	routing.WriteJSON(w, http.StatusOK, resolveResponse{
		Key:         res.Key,
		Value:       res.Value,
		Source:      res.Source.String(),
		SourceLevel: string(res.Source.Level),
		Degraded:    res.Degraded,
	})
}
