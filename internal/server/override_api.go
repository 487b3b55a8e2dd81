package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mvoka/fieldline/internal/routing"
	"github.com/mvoka/fieldline/modules/compliance/domain/types"
	"github.com/mvoka/fieldline/modules/compliance/services"
	"github.com/mvoka/fieldline/pkg/httperr"
)

const overridesRouteTemplate = "/compliance/api/policies/{key}/overrides"

type putOverrideRequest struct {
	Scope     scopeDTO `json:"scope"`
	Value     string   `json:"value"`
	ScopeName string   `json:"scope_name,omitempty"`
}

type putOverrideResponse struct {
	OverrideID string   `json:"override_id"`
	PolicyKey  string   `json:"policy_key"`
	Scope      scopeDTO `json:"scope"`
	Value      string   `json:"value"`
	ScopeName  string   `json:"scope_name,omitempty"`
}

func handleOverridePutAPI(w http.ResponseWriter, r *http.Request, resolver *services.ScopeResolver) {
	key, ok := routing.PathParam(overridesRouteTemplate, r.URL.Path, "key")
	if !ok {
		writeErrorInternal(w, r, http.StatusNotFound, "not_found", "not found")
		return
	}

	var req putOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorInternal(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if strings.TrimSpace(req.Value) == "" {
		writeComplianceAPIError(w, r, httperr.NewBadRequest("value required"))
		return
	}

	scope := req.Scope.toScope()
	written, err := resolver.PutOverride(r.Context(), types.Override{
		PolicyKey: key,
		Tag:       scope.Tag,
		ScopeID:   scope.ID,
		Value:     strings.TrimSpace(req.Value),
		ScopeName: strings.TrimSpace(req.ScopeName),
	})
	if err != nil {
		writeComplianceAPIError(w, r, err)
		return
	}

	routing.WriteJSON(w, http.StatusOK, putOverrideResponse{
		OverrideID: written.ID,
		PolicyKey:  written.PolicyKey,
		Scope:      scopeToDTO(written.Scope()),
		Value:      written.Value,
		ScopeName:  written.ScopeName,
	})
}

type deleteOverrideRequest struct {
	Scope scopeDTO `json:"scope"`
}

func handleOverrideDeleteAPI(w http.ResponseWriter, r *http.Request, resolver *services.ScopeResolver) {
	key, ok := routing.PathParam(overridesRouteTemplate, r.URL.Path, "key")
	if !ok {
		writeErrorInternal(w, r, http.StatusNotFound, "not_found", "not found")
		return
	}

	var req deleteOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorInternal(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}

	scope := req.Scope.toScope()
	if err := resolver.DeleteOverride(r.Context(), key, scope.Tag, scope.ID); err != nil {
		writeComplianceAPIError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
