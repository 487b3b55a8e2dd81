package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mvoka/fieldline/internal/routing"
	"github.com/mvoka/fieldline/modules/compliance/domain/ports"
	"github.com/mvoka/fieldline/modules/compliance/domain/types"
	"github.com/mvoka/fieldline/pkg/httperr"
)

type scopeDTO struct {
	Tag string `json:"tag"`
	ID  string `json:"id,omitempty"`
}

func (d scopeDTO) toScope() types.Scope {
	return types.Scope{
		Tag: types.ScopeTag(strings.ToUpper(strings.TrimSpace(d.Tag))),
		ID:  strings.TrimSpace(d.ID),
	}.OrGlobal()
}

func scopeToDTO(s types.Scope) scopeDTO {
	return scopeDTO{Tag: string(s.Tag), ID: s.ID}
}

func writeComplianceAPIError(w http.ResponseWriter, r *http.Request, err error) {
	var scopeErr *types.InvalidScopeError
	var slaErr *types.InvalidSlaConfigError
	switch {
	case errors.Is(err, ports.ErrPolicyNotFound):
		writeErrorInternal(w, r, http.StatusNotFound, "policy_not_found", err.Error())
	case errors.Is(err, ports.ErrStoreUnavailable):
		writeErrorInternal(w, r, http.StatusServiceUnavailable, "store_unavailable", err.Error())
	case errors.As(err, &scopeErr):
		writeErrorInternal(w, r, http.StatusBadRequest, "invalid_scope", err.Error())
	case errors.As(err, &slaErr):
		writeErrorInternal(w, r, http.StatusUnprocessableEntity, "invalid_sla_configuration", err.Error())
	case httperr.IsBadRequest(err):
		writeErrorInternal(w, r, http.StatusBadRequest, "bad_request", err.Error())
	case httperr.IsNotFound(err):
		writeErrorInternal(w, r, http.StatusNotFound, "not_found", err.Error())
	default:
		writeErrorInternal(w, r, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeErrorInternal(w http.ResponseWriter, r *http.Request, status int, code string, msg string) {
	routing.WriteError(w, r, routing.RouteClassInternalAPI, status, code, msg)
}
