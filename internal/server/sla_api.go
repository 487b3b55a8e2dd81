package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mvoka/fieldline/internal/routing"
	"github.com/mvoka/fieldline/modules/compliance/domain/types"
	"github.com/mvoka/fieldline/modules/compliance/services"
)

type slaEvaluateRequest struct {
	Scope     scopeDTO `json:"scope"`
	StartedAt string   `json:"started_at"`
	Tier      string   `json:"tier"`
}

func handleSlaEvaluateAPI(w http.ResponseWriter, r *http.Request, monitor *services.SlaMonitor) {
	var req slaEvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorInternal(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}

	startedAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartedAt))
	if err != nil {
		writeErrorInternal(w, r, http.StatusBadRequest, "invalid_request", "invalid started_at")
		return
	}
	subject := types.SlaSubject{
		StartedAt: startedAt,
		Tier:      types.UrgencyTier(strings.ToUpper(strings.TrimSpace(req.Tier))),
	}

	eval, err := monitor.Evaluate(r.Context(), subject, req.Scope.toScope())
	if err != nil {
		writeComplianceAPIError(w, r, err)
		return
	}

	routing.WriteJSON(w, http.StatusOK, slaEvaluationFromDomain(eval))
}
