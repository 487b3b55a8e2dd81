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

type slaSubjectDTO struct {
	StartedAt string `json:"started_at"`
	Tier      string `json:"tier"`
}

type authorizeRequest struct {
	Scope               scopeDTO          `json:"scope"`
	FeatureKey          string            `json:"feature_key,omitempty"`
	VerificationKey     string            `json:"verification_key,omitempty"`
	VerificationContext map[string]string `json:"verification_context,omitempty"`
	Entity              string            `json:"entity,omitempty"`
	CurrentStatus       string            `json:"current_status,omitempty"`
	TargetStatus        string            `json:"target_status,omitempty"`
	Sla                 *slaSubjectDTO    `json:"sla,omitempty"`
}

type slaEvaluationDTO struct {
	Status           string `json:"status"`
	PercentRemaining int    `json:"percent_remaining"`
	BreachMinutes    int    `json:"breach_minutes"`
	Tier             string `json:"tier"`
	TotalMinutes     int    `json:"total_minutes"`
	Degraded         bool   `json:"degraded"`
}

type decisionResponse struct {
	Allowed  bool              `json:"allowed"`
	Reason   string            `json:"reason,omitempty"`
	Detail   string            `json:"detail,omitempty"`
	Degraded bool              `json:"degraded"`
	Sla      *slaEvaluationDTO `json:"sla,omitempty"`
}

func handleAuthorizeAPI(w http.ResponseWriter, r *http.Request, engine *services.RuleEngine) {
	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorInternal(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}

	action := types.ActionRequest{
		Scope:               req.Scope.toScope(),
		FeatureKey:          strings.TrimSpace(req.FeatureKey),
		VerificationKey:     strings.TrimSpace(req.VerificationKey),
		VerificationContext: req.VerificationContext,
		Entity:              types.EntityType(strings.ToLower(strings.TrimSpace(req.Entity))),
		CurrentStatus:       strings.TrimSpace(req.CurrentStatus),
		TargetStatus:        strings.TrimSpace(req.TargetStatus),
	}
	if req.Sla != nil {
		startedAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.Sla.StartedAt))
		if err != nil {
			writeErrorInternal(w, r, http.StatusBadRequest, "invalid_request", "invalid sla.started_at")
			return
		}
		action.Sla = &types.SlaSubject{
			StartedAt: startedAt,
			Tier:      types.UrgencyTier(strings.ToUpper(strings.TrimSpace(req.Sla.Tier))),
		}
	}

	decision := engine.Authorize(r.Context(), action)
	routing.WriteJSON(w, statusForDecision(decision), decisionFromDomain(decision))
}

// statusForDecision maps deny reasons onto HTTP statuses. An SLA breach is
// advisory at this boundary: callers decide whether to block, so the body
// carries the denial but the status stays 200.
func statusForDecision(d types.Decision) int {
	if d.Allowed {
		return http.StatusOK
	}
	switch d.Reason {
	case types.DenyFeatureDisabled, types.DenyVerificationRequired:
		return http.StatusForbidden
	case types.DenyInvalidTransition, types.DenyInvalidScope:
		return http.StatusBadRequest
	case types.DenySlaBreached:
		return http.StatusOK
	case types.DenyPolicyNotFound:
		return http.StatusNotFound
	case types.DenyStoreUnavailable:
		return http.StatusServiceUnavailable
	case types.DenyInvalidSlaConfig:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decisionFromDomain(d types.Decision) decisionResponse {
	out := decisionResponse{
		Allowed:  d.Allowed,
		Reason:   string(d.Reason),
		Detail:   d.Detail,
		Degraded: d.Degraded,
	}
	if d.Sla != nil {
		dto := slaEvaluationFromDomain(*d.Sla)
		out.Sla = &dto
	}
	return out
}

// slaEvaluationFromDomain floors negative percentages at zero for display.
// The domain value stays negative so breach math is not lost internally.
func slaEvaluationFromDomain(e types.SlaEvaluation) slaEvaluationDTO {
	percent := e.PercentRemaining
	if percent < 0 {
		percent = 0
	}
	return slaEvaluationDTO{
		Status:           string(e.Status),
		PercentRemaining: percent,
		BreachMinutes:    e.BreachMinutes,
		Tier:             string(e.Tier),
		TotalMinutes:     e.TotalMinutes,
		Degraded:         e.Degraded,
	}
}
