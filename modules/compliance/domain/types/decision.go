package types

// DenyReason is the single reason attached to a denied decision.
// The first failing gate wins; a decision never carries more than one.
type DenyReason string

const (
	DenyFeatureDisabled      DenyReason = "feature_disabled"
	DenyVerificationRequired DenyReason = "verification_required"
	DenyInvalidTransition    DenyReason = "invalid_transition"
	DenySlaBreached          DenyReason = "sla_breached"

	// Pass-throughs of underlying component failures.
	DenyPolicyNotFound       DenyReason = "policy_not_found"
	DenyInvalidScope         DenyReason = "invalid_scope"
	DenyStoreUnavailable     DenyReason = "store_unavailable"
	DenyInvalidSlaConfig     DenyReason = "invalid_sla_configuration"
	DenyRuleEvaluationFailed DenyReason = "rule_evaluation_failed"
)

// ActionRequest describes a caller's intent to mutate an entity. Empty
// fields skip the corresponding gate: no FeatureKey skips the flag gate,
// no Entity skips transition checking, a nil Sla skips SLA posture.
type ActionRequest struct {
	Scope               Scope
	FeatureKey          string
	VerificationKey     string
	VerificationContext map[string]string
	Entity              EntityType
	CurrentStatus       string
	TargetStatus        string
	Sla                 *SlaSubject
}

// Decision is the facade's answer: allowed, or denied with exactly one
// reason. Degraded marks decisions computed from a stale configuration
// snapshot.
type Decision struct {
	Allowed  bool
	Reason   DenyReason
	Detail   string
	Degraded bool
	Sla      *SlaEvaluation
}

func Allowed() Decision {
	return Decision{Allowed: true}
}

func Denied(reason DenyReason, detail string) Decision {
	return Decision{Reason: reason, Detail: detail}
}
