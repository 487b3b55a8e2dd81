package services

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mvoka/fieldline/modules/compliance/domain/ports"
	"github.com/mvoka/fieldline/modules/compliance/domain/types"
)

// SLA policy keys. Per-tier budgets are configuration-resolvable so
// operators can tune windows per region or org.
const (
	SlaTotalMinutesKeyPrefix = "sla.total_minutes."
	SlaWarningThresholdKey   = "sla.warning_threshold_percent"
)

const defaultWarningThresholdPercent = 20

func SlaTotalMinutesKey(tier types.UrgencyTier) string {
	return SlaTotalMinutesKeyPrefix + strings.ToLower(string(tier))
}

type policyResolver interface {
	Resolve(ctx context.Context, key string, scope types.Scope) (types.Resolution, error)
}

// SlaMonitor classifies a job's SLA posture. It is stateless over subjects
// and reads its clock through an injected source so evaluation is
// deterministic under test.
type SlaMonitor struct {
	resolver policyResolver
	now      func() time.Time
}

func NewSlaMonitor(resolver policyResolver, now func() time.Time) *SlaMonitor {
	if now == nil {
		now = time.Now
	}
	return &SlaMonitor{resolver: resolver, now: now}
}

// Evaluate computes time-to-deadline for the subject within scope.
// remaining >= 0 classifies ON_TRACK or WARNING (at or below the warning
// threshold); remaining < 0 is BREACHED with the overrun rounded up to
// whole minutes. A non-positive budget is a configuration error, never
// "already breached".
func (m *SlaMonitor) Evaluate(ctx context.Context, subject types.SlaSubject, scope types.Scope) (types.SlaEvaluation, error) {
	if !subject.Tier.Valid() {
		return types.SlaEvaluation{}, &types.InvalidSlaConfigError{Tier: subject.Tier, Reason: "unknown urgency tier"}
	}

	budget, err := m.resolver.Resolve(ctx, SlaTotalMinutesKey(subject.Tier), scope)
	if err != nil {
		return types.SlaEvaluation{}, err
	}
	totalMinutes, err := strconv.Atoi(budget.Value)
	if err != nil {
		return types.SlaEvaluation{}, &types.InvalidSlaConfigError{Tier: subject.Tier, Reason: "total-allowed-duration is not an integer"}
	}
	if totalMinutes <= 0 {
		return types.SlaEvaluation{}, &types.InvalidSlaConfigError{Tier: subject.Tier, Reason: "total-allowed-duration must be positive"}
	}

	threshold, degraded, err := m.warningThreshold(ctx, scope)
	if err != nil {
		return types.SlaEvaluation{}, err
	}
	degraded = degraded || budget.Degraded

	total := time.Duration(totalMinutes) * time.Minute
	elapsed := m.now().Sub(subject.StartedAt)
	remaining := total - elapsed

	percent := int(math.Round(100 * remaining.Minutes() / total.Minutes()))

	eval := types.SlaEvaluation{
		Tier:             subject.Tier,
		TotalMinutes:     totalMinutes,
		PercentRemaining: percent,
		Degraded:         degraded,
	}
	if remaining < 0 {
		eval.Status = types.SlaBreached
		eval.BreachMinutes = int(math.Ceil((-remaining).Minutes()))
		return eval, nil
	}
	if percent <= threshold {
		eval.Status = types.SlaWarning
	} else {
		eval.Status = types.SlaOnTrack
	}
	return eval, nil
}

// warningThreshold resolves the configurable WARNING cutoff; an absent
// policy falls back to the 20% default rather than failing evaluation.
func (m *SlaMonitor) warningThreshold(ctx context.Context, scope types.Scope) (int, bool, error) {
	res, err := m.resolver.Resolve(ctx, SlaWarningThresholdKey, scope)
	if errors.Is(err, ports.ErrPolicyNotFound) {
		return defaultWarningThresholdPercent, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	threshold, err := strconv.Atoi(res.Value)
	if err != nil {
		return 0, false, &types.InvalidSlaConfigError{Reason: "warning threshold is not an integer"}
	}
	return threshold, res.Degraded, nil
}
