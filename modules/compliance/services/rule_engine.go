package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/mvoka/fieldline/modules/compliance/domain/ports"
	"github.com/mvoka/fieldline/modules/compliance/domain/types"
)

// RuleEngine is the single entry point callers use to authorize an action
// before mutating an entity. Gate order is fixed and observable: feature
// flag first (cheapest, most likely to short-circuit), then verification
// rule, then transition legality, then SLA posture. The first failing gate
// wins; a denied decision carries exactly one reason.
type RuleEngine struct {
	resolver *ScopeResolver
	sla      *SlaMonitor

	celEnv   *cel.Env
	programs sync.Map // expression -> cel.Program
}

func NewRuleEngine(resolver *ScopeResolver, sla *SlaMonitor) (*RuleEngine, error) {
	env, err := cel.NewEnv(cel.Variable("ctx", cel.MapType(cel.StringType, cel.StringType)))
	if err != nil {
		return nil, err
	}
	return &RuleEngine{resolver: resolver, sla: sla, celEnv: env}, nil
}

func (e *RuleEngine) Authorize(ctx context.Context, req types.ActionRequest) types.Decision {
	degraded := false

	if req.FeatureKey != "" {
		res, err := e.resolver.Resolve(ctx, req.FeatureKey, req.Scope)
		if err != nil {
			return deniedFromError(err)
		}
		degraded = degraded || res.Degraded
		enabled, err := strconv.ParseBool(res.Value)
		if err != nil {
			return types.Denied(types.DenyRuleEvaluationFailed, fmt.Sprintf("flag %s: value %q is not boolean", req.FeatureKey, res.Value))
		}
		if !enabled {
			d := types.Denied(types.DenyFeatureDisabled, fmt.Sprintf("feature %s disabled (source %s)", req.FeatureKey, res.Source))
			d.Degraded = degraded
			return d
		}
	}

	if req.VerificationKey != "" {
		res, err := e.resolver.Resolve(ctx, req.VerificationKey, req.Scope)
		if err != nil {
			return deniedFromError(err)
		}
		degraded = degraded || res.Degraded
		if res.Value != "" {
			ok, err := e.evalRule(res.Value, req.VerificationContext)
			if err != nil {
				return types.Denied(types.DenyRuleEvaluationFailed, err.Error())
			}
			if !ok {
				d := types.Denied(types.DenyVerificationRequired, fmt.Sprintf("verification rule %s not satisfied", req.VerificationKey))
				d.Degraded = degraded
				return d
			}
		}
	}

	if req.Entity != "" {
		if err := ValidateTransition(req.Entity, req.CurrentStatus, req.TargetStatus); err != nil {
			d := types.Denied(types.DenyInvalidTransition, err.Error())
			d.Degraded = degraded
			return d
		}
	}

	var slaEval *types.SlaEvaluation
	if req.Sla != nil {
		eval, err := e.sla.Evaluate(ctx, *req.Sla, req.Scope)
		if err != nil {
			return deniedFromError(err)
		}
		degraded = degraded || eval.Degraded
		slaEval = &eval
		if eval.Status == types.SlaBreached {
			d := types.Denied(types.DenySlaBreached, fmt.Sprintf("sla breached by %d minutes", eval.BreachMinutes))
			d.Degraded = degraded
			d.Sla = slaEval
			return d
		}
	}

	d := types.Allowed()
	d.Degraded = degraded
	d.Sla = slaEval
	return d
}

// evalRule compiles and runs a verification expression over the string-map
// context. Compiled programs are cached by expression text.
func (e *RuleEngine) evalRule(expression string, ruleCtx map[string]string) (bool, error) {
	var prg cel.Program
	if cached, ok := e.programs.Load(expression); ok {
		prg = cached.(cel.Program)
	} else {
		ast, issues := e.celEnv.Compile(expression)
		if issues != nil && issues.Err() != nil {
			return false, fmt.Errorf("rule compile: %w", issues.Err())
		}
		compiled, err := e.celEnv.Program(ast)
		if err != nil {
			return false, fmt.Errorf("rule program: %w", err)
		}
		e.programs.Store(expression, compiled)
		prg = compiled
	}

	if ruleCtx == nil {
		ruleCtx = map[string]string{}
	}
	out, _, err := prg.Eval(map[string]any{"ctx": ruleCtx})
	if err != nil {
		return false, fmt.Errorf("rule eval: %w", err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("rule eval: non-boolean result %T", out.Value())
	}
	return ok, nil
}

func deniedFromError(err error) types.Decision {
	var scopeErr *types.InvalidScopeError
	var slaErr *types.InvalidSlaConfigError
	switch {
	case errors.Is(err, ports.ErrPolicyNotFound):
		return types.Denied(types.DenyPolicyNotFound, err.Error())
	case errors.Is(err, ports.ErrStoreUnavailable):
		return types.Denied(types.DenyStoreUnavailable, err.Error())
	case errors.As(err, &scopeErr):
		return types.Denied(types.DenyInvalidScope, err.Error())
	case errors.As(err, &slaErr):
		return types.Denied(types.DenyInvalidSlaConfig, err.Error())
	default:
		return types.Denied(types.DenyRuleEvaluationFailed, err.Error())
	}
}
