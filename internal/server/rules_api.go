package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/uuid"

	"github.com/mvoka/fieldline/internal/routing"
)

// Rule debugging endpoint: compiles a verification expression against a
// caller-supplied context so operators can dry-run a rule before writing
// it into a policy.

type rulesEvaluateRequest struct {
	Expression string            `json:"expression"`
	Context    map[string]string `json:"context"`
	RequestID  string            `json:"request_id,omitempty"`
}

type rulesEvaluateResponse struct {
	RequestID  string `json:"request_id"`
	Expression string `json:"expression"`
	Result     bool   `json:"result"`
}

var newRulesCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("ctx", cel.MapType(cel.StringType, cel.StringType)))
}

var rulesProgramCache sync.Map

func handleRulesEvaluateAPI(w http.ResponseWriter, r *http.Request) {
	var req rulesEvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorInternal(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}

	expr := strings.TrimSpace(req.Expression)
	if expr == "" {
		writeErrorInternal(w, r, http.StatusBadRequest, "invalid_request", "expression required")
		return
	}

	program, err := loadOrCompileRuleProgram(expr)
	if err != nil {
		writeErrorInternal(w, r, http.StatusUnprocessableEntity, "rule_compile_error", err.Error())
		return
	}

	ruleCtx := req.Context
	if ruleCtx == nil {
		ruleCtx = map[string]string{}
	}
	out, _, err := program.Eval(map[string]any{"ctx": ruleCtx})
	if err != nil {
		writeErrorInternal(w, r, http.StatusUnprocessableEntity, "rule_eval_error", err.Error())
		return
	}
	result, ok := out.Value().(bool)
	if !ok {
		writeErrorInternal(w, r, http.StatusUnprocessableEntity, "rule_eval_error", "non-boolean result")
		return
	}

	requestID := strings.TrimSpace(req.RequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	routing.WriteJSON(w, http.StatusOK, rulesEvaluateResponse{
		RequestID:  requestID,
		Expression: expr,
		Result:     result,
	})
}

func loadOrCompileRuleProgram(expr string) (cel.Program, error) {
	if cached, ok := rulesProgramCache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := newRulesCELEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != cel.BoolType {
		return nil, errors.New("expression must evaluate to bool")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	rulesProgramCache.Store(expr, program)
	return program, nil
}
