package policy

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// Requirement is a CEL expression over `request` that must hold.
type Requirement struct {
	Code       string
	Message    string
	Expression string
}

type compiledRequirement struct {
	Requirement
	prog cel.Program
}

// CEL evaluates a fixed set of requirements. It is safe for concurrent use.
type CEL struct {
	reqs []compiledRequirement
}

// NewCEL compiles every requirement up front; any compile error is returned.
func NewCEL(reqs []Requirement) (*CEL, error) {
	env, err := cel.NewEnv(cel.Variable("request", cel.DynType))
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	out := make([]compiledRequirement, 0, len(reqs))
	for _, r := range reqs {
		ast, issues := env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile policy %s: %w", r.Code, issues.Err())
		}
		prog, err := env.Program(ast, cel.CostLimit(100000))
		if err != nil {
			return nil, fmt.Errorf("program for policy %s: %w", r.Code, err)
		}
		out = append(out, compiledRequirement{Requirement: r, prog: prog})
	}
	return &CEL{reqs: out}, nil
}

// Evaluate implements Engine. Requirements that evaluate to false or fail to
// evaluate become violations; any violation denies the request.
func (c *CEL) Evaluate(req Request) Decision {
	activation := map[string]any{"request": requestValue(req)}
	var violations []Violation
	evalFailed := false
	for _, r := range c.reqs {
		out, _, err := r.prog.Eval(activation)
		if err != nil {
			evalFailed = true
			violations = append(violations, Violation{Code: r.Code, Message: fmt.Sprintf("evaluation error: %v", err)})
			continue
		}
		if ok, isBool := out.Value().(bool); !isBool || !ok {
			violations = append(violations, Violation{Code: r.Code, Message: r.Message})
		}
	}

	if len(violations) == 0 {
		return Decision{
			Allowed:    true,
			Mode:       ModeEnabled,
			ReasonCode: ReasonAllowed,
			Reason:     fmt.Sprintf("%d policy requirement(s) satisfied", len(c.reqs)),
		}
	}
	code := ReasonDenied
	if evalFailed {
		code = ReasonEvalError
	}
	codes := make([]string, 0, len(violations))
	for _, v := range violations {
		codes = append(codes, v.Code)
	}
	return Decision{
		Allowed:    false,
		Mode:       ModeEnabled,
		ReasonCode: code,
		Reason:     "policy violated: " + strings.Join(codes, ", "),
		Violations: violations,
	}
}

func requestValue(req Request) map[string]any {
	return map[string]any{
		"tenantId":       req.TenantID,
		"eventId":        req.EventID,
		"eventName":      req.EventName,
		"ruleVersionIds": stringList(req.RuleVersionIDs),
		"actionTypes":    stringList(req.ActionTypes),
		"actionCount":    int64(req.ActionCount),
	}
}

func stringList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
