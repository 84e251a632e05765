// Package gate holds the execution gate consulted after a plan is audited.
package gate

import (
	"github.com/gyaneshwarpardhi/automation/internal/policy"
)

// ReasonExecutionDisabled is reported by the default gate.
const ReasonExecutionDisabled = "EXECUTION_DISABLED"

// Gate decides whether a plan may proceed to execution.
type Gate interface {
	Check(req policy.Request) policy.Decision
}

// Disabled is the default gate: it denies everything.
type Disabled struct{}

// Check implements Gate.
func (Disabled) Check(policy.Request) policy.Decision {
	return policy.Decision{
		Allowed:    false,
		Mode:       policy.ModeDisabled,
		ReasonCode: ReasonExecutionDisabled,
		Reason:     "execution is disabled; plans are recorded only",
	}
}

// PolicyEvaluating delegates the gate decision to a policy engine.
type PolicyEvaluating struct {
	engine policy.Engine
}

// NewPolicyEvaluating returns a gate backed by engine. A nil engine falls
// back to policy.Disabled.
func NewPolicyEvaluating(engine policy.Engine) *PolicyEvaluating {
	if engine == nil {
		engine = policy.Disabled{}
	}
	return &PolicyEvaluating{engine: engine}
}

// Check implements Gate. The gate is enabled even when the engine denies.
func (g *PolicyEvaluating) Check(req policy.Request) policy.Decision {
	d := g.engine.Evaluate(req)
	d.Mode = policy.ModeEnabled
	return d
}
