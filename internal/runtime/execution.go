package runtime

import (
	"fmt"

	"github.com/gyaneshwarpardhi/automation/internal/config"
	"github.com/gyaneshwarpardhi/automation/internal/gate"
	"github.com/gyaneshwarpardhi/automation/internal/policy"
)

// ExecutionFromConfig builds the gate and policy engine described by the
// execution section. The config must already be validated.
func ExecutionFromConfig(c config.ExecutionConf) (gate.Gate, policy.Engine, error) {
	var engine policy.Engine = policy.Disabled{}
	if c.Policy == config.PolicyCEL {
		reqs := make([]policy.Requirement, 0, len(c.Policies))
		for _, p := range c.Policies {
			reqs = append(reqs, policy.Requirement{Code: p.Code, Message: p.Message, Expression: p.Expression})
		}
		cel, err := policy.NewCEL(reqs)
		if err != nil {
			return nil, nil, fmt.Errorf("execution policy: %w", err)
		}
		engine = cel
	}

	var g gate.Gate = gate.Disabled{}
	if c.Gate == config.GatePolicy {
		g = gate.NewPolicyEvaluating(engine)
	}
	return g, engine, nil
}
