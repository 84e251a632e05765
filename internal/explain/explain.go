// Package explain turns computed plans, outcomes and metrics into decision
// traces. It never infers anything it was not given.
package explain

import (
	"fmt"

	"github.com/gyaneshwarpardhi/automation/internal/observability"
	"github.com/gyaneshwarpardhi/automation/internal/plan"
	"github.com/gyaneshwarpardhi/automation/internal/policy"
)

// ConfidenceHigh is the only confidence level produced.
const ConfidenceHigh = "HIGH"

// Evidence carries the facts an explanation was built from.
type Evidence struct {
	Metrics  map[string]any `json:"metrics,omitempty"`
	Logs     []string       `json:"logs,omitempty"`
	Failures []string       `json:"failures,omitempty"`
}

// Explanation is a human and machine readable decision trace.
type Explanation struct {
	Summary             string                `json:"summary"`
	DecisionPath        []string              `json:"decisionPath"`
	ContributingFactors []string              `json:"contributingFactors"`
	Outcome             observability.Outcome `json:"outcome"`
	Confidence          string                `json:"confidence"`
	Evidence            Evidence              `json:"evidence"`
}

// Input is everything Build needs; all of it already computed.
type Input struct {
	Subject             string
	Outcome             observability.Outcome
	DecisionPath        []string
	ContributingFactors []string
	Metrics             map[string]any
	Logs                []string
	Failures            []string
}

// Build assembles an Explanation. Slices are copied.
func Build(in Input) Explanation {
	return Explanation{
		Summary:             fmt.Sprintf("%s resolved as %s", in.Subject, in.Outcome),
		DecisionPath:        copyStrings(in.DecisionPath),
		ContributingFactors: copyStrings(in.ContributingFactors),
		Outcome:             in.Outcome,
		Confidence:          ConfidenceHigh,
		Evidence: Evidence{
			Metrics:  in.Metrics,
			Logs:     copyStrings(in.Logs),
			Failures: copyStrings(in.Failures),
		},
	}
}

// ForPlan explains a freshly built plan together with the gate and policy
// decisions attached to it. Either decision may be nil.
func ForPlan(p *plan.Plan, gateDecision, policyDecision *policy.Decision) Explanation {
	path := []string{fmt.Sprintf("event %s (%s) for tenant %s", p.Event.Name, p.Event.ID, p.Event.TenantID)}
	if len(p.MatchedRules) == 0 {
		path = append(path, "no enabled rule matched")
	}
	for _, m := range p.MatchedRules {
		path = append(path, RuleStep(m))
	}
	var factors []string
	if policyDecision != nil {
		factors = append(factors, DecisionFactor("policy", *policyDecision))
	}
	if gateDecision != nil {
		factors = append(factors, DecisionFactor("execution gate", *gateDecision))
	}
	factors = append(factors, fmt.Sprintf("mode %s", p.Meta.Mode))

	return Build(Input{
		Subject:             fmt.Sprintf("plan for event %s", p.Event.ID),
		Outcome:             PlanOutcome(p),
		DecisionPath:        path,
		ContributingFactors: factors,
		Metrics: map[string]any{
			"matchedRules":   len(p.MatchedRules),
			"passedRules":    p.PassedCount(),
			"plannedActions": p.ActionCount(),
		},
	})
}

// PlanOutcome is SKIPPED when no rule passed, SUCCESS when all passed and
// PARTIAL otherwise.
func PlanOutcome(p *plan.Plan) observability.Outcome {
	passed := p.PassedCount()
	switch {
	case passed == 0:
		return observability.OutcomeSkipped
	case passed == len(p.MatchedRules):
		return observability.OutcomeSuccess
	default:
		return observability.OutcomePartial
	}
}

// RuleStep renders one matched rule as a decision-path line.
func RuleStep(m plan.MatchedRule) string {
	head := fmt.Sprintf("rule %s (version %s, priority %d)", m.RuleID, m.VersionID, m.Priority)
	if m.Condition.Passed {
		return fmt.Sprintf("%s: conditions passed, %d action(s) planned", head, len(m.PlannedActions))
	}
	return fmt.Sprintf("%s: %s (%s)", head, m.Condition.Code(), m.Condition.Reason)
}

// DecisionFactor renders a gate or policy decision.
func DecisionFactor(name string, d policy.Decision) string {
	verdict := "denied"
	if d.Allowed {
		verdict = "allowed"
	}
	return fmt.Sprintf("%s %s: %s %s", name, d.Mode, verdict, d.ReasonCode)
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
