// Package policy decides whether a plan would be allowed to execute.
// Decisions are advisory: nothing in this module executes actions.
package policy

import (
	"github.com/gyaneshwarpardhi/automation/internal/plan"
)

// Decision modes.
const (
	ModeDisabled = "DISABLED"
	ModeEnabled  = "ENABLED"
)

// Reason codes emitted by the policy engines.
const (
	ReasonEngineDisabled = "POLICY_ENGINE_DISABLED"
	ReasonAllowed        = "POLICY_ALLOWED"
	ReasonDenied         = "POLICY_DENIED"
	ReasonEvalError      = "POLICY_EVALUATION_ERROR"
)

// Decision is the verdict of a gate or policy engine.
type Decision struct {
	Allowed    bool        `json:"allowed"`
	Mode       string      `json:"mode"`
	ReasonCode string      `json:"reasonCode"`
	Reason     string      `json:"reason"`
	Violations []Violation `json:"violations,omitempty"`
}

// Violation is one unmet policy requirement.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Request is the policy view of a plan.
type Request struct {
	TenantID       string   `json:"tenantId"`
	EventID        string   `json:"eventId"`
	EventName      string   `json:"eventName"`
	RuleVersionIDs []string `json:"ruleVersionIds"`
	ActionTypes    []string `json:"actionTypes"`
	ActionCount    int      `json:"actionCount"`
}

// RequestFor derives a Request from a plan. Only rules that passed their
// conditions contribute version ids.
func RequestFor(p *plan.Plan) Request {
	versions := make([]string, 0, len(p.MatchedRules))
	for _, m := range p.MatchedRules {
		if m.Condition.Passed {
			versions = append(versions, m.VersionID)
		}
	}
	return Request{
		TenantID:       p.Event.TenantID,
		EventID:        p.Event.ID,
		EventName:      p.Event.Name,
		RuleVersionIDs: versions,
		ActionTypes:    p.ActionTypes(),
		ActionCount:    p.ActionCount(),
	}
}

// Engine evaluates a request against policy.
type Engine interface {
	Evaluate(req Request) Decision
}

// Disabled is the default engine: it never allows anything.
type Disabled struct{}

// Evaluate implements Engine.
func (Disabled) Evaluate(Request) Decision {
	return Decision{
		Allowed:    false,
		Mode:       ModeDisabled,
		ReasonCode: ReasonEngineDisabled,
		Reason:     "policy engine is disabled",
	}
}
