// Package plan holds the plan-only output of one runtime invocation.
package plan

import (
	"time"

	"github.com/gyaneshwarpardhi/automation/internal/action"
	"github.com/gyaneshwarpardhi/automation/internal/condition"
	"github.com/gyaneshwarpardhi/automation/internal/event"
)

const (
	EngineJSONLogic = "json-logic"
	ModePlanOnly    = action.ModePlanOnly
)

// Plan is the full, serializable decision trace for one event.
type Plan struct {
	Event        event.Event   `json:"event"`
	MatchedRules []MatchedRule `json:"matchedRules"`
	Meta         Meta          `json:"meta"`
}

// MatchedRule records how one matched rule version was decided.
// PlannedActions is empty when the condition verdict failed.
type MatchedRule struct {
	RuleID         string            `json:"ruleId"`
	VersionID      string            `json:"versionId"`
	RuleName       string            `json:"ruleName"`
	Priority       int               `json:"priority"`
	Condition      condition.Result  `json:"condition"`
	PlannedActions []action.PlanItem `json:"plannedActions"`
}

// Meta describes how the plan was produced.
type Meta struct {
	EvaluatedAt time.Time `json:"evaluatedAt"`
	Engine      string    `json:"engine"`
	Mode        string    `json:"mode"`
}

// ActionCount returns the number of planned actions across all rules.
func (p *Plan) ActionCount() int {
	n := 0
	for _, m := range p.MatchedRules {
		n += len(m.PlannedActions)
	}
	return n
}

// ActionTypes returns the planned action types in plan order.
func (p *Plan) ActionTypes() []string {
	out := make([]string, 0, p.ActionCount())
	for _, m := range p.MatchedRules {
		for _, a := range m.PlannedActions {
			out = append(out, a.Type)
		}
	}
	return out
}

// PassedCount returns how many matched rules passed their conditions.
func (p *Plan) PassedCount() int {
	n := 0
	for _, m := range p.MatchedRules {
		if m.Condition.Passed {
			n++
		}
	}
	return n
}
