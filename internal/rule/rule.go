package rule

import (
	"github.com/gyaneshwarpardhi/automation/internal/action"
	"github.com/gyaneshwarpardhi/automation/internal/condition"
	"github.com/gyaneshwarpardhi/automation/internal/jsonvalue"
)

// Rule is one version of an automation rule as held by the catalog.
type Rule struct {
	ID         string                `json:"id"`
	VersionID  string                `json:"versionId"`
	Name       string                `json:"name"`
	Priority   int                   `json:"priority"`
	Enabled    bool                  `json:"enabled"`
	Trigger    Trigger               `json:"trigger"`
	Conditions []condition.Condition `json:"conditions"`
	Actions    []action.Action       `json:"actions"`
}

// Trigger scopes a rule to an event name and, optionally, a tenant and brand.
// Empty TenantID or BrandID means "any".
type Trigger struct {
	EventType string `json:"eventType"`
	TenantID  string `json:"tenantId,omitempty"`
	BrandID   string `json:"brandId,omitempty"`
}

// Match is an immutable snapshot of one rule version matched against an event.
type Match struct {
	RuleID     string                `json:"ruleId"`
	VersionID  string                `json:"versionId"`
	RuleName   string                `json:"ruleName"`
	Priority   int                   `json:"priority"`
	Conditions []condition.Condition `json:"conditions"`
	Actions    []action.Action       `json:"actions"`
}

// Snapshot deep-copies the rule version into a Match. Nothing in the Match
// aliases the catalog.
func (r Rule) Snapshot() Match {
	conds := make([]condition.Condition, len(r.Conditions))
	for i, c := range r.Conditions {
		conds[i] = condition.Condition{Kind: c.Kind, Config: jsonvalue.CopyMap(c.Config)}
	}
	acts := make([]action.Action, len(r.Actions))
	for i, a := range r.Actions {
		acts[i] = action.Action{Type: a.Type, Params: jsonvalue.CopyMap(a.Params)}
	}
	return Match{
		RuleID:     r.ID,
		VersionID:  r.VersionID,
		RuleName:   r.Name,
		Priority:   r.Priority,
		Conditions: conds,
		Actions:    acts,
	}
}
