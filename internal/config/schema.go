package config

import (
	"github.com/gyaneshwarpardhi/automation/internal/action"
	"github.com/gyaneshwarpardhi/automation/internal/condition"
)

// Gate and policy modes accepted in the execution section.
const (
	GateDisabled   = "disabled"
	GatePolicy     = "policy"
	PolicyDisabled = "disabled"
	PolicyCEL      = "cel"
)

// RuleConfig is the top-level YAML structure.
type RuleConfig struct {
	Version   string        `yaml:"version"`
	Runtime   RuntimeConf   `yaml:"runtime"`
	Execution ExecutionConf `yaml:"execution"`
	Rules     []RuleDef     `yaml:"rules"`
}

// RuntimeConf holds tunable runtime settings.
type RuntimeConf struct {
	DispatchWorkers  int `yaml:"dispatch_workers"`
	QueueDepth       int `yaml:"queue_depth"`
	IntentTTLMs      int `yaml:"intent_ttl_ms"`
	IntentMaxEntries int `yaml:"intent_max_entries"`
	HistoryMaxRuns   int `yaml:"history_max_runs"`
}

// ExecutionConf controls the execution gate and the policy engine.
// Both default to disabled; enabling either requires EnabledBy.
type ExecutionConf struct {
	Gate      string      `yaml:"gate"`
	Policy    string      `yaml:"policy"`
	EnabledBy string      `yaml:"enabled_by"`
	Policies  []PolicyDef `yaml:"policies"`
}

// Enabled reports whether any part of execution control is switched on.
func (e ExecutionConf) Enabled() bool {
	return e.Gate == GatePolicy || e.Policy == PolicyCEL
}

// PolicyDef is one CEL requirement. Expression must evaluate to a bool;
// false yields a violation with Code and Message.
type PolicyDef struct {
	Code       string `yaml:"code"`
	Message    string `yaml:"message"`
	Expression string `yaml:"expression"`
}

// RuleDef is one rule version.
type RuleDef struct {
	ID         string                `yaml:"id"`
	VersionID  string                `yaml:"version_id"`
	Name       string                `yaml:"name"`
	Priority   int                   `yaml:"priority"`
	Enabled    bool                  `yaml:"enabled"`
	Trigger    TriggerDef            `yaml:"trigger"`
	Conditions []condition.Condition `yaml:"conditions"`
	Actions    []action.Action       `yaml:"actions"`
}

// TriggerDef selects the events a rule reacts to. Empty tenant/brand = any.
type TriggerDef struct {
	EventType string `yaml:"event_type"`
	TenantID  string `yaml:"tenant_id"`
	BrandID   string `yaml:"brand_id"`
}
