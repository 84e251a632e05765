package config

import (
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/automation/internal/action"
	"github.com/gyaneshwarpardhi/automation/internal/condition"
	"github.com/gyaneshwarpardhi/automation/internal/policy"
)

// Validate checks the config for:
//   - Duplicate rule version IDs
//   - Required fields on rules, triggers and actions
//   - Unknown condition kinds and action types
//   - A well-formed execution section whose CEL policies compile
func Validate(cfg *RuleConfig) error {
	return ValidateWith(cfg, action.DefaultRegistry())
}

// ValidateWith is Validate with an explicit action registry.
func ValidateWith(cfg *RuleConfig, reg *action.Registry) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	versions := make(map[string]string) // version_id → location
	var errs []string

	for i, r := range cfg.Rules {
		if r.ID == "" {
			errs = append(errs, fmt.Sprintf("rules[%d]: id is required", i))
			continue
		}
		loc := fmt.Sprintf("rule %s", r.ID)
		if r.VersionID == "" {
			errs = append(errs, fmt.Sprintf("%s: version_id is required", loc))
		} else if prev, ok := versions[r.VersionID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate version_id %q (first seen at %s, again at %s)", r.VersionID, prev, loc))
		} else {
			versions[r.VersionID] = loc
		}
		if r.Trigger.EventType == "" {
			errs = append(errs, fmt.Sprintf("%s: trigger.event_type is required", loc))
		}
		for j, c := range r.Conditions {
			if c.Kind != condition.KindJSONLogic {
				errs = append(errs, fmt.Sprintf("%s.conditions[%d]: unsupported kind %q", loc, j, c.Kind))
			}
		}
		for j, a := range r.Actions {
			if err := reg.Validate(a); err != nil {
				errs = append(errs, fmt.Sprintf("%s.actions[%d]: %v", loc, j, err))
			}
		}
	}

	errs = append(errs, validateExecution(cfg.Execution)...)

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateExecution(e ExecutionConf) []string {
	var errs []string
	switch e.Gate {
	case "", GateDisabled, GatePolicy:
	default:
		errs = append(errs, fmt.Sprintf("execution.gate: unknown mode %q", e.Gate))
	}
	switch e.Policy {
	case "", PolicyDisabled, PolicyCEL:
	default:
		errs = append(errs, fmt.Sprintf("execution.policy: unknown mode %q", e.Policy))
	}
	if e.Enabled() && strings.TrimSpace(e.EnabledBy) == "" {
		errs = append(errs, "execution.enabled_by is required when gate or policy is enabled")
	}
	if e.Gate == GatePolicy && e.Policy != PolicyCEL {
		errs = append(errs, "execution.gate=policy requires execution.policy=cel")
	}
	for i, p := range e.Policies {
		if p.Code == "" {
			errs = append(errs, fmt.Sprintf("execution.policies[%d]: code is required", i))
		}
		if p.Expression == "" {
			errs = append(errs, fmt.Sprintf("execution.policies[%d]: expression is required", i))
			continue
		}
		if _, err := policy.NewCEL([]policy.Requirement{{Code: p.Code, Message: p.Message, Expression: p.Expression}}); err != nil {
			errs = append(errs, fmt.Sprintf("execution.policies[%d]: %v", i, err))
		}
	}
	return errs
}
