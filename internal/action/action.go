package action

import "github.com/gyaneshwarpardhi/automation/internal/jsonvalue"

// ModePlanOnly marks a plan item as non-executable.
const ModePlanOnly = "PLAN_ONLY"

// Action is an action as configured on a rule version.
type Action struct {
	Type   string         `json:"type" yaml:"type"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// PlanItem is a planned action: the same shape as an executable action but
// tagged so no executor will accept it.
type PlanItem struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
	Mode   string         `json:"mode"`
}

// Kind describes one known action type.
// Kinds only validate configuration; nothing in this module executes them.
type Kind interface {
	// Type returns the string key this kind is registered under.
	Type() string
	// Validate checks params at catalog load time.
	Validate(params map[string]any) error
}

// Plan maps configured actions 1:1 to plan items, preserving order. Params
// are deep-copied to JSON-native values.
func Plan(actions []Action) []PlanItem {
	items := make([]PlanItem, 0, len(actions))
	for _, a := range actions {
		params := jsonvalue.CopyMap(a.Params)
		if params == nil {
			params = map[string]any{}
		}
		items = append(items, PlanItem{Type: a.Type, Params: params, Mode: ModePlanOnly})
	}
	return items
}
