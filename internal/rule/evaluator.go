package rule

import (
	"fmt"

	"github.com/gyaneshwarpardhi/automation/internal/condition"
	"github.com/gyaneshwarpardhi/automation/internal/event"
)

// ConditionEngine evaluates a single condition of a supported kind.
type ConditionEngine interface {
	Evaluate(c condition.Condition, ev *event.Event) condition.Result
}

// Evaluator folds a rule version's condition list into one verdict.
type Evaluator struct {
	engine ConditionEngine
}

// NewEvaluator creates an Evaluator. A nil engine is allowed: structural
// checks still run and non-empty conditions report
// CONDITION_ENGINE_NOT_IMPLEMENTED.
func NewEvaluator(engine ConditionEngine) *Evaluator {
	return &Evaluator{engine: engine}
}

// EvaluateAll checks conditions in order; the first failure wins.
func (e *Evaluator) EvaluateAll(ev *event.Event, conds []condition.Condition) condition.Result {
	for i, c := range conds {
		if c.Kind != condition.KindJSONLogic {
			return condition.Fail(condition.ReasonUnsupportedKind,
				fmt.Sprintf("unsupported condition kind %q", c.Kind),
				map[string]any{"kind": c.Kind, "index": i})
		}
		if c.IsEmpty() {
			continue
		}
		if e.engine == nil {
			return condition.Fail(condition.ReasonEngineNotImplemented,
				fmt.Sprintf("no engine wired for condition kind %q", c.Kind),
				map[string]any{"kind": c.Kind, "index": i})
		}
		res := e.engine.Evaluate(c, ev)
		if !res.Passed {
			details := map[string]any{"index": i}
			for k, v := range res.Details {
				details[k] = v
			}
			return condition.Result{Passed: false, Reason: res.Reason, Details: details}
		}
	}
	return condition.Pass()
}
