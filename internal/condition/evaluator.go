package condition

import (
	"fmt"

	"github.com/gyaneshwarpardhi/automation/internal/event"
)

// JSONLogic evaluates "json-logic" conditions against an event.
type JSONLogic struct{}

// NewJSONLogic returns the json-logic condition engine.
func NewJSONLogic() *JSONLogic { return &JSONLogic{} }

// Evaluate runs c.Config with the event as data. Errors and panics raised
// while evaluating are reported as a failed Result, never returned.
func (j *JSONLogic) Evaluate(c Condition, ev *event.Event) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Fail(ReasonEvaluationError, fmt.Sprintf("json-logic evaluation panicked: %v", r), nil)
		}
	}()

	out, err := Apply(c.Config, ev.Data())
	if err != nil {
		return Fail(ReasonEvaluationError, err.Error(), nil)
	}
	if !truthy(out) {
		return Fail(ReasonNotMet, "condition evaluated to false", nil)
	}
	return Pass()
}
