package condition

// KindJSONLogic is the only condition kind the engine evaluates.
const KindJSONLogic = "json-logic"

// Machine-readable failure codes carried in Result.Details["reason"].
const (
	ReasonUnsupportedKind      = "UNSUPPORTED_CONDITION_KIND"
	ReasonEngineNotImplemented = "CONDITION_ENGINE_NOT_IMPLEMENTED"
	ReasonNotMet               = "CONDITION_NOT_MET"
	ReasonEvaluationError      = "CONDITION_EVALUATION_ERROR"
)

// Condition is one entry of a rule version's condition list.
// Config holds the engine-specific expression tree.
type Condition struct {
	Kind   string         `json:"kind" yaml:"kind"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Result is the verdict for a single condition or a whole condition list.
// Reason is only populated on failure.
type Result struct {
	Passed  bool           `json:"passed"`
	Reason  string         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Pass is the verdict of a condition (or list) that holds.
func Pass() Result { return Result{Passed: true} }

// Fail builds a failed verdict with a machine code and human reason.
func Fail(code, reason string, details map[string]any) Result {
	d := make(map[string]any, len(details)+1)
	for k, v := range details {
		d[k] = v
	}
	d["reason"] = code
	return Result{Passed: false, Reason: reason, Details: d}
}

// Code returns the machine-readable failure code, or "" when passed.
func (r Result) Code() string {
	if r.Passed {
		return ""
	}
	code, _ := r.Details["reason"].(string)
	return code
}

// IsEmpty reports whether the condition carries no expression at all.
func (c Condition) IsEmpty() bool {
	return len(c.Config) == 0
}
