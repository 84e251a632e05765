package observability

import "strings"

// FailureCategory is the fixed taxonomy of why an action run did not succeed.
type FailureCategory string

const (
	FailureRetryableExternal FailureCategory = "RETRYABLE_EXTERNAL"
	FailureValidation        FailureCategory = "VALIDATION_ERROR"
	FailurePolicyBlocked     FailureCategory = "POLICY_BLOCKED"
	FailureRateLimited       FailureCategory = "RATE_LIMITED"
	FailureActionTimeout     FailureCategory = "ACTION_TIMEOUT"
	FailureUnknownInternal   FailureCategory = "UNKNOWN_INTERNAL"
)

// FailureCategories lists every category in classification order.
var FailureCategories = []FailureCategory{
	FailureRetryableExternal,
	FailureValidation,
	FailurePolicyBlocked,
	FailureRateLimited,
	FailureActionTimeout,
	FailureUnknownInternal,
}

// Error codes with a fixed meaning.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodePolicyBlocked    = "POLICY_BLOCKED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeTimeout          = "TIMEOUT"
	externalCodePrefix   = "EXT_"
)

// FailureInput is what ClassifyFailure looks at. All fields are optional.
type FailureInput struct {
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	RunnerType   string `json:"runnerType,omitempty"`
	GateResult   string `json:"gateResult,omitempty"`
}

// ClassifyFailure maps a failure to its category. Rules are checked in
// order and the first hit wins, so EXT_TIMEOUT is RETRYABLE_EXTERNAL.
func ClassifyFailure(in FailureInput) FailureCategory {
	msg := strings.ToLower(in.ErrorMessage)
	switch {
	case strings.HasPrefix(in.ErrorCode, externalCodePrefix):
		return FailureRetryableExternal
	case in.ErrorCode == CodeValidationFailed || strings.Contains(msg, "validation"):
		return FailureValidation
	case in.ErrorCode == CodePolicyBlocked || in.GateResult == GateResultBlocked:
		return FailurePolicyBlocked
	case in.ErrorCode == CodeRateLimited:
		return FailureRateLimited
	case in.ErrorCode == CodeTimeout || strings.Contains(msg, "timeout"):
		return FailureActionTimeout
	default:
		return FailureUnknownInternal
	}
}

// FailureInputOf extracts the classification input of an action run.
func FailureInputOf(a ActionRunRecord) FailureInput {
	return FailureInput{
		ErrorCode:    a.ErrorCode,
		ErrorMessage: a.ErrorMessage,
		RunnerType:   a.RunnerType,
		GateResult:   a.GateResult,
	}
}

// IsFailure reports whether an action run counts towards failure breakdowns.
func IsFailure(a ActionRunRecord) bool {
	return a.Status == StatusFailed || a.Status == StatusBlocked
}

// Breakdown counts failed action runs per category.
type Breakdown struct {
	Total      int                     `json:"total"`
	Categories map[FailureCategory]int `json:"categories"`
}

// FailureBreakdown classifies the failed and blocked action runs. Every
// category is present in the result, zero when unused.
func FailureBreakdown(actionRuns []ActionRunRecord) Breakdown {
	b := Breakdown{Categories: make(map[FailureCategory]int, len(FailureCategories))}
	for _, c := range FailureCategories {
		b.Categories[c] = 0
	}
	for _, a := range actionRuns {
		if !IsFailure(a) {
			continue
		}
		b.Categories[ClassifyFailure(FailureInputOf(a))]++
		b.Total++
	}
	return b
}
