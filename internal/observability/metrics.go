package observability

import "sort"

// Outcome is the resolved result of a run, rule version or action run.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
	OutcomePartial Outcome = "PARTIAL"
	OutcomeSkipped Outcome = "SKIPPED"
)

// LatencyMetrics summarises a set of durations in milliseconds.
type LatencyMetrics struct {
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
}

// ComputeLatencyMetrics uses nearest-rank percentiles on the ascending
// sort: p50 = sorted[floor(n*0.5)], p95 = sorted[floor(n*0.95)].
// The input slice is not modified.
func ComputeLatencyMetrics(durations []float64) LatencyMetrics {
	n := len(durations)
	if n == 0 {
		return LatencyMetrics{}
	}
	sorted := make([]float64, n)
	copy(sorted, durations)
	sort.Float64s(sorted)

	var sum float64
	for _, d := range sorted {
		sum += d
	}
	return LatencyMetrics{
		Avg: sum / float64(n),
		P50: sorted[rank(n, 0.5)],
		P95: sorted[rank(n, 0.95)],
	}
}

func rank(n int, q float64) int {
	i := int(float64(n) * q)
	if i >= n {
		i = n - 1
	}
	return i
}

// ComputeSuccessRate returns successes/total, or 0 when total is 0.
func ComputeSuccessRate(successes, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(successes) / float64(total)
}

// ResolveRunOutcome classifies a run from its own status and its action runs.
func ResolveRunOutcome(run RunRecord, actionRuns []ActionRunRecord) Outcome {
	allSuccess := true
	anyFailed := false
	for _, a := range actionRuns {
		if a.Status != StatusSuccess {
			allSuccess = false
		}
		if a.Status == StatusFailed {
			anyFailed = true
		}
	}
	switch {
	case run.Status == StatusSuccess && allSuccess:
		return OutcomeSuccess
	case run.Status == StatusFailed || anyFailed:
		return OutcomeFailed
	case run.Status == StatusSkipped || run.Status == StatusBlocked || run.Status == StatusGated:
		return OutcomeSkipped
	default:
		return OutcomePartial
	}
}

// ResolveRuleVersionOutcome folds per-run outcomes of one rule version.
// No runs is SKIPPED; any failure without a success is FAILED.
func ResolveRuleVersionOutcome(outcomes []Outcome) Outcome {
	var success, failed, skipped int
	for _, o := range outcomes {
		switch o {
		case OutcomeSuccess:
			success++
		case OutcomeFailed:
			failed++
		case OutcomeSkipped:
			skipped++
		}
	}
	total := len(outcomes)
	switch {
	case total == 0:
		return OutcomeSkipped
	case success == total:
		return OutcomeSuccess
	case skipped == total:
		return OutcomeSkipped
	case failed > 0 && success == 0:
		return OutcomeFailed
	default:
		return OutcomePartial
	}
}

// ResolveActionRunOutcome classifies a single action run by status.
func ResolveActionRunOutcome(a ActionRunRecord) Outcome {
	switch a.Status {
	case StatusSuccess:
		return OutcomeSuccess
	case StatusFailed:
		return OutcomeFailed
	case StatusSkipped, StatusBlocked, StatusGated:
		return OutcomeSkipped
	default:
		return OutcomePartial
	}
}
