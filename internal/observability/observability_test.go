package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeLatencyMetrics(t *testing.T) {
	assert.Equal(t, LatencyMetrics{}, ComputeLatencyMetrics(nil))
	assert.Equal(t, LatencyMetrics{}, ComputeLatencyMetrics([]float64{}))

	in := []float64{100, 90, 80, 70, 60, 50, 40, 30, 20, 10}
	got := ComputeLatencyMetrics(in)
	assert.Equal(t, LatencyMetrics{Avg: 55, P50: 60, P95: 100}, got)
	assert.Equal(t, 100.0, in[0], "input must not be sorted in place")

	assert.Equal(t, LatencyMetrics{Avg: 7, P50: 7, P95: 7}, ComputeLatencyMetrics([]float64{7}))
}

func TestComputeSuccessRate(t *testing.T) {
	assert.Equal(t, 0.0, ComputeSuccessRate(0, 0))
	assert.Equal(t, 0.5, ComputeSuccessRate(5, 10))
	assert.Equal(t, 1.0, ComputeSuccessRate(3, 3))
}

func TestClassifyFailure(t *testing.T) {
	cases := []struct {
		name string
		in   FailureInput
		want FailureCategory
	}{
		{"empty", FailureInput{}, FailureUnknownInternal},
		{"external prefix beats timeout", FailureInput{ErrorCode: "EXT_TIMEOUT"}, FailureRetryableExternal},
		{"external prefix beats validation message", FailureInput{ErrorCode: "EXT_HTTP_503", ErrorMessage: "validation"}, FailureRetryableExternal},
		{"validation code", FailureInput{ErrorCode: "VALIDATION_FAILED"}, FailureValidation},
		{"validation message any case", FailureInput{ErrorMessage: "Schema Validation error"}, FailureValidation},
		{"validation beats policy", FailureInput{ErrorCode: "POLICY_BLOCKED", ErrorMessage: "validation"}, FailureValidation},
		{"policy code", FailureInput{ErrorCode: "POLICY_BLOCKED"}, FailurePolicyBlocked},
		{"gate blocked", FailureInput{GateResult: "BLOCKED"}, FailurePolicyBlocked},
		{"rate limited", FailureInput{ErrorCode: "RATE_LIMITED"}, FailureRateLimited},
		{"timeout code", FailureInput{ErrorCode: "TIMEOUT"}, FailureActionTimeout},
		{"timeout message", FailureInput{ErrorMessage: "upstream TIMEOUT after 5s"}, FailureActionTimeout},
		{"other", FailureInput{ErrorCode: "BOOM", RunnerType: "email"}, FailureUnknownInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyFailure(tc.in))
		})
	}
}

func TestResolveRunOutcome(t *testing.T) {
	ok := ActionRunRecord{Status: StatusSuccess}
	failed := ActionRunRecord{Status: StatusFailed}

	assert.Equal(t, OutcomeSuccess, ResolveRunOutcome(RunRecord{Status: StatusSuccess}, []ActionRunRecord{ok}))
	assert.Equal(t, OutcomeSuccess, ResolveRunOutcome(RunRecord{Status: StatusSuccess}, nil))
	assert.Equal(t, OutcomeFailed, ResolveRunOutcome(RunRecord{Status: StatusSuccess}, []ActionRunRecord{ok, failed}))
	assert.Equal(t, OutcomeFailed, ResolveRunOutcome(RunRecord{Status: StatusFailed}, nil))
	assert.Equal(t, OutcomeSkipped, ResolveRunOutcome(RunRecord{Status: StatusBlocked}, nil))
	assert.Equal(t, OutcomeSkipped, ResolveRunOutcome(RunRecord{Status: StatusGated}, []ActionRunRecord{{Status: StatusBlocked}}))
	assert.Equal(t, OutcomePartial, ResolveRunOutcome(RunRecord{Status: StatusPlanned}, []ActionRunRecord{{Status: StatusPending}}))
}

func TestResolveRuleVersionOutcome(t *testing.T) {
	cases := []struct {
		name string
		in   []Outcome
		want Outcome
	}{
		{"none", nil, OutcomeSkipped},
		{"all success", []Outcome{OutcomeSuccess, OutcomeSuccess}, OutcomeSuccess},
		{"all skipped", []Outcome{OutcomeSkipped}, OutcomeSkipped},
		{"failed no success", []Outcome{OutcomeFailed, OutcomeSkipped}, OutcomeFailed},
		{"mixed", []Outcome{OutcomeFailed, OutcomeSuccess}, OutcomePartial},
		{"success and skipped", []Outcome{OutcomeSuccess, OutcomeSkipped}, OutcomePartial},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveRuleVersionOutcome(tc.in))
		})
	}
}

func TestResolveActionRunOutcome(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, ResolveActionRunOutcome(ActionRunRecord{Status: StatusSuccess}))
	assert.Equal(t, OutcomeFailed, ResolveActionRunOutcome(ActionRunRecord{Status: StatusFailed}))
	assert.Equal(t, OutcomeSkipped, ResolveActionRunOutcome(ActionRunRecord{Status: StatusBlocked}))
	assert.Equal(t, OutcomePartial, ResolveActionRunOutcome(ActionRunRecord{Status: StatusPending}))
}

func TestFailureBreakdown(t *testing.T) {
	b := FailureBreakdown([]ActionRunRecord{
		{Status: StatusSuccess, ErrorCode: "EXT_X"},
		{Status: StatusBlocked, GateResult: GateResultBlocked, ErrorCode: CodePolicyBlocked},
		{Status: StatusFailed, ErrorCode: "EXT_HTTP"},
		{Status: StatusFailed},
	})
	assert.Equal(t, 3, b.Total)
	assert.Equal(t, 1, b.Categories[FailurePolicyBlocked])
	assert.Equal(t, 1, b.Categories[FailureRetryableExternal])
	assert.Equal(t, 1, b.Categories[FailureUnknownInternal])
	assert.Equal(t, 0, b.Categories[FailureRateLimited])
	assert.Len(t, b.Categories, len(FailureCategories))
}

func TestMemoryHistoryAndService(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, d := range []float64{10, 20, 30, 40} {
		require.NoError(t, h.RecordRun(ctx, RunRecord{
			ID:            string(rune('a' + i)),
			RuleVersionID: "v1",
			Status:        StatusSuccess,
			StartedAt:     base.Add(time.Duration(i) * time.Hour),
			DurationMs:    d,
		}))
	}
	// Duplicate ids are ignored.
	require.NoError(t, h.RecordRun(ctx, RunRecord{ID: "a", DurationMs: 999, StartedAt: base}))
	require.NoError(t, h.RecordActionRun(ctx, ActionRunRecord{ID: "x1", RunID: "b", Status: StatusFailed, ErrorCode: "TIMEOUT", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, h.RecordActionRun(ctx, ActionRunRecord{ID: "x1", RunID: "b", Status: StatusSuccess, CreatedAt: base}))

	r, err := h.Run(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 10.0, r.DurationMs)
	missing, err := h.Run(ctx, "zzz")
	require.NoError(t, err)
	assert.Nil(t, missing)

	byVersion, err := h.RunsByRuleVersion(ctx, "v1")
	require.NoError(t, err)
	assert.Len(t, byVersion, 4)

	svc := NewService(h)
	lm, err := svc.LatencyMetrics(ctx, Window{})
	require.NoError(t, err)
	assert.Equal(t, LatencyMetrics{Avg: 25, P50: 30, P95: 40}, lm)

	lm, err = svc.LatencyMetrics(ctx, Window{From: base.Add(time.Hour), To: base.Add(3 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, LatencyMetrics{Avg: 25, P50: 30, P95: 30}, lm)

	rate, err := svc.SuccessRate(ctx, Window{})
	require.NoError(t, err)
	assert.Equal(t, 0.75, rate)

	b, err := svc.FailureBreakdown(ctx, Window{})
	require.NoError(t, err)
	assert.Equal(t, 1, b.Total)
	assert.Equal(t, 1, b.Categories[FailureActionTimeout])
}

func TestMemoryHistoryEvictsOldestRuns(t *testing.T) {
	ctx := context.Background()
	h := NewMemoryHistory(WithMaxRuns(10))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 11; i++ {
		id := fmt.Sprintf("run-%02d", i)
		require.NoError(t, h.RecordRun(ctx, RunRecord{ID: id, RuleVersionID: "v1", StartedAt: base.Add(time.Duration(i) * time.Minute)}))
		require.NoError(t, h.RecordActionRun(ctx, ActionRunRecord{ID: id + "/0", RunID: id, CreatedAt: base}))
	}

	assert.Equal(t, 9, h.Len())
	for _, gone := range []string{"run-00", "run-01"} {
		r, err := h.Run(ctx, gone)
		require.NoError(t, err)
		assert.Nil(t, r)
		a, err := h.ActionRun(ctx, gone+"/0")
		require.NoError(t, err)
		assert.Nil(t, a)
	}

	r, err := h.Run(ctx, "run-10")
	require.NoError(t, err)
	require.NotNil(t, r)
	actions, err := h.ActionRunsByRun(ctx, "run-10")
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "run-10/0", actions[0].ID)

	all, err := h.ActionRuns(ctx, Window{})
	require.NoError(t, err)
	assert.Len(t, all, 9)

	// Action runs of an evicted run are not retained.
	require.NoError(t, h.RecordActionRun(ctx, ActionRunRecord{ID: "late", RunID: "run-00"}))
	a, err := h.ActionRun(ctx, "late")
	require.NoError(t, err)
	assert.Nil(t, a)
}
