package runtime

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/gyaneshwarpardhi/automation/internal/action"
	"github.com/gyaneshwarpardhi/automation/internal/audit"
	"github.com/gyaneshwarpardhi/automation/internal/condition"
	"github.com/gyaneshwarpardhi/automation/internal/config"
	"github.com/gyaneshwarpardhi/automation/internal/event"
	"github.com/gyaneshwarpardhi/automation/internal/explain"
	"github.com/gyaneshwarpardhi/automation/internal/gate"
	"github.com/gyaneshwarpardhi/automation/internal/intent"
	"github.com/gyaneshwarpardhi/automation/internal/observability"
	"github.com/gyaneshwarpardhi/automation/internal/plan"
	"github.com/gyaneshwarpardhi/automation/internal/policy"
	"github.com/gyaneshwarpardhi/automation/internal/rule"
)

var fixedNow = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func dealEvent() *event.Event {
	return &event.Event{
		ID:         "ev-42",
		Name:       "deal.updated",
		OccurredAt: fixedNow.Add(-time.Minute),
		TenantID:   "t1",
		Payload:    map[string]any{"amount": 2500.0, "stage": "won"},
	}
}

func jl(cfg map[string]any) []condition.Condition {
	return []condition.Condition{{Kind: condition.KindJSONLogic, Config: cfg}}
}

func dealMatches() []rule.Match {
	return []rule.Match{
		{RuleID: "low", VersionID: "low-v1", RuleName: "low", Priority: 1,
			Actions: []action.Action{{Type: "LOG", Params: map[string]any{"message": "low"}}}},
		{RuleID: "high-a", VersionID: "high-a-v1", RuleName: "high a", Priority: 10,
			Conditions: jl(map[string]any{">": []any{map[string]any{"var": "payload.amount"}, 1000}}),
			Actions: []action.Action{
				{Type: "CREATE_TASK", Params: map[string]any{"title": "follow up"}},
				{Type: "SEND_EMAIL"},
			}},
		{RuleID: "lost", VersionID: "lost-v1", RuleName: "lost", Priority: 5,
			Conditions: jl(map[string]any{"==": []any{map[string]any{"var": "payload.stage"}, "lost"}}),
			Actions:    []action.Action{{Type: "LOG"}}},
		{RuleID: "high-b", VersionID: "high-b-v1", RuleName: "high b", Priority: 10},
	}
}

func TestRunPlanOnlyOrderingAndVerdicts(t *testing.T) {
	rt := New(audit.NewMemoryStore(), WithClock(fixedClock))
	res, err := rt.RunPlanOnly(context.Background(), dealEvent(), dealMatches())
	require.NoError(t, err)

	p := res.Plan
	ids := make([]string, 0, len(p.MatchedRules))
	for _, m := range p.MatchedRules {
		ids = append(ids, m.RuleID)
	}
	assert.Equal(t, []string{"high-a", "high-b", "lost", "low"}, ids)

	assert.True(t, p.MatchedRules[0].Condition.Passed)
	assert.Equal(t, []action.PlanItem{
		{Type: "CREATE_TASK", Params: map[string]any{"title": "follow up"}, Mode: action.ModePlanOnly},
		{Type: "SEND_EMAIL", Params: map[string]any{}, Mode: action.ModePlanOnly},
	}, p.MatchedRules[0].PlannedActions)

	assert.True(t, p.MatchedRules[1].Condition.Passed)
	assert.Equal(t, []action.PlanItem{}, p.MatchedRules[1].PlannedActions)

	lost := p.MatchedRules[2]
	assert.False(t, lost.Condition.Passed)
	assert.Equal(t, condition.ReasonNotMet, lost.Condition.Code())
	assert.Empty(t, lost.PlannedActions)
	assert.NotNil(t, lost.PlannedActions)

	assert.Equal(t, plan.Meta{EvaluatedAt: fixedNow, Engine: "json-logic", Mode: "PLAN_ONLY"}, p.Meta)

	require.NotNil(t, res.Audit)
	assert.True(t, res.Audit.Captured)
	assert.Equal(t, "PLAN_TRACE", res.Audit.Kind)

	require.NotNil(t, res.ExecutionGate)
	assert.False(t, res.ExecutionGate.Allowed)
	assert.Equal(t, policy.ModeDisabled, res.ExecutionGate.Mode)
	require.NotNil(t, res.PolicyDecision)
	assert.False(t, res.PolicyDecision.Allowed)
	require.NotNil(t, res.Explain)
	assert.Equal(t, explain.ConfidenceHigh, res.Explain.Confidence)

	stored, err := rt.GetPlan(context.Background(), res.Audit.AuditID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "high-a", stored.Plan.MatchedRules[0].RuleID)
}

func TestRunPlanOnlyDeterministic(t *testing.T) {
	rt := New(audit.NewMemoryStore(), WithClock(fixedClock))
	a, err := rt.RunPlanOnly(context.Background(), dealEvent(), dealMatches())
	require.NoError(t, err)
	b, err := rt.RunPlanOnly(context.Background(), dealEvent(), dealMatches())
	require.NoError(t, err)

	assert.Equal(t, a.Plan, b.Plan)
	assert.NotEqual(t, a.Audit.AuditID, b.Audit.AuditID)
}

func TestRunPlanOnlyAuditReadBackIsEqual(t *testing.T) {
	stores := map[string]func(t *testing.T) audit.Store{
		"memory": func(*testing.T) audit.Store { return audit.NewMemoryStore() },
		"sqlite": func(t *testing.T) audit.Store {
			s, err := audit.OpenSQLite(filepath.Join(t.TempDir(), "audit.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
	ev := dealEvent()
	ev.OccurredAt = ev.OccurredAt.In(time.FixedZone("CEST", 2*60*60))
	ev.Payload = map[string]any{"amount": 2500, "stage": "won", "tags": []string{"vip"}}
	ev.Meta = &event.Meta{Source: "crm", BrandID: "b1"}
	matches := []rule.Match{
		{RuleID: "task", VersionID: "task-v1", Priority: 3, Actions: []action.Action{
			{Type: "CREATE_TASK", Params: map[string]any{"title": "Call the buyer", "due_in_hours": 24}},
		}},
		{RuleID: "lost", VersionID: "lost-v1", Priority: 2,
			Conditions: jl(map[string]any{"==": []any{map[string]any{"var": "payload.stage"}, "lost"}})},
		{RuleID: "cel", VersionID: "cel-v1", Priority: 1,
			Conditions: []condition.Condition{{Kind: "cel", Config: map[string]any{"expr": "true"}}}},
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			rt := New(open(t), WithClock(fixedClock))
			res, err := rt.RunPlanOnly(context.Background(), ev, matches)
			require.NoError(t, err)
			require.True(t, res.Audit.Captured)

			rec, err := rt.GetPlan(context.Background(), res.Audit.AuditID)
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, *res.Plan, rec.Plan)
			assert.Equal(t, float64(24), res.Plan.MatchedRules[0].PlannedActions[0].Params["due_in_hours"])
			assert.Equal(t, float64(0), res.Plan.MatchedRules[2].Condition.Details["index"])
		})
	}
}

func TestRunPlanOnlyPlanIsDetachedFromInputs(t *testing.T) {
	cat := rule.NewStaticCatalog([]rule.Rule{{
		ID: "task", VersionID: "task-v1", Enabled: true,
		Trigger: rule.Trigger{EventType: "deal.updated"},
		Actions: []action.Action{{Type: "CREATE_TASK", Params: map[string]any{"title": "Call the buyer"}}},
	}})
	rt := New(audit.NewMemoryStore(), WithClock(fixedClock), WithMatcher(rule.NewMatcher(cat)))
	ev := dealEvent()

	res, err := rt.RunEvent(context.Background(), ev)
	require.NoError(t, err)
	res.Plan.MatchedRules[0].PlannedActions[0].Params["title"] = "MUTATED"
	res.Plan.Event.Payload["stage"] = "MUTATED"

	assert.Equal(t, "Call the buyer", cat.All()[0].Actions[0].Params["title"])
	assert.Equal(t, "won", ev.Payload["stage"])

	again, err := rt.RunEvent(context.Background(), dealEvent())
	require.NoError(t, err)
	assert.Equal(t, "Call the buyer", again.Plan.MatchedRules[0].PlannedActions[0].Params["title"])
}

func TestRunPlanOnlyDoesNotReorderInput(t *testing.T) {
	matches := dealMatches()
	rt := New(audit.NewMemoryStore(), WithClock(fixedClock))
	_, err := rt.RunPlanOnly(context.Background(), dealEvent(), matches)
	require.NoError(t, err)
	assert.Equal(t, "low", matches[0].RuleID)
}

func TestRunPlanOnlyNoMatches(t *testing.T) {
	rt := New(audit.NewMemoryStore(), WithClock(fixedClock))
	res, err := rt.RunPlanOnly(context.Background(), dealEvent(), nil)
	require.NoError(t, err)
	assert.NotNil(t, res.Plan.MatchedRules)
	assert.Empty(t, res.Plan.MatchedRules)
	assert.True(t, res.Audit.Captured)
	assert.Equal(t, observability.OutcomeSkipped, res.Explain.Outcome)
}

func TestRunPlanOnlyRejectsInvalidEvent(t *testing.T) {
	rt := New(audit.NewMemoryStore())
	ev := dealEvent()
	ev.TenantID = ""
	_, err := rt.RunPlanOnly(context.Background(), ev, dealMatches())
	assert.ErrorIs(t, err, event.ErrMissingTenant)

	_, err = rt.RunPlanOnly(context.Background(), nil, nil)
	assert.Error(t, err)
}

type failingStore struct{}

func (failingStore) Write(context.Context, *plan.Plan) (string, error) {
	return "", errors.New("disk full")
}

func (failingStore) Read(context.Context, string) (*audit.Record, error) { return nil, nil }

func TestRunPlanOnlyAuditFailure(t *testing.T) {
	cache := intent.New(time.Hour, 10)
	rt := New(failingStore{}, WithClock(fixedClock), WithIntents(cache))
	res, err := rt.RunPlanOnly(context.Background(), dealEvent(), dealMatches())
	require.NoError(t, err)
	assert.False(t, res.Audit.Captured)
	assert.Empty(t, res.Audit.AuditID)
	assert.Len(t, res.Plan.MatchedRules, 4)
	assert.Equal(t, 0, cache.Len())
}

func TestRunPlanOnlyRecordsHistoryAndSnapshots(t *testing.T) {
	ctx := context.Background()
	history := observability.NewMemoryHistory()
	snaps := audit.NewMemorySnapshotStore()
	cache := intent.New(time.Hour, 10, intent.WithClock(fixedClock))
	rt := New(audit.NewMemoryStore(),
		WithClock(fixedClock),
		WithHistory(history),
		WithSnapshots(snaps),
		WithIntents(cache),
	)

	res, err := rt.RunPlanOnly(ctx, dealEvent(), dealMatches())
	require.NoError(t, err)

	runID := RunID("t1", "ev-42", "high-a", "high-a-v1")
	run, err := history.Run(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, observability.StatusGated, run.Status)
	assert.Equal(t, res.Audit.AuditID, run.AuditID)

	actions, err := history.ActionRunsByRun(ctx, runID)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	for _, a := range actions {
		assert.Equal(t, observability.StatusBlocked, a.Status)
		assert.Equal(t, observability.FailurePolicyBlocked, observability.ClassifyFailure(observability.FailureInputOf(a)))
	}

	lost, err := history.Run(ctx, RunID("t1", "ev-42", "lost", "lost-v1"))
	require.NoError(t, err)
	assert.Equal(t, observability.StatusSkipped, lost.Status)
	assert.Equal(t, condition.ReasonNotMet, lost.ConditionReason)

	snap, err := snaps.Get(ctx, runID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	first := string(snap.SnapshotJSON)

	// Redelivery of the same event does not duplicate the capture.
	_, err = rt.RunPlanOnly(ctx, dealEvent(), dealMatches())
	require.NoError(t, err)
	snap, err = snaps.Get(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, first, string(snap.SnapshotJSON))
	runs, err := history.RunsByRuleVersion(ctx, "high-a-v1")
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	in, ok := rt.Intent(res.Audit.AuditID)
	require.True(t, ok)
	assert.Equal(t, "ev-42", in.EventID)
	require.NotNil(t, in.Gate)
	assert.False(t, in.Gate.Allowed)
}

func TestRunPlanOnlyWithPolicyGate(t *testing.T) {
	ctx := context.Background()
	g, p, err := ExecutionFromConfig(config.ExecutionConf{
		Gate:      config.GatePolicy,
		Policy:    config.PolicyCEL,
		EnabledBy: "ops",
		Policies: []config.PolicyDef{
			{Code: "MAX_ACTIONS", Message: "too many", Expression: "request.actionCount <= 5"},
		},
	})
	require.NoError(t, err)

	history := observability.NewMemoryHistory()
	rt := New(audit.NewMemoryStore(), WithClock(fixedClock), WithHistory(history), WithExecution(g, p))
	res, err := rt.RunPlanOnly(ctx, dealEvent(), dealMatches())
	require.NoError(t, err)

	assert.True(t, res.ExecutionGate.Allowed)
	assert.Equal(t, policy.ModeEnabled, res.ExecutionGate.Mode)
	assert.True(t, res.PolicyDecision.Allowed)

	run, err := history.Run(ctx, RunID("t1", "ev-42", "high-a", "high-a-v1"))
	require.NoError(t, err)
	assert.Equal(t, observability.StatusPlanned, run.Status)
	actions, err := history.ActionRunsByRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, observability.StatusPending, actions[0].Status)

	// Hot swap back to the kill switch.
	rt.SwapExecution(gate.Disabled{}, policy.Disabled{})
	res, err = rt.RunPlanOnly(ctx, dealEvent(), dealMatches())
	require.NoError(t, err)
	assert.False(t, res.ExecutionGate.Allowed)
}

func TestRunEvent(t *testing.T) {
	cat := rule.NewStaticCatalog([]rule.Rule{
		{ID: "r1", VersionID: "r1v1", Enabled: true, Priority: 1, Trigger: rule.Trigger{EventType: "deal.updated"},
			Actions: []action.Action{{Type: "LOG", Params: map[string]any{"message": "hi"}}}},
		{ID: "r2", VersionID: "r2v1", Enabled: true, Trigger: rule.Trigger{EventType: "deal.created"}},
	})
	rt := New(audit.NewMemoryStore(), WithClock(fixedClock), WithMatcher(rule.NewMatcher(cat)))

	res, err := rt.RunEvent(context.Background(), dealEvent())
	require.NoError(t, err)
	require.Len(t, res.Plan.MatchedRules, 1)
	assert.Equal(t, "r1", res.Plan.MatchedRules[0].RuleID)

	_, err = New(audit.NewMemoryStore()).RunEvent(context.Background(), dealEvent())
	assert.ErrorIs(t, err, ErrNoCatalog)
}

func TestRunID(t *testing.T) {
	assert.Equal(t, RunID("t", "e", "r", "v"), RunID("t", "e", "r", "v"))
	assert.NotEqual(t, RunID("t", "e", "r", "v"), RunID("t", "e", "r", "v2"))
	assert.NotEqual(t, RunID("t", "e", "r1", "v"), RunID("t", "e", "r2", "v"))
	assert.NotEqual(t, ActionRunID("r", 0), ActionRunID("r", 1))
}

func TestRunPlanOnlySharedVersionIDKeepsRunsApart(t *testing.T) {
	ctx := context.Background()
	history := observability.NewMemoryHistory()
	rt := New(audit.NewMemoryStore(), WithClock(fixedClock), WithHistory(history))

	_, err := rt.RunPlanOnly(ctx, dealEvent(), []rule.Match{
		{RuleID: "a", VersionID: "shared-v1", Actions: []action.Action{{Type: "LOG"}}},
		{RuleID: "b", VersionID: "shared-v1", Actions: []action.Action{{Type: "LOG"}}},
	})
	require.NoError(t, err)

	runs, err := history.RunsByRuleVersion(ctx, "shared-v1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.ElementsMatch(t, []string{"a", "b"}, []string{runs[0].RuleID, runs[1].RuleID})
}

func TestActionLabelIsBounded(t *testing.T) {
	assert.Equal(t, "CREATE_TASK", actionLabel("CREATE_TASK"))
	assert.Equal(t, "OTHER", actionLabel("caller-supplied-type-123"))
}

func TestExecutionFromConfigDefaults(t *testing.T) {
	g, p, err := ExecutionFromConfig(config.ExecutionConf{Gate: config.GateDisabled, Policy: config.PolicyDisabled})
	require.NoError(t, err)
	assert.IsType(t, gate.Disabled{}, g)
	assert.IsType(t, policy.Disabled{}, p)

	_, _, err = ExecutionFromConfig(config.ExecutionConf{Policy: config.PolicyCEL, Policies: []config.PolicyDef{{Code: "X", Expression: "("}}})
	assert.Error(t, err)
}

func TestRunEventSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	cat := rule.NewStaticCatalog(nil)
	rt := New(audit.NewMemoryStore(), WithMatcher(rule.NewMatcher(cat)), WithTracer(tp.Tracer("test")))

	_, err := rt.RunEvent(context.Background(), dealEvent())
	require.NoError(t, err)

	ended := sr.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "runtime.RunPlanOnly", ended[0].Name())
	assert.Equal(t, "runtime.RunEvent", ended[1].Name())
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
}
