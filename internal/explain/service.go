package explain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gyaneshwarpardhi/automation/internal/audit"
	"github.com/gyaneshwarpardhi/automation/internal/observability"
)

// ErrSnapshotCorrupt is returned when a persisted snapshot fails its checksum.
var ErrSnapshotCorrupt = errors.New("explain snapshot checksum mismatch")

// RunSnapshot is the payload captured once per run.
type RunSnapshot struct {
	Run         observability.RunRecord         `json:"run"`
	ActionRuns  []observability.ActionRunRecord `json:"actionRuns"`
	Explanation Explanation                     `json:"explanation"`
}

// Service answers explain queries from run history, falling back to
// persisted snapshots for runs the history no longer holds. Unknown ids
// return (nil, nil).
type Service struct {
	history   observability.History
	snapshots audit.SnapshotStore
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSnapshots reads runs missing from history out of s.
func WithSnapshots(s audit.SnapshotStore) ServiceOption {
	return func(svc *Service) { svc.snapshots = s }
}

// NewService creates a Service over h.
func NewService(h observability.History, opts ...ServiceOption) *Service {
	s := &Service{history: h}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ExplainRun explains one rule-version run and its action runs.
func (s *Service) ExplainRun(ctx context.Context, runID string) (*Explanation, error) {
	run, err := s.history.Run(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("explain run %s: %w", runID, err)
	}
	if run == nil {
		snap, err := s.RunSnapshot(ctx, runID)
		if err != nil || snap == nil {
			return nil, err
		}
		return &snap.Explanation, nil
	}
	actions, err := s.history.ActionRunsByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("explain run %s: %w", runID, err)
	}
	ex := RunExplanation(*run, actions)
	return &ex, nil
}

// RunSnapshot reads the persisted snapshot of runID. It returns (nil, nil)
// when no snapshot store is wired or none was captured.
func (s *Service) RunSnapshot(ctx context.Context, runID string) (*RunSnapshot, error) {
	if s.snapshots == nil {
		return nil, nil
	}
	rec, err := s.snapshots.Get(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", runID, err)
	}
	if rec == nil {
		return nil, nil
	}
	return DecodeRunSnapshot(rec.SnapshotJSON)
}

// DecodeRunSnapshot verifies a stored snapshot and decodes its payload.
func DecodeRunSnapshot(body []byte) (*RunSnapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if !snap.Verify() {
		return nil, fmt.Errorf("snapshot %s: %w", snap.Meta.SnapshotID, ErrSnapshotCorrupt)
	}
	var out RunSnapshot
	if err := json.Unmarshal(snap.Payload, &out); err != nil {
		return nil, fmt.Errorf("decode snapshot %s payload: %w", snap.Meta.SnapshotID, err)
	}
	return &out, nil
}

// RunExplanation builds the explanation of a run from its records.
func RunExplanation(run observability.RunRecord, actions []observability.ActionRunRecord) Explanation {
	factors := []string{fmt.Sprintf("run status %s", run.Status)}
	if run.ConditionReason != "" {
		factors = append(factors, fmt.Sprintf("condition %s", run.ConditionReason))
	}
	var logs []string
	durations := make([]float64, 0, len(actions))
	success := 0
	for _, a := range actions {
		logs = append(logs, fmt.Sprintf("action %s %s", a.ActionType, a.Status))
		durations = append(durations, a.DurationMs)
		if a.Status == observability.StatusSuccess {
			success++
		}
	}
	return Build(Input{
		Subject:             fmt.Sprintf("run %s of rule version %s", run.ID, run.RuleVersionID),
		Outcome:             observability.ResolveRunOutcome(run, actions),
		DecisionPath:        run.DecisionPath,
		ContributingFactors: factors,
		Metrics: map[string]any{
			"durationMs":  run.DurationMs,
			"actionRuns":  len(actions),
			"successRate": observability.ComputeSuccessRate(success, len(actions)),
			"latency":     observability.ComputeLatencyMetrics(durations),
		},
		Logs:     logs,
		Failures: failureLines(actions),
	})
}

// ExplainRuleVersion explains every recorded run of a rule version.
func (s *Service) ExplainRuleVersion(ctx context.Context, versionID string) (*Explanation, error) {
	runs, err := s.history.RunsByRuleVersion(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("explain rule version %s: %w", versionID, err)
	}
	if len(runs) == 0 {
		return nil, nil
	}
	outcomes := make([]observability.Outcome, 0, len(runs))
	durations := make([]float64, 0, len(runs))
	var allActions []observability.ActionRunRecord
	success := 0
	path := make([]string, 0, len(runs))
	for _, r := range runs {
		actions, err := s.history.ActionRunsByRun(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("explain rule version %s: %w", versionID, err)
		}
		o := observability.ResolveRunOutcome(r, actions)
		if o == observability.OutcomeSuccess {
			success++
		}
		outcomes = append(outcomes, o)
		durations = append(durations, r.DurationMs)
		allActions = append(allActions, actions...)
		path = append(path, fmt.Sprintf("run %s for event %s: %s", r.ID, r.EventID, o))
	}
	breakdown := observability.FailureBreakdown(allActions)
	factors := make([]string, 0, len(observability.FailureCategories))
	for _, c := range observability.FailureCategories {
		if n := breakdown.Categories[c]; n > 0 {
			factors = append(factors, fmt.Sprintf("%d action run(s) %s", n, c))
		}
	}

	ex := Build(Input{
		Subject:             fmt.Sprintf("rule version %s", versionID),
		Outcome:             observability.ResolveRuleVersionOutcome(outcomes),
		DecisionPath:        path,
		ContributingFactors: factors,
		Metrics: map[string]any{
			"runs":        len(runs),
			"successRate": observability.ComputeSuccessRate(success, len(runs)),
			"latency":     observability.ComputeLatencyMetrics(durations),
		},
		Failures: failureLines(allActions),
	})
	return &ex, nil
}

// ExplainActionRun explains a single action run.
func (s *Service) ExplainActionRun(ctx context.Context, id string) (*Explanation, error) {
	a, err := s.history.ActionRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("explain action run %s: %w", id, err)
	}
	if a == nil {
		return nil, nil
	}
	path := []string{
		fmt.Sprintf("run %s of rule version %s", a.RunID, a.RuleVersionID),
		fmt.Sprintf("action %s %s", a.ActionType, a.Status),
	}
	var factors []string
	if a.GateResult != "" {
		factors = append(factors, fmt.Sprintf("gate result %s", a.GateResult))
	}
	if a.ErrorCode != "" {
		factors = append(factors, fmt.Sprintf("error code %s", a.ErrorCode))
	}
	ex := Build(Input{
		Subject:             fmt.Sprintf("action run %s", a.ID),
		Outcome:             observability.ResolveActionRunOutcome(*a),
		DecisionPath:        path,
		ContributingFactors: factors,
		Metrics:             map[string]any{"durationMs": a.DurationMs},
		Failures:            failureLines([]observability.ActionRunRecord{*a}),
	})
	return &ex, nil
}

func failureLines(actions []observability.ActionRunRecord) []string {
	var out []string
	for _, a := range actions {
		if !observability.IsFailure(a) {
			continue
		}
		cat := observability.ClassifyFailure(observability.FailureInputOf(a))
		line := fmt.Sprintf("%s %s: %s", a.ActionType, a.ID, cat)
		if a.ErrorMessage != "" {
			line += " (" + a.ErrorMessage + ")"
		}
		out = append(out, line)
	}
	return out
}
