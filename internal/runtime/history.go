package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/automation/internal/audit"
	"github.com/gyaneshwarpardhi/automation/internal/explain"
	"github.com/gyaneshwarpardhi/automation/internal/metrics"
	"github.com/gyaneshwarpardhi/automation/internal/observability"
	"github.com/gyaneshwarpardhi/automation/internal/plan"
	"github.com/gyaneshwarpardhi/automation/internal/policy"
)

const (
	snapshotSource   = "automation-runtime"
	snapshotAudience = "operator"
)

var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:automation:run"))

// RunID is the deterministic id of one rule version evaluated for one
// event, so redelivered events map onto the same run.
func RunID(tenantID, eventID, ruleID, ruleVersionID string) string {
	return uuid.NewSHA1(runNamespace, []byte(tenantID+"/"+eventID+"/"+ruleID+"/"+ruleVersionID)).String()
}

// ActionRunID is the deterministic id of the i-th planned action of a run.
func ActionRunID(runID string, i int) string {
	return uuid.NewSHA1(runNamespace, []byte(runID+"/action/"+strconv.Itoa(i))).String()
}

// recordRuns writes history records and explain snapshots. Failures are
// logged; the plan has already been produced and audited.
func (r *Runtime) recordRuns(ctx context.Context, p *plan.Plan, ref *AuditRef, gateDecision *policy.Decision, startedAt time.Time, durations []float64) {
	if r.history == nil && r.snapshots == nil {
		return
	}
	ev := p.Event
	for i, m := range p.MatchedRules {
		run := observability.RunRecord{
			ID:            RunID(ev.TenantID, ev.ID, m.RuleID, m.VersionID),
			TenantID:      ev.TenantID,
			BrandID:       ev.BrandID(),
			EventID:       ev.ID,
			EventName:     ev.Name,
			RuleID:        m.RuleID,
			RuleVersionID: m.VersionID,
			AuditID:       ref.AuditID,
			DecisionPath:  []string{explain.RuleStep(m)},
			StartedAt:     startedAt,
			DurationMs:    durations[i],
		}
		switch {
		case !m.Condition.Passed:
			run.Status = observability.StatusSkipped
			run.ConditionReason = m.Condition.Code()
		case gateDecision != nil && gateDecision.Allowed:
			run.Status = observability.StatusPlanned
		default:
			run.Status = observability.StatusGated
		}
		if gateDecision != nil && m.Condition.Passed {
			run.DecisionPath = append(run.DecisionPath, explain.DecisionFactor("execution gate", *gateDecision))
		}

		actions := make([]observability.ActionRunRecord, 0, len(m.PlannedActions))
		for j, it := range m.PlannedActions {
			a := observability.ActionRunRecord{
				ID:            ActionRunID(run.ID, j),
				RunID:         run.ID,
				RuleVersionID: m.VersionID,
				TenantID:      ev.TenantID,
				ActionType:    it.Type,
				Status:        observability.StatusPending,
				RunnerType:    it.Mode,
				CreatedAt:     startedAt,
			}
			if run.Status == observability.StatusGated {
				a.Status = observability.StatusBlocked
				a.GateResult = observability.GateResultBlocked
				a.ErrorCode = observability.CodePolicyBlocked
				if gateDecision != nil {
					a.ErrorMessage = gateDecision.Reason
				}
			}
			actions = append(actions, a)
		}

		r.storeRun(ctx, run, actions)
		r.storeSnapshot(ctx, run, actions)
	}
}

func (r *Runtime) storeRun(ctx context.Context, run observability.RunRecord, actions []observability.ActionRunRecord) {
	if r.history == nil {
		return
	}
	if err := r.history.RecordRun(ctx, run); err != nil {
		r.logger.Error("record run failed", "run_id", run.ID, "err", err)
		return
	}
	for _, a := range actions {
		if err := r.history.RecordActionRun(ctx, a); err != nil {
			r.logger.Error("record action run failed", "action_run_id", a.ID, "err", err)
		}
	}
}

func (r *Runtime) storeSnapshot(ctx context.Context, run observability.RunRecord, actions []observability.ActionRunRecord) {
	if r.snapshots == nil {
		return
	}
	if err := r.persistSnapshot(ctx, run, actions); err != nil {
		metrics.SnapshotWrites.WithLabelValues("error").Inc()
		r.logger.Error("explain snapshot failed", "run_id", run.ID, "err", err)
	}
}

func (r *Runtime) persistSnapshot(ctx context.Context, run observability.RunRecord, actions []observability.ActionRunRecord) error {
	snap, err := explain.NewSnapshot(explain.RunSnapshot{
		Run:         run,
		ActionRuns:  actions,
		Explanation: explain.RunExplanation(run, actions),
	}, snapshotSource, snapshotAudience, r.now())
	if err != nil {
		return err
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	inserted, err := r.snapshots.Persist(ctx, audit.SnapshotRecord{
		RunID:         run.ID,
		RuleVersionID: run.RuleVersionID,
		TenantID:      run.TenantID,
		BrandID:       run.BrandID,
		SnapshotJSON:  body,
	})
	if err != nil {
		return err
	}
	if inserted {
		metrics.SnapshotWrites.WithLabelValues("inserted").Inc()
	} else {
		metrics.SnapshotWrites.WithLabelValues("duplicate").Inc()
		r.logger.Debug("explain snapshot already captured", "run_id", run.ID)
	}
	return nil
}
