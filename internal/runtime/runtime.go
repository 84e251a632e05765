// Package runtime orchestrates one event through matching, condition
// evaluation, action planning, auditing and the gate/policy checks. It plans
// only: no action is ever executed.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gyaneshwarpardhi/automation/internal/action"
	"github.com/gyaneshwarpardhi/automation/internal/audit"
	"github.com/gyaneshwarpardhi/automation/internal/condition"
	"github.com/gyaneshwarpardhi/automation/internal/event"
	"github.com/gyaneshwarpardhi/automation/internal/explain"
	"github.com/gyaneshwarpardhi/automation/internal/gate"
	"github.com/gyaneshwarpardhi/automation/internal/intent"
	"github.com/gyaneshwarpardhi/automation/internal/jsonvalue"
	"github.com/gyaneshwarpardhi/automation/internal/metrics"
	"github.com/gyaneshwarpardhi/automation/internal/observability"
	"github.com/gyaneshwarpardhi/automation/internal/plan"
	"github.com/gyaneshwarpardhi/automation/internal/policy"
	"github.com/gyaneshwarpardhi/automation/internal/rule"
)

// ErrNoCatalog is returned by RunEvent when no matcher is wired.
var ErrNoCatalog = errors.New("runtime: no rule catalog configured")

// knownActions bounds the action_type metric label.
var knownActions = action.DefaultRegistry()

const otherActionLabel = "OTHER"

// AuditRef points at the audit record written for a plan.
type AuditRef struct {
	AuditID  string `json:"auditId"`
	Kind     string `json:"kind"`
	Captured bool   `json:"captured"`
}

// Result is everything one invocation produces.
type Result struct {
	Plan           *plan.Plan           `json:"plan"`
	PolicyDecision *policy.Decision     `json:"policyDecision,omitempty"`
	ExecutionGate  *policy.Decision     `json:"executionGate,omitempty"`
	Explain        *explain.Explanation `json:"explain,omitempty"`
	Audit          *AuditRef            `json:"audit,omitempty"`
}

type execution struct {
	gate   gate.Gate
	policy policy.Engine
}

// Runtime is safe for concurrent use; each call builds a fresh plan.
type Runtime struct {
	matcher   *rule.Matcher
	evaluator *rule.Evaluator
	audit     audit.Store
	snapshots audit.SnapshotStore
	history   observability.History
	intents   *intent.Cache
	exec      atomic.Pointer[execution]
	now       func() time.Time
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithClock fixes the time source used for plan timestamps and run timing.
func WithClock(now func() time.Time) Option { return func(r *Runtime) { r.now = now } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(r *Runtime) { r.logger = l } }

// WithTracer replaces the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option { return func(r *Runtime) { r.tracer = t } }

// WithMatcher wires the rule catalog used by RunEvent.
func WithMatcher(m *rule.Matcher) Option { return func(r *Runtime) { r.matcher = m } }

// WithEvaluator replaces the default json-logic rule evaluator.
func WithEvaluator(e *rule.Evaluator) Option { return func(r *Runtime) { r.evaluator = e } }

// WithSnapshots persists one explain snapshot per run.
func WithSnapshots(s audit.SnapshotStore) Option { return func(r *Runtime) { r.snapshots = s } }

// WithHistory records run and action-run records.
func WithHistory(h observability.History) Option { return func(r *Runtime) { r.history = h } }

// WithIntents records an execution intent per audited plan.
func WithIntents(c *intent.Cache) Option { return func(r *Runtime) { r.intents = c } }

// WithExecution sets the gate and policy engine. Either may be nil to skip it.
func WithExecution(g gate.Gate, p policy.Engine) Option {
	return func(r *Runtime) { r.exec.Store(&execution{gate: g, policy: p}) }
}

// New creates a Runtime writing plans to store. Gate and policy default to
// their disabled (deny-all) variants.
func New(store audit.Store, opts ...Option) *Runtime {
	r := &Runtime{
		evaluator: rule.NewEvaluator(condition.NewJSONLogic()),
		audit:     store,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    slog.Default(),
		tracer:    otel.Tracer("github.com/gyaneshwarpardhi/automation/internal/runtime"),
	}
	r.exec.Store(&execution{gate: gate.Disabled{}, policy: policy.Disabled{}})
	for _, o := range opts {
		o(r)
	}
	return r
}

// SwapExecution atomically replaces the gate and policy engine (used on hot-reload).
func (r *Runtime) SwapExecution(g gate.Gate, p policy.Engine) {
	r.exec.Store(&execution{gate: g, policy: p})
}

// RunEvent matches ev against the catalog and plans the result.
func (r *Runtime) RunEvent(ctx context.Context, ev *event.Event) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "runtime.RunEvent")
	defer span.End()

	if err := validate(ev); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if r.matcher == nil {
		return nil, ErrNoCatalog
	}
	matches, err := r.matcher.Match(ctx, ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("run event %s: %w", ev.ID, err)
	}
	return r.RunPlanOnly(ctx, ev, matches)
}

// RunPlanOnly plans ev against already matched rules. The only error is an
// invalid event; every business outcome is part of the returned plan.
func (r *Runtime) RunPlanOnly(ctx context.Context, ev *event.Event, matches []rule.Match) (*Result, error) {
	ctx, span := r.tracer.Start(ctx, "runtime.RunPlanOnly")
	defer span.End()
	wall := time.Now()

	if err := validate(ev); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("automation.tenant_id", ev.TenantID),
		attribute.String("automation.event", ev.Name),
		attribute.Int("automation.matches", len(matches)),
	)

	evaluatedAt := r.now().UTC()
	sorted := make([]rule.Match, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	matched := make([]plan.MatchedRule, 0, len(sorted))
	durations := make([]float64, 0, len(sorted))
	for _, m := range sorted {
		start := r.now()
		verdict := r.evaluator.EvaluateAll(ev, m.Conditions)
		verdict.Details = jsonvalue.CopyMap(verdict.Details)
		planned := []action.PlanItem{}
		if verdict.Passed {
			planned = action.Plan(m.Actions)
		}
		durations = append(durations, float64(r.now().Sub(start))/float64(time.Millisecond))

		metrics.RulesMatched.Inc()
		metrics.ConditionEvaluations.WithLabelValues(verdictLabel(verdict)).Inc()
		for _, it := range planned {
			metrics.ActionsPlanned.WithLabelValues(actionLabel(it.Type)).Inc()
		}
		matched = append(matched, plan.MatchedRule{
			RuleID:         m.RuleID,
			VersionID:      m.VersionID,
			RuleName:       m.RuleName,
			Priority:       m.Priority,
			Condition:      verdict,
			PlannedActions: planned,
		})
	}

	p := &plan.Plan{
		Event:        canonicalEvent(ev),
		MatchedRules: matched,
		Meta: plan.Meta{
			EvaluatedAt: evaluatedAt,
			Engine:      plan.EngineJSONLogic,
			Mode:        plan.ModePlanOnly,
		},
	}

	ref := r.capture(ctx, p)
	gateDecision, policyDecision := r.decide(p)
	ex := explain.ForPlan(p, gateDecision, policyDecision)

	r.recordRuns(ctx, p, ref, gateDecision, evaluatedAt, durations)
	if r.intents != nil && ref.Captured {
		r.intents.Put(intent.Intent{
			AuditID:  ref.AuditID,
			TenantID: ev.TenantID,
			EventID:  ev.ID,
			Gate:     gateDecision,
			Policy:   policyDecision,
		})
	}

	metrics.EventsPlanned.Inc()
	metrics.PlanDuration.Observe(float64(time.Since(wall).Microseconds()) / 1000)
	r.logger.Debug("plan built",
		"event_id", ev.ID,
		"tenant_id", ev.TenantID,
		"matched", len(matched),
		"planned_actions", p.ActionCount(),
		"audit_id", ref.AuditID,
	)

	return &Result{
		Plan:           p,
		PolicyDecision: policyDecision,
		ExecutionGate:  gateDecision,
		Explain:        &ex,
		Audit:          ref,
	}, nil
}

// GetPlan reads a previously audited plan; unknown ids return (nil, nil).
func (r *Runtime) GetPlan(ctx context.Context, auditID string) (*audit.Record, error) {
	return r.audit.Read(ctx, auditID)
}

// Intent returns the live execution intent for auditID.
func (r *Runtime) Intent(auditID string) (intent.Intent, bool) {
	if r.intents == nil {
		return intent.Intent{}, false
	}
	return r.intents.Get(auditID)
}

func (r *Runtime) capture(ctx context.Context, p *plan.Plan) *AuditRef {
	ref := &AuditRef{Kind: audit.KindPlanTrace}
	id, err := r.audit.Write(ctx, p)
	if err != nil {
		metrics.AuditWrites.WithLabelValues("error").Inc()
		r.logger.Error("audit write failed", "event_id", p.Event.ID, "tenant_id", p.Event.TenantID, "err", err)
		return ref
	}
	metrics.AuditWrites.WithLabelValues("ok").Inc()
	ref.AuditID = id
	ref.Captured = true
	return ref
}

func (r *Runtime) decide(p *plan.Plan) (gateDecision, policyDecision *policy.Decision) {
	exec := r.exec.Load()
	req := policy.RequestFor(p)
	if exec.policy != nil {
		d := exec.policy.Evaluate(req)
		policyDecision = &d
		countDecision("policy", d)
	}
	if exec.gate != nil {
		d := exec.gate.Check(req)
		gateDecision = &d
		countDecision("gate", d)
	}
	return gateDecision, policyDecision
}

func countDecision(component string, d policy.Decision) {
	allowed := "false"
	if d.Allowed {
		allowed = "true"
	}
	metrics.Decisions.WithLabelValues(component, d.Mode, allowed).Inc()
}

func actionLabel(actionType string) string {
	if _, err := knownActions.Get(actionType); err != nil {
		return otherActionLabel
	}
	return actionType
}

func verdictLabel(v condition.Result) string {
	if v.Passed {
		return "PASSED"
	}
	return v.Code()
}

// canonicalEvent detaches the event from the caller and holds only values a
// JSON round trip reproduces, so an audited plan reads back equal.
func canonicalEvent(ev *event.Event) event.Event {
	out := *ev
	out.OccurredAt = ev.OccurredAt.UTC()
	out.Payload = jsonvalue.CopyMap(ev.Payload)
	if ev.Meta != nil {
		meta := *ev.Meta
		out.Meta = &meta
	}
	return out
}

func validate(ev *event.Event) error {
	if ev == nil {
		metrics.EventsRejected.Inc()
		return errors.New("runtime: event is required")
	}
	if err := ev.Validate(); err != nil {
		metrics.EventsRejected.Inc()
		return fmt.Errorf("runtime: %w", err)
	}
	return nil
}
