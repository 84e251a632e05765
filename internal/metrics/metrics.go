package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPlanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "automation_events_planned_total",
		Help: "Total number of events turned into a plan.",
	})

	EventsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "automation_events_rejected_total",
		Help: "Total number of events rejected for violating the event contract.",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "automation_events_dropped_total",
		Help: "Total number of handler tasks rejected due to a full dispatch queue.",
	})

	RulesMatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "automation_rules_matched_total",
		Help: "Total number of matched rule versions planned.",
	})

	ConditionEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automation_condition_evaluations_total",
		Help: "Rule condition verdicts, labelled by result code (PASSED on success).",
	}, []string{"result"})

	ActionsPlanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automation_actions_planned_total",
		Help: "Total number of planned (never executed) actions, labelled by registered type (OTHER otherwise).",
	}, []string{"action_type"})

	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automation_decisions_total",
		Help: "Gate and policy decisions, labelled by component, mode and verdict.",
	}, []string{"component", "mode", "allowed"})

	AuditWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automation_audit_writes_total",
		Help: "Plan audit writes, labelled by status.",
	}, []string{"status"})

	SnapshotWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automation_snapshot_writes_total",
		Help: "Explain snapshot writes, labelled by status (inserted, duplicate, error).",
	}, []string{"status"})

	HandlerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "automation_handler_runs_total",
		Help: "Dispatched handler runs, labelled by handler and status.",
	}, []string{"handler", "status"})

	PlanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "automation_plan_duration_ms",
		Help:    "End-to-end plan-only runtime latency in milliseconds.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "automation_dispatch_queue_utilization_ratio",
		Help: "Current dispatch queue utilization (0–1).",
	})
)
