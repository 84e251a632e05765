// Package observability holds run history and the read-only aggregations
// computed over it.
package observability

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Run and action-run statuses.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
	StatusSkipped = "SKIPPED"
	StatusBlocked = "BLOCKED"
	StatusGated   = "GATED"
	StatusPlanned = "PLANNED"
	StatusPending = "PENDING"
)

// GateResultBlocked marks an action run stopped by the execution gate.
const GateResultBlocked = "BLOCKED"

// RunRecord is one rule version evaluated for one event.
type RunRecord struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenantId"`
	BrandID         string    `json:"brandId,omitempty"`
	EventID         string    `json:"eventId"`
	EventName       string    `json:"eventName"`
	RuleID          string    `json:"ruleId"`
	RuleVersionID   string    `json:"ruleVersionId"`
	AuditID         string    `json:"auditId,omitempty"`
	Status          string    `json:"status"`
	ConditionReason string    `json:"conditionReason,omitempty"`
	DecisionPath    []string  `json:"decisionPath"`
	StartedAt       time.Time `json:"startedAt"`
	DurationMs      float64   `json:"durationMs"`
}

// ActionRunRecord is one planned action of a run.
type ActionRunRecord struct {
	ID            string    `json:"id"`
	RunID         string    `json:"runId"`
	RuleVersionID string    `json:"ruleVersionId"`
	TenantID      string    `json:"tenantId"`
	ActionType    string    `json:"actionType"`
	Status        string    `json:"status"`
	RunnerType    string    `json:"runnerType,omitempty"`
	GateResult    string    `json:"gateResult,omitempty"`
	ErrorCode     string    `json:"errorCode,omitempty"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	DurationMs    float64   `json:"durationMs"`
}

// Window bounds a query by time. A zero From or To leaves that side open;
// To is exclusive.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls in the window.
func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !t.Before(w.To) {
		return false
	}
	return true
}

// History is the store of run and action-run records. Records are
// append-only; recording an existing id is a no-op.
type History interface {
	RecordRun(ctx context.Context, r RunRecord) error
	RecordActionRun(ctx context.Context, a ActionRunRecord) error
	Run(ctx context.Context, id string) (*RunRecord, error)
	ActionRun(ctx context.Context, id string) (*ActionRunRecord, error)
	Runs(ctx context.Context, w Window) ([]RunRecord, error)
	ActionRuns(ctx context.Context, w Window) ([]ActionRunRecord, error)
	RunsByRuleVersion(ctx context.Context, versionID string) ([]RunRecord, error)
	ActionRunsByRun(ctx context.Context, runID string) ([]ActionRunRecord, error)
}

// MemoryHistory is an in-process History. With a run limit set, the oldest
// runs and their action runs are evicted in batches once the limit is passed.
type MemoryHistory struct {
	mu         sync.RWMutex
	maxRuns    int
	runs       []RunRecord
	runIdx     map[string]int
	actions    []ActionRunRecord
	actionIdx  map[string]int
	actionsFor map[string][]int
}

// HistoryOption configures a MemoryHistory.
type HistoryOption func(*MemoryHistory)

// WithMaxRuns bounds the number of retained runs. Non-positive means unbounded.
func WithMaxRuns(n int) HistoryOption {
	return func(h *MemoryHistory) { h.maxRuns = n }
}

// NewMemoryHistory returns an empty MemoryHistory.
func NewMemoryHistory(opts ...HistoryOption) *MemoryHistory {
	h := &MemoryHistory{
		runIdx:     make(map[string]int),
		actionIdx:  make(map[string]int),
		actionsFor: make(map[string][]int),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// RecordRun implements History.
func (h *MemoryHistory) RecordRun(_ context.Context, r RunRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.runIdx[r.ID]; ok {
		return nil
	}
	r.DecisionPath = append([]string(nil), r.DecisionPath...)
	h.runIdx[r.ID] = len(h.runs)
	h.runs = append(h.runs, r)
	h.evictLocked()
	return nil
}

// RecordActionRun implements History. Action runs of an evicted or unknown
// run are dropped.
func (h *MemoryHistory) RecordActionRun(_ context.Context, a ActionRunRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.actionIdx[a.ID]; ok {
		return nil
	}
	if _, ok := h.runIdx[a.RunID]; !ok && h.maxRuns > 0 {
		return nil
	}
	h.actionIdx[a.ID] = len(h.actions)
	h.actionsFor[a.RunID] = append(h.actionsFor[a.RunID], len(h.actions))
	h.actions = append(h.actions, a)
	return nil
}

// Len returns the number of retained runs.
func (h *MemoryHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.runs)
}

// evictLocked drops the oldest runs once maxRuns is exceeded, leaving a
// tenth of the limit free so eviction does not run on every insert.
func (h *MemoryHistory) evictLocked() {
	if h.maxRuns <= 0 || len(h.runs) <= h.maxRuns {
		return
	}
	drop := len(h.runs) - h.maxRuns + h.maxRuns/10
	gone := make(map[string]struct{}, drop)
	for _, r := range h.runs[:drop] {
		gone[r.ID] = struct{}{}
	}
	h.runs = append([]RunRecord(nil), h.runs[drop:]...)

	kept := make([]ActionRunRecord, 0, len(h.actions))
	for _, a := range h.actions {
		if _, ok := gone[a.RunID]; !ok {
			kept = append(kept, a)
		}
	}
	h.actions = kept

	h.runIdx = make(map[string]int, len(h.runs))
	for i, r := range h.runs {
		h.runIdx[r.ID] = i
	}
	h.actionIdx = make(map[string]int, len(h.actions))
	h.actionsFor = make(map[string][]int, len(h.runs))
	for i, a := range h.actions {
		h.actionIdx[a.ID] = i
		h.actionsFor[a.RunID] = append(h.actionsFor[a.RunID], i)
	}
}

// Run implements History; unknown ids return (nil, nil).
func (h *MemoryHistory) Run(_ context.Context, id string) (*RunRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	i, ok := h.runIdx[id]
	if !ok {
		return nil, nil
	}
	r := copyRun(h.runs[i])
	return &r, nil
}

// ActionRun implements History; unknown ids return (nil, nil).
func (h *MemoryHistory) ActionRun(_ context.Context, id string) (*ActionRunRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	i, ok := h.actionIdx[id]
	if !ok {
		return nil, nil
	}
	a := h.actions[i]
	return &a, nil
}

// Runs implements History, ordered by start time.
func (h *MemoryHistory) Runs(_ context.Context, w Window) ([]RunRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]RunRecord, 0)
	for _, r := range h.runs {
		if w.Contains(r.StartedAt) {
			out = append(out, copyRun(r))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// ActionRuns implements History, ordered by creation time.
func (h *MemoryHistory) ActionRuns(_ context.Context, w Window) ([]ActionRunRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ActionRunRecord, 0)
	for _, a := range h.actions {
		if w.Contains(a.CreatedAt) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// RunsByRuleVersion implements History.
func (h *MemoryHistory) RunsByRuleVersion(_ context.Context, versionID string) ([]RunRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]RunRecord, 0)
	for _, r := range h.runs {
		if r.RuleVersionID == versionID {
			out = append(out, copyRun(r))
		}
	}
	return out, nil
}

// ActionRunsByRun implements History.
func (h *MemoryHistory) ActionRunsByRun(_ context.Context, runID string) ([]ActionRunRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	idx := h.actionsFor[runID]
	out := make([]ActionRunRecord, 0, len(idx))
	for _, i := range idx {
		out = append(out, h.actions[i])
	}
	return out, nil
}

func copyRun(r RunRecord) RunRecord {
	r.DecisionPath = append([]string(nil), r.DecisionPath...)
	return r
}
