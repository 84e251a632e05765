// Package audit persists plan traces and explain snapshots. Records are
// create-and-read only.
package audit

import (
	"context"
	"time"

	"github.com/gyaneshwarpardhi/automation/internal/plan"
)

// KindPlanTrace labels audit records produced by the plan-only runtime.
const KindPlanTrace = "PLAN_TRACE"

// Record is one stored plan.
type Record struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Plan      plan.Plan `json:"plan"`
}

// Store writes and reads plan records. Read returns (nil, nil) for an
// unknown id. Plans are stored as JSON; a plan holding only JSON-native
// values (see package jsonvalue) reads back deep-equal.
type Store interface {
	Write(ctx context.Context, p *plan.Plan) (string, error)
	Read(ctx context.Context, id string) (*Record, error)
}

// SnapshotRecord is a persisted explain snapshot, unique by RunID.
type SnapshotRecord struct {
	RunID         string    `json:"runId"`
	RuleVersionID string    `json:"ruleVersionId"`
	TenantID      string    `json:"tenantId"`
	BrandID       string    `json:"brandId,omitempty"`
	SnapshotJSON  []byte    `json:"snapshotJson"`
	CreatedAt     time.Time `json:"createdAt"`
}

// SnapshotStore persists explain snapshots idempotently: persisting an
// existing RunID returns (false, nil) and leaves the stored row untouched.
type SnapshotStore interface {
	Persist(ctx context.Context, rec SnapshotRecord) (inserted bool, err error)
	Get(ctx context.Context, runID string) (*SnapshotRecord, error)
}
