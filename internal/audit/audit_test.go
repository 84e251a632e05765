package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/automation/internal/action"
	"github.com/gyaneshwarpardhi/automation/internal/condition"
	"github.com/gyaneshwarpardhi/automation/internal/event"
	"github.com/gyaneshwarpardhi/automation/internal/plan"
)

func samplePlan() *plan.Plan {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &plan.Plan{
		Event: event.Event{
			ID:         "ev-1",
			Name:       "deal.updated",
			OccurredAt: at,
			TenantID:   "t1",
			Payload:    map[string]any{"amount": 1500.0, "stage": "won"},
		},
		MatchedRules: []plan.MatchedRule{
			{
				RuleID: "r1", VersionID: "r1v1", RuleName: "big deal", Priority: 10,
				Condition:      condition.Pass(),
				PlannedActions: []action.PlanItem{{Type: "LOG", Params: map[string]any{"message": "won"}, Mode: action.ModePlanOnly}},
			},
			{
				RuleID: "r2", VersionID: "r2v1", RuleName: "lost", Priority: 1,
				Condition:      condition.Fail(condition.ReasonNotMet, "condition evaluated to false", map[string]any{"index": 0.0}),
				PlannedActions: []action.PlanItem{},
			},
		},
		Meta: plan.Meta{EvaluatedAt: at, Engine: plan.EngineJSONLogic, Mode: plan.ModePlanOnly},
	}
}

type storeFactory func(t *testing.T) Store

type snapshotFactory func(t *testing.T) SnapshotStore

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func stores() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store { return openSQLite(t) },
	}
}

func snapshotStores() map[string]snapshotFactory {
	return map[string]snapshotFactory{
		"memory": func(*testing.T) SnapshotStore { return NewMemorySnapshotStore() },
		"sqlite": func(t *testing.T) SnapshotStore { return openSQLite(t) },
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, factory := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			p := samplePlan()

			id1, err := s.Write(ctx, p)
			require.NoError(t, err)
			id2, err := s.Write(ctx, p)
			require.NoError(t, err)
			assert.NotEqual(t, id1, id2)

			rec, err := s.Read(ctx, id1)
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, id1, rec.ID)
			assert.Equal(t, *p, rec.Plan)
			assert.False(t, rec.CreatedAt.IsZero())

			missing, err := s.Read(ctx, "does-not-exist")
			require.NoError(t, err)
			assert.Nil(t, missing)
		})
	}
}

func TestMemoryStoreIsolatesWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := samplePlan()
	id, err := s.Write(ctx, p)
	require.NoError(t, err)

	p.MatchedRules[0].RuleName = "mutated"
	rec, err := s.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "big deal", rec.Plan.MatchedRules[0].RuleName)
	assert.Equal(t, 1, s.Len())
}

func TestSnapshotStoreIdempotent(t *testing.T) {
	for name, factory := range snapshotStores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			rec := SnapshotRecord{
				RunID:         "run-1",
				RuleVersionID: "r1v1",
				TenantID:      "t1",
				BrandID:       "b1",
				SnapshotJSON:  []byte(`{"checksum":"abc"}`),
			}

			inserted, err := s.Persist(ctx, rec)
			require.NoError(t, err)
			assert.True(t, inserted)

			dup := rec
			dup.SnapshotJSON = []byte(`{"checksum":"other"}`)
			inserted, err = s.Persist(ctx, dup)
			require.NoError(t, err)
			assert.False(t, inserted)

			got, err := s.Get(ctx, "run-1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, `{"checksum":"abc"}`, string(got.SnapshotJSON))
			assert.Equal(t, "b1", got.BrandID)

			got, err = s.Get(ctx, "run-2")
			require.NoError(t, err)
			assert.Nil(t, got)

			_, err = s.Persist(ctx, SnapshotRecord{})
			assert.Error(t, err)
		})
	}
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite("  ")
	assert.Error(t, err)
}

func TestOpenSQLiteTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	s1, err := OpenSQLite(path)
	require.NoError(t, err)
	id, err := s1.Write(context.Background(), samplePlan())
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s2.Close()
	rec, err := s2.Read(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
}
