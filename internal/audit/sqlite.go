package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/gyaneshwarpardhi/automation/internal/plan"
)

// SQLiteStore persists plan records and explain snapshots in one SQLite file.
// It implements both Store and SnapshotStore.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and applies migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	cleanPath := filepath.Clean(path)

	if err := migrateUp("sqlite", "sqlite://"+cleanPath); err != nil {
		return nil, err
	}

	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Write implements Store.
func (s *SQLiteStore) Write(ctx context.Context, p *plan.Plan) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("write audit record: encode plan: %w", err)
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_records (id, kind, tenant_id, event_id, created_at, plan_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, KindPlanTrace, p.Event.TenantID, p.Event.ID, s.now().UnixMilli(), string(body))
	if err != nil {
		return "", fmt.Errorf("write audit record: %w", err)
	}
	return id, nil
}

// Read implements Store.
func (s *SQLiteStore) Read(ctx context.Context, id string) (*Record, error) {
	var (
		createdAt int64
		body      string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, plan_json FROM audit_records WHERE id = ?`, id,
	).Scan(&createdAt, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read audit record %s: %w", id, err)
	}
	rec := &Record{ID: id, CreatedAt: time.UnixMilli(createdAt).UTC()}
	if err := json.Unmarshal([]byte(body), &rec.Plan); err != nil {
		return nil, fmt.Errorf("read audit record %s: decode plan: %w", id, err)
	}
	return rec, nil
}

// Persist implements SnapshotStore.
// Uses ON CONFLICT(run_id) DO NOTHING; a duplicate run id reports inserted=false.
func (s *SQLiteStore) Persist(ctx context.Context, rec SnapshotRecord) (bool, error) {
	if rec.RunID == "" {
		return false, fmt.Errorf("persist snapshot: run id is required")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO explain_snapshots (run_id, rule_version_id, tenant_id, brand_id, snapshot_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`, rec.RunID, rec.RuleVersionID, rec.TenantID, rec.BrandID, string(rec.SnapshotJSON), createdAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("persist snapshot %s: %w", rec.RunID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("persist snapshot %s: rows affected: %w", rec.RunID, err)
	}
	return n > 0, nil
}

// Get implements SnapshotStore.
func (s *SQLiteStore) Get(ctx context.Context, runID string) (*SnapshotRecord, error) {
	var (
		rec       SnapshotRecord
		body      string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, rule_version_id, tenant_id, brand_id, snapshot_json, created_at
		FROM explain_snapshots WHERE run_id = ?
	`, runID).Scan(&rec.RunID, &rec.RuleVersionID, &rec.TenantID, &rec.BrandID, &body, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", runID, err)
	}
	rec.SnapshotJSON = []byte(body)
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &rec, nil
}
