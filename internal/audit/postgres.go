package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresSnapshotStore persists explain snapshots in Postgres.
type PostgresSnapshotStore struct {
	db *sql.DB
}

// OpenPostgres connects to databaseURL, applies migrations and returns a store.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresSnapshotStore, error) {
	if err := migrateUp("postgres", databaseURL); err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresSnapshotStore(db), nil
}

// NewPostgresSnapshotStore wraps an existing, migrated connection pool.
func NewPostgresSnapshotStore(db *sql.DB) *PostgresSnapshotStore {
	return &PostgresSnapshotStore{db: db}
}

// Close releases the connection pool.
func (s *PostgresSnapshotStore) Close() error {
	return s.db.Close()
}

// Persist implements SnapshotStore. A unique violation on run_id means the
// run was already captured and is reported as inserted=false.
func (s *PostgresSnapshotStore) Persist(ctx context.Context, rec SnapshotRecord) (bool, error) {
	if rec.RunID == "" {
		return false, fmt.Errorf("persist snapshot: run id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO explain_snapshots (run_id, rule_version_id, tenant_id, brand_id, snapshot_json)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.RunID, rec.RuleVersionID, rec.TenantID, rec.BrandID, string(rec.SnapshotJSON))
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("persist snapshot %s: %w", rec.RunID, err)
	}
	return true, nil
}

// Get implements SnapshotStore.
func (s *PostgresSnapshotStore) Get(ctx context.Context, runID string) (*SnapshotRecord, error) {
	var (
		rec  SnapshotRecord
		body string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, rule_version_id, tenant_id, brand_id, snapshot_json, created_at
		FROM explain_snapshots WHERE run_id = $1
	`, runID).Scan(&rec.RunID, &rec.RuleVersionID, &rec.TenantID, &rec.BrandID, &body, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", runID, err)
	}
	rec.SnapshotJSON = []byte(body)
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
