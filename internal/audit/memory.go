package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/automation/internal/plan"
)

type memoryRecord struct {
	createdAt time.Time
	body      []byte
}

// MemoryStore keeps plan records in process. Plans are stored serialized so
// callers cannot mutate them after the write.
type MemoryStore struct {
	mu      sync.RWMutex
	now     func() time.Time
	records map[string]memoryRecord
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:     func() time.Time { return time.Now().UTC() },
		records: make(map[string]memoryRecord),
	}
}

// Write implements Store.
func (s *MemoryStore) Write(ctx context.Context, p *plan.Plan) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode plan: %w", err)
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.records[id] = memoryRecord{createdAt: s.now(), body: body}
	s.mu.Unlock()
	return id, nil
}

// Read implements Store.
func (s *MemoryStore) Read(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	r, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	rec := &Record{ID: id, CreatedAt: r.createdAt}
	if err := json.Unmarshal(r.body, &rec.Plan); err != nil {
		return nil, fmt.Errorf("decode plan %s: %w", id, err)
	}
	return rec, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// MemorySnapshotStore is the in-process SnapshotStore.
type MemorySnapshotStore struct {
	mu   sync.RWMutex
	rows map[string]SnapshotRecord
}

// NewMemorySnapshotStore returns an empty MemorySnapshotStore.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{rows: make(map[string]SnapshotRecord)}
}

// Persist implements SnapshotStore.
func (s *MemorySnapshotStore) Persist(ctx context.Context, rec SnapshotRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if rec.RunID == "" {
		return false, fmt.Errorf("persist snapshot: run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[rec.RunID]; ok {
		return false, nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.SnapshotJSON = append([]byte(nil), rec.SnapshotJSON...)
	s.rows[rec.RunID] = rec
	return true, nil
}

// Get implements SnapshotStore; unknown run ids return (nil, nil).
func (s *MemorySnapshotStore) Get(ctx context.Context, runID string) (*SnapshotRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rows[runID]
	if !ok {
		return nil, nil
	}
	rec.SnapshotJSON = append([]byte(nil), rec.SnapshotJSON...)
	return &rec, nil
}
