//go:build integration

package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "automation_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://test:test@%s:%s/automation_test?sslmode=disable", host, port.Port())
}

func TestPostgresSnapshotStore(t *testing.T) {
	url := startPostgres(t)
	ctx := context.Background()

	s, err := OpenPostgres(ctx, url)
	require.NoError(t, err)
	defer s.Close()

	rec := SnapshotRecord{RunID: "run-1", RuleVersionID: "v1", TenantID: "t1", SnapshotJSON: []byte(`{"a":1}`)}
	inserted, err := s.Persist(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.Persist(ctx, rec)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, `{"a":1}`, string(got.SnapshotJSON))

	// Reopening re-runs migrations as a no-op.
	s2, err := OpenPostgres(ctx, url)
	require.NoError(t, err)
	_ = s2.Close()
}
