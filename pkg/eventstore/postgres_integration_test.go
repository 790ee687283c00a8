package eventstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

func newTestPostgres(t *testing.T) *Postgres {
	if testing.Short() {
		t.Skip("skipping testcontainers-backed test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("sentinel_test"),
		postgres.WithUsername("sentinel"),
		postgres.WithPassword("sentinel"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	store, err := NewPostgres(ctx, Config{
		Host:            host,
		Port:            port.Int(),
		User:            "sentinel",
		Password:        "sentinel",
		Database:        "sentinel_test",
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestPostgres_AppendReplayVerify_RoundTrip(t *testing.T) {
	store := newTestPostgres(t)
	ctx := context.Background()

	_, err := store.Append(ctx, "inc-int-1", incident.KindDetected, map[string]any{
		"severity": "CRITICAL", "service_tier": "tier-1", "affected_user_count": 500,
	})
	require.NoError(t, err)
	_, err = store.Append(ctx, "inc-int-1", incident.KindConsensusRequested, nil)
	require.NoError(t, err)
	_, err = store.Append(ctx, "inc-int-1", incident.KindConsensusReached, map[string]any{
		"decision": incident.ConsensusDecision{IncidentID: "inc-int-1", ActionID: "restart-pod"},
	})
	require.NoError(t, err)

	assert.NoError(t, store.VerifyChain(ctx, "inc-int-1"))

	inc, err := store.Replay(ctx, "inc-int-1")
	require.NoError(t, err)
	assert.Equal(t, incident.PhaseResolving, inc.Phase)
	assert.Equal(t, 3, inc.Version)
}
