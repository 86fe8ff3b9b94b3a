package lease_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"scheduleingest.dev/worker/internal/lease"
	"scheduleingest.dev/worker/internal/pkg/apperr"
	"scheduleingest.dev/worker/internal/pkg/logger"
	"scheduleingest.dev/worker/internal/repository/sqlc"
	"scheduleingest.dev/worker/internal/testutil"
)

func init() {
	_ = logger.Init("error", "json", "scheduleworker")
}

func setup(t *testing.T) (*pgxpool.Pool, *sqlc.Queries) {
	t.Helper()
	ddl, err := os.ReadFile("../repository/sqlc/schema.sql")
	require.NoError(t, err)

	pool := testutil.OpenPGXPool(t, "lease")
	testutil.ApplySchema(t, pool, string(ddl))
	return pool, sqlc.New(pool)
}

func seedIdlePendingSession(ctx context.Context, t *testing.T, pool *pgxpool.Pool, id, userID string, idleFor time.Duration) {
	t.Helper()
	_, err := pool.Exec(ctx,
		`INSERT INTO capture_session (id, user_id, state, created_at) VALUES ($1, $2, 'pending', now())`,
		id, userID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx,
		`INSERT INTO capture_image (id, session_id, sequence, r2_key, created_at)
		 VALUES ($1, $2, 0, $3, now() - $4)`,
		id+"-img-0", id, id+"-key-0", idleFor)
	require.NoError(t, err)
}

func TestClaim_NothingClaimableReturnsNoFinalizableSession(t *testing.T) {
	ctx := context.Background()
	_, q := setup(t)
	m := lease.New(q, "worker-a", 300, 5, 25, lease.StateNames{})

	_, err := m.Claim(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrNoFinalizableSession))
}

func TestClaim_IdlePendingSessionIsClaimable(t *testing.T) {
	ctx := context.Background()
	pool, q := setup(t)
	m := lease.New(q, "worker-a", 300, 5, 25, lease.StateNames{})

	seedIdlePendingSession(ctx, t, pool, "sess-1", "user-1", 60*time.Second)

	session, err := m.Claim(ctx)
	require.NoError(t, err)
	require.Equal(t, "sess-1", session.ID)
	require.Equal(t, "processing", session.State)
}

func TestClaim_NotYetIdleSessionLogsSkippedIdleAndStaysNoFinalizable(t *testing.T) {
	ctx := context.Background()
	pool, q := setup(t)
	m := lease.New(q, "worker-a", 300, 5, 25, lease.StateNames{})

	seedIdlePendingSession(ctx, t, pool, "sess-1", "user-1", 1*time.Second)

	_, err := m.Claim(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrNoFinalizableSession))
}

func TestHeartbeat_StopsCleanlyWithoutLoss(t *testing.T) {
	ctx := context.Background()
	_, q := setup(t)
	m := lease.New(q, "worker-a", 300, 1, 25, lease.StateNames{})

	h := m.Heartbeat(ctx, "nonexistent-session")
	time.Sleep(10 * time.Millisecond)
	h.Stop()
	require.False(t, h.Lost())
}

func TestHeartbeat_ZeroRowsMarksLost(t *testing.T) {
	ctx := context.Background()
	_, q := setup(t)
	m := lease.New(q, "worker-a", 300, 1, 25, lease.StateNames{})

	h := m.Heartbeat(ctx, "nonexistent-session")
	deadline := time.After(3 * time.Second)
	for !h.Lost() {
		select {
		case <-deadline:
			t.Fatal("heartbeat never observed lease loss")
		case <-time.After(10 * time.Millisecond):
		}
	}
	h.Stop()
}

func TestFinalizeDone_LostOwnershipReturnsLeaseLost(t *testing.T) {
	ctx := context.Background()
	_, q := setup(t)
	m := lease.New(q, "worker-a", 300, 5, 25, lease.StateNames{})

	err := m.FinalizeDone(ctx, "nonexistent-session")
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrLeaseLost))
}

func TestFinalizeFailed_LostOwnershipReturnsLeaseLost(t *testing.T) {
	ctx := context.Background()
	_, q := setup(t)
	m := lease.New(q, "worker-a", 300, 5, 25, lease.StateNames{})

	err := m.FinalizeFailed(ctx, "nonexistent-session", "boom")
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrLeaseLost))
}

func TestFinalizeDone_Success(t *testing.T) {
	ctx := context.Background()
	pool, q := setup(t)
	m := lease.New(q, "worker-a", 300, 5, 25, lease.StateNames{})

	seedIdlePendingSession(ctx, t, pool, "sess-1", "user-1", 60*time.Second)
	session, err := m.Claim(ctx)
	require.NoError(t, err)

	require.NoError(t, m.FinalizeDone(ctx, session.ID))

	images, err := m.ListImages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, images, 1)
}
