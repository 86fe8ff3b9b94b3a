package notifystore_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"scheduleingest.dev/worker/internal/domain"
	"scheduleingest.dev/worker/internal/notifymap"
	"scheduleingest.dev/worker/internal/notifystore"
	"scheduleingest.dev/worker/internal/pkg/logger"
	"scheduleingest.dev/worker/internal/repository/sqlc"
	"scheduleingest.dev/worker/internal/testutil"
)

func init() {
	_ = logger.Init("error", "json", "scheduleworker")
}

func setup(t *testing.T) *sqlc.Queries {
	t.Helper()
	ddl, err := os.ReadFile("../repository/sqlc/schema.sql")
	require.NoError(t, err)

	pool := testutil.OpenPGXPool(t, "notifystore")
	testutil.ApplySchema(t, pool, string(ddl))
	return sqlc.New(pool)
}

func TestPersist_InsertsAndReplaySkips(t *testing.T) {
	ctx := context.Background()
	q := setup(t)
	s := notifystore.New()

	notifications := []notifymap.Notification{
		{NotificationID: "notif-1", Type: domain.NotificationEvent, Message: "hello", EventIDs: []string{"e1"}},
	}

	require.NoError(t, s.Persist(ctx, q, "user-1", "2026-07-31", "session-1", notifications))

	pending, err := q.ListPendingNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "hello", pending[0].Message)

	require.NoError(t, s.Persist(ctx, q, "user-1", "2026-07-31", "session-1", notifications))

	pending, err = q.ListPendingNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1, "replaying the same notification id must not duplicate the row")
}

func TestPersist_MultipleNotificationsAllInserted(t *testing.T) {
	ctx := context.Background()
	q := setup(t)
	s := notifystore.New()

	notifications := []notifymap.Notification{
		{NotificationID: "notif-1", Type: domain.NotificationEvent, Message: "first", EventIDs: []string{"e1"}},
		{NotificationID: "notif-2", Type: domain.NotificationSummary, Message: "second", EventIDs: []string{"e2", "e3"}},
	}

	require.NoError(t, s.Persist(ctx, q, "user-1", "2026-07-31", "session-1", notifications))

	pending, err := q.ListPendingNotifications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
}
