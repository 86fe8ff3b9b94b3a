// Package notifystore implements the Notification Store (C6): idempotent
// persistence of outbound notification messages (spec §4.6).
package notifystore

import (
	"context"

	"go.uber.org/zap"

	"scheduleingest.dev/worker/internal/notifymap"
	"scheduleingest.dev/worker/internal/pkg/apperr"
	"scheduleingest.dev/worker/internal/pkg/logger"
	"scheduleingest.dev/worker/internal/repository/sqlc"
)

// Store wraps the sqlc notification insert query.
type Store struct {
	log *zap.Logger
}

// New builds a Store.
func New() *Store {
	return &Store{log: logger.With(zap.String("component", "notification_store"))}
}

// Persist inserts each notification with status=pending, conflict-
// ignoring on notification_id so a replayed diff cycle never double-
// sends (§4.6). queries must already be bound to the caller's
// transaction.
func (s *Store) Persist(ctx context.Context, queries *sqlc.Queries, userID, scheduleDate, sourceSessionID string, notifications []notifymap.Notification) error {
	for _, n := range notifications {
		inserted, err := queries.InsertNotification(ctx, sqlc.InsertNotificationParams{
			NotificationID:   n.NotificationID,
			UserID:           userID,
			ScheduleDate:     scheduleDate,
			SourceSessionID:  sourceSessionID,
			NotificationType: string(n.Type),
			Message:          n.Message,
			EventIDs:         n.EventIDs,
		})
		if err != nil {
			return apperr.Wrap(err, apperr.KindTransientDB, apperr.StageDB, "insert notification")
		}
		if !inserted {
			s.log.Debug("notification already existed, skipped", zap.String("notification_id", n.NotificationID))
		}
	}
	return nil
}
