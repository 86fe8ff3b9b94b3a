package sqlc

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
)

// InsertNotificationParams carries one outbound notification row.
type InsertNotificationParams struct {
	NotificationID   string
	UserID           string
	ScheduleDate     string
	SourceSessionID  string
	NotificationType string
	Message          string
	EventIDs         []string
}

// InsertNotification inserts a notification, conflict-ignoring on its
// deterministic id so a replayed diff cycle never double-sends (§4.5,
// §4.6). Returns false when the id already existed.
func (q *Queries) InsertNotification(ctx context.Context, p InsertNotificationParams) (bool, error) {
	eventIDs := p.EventIDs
	if eventIDs == nil {
		eventIDs = []string{}
	}
	eventIDsJSON, err := json.Marshal(eventIDs)
	if err != nil {
		return false, err
	}

	var inserted bool
	err = q.db.QueryRow(ctx,
		`INSERT INTO schedule_notification (
			notification_id, user_id, schedule_date, source_session_id,
			notification_type, message, event_ids, status, created_at
		 ) VALUES ($1,$2,$3,$4,$5,$6,$7,'pending', now())
		 ON CONFLICT (notification_id) DO NOTHING
		 RETURNING true`,
		p.NotificationID, p.UserID, p.ScheduleDate, p.SourceSessionID,
		p.NotificationType, p.Message, eventIDsJSON,
	).Scan(&inserted)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return inserted, nil
}

// MarkNotificationSentParams guards the delivery-state transition.
type MarkNotificationSentParams struct {
	NotificationID string
	Status         string
}

// MarkNotificationSent records the outcome of a delivery attempt.
func (q *Queries) MarkNotificationSent(ctx context.Context, p MarkNotificationSentParams) error {
	_, err := q.db.Exec(ctx,
		`UPDATE schedule_notification SET status = $2, sent_at = now()
		 WHERE notification_id = $1`,
		p.NotificationID, p.Status)
	return err
}

// ListPendingNotifications returns undelivered notifications in
// creation order, for a delivery worker to drain.
func (q *Queries) ListPendingNotifications(ctx context.Context, limit int32) ([]NotificationRow, error) {
	rows, err := q.db.Query(ctx,
		`SELECT notification_id, user_id, schedule_date, source_session_id,
		        notification_type, message, event_ids, status, created_at
		 FROM schedule_notification
		 WHERE status = 'pending'
		 ORDER BY created_at ASC
		 LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NotificationRow
	for rows.Next() {
		var n NotificationRow
		var eventIDsJSON []byte
		if err := rows.Scan(&n.NotificationID, &n.UserID, &n.ScheduleDate, &n.SourceSessionID,
			&n.NotificationType, &n.Message, &eventIDsJSON, &n.Status, &n.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(eventIDsJSON, &n.EventIDs); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
