package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// DaySnapshotRow mirrors a day_snapshot row.
type DaySnapshotRow struct {
	SnapshotPayload []byte
	SourceSessionID string
}

// GetDaySnapshot loads the diff baseline for (user_id, schedule_date).
// Returns pgx.ErrNoRows when no observation has ever been processed for
// this day, which the caller treats as an empty prior day (§4.4).
func (q *Queries) GetDaySnapshot(ctx context.Context, userID, scheduleDate string) (DaySnapshotRow, error) {
	row := q.db.QueryRow(ctx,
		`SELECT snapshot_payload, source_session_id FROM day_snapshot
		 WHERE user_id = $1 AND schedule_date = $2`,
		userID, scheduleDate)

	var snap DaySnapshotRow
	if err := row.Scan(&snap.SnapshotPayload, &snap.SourceSessionID); err != nil {
		if err == pgx.ErrNoRows {
			return DaySnapshotRow{}, pgx.ErrNoRows
		}
		return DaySnapshotRow{}, err
	}
	return snap, nil
}

// UpsertDaySnapshotParams carries the new diff baseline for one day.
type UpsertDaySnapshotParams struct {
	UserID          string
	ScheduleDate    string
	SnapshotPayload []byte
	SourceSessionID string
}

// UpsertDaySnapshot overwrites the mutable diff baseline (§4.4 step 5).
func (q *Queries) UpsertDaySnapshot(ctx context.Context, p UpsertDaySnapshotParams) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO day_snapshot (user_id, schedule_date, snapshot_payload, source_session_id, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (user_id, schedule_date) DO UPDATE SET
		   snapshot_payload = EXCLUDED.snapshot_payload,
		   source_session_id = EXCLUDED.source_session_id,
		   updated_at = now()`,
		p.UserID, p.ScheduleDate, p.SnapshotPayload, p.SourceSessionID)
	return err
}

// InsertScheduleEventParams carries one semantic change record.
type InsertScheduleEventParams struct {
	EventID             string
	UserID              string
	ScheduleDate        string
	EventType           string
	LocationFingerprint string
	CustomerFingerprint string
	OldValue            []byte // nil for shift_added
	NewValue            []byte // nil for shift_removed
	OldValueHash        string
	NewValueHash        string
	SourceSessionID     string
}

// InsertScheduleEvent inserts one event, conflict-ignoring on the dedupe
// key (user_id, schedule_date, location_fingerprint, event_type,
// old_value_hash, new_value_hash) (§4.4 step 3). Returns false if the
// event already existed (a replay of an already-persisted diff cycle).
func (q *Queries) InsertScheduleEvent(ctx context.Context, p InsertScheduleEventParams) (bool, error) {
	var inserted bool
	err := q.db.QueryRow(ctx,
		`INSERT INTO schedule_event (
			event_id, user_id, schedule_date, event_type,
			location_fingerprint, customer_fingerprint,
			old_value, new_value, old_value_hash, new_value_hash,
			detected_at, source_session_id
		 ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, now(), $11)
		 ON CONFLICT (user_id, schedule_date, location_fingerprint, event_type, old_value_hash, new_value_hash)
		 DO NOTHING
		 RETURNING true`,
		p.EventID, p.UserID, p.ScheduleDate, p.EventType,
		p.LocationFingerprint, p.CustomerFingerprint,
		p.OldValue, p.NewValue, p.OldValueHash, p.NewValueHash,
		p.SourceSessionID,
	).Scan(&inserted)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return inserted, nil
}

// EventIDRow is the minimal projection needed for replay and mapping.
type EventIDRow struct {
	EventID   string
	EventType string
}

// ListSessionEvents returns the events inserted for one source session,
// in detected_at order (ties broken by event_id), for the notification
// mapper's input (§4.5).
func (q *Queries) ListSessionEvents(ctx context.Context, sourceSessionID string) ([]EventIDRow, error) {
	rows, err := q.db.Query(ctx,
		`SELECT event_id, event_type FROM schedule_event
		 WHERE source_session_id = $1
		 ORDER BY detected_at ASC, event_id ASC`,
		sourceSessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventIDRow
	for rows.Next() {
		var r EventIDRow
		if err := rows.Scan(&r.EventID, &r.EventType); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
