package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// AdvisoryLockDay acquires a transactional advisory lock keyed by the
// hash of (user_id, schedule_date), serializing concurrent version
// writers on the same day (§4.7 step 1). Released automatically at
// transaction end.
func (q *Queries) AdvisoryLockDay(ctx context.Context, userID, scheduleDate string) error {
	_, err := q.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID+"|"+scheduleDate)
	return err
}

// GetLatestVersion returns the highest version row for (user_id,
// schedule_date), or pgx.ErrNoRows if none exists yet.
func (q *Queries) GetLatestVersion(ctx context.Context, userID, scheduleDate string) (VersionRow, error) {
	row := q.db.QueryRow(ctx,
		`SELECT version, payload_hash FROM schedule_version
		 WHERE user_id = $1 AND schedule_date = $2
		 ORDER BY version DESC LIMIT 1`,
		userID, scheduleDate)

	var v VersionRow
	if err := row.Scan(&v.Version, &v.PayloadHash); err != nil {
		if err == pgx.ErrNoRows {
			return VersionRow{}, pgx.ErrNoRows
		}
		return VersionRow{}, err
	}
	return v, nil
}

// InsertScheduleVersionParams carries one immutable version row insert.
type InsertScheduleVersionParams struct {
	UserID       string
	ScheduleDate string
	Version      int32
	SessionID    string
	Payload      []byte
	PayloadHash  string
}

// InsertScheduleVersion inserts a new version row, conflict-ignoring on
// either (user_id, schedule_date, version) or the session_id uniqueness
// constraint (§4.7 step 3); a bare ON CONFLICT DO NOTHING covers both.
// Returns false if no row was inserted (AlreadyExisted, §4.7).
func (q *Queries) InsertScheduleVersion(ctx context.Context, p InsertScheduleVersionParams) (bool, error) {
	var inserted bool
	err := q.db.QueryRow(ctx,
		`INSERT INTO schedule_version (user_id, schedule_date, version, session_id, payload, payload_hash)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT DO NOTHING
		 RETURNING true`,
		p.UserID, p.ScheduleDate, p.Version, p.SessionID, p.Payload, p.PayloadHash,
	).Scan(&inserted)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return inserted, nil
}
