package sqlc

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// ClaimNextFinalizableSessionParams carries the lease parameters used by
// the single-statement claim (§4.8 "Finalization gate" + "Claim
// algorithm" are one atomic operation here). PendingState/ProcessingState
// default to "pending"/"processing" but are overridable per §6's
// state-name aliasing knobs so a test schema can rename the enum values.
type ClaimNextFinalizableSessionParams struct {
	WorkerID                  string
	SessionIdleTimeoutSeconds int32
	LeaseTimeoutSeconds       int32
	PendingState              string
	ProcessingState           string
}

// ClaimNextFinalizableSession selects, with SKIP LOCKED semantics, the
// first session that is either an idle-timed-out pending session or a
// stale-lease processing session (pending preferred, secondary order
// created_at), and atomically marks it processing under WorkerID's
// ownership. Returns pgx.ErrNoRows when nothing is claimable.
func (q *Queries) ClaimNextFinalizableSession(ctx context.Context, p ClaimNextFinalizableSessionParams) (Session, error) {
	pendingState := orDefault(p.PendingState, "pending")
	processingState := orDefault(p.ProcessingState, "processing")

	const query = `
WITH candidate AS (
    SELECT cs.id
    FROM capture_session cs
    WHERE
        (cs.state = $4
            AND EXISTS (SELECT 1 FROM capture_image ci WHERE ci.session_id = cs.id)
            AND now() - (SELECT max(ci2.created_at) FROM capture_image ci2 WHERE ci2.session_id = cs.id)
                >= make_interval(secs => $2))
        OR (cs.state = $5 AND now() - cs.locked_at >= make_interval(secs => $3))
    ORDER BY (cs.state <> $4), cs.created_at ASC
    FOR UPDATE OF cs SKIP LOCKED
    LIMIT 1
)
UPDATE capture_session cs
SET state = $5, locked_at = now(), locked_by = $1
FROM candidate
WHERE cs.id = candidate.id
RETURNING cs.id, cs.user_id, cs.state, cs.created_at, cs.error, cs.locked_at, cs.locked_by`

	row := q.db.QueryRow(ctx, query, p.WorkerID, p.SessionIdleTimeoutSeconds, p.LeaseTimeoutSeconds, pendingState, processingState)
	var s Session
	if err := row.Scan(&s.ID, &s.UserID, &s.State, &s.CreatedAt, &s.Error, &s.LockedAt, &s.LockedBy); err != nil {
		return Session{}, err
	}
	return s, nil
}

// orDefault returns def when s is empty, so callers that don't care about
// state-name aliasing can leave the Params fields zero-valued.
func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// ListSkippedIdleSessionsParams mirrors the idle-timeout half of
// ClaimNextFinalizableSession's WHERE clause so callers can surface the
// sessions that exist but have not yet reached the idle timeout.
type ListSkippedIdleSessionsParams struct {
	SessionIdleTimeoutSeconds int32
	PendingState              string
}

// ListSkippedIdleSessions returns pending sessions with at least one image
// whose most recent image is not yet idle-timed-out: the "found but not
// ready to claim" sessions that ClaimNextFinalizableSession's atomic claim
// never surfaces to application code, so §6's session.skipped_idle event
// can still be logged for them.
func (q *Queries) ListSkippedIdleSessions(ctx context.Context, p ListSkippedIdleSessionsParams) ([]Session, error) {
	pendingState := orDefault(p.PendingState, "pending")

	const query = `
SELECT cs.id, cs.user_id, cs.state, cs.created_at, cs.error, cs.locked_at, cs.locked_by
FROM capture_session cs
WHERE cs.state = $2
  AND EXISTS (SELECT 1 FROM capture_image ci WHERE ci.session_id = cs.id)
  AND now() - (SELECT max(ci2.created_at) FROM capture_image ci2 WHERE ci2.session_id = cs.id)
      < make_interval(secs => $1)`

	rows, err := q.db.Query(ctx, query, p.SessionIdleTimeoutSeconds, pendingState)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.State, &s.CreatedAt, &s.Error, &s.LockedAt, &s.LockedBy); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// HeartbeatSessionParams guards the heartbeat update by current ownership.
type HeartbeatSessionParams struct {
	ID       string
	LockedBy string
}

// HeartbeatSession refreshes locked_at, returning the number of rows
// affected. Zero means the caller has lost the lease (§4.8 "Heartbeat").
func (q *Queries) HeartbeatSession(ctx context.Context, p HeartbeatSessionParams) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE capture_session SET locked_at = now() WHERE id = $1 AND locked_by = $2`,
		p.ID, p.LockedBy)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// FinalizeSessionDoneParams guards the success finalization. DoneState
// defaults to "done" but is overridable per §6's state-name aliasing.
type FinalizeSessionDoneParams struct {
	ID        string
	LockedBy  string
	DoneState string
}

// FinalizeSessionDone marks the session done and clears the lease,
// guarded by ownership (§4.8 "Finalize").
func (q *Queries) FinalizeSessionDone(ctx context.Context, p FinalizeSessionDoneParams) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE capture_session SET state = $3, locked_at = NULL, locked_by = NULL
		 WHERE id = $1 AND locked_by = $2`,
		p.ID, p.LockedBy, orDefault(p.DoneState, "done"))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// FinalizeSessionFailedParams guards the failure finalization. FailedState
// defaults to "failed" but is overridable per §6's state-name aliasing.
type FinalizeSessionFailedParams struct {
	ID          string
	LockedBy    string
	Error       string
	FailedState string
}

// FinalizeSessionFailed marks the session failed with a descriptive
// error and clears the lease, guarded by ownership (§4.8 "Finalize").
func (q *Queries) FinalizeSessionFailed(ctx context.Context, p FinalizeSessionFailedParams) (int64, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE capture_session SET state = $4, error = $3, locked_at = NULL, locked_by = NULL
		 WHERE id = $1 AND locked_by = $2`,
		p.ID, p.LockedBy, p.Error, orDefault(p.FailedState, "failed"))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListSessionImages returns a session's images ordered by sequence.
func (q *Queries) ListSessionImages(ctx context.Context, sessionID string) ([]Image, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, session_id, sequence, r2_key, telegram_message_id, created_at
		 FROM capture_image WHERE session_id = $1 ORDER BY sequence ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.SessionID, &img.Sequence, &img.R2Key, &img.TelegramMessageID, &img.CreatedAt); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return images, nil
}

// GetSession fetches a session by id, for callers that already hold the
// id from a prior claim.
func (q *Queries) GetSession(ctx context.Context, id string) (Session, error) {
	row := q.db.QueryRow(ctx,
		`SELECT id, user_id, state, created_at, error, locked_at, locked_by
		 FROM capture_session WHERE id = $1`,
		id)
	var s Session
	if err := row.Scan(&s.ID, &s.UserID, &s.State, &s.CreatedAt, &s.Error, &s.LockedAt, &s.LockedBy); err != nil {
		if err == pgx.ErrNoRows {
			return Session{}, pgx.ErrNoRows
		}
		return Session{}, err
	}
	return s, nil
}
