// Package lease implements the Lease & Lifecycle component (C8): claim,
// heartbeat, and finalize for capture sessions (spec §4.8).
package lease

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"scheduleingest.dev/worker/internal/pkg/apperr"
	"scheduleingest.dev/worker/internal/pkg/logger"
	"scheduleingest.dev/worker/internal/repository/sqlc"
)

// StateNames aliases the capture_session.state enum values (§6
// state-name aliasing); the zero value falls back to the literal
// pending/processing/done/failed strings.
type StateNames struct {
	Pending    string
	Processing string
	Done       string
	Failed     string
}

// Manager wraps the sqlc session queries into the claim/heartbeat/
// finalize lifecycle.
type Manager struct {
	queries                   *sqlc.Queries
	workerID                  string
	leaseTimeoutSeconds       int32
	leaseHeartbeatSeconds     int32
	sessionIdleTimeoutSeconds int32
	states                    StateNames
	log                       *zap.Logger
}

// New builds a Manager bound to a pool-backed Queries.
func New(queries *sqlc.Queries, workerID string, leaseTimeoutSeconds, leaseHeartbeatSeconds, sessionIdleTimeoutSeconds int32, states StateNames) *Manager {
	return &Manager{
		queries:                   queries,
		workerID:                  workerID,
		leaseTimeoutSeconds:       leaseTimeoutSeconds,
		leaseHeartbeatSeconds:     leaseHeartbeatSeconds,
		sessionIdleTimeoutSeconds: sessionIdleTimeoutSeconds,
		states:                    states,
		log:                       logger.With(zap.String("component", "lease_manager"), zap.String("worker_id", workerID)),
	}
}

// Claim implements §4.8's finalization gate plus claim algorithm as one
// atomic SQL statement. Returns apperr.ErrNoFinalizableSession (wrapped)
// when nothing is claimable right now.
func (m *Manager) Claim(ctx context.Context) (sqlc.Session, error) {
	session, err := m.queries.ClaimNextFinalizableSession(ctx, sqlc.ClaimNextFinalizableSessionParams{
		WorkerID:                  m.workerID,
		SessionIdleTimeoutSeconds: m.sessionIdleTimeoutSeconds,
		LeaseTimeoutSeconds:       m.leaseTimeoutSeconds,
		PendingState:              m.states.Pending,
		ProcessingState:           m.states.Processing,
	})
	if err != nil {
		if err == pgx.ErrNoRows {
			m.logSkippedIdle(ctx)
			return sqlc.Session{}, apperr.Wrap(apperr.ErrNoFinalizableSession, apperr.KindUnexpected, apperr.StageLifecycle, "claim")
		}
		return sqlc.Session{}, apperr.Wrap(err, apperr.KindTransientDB, apperr.StageLifecycle, "claim next finalizable session")
	}
	m.log.Debug("session claimed", logger.Session(session.ID, session.UserID, "")...)
	return session, nil
}

// logSkippedIdle logs session.skipped_idle for every pending session that
// is visible but has not yet reached the idle timeout (§6 required event),
// since ClaimNextFinalizableSession's atomic claim never surfaces those
// sessions to application code on its own.
func (m *Manager) logSkippedIdle(ctx context.Context) {
	skipped, err := m.queries.ListSkippedIdleSessions(ctx, sqlc.ListSkippedIdleSessionsParams{
		SessionIdleTimeoutSeconds: m.sessionIdleTimeoutSeconds,
		PendingState:              m.states.Pending,
	})
	if err != nil {
		m.log.Warn("list skipped idle sessions failed", logger.ErrorFields(err)...)
		return
	}
	for _, s := range skipped {
		m.log.Info("session.skipped_idle", logger.Session(s.ID, s.UserID, "")...)
	}
}

// Heartbeat starts a background goroutine that refreshes the lease every
// LeaseHeartbeatSeconds, guarded by ownership (§4.8 "Heartbeat"). The
// returned Handle reports lease loss independently of the caller's own
// blocking work (so CPU-bound OCR never starves the lease) and must be
// stopped via Stop once processing finishes.
func (m *Manager) Heartbeat(ctx context.Context, sessionID string) *Handle {
	h := &Handle{
		lost:   make(chan struct{}),
		done:   make(chan struct{}),
		stopCh: make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		interval := time.Duration(m.leaseHeartbeatSeconds) * time.Second
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-h.stopCh:
				return
			case <-ticker.C:
				affected, err := m.queries.HeartbeatSession(ctx, sqlc.HeartbeatSessionParams{ID: sessionID, LockedBy: m.workerID})
				if err != nil {
					fields := append([]zap.Field{zap.String("session_id", sessionID)}, logger.ErrorFields(apperr.Wrap(err, apperr.KindTransientDB, apperr.StageLifecycle, "heartbeat update"))...)
					m.log.Warn("heartbeat update failed", fields...)
					continue
				}
				if affected == 0 {
					m.log.Warn("lease lost", zap.String("session_id", sessionID))
					h.markLost()
					return
				}
			}
		}
	}()

	return h
}

// Handle tracks one session's heartbeat goroutine.
type Handle struct {
	lost     chan struct{}
	done     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

func (h *Handle) markLost() {
	select {
	case <-h.lost:
	default:
		close(h.lost)
	}
}

// Stop signals the heartbeat goroutine to exit and waits for it.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
	<-h.done
}

// Lost reports whether the lease has been observed lost (§4.8 "Heartbeat":
// a zero-row guarded update means ownership is gone).
func (h *Handle) Lost() bool {
	select {
	case <-h.lost:
		return true
	default:
		return false
	}
}

// FinalizeDone marks the session done and clears the lease (§4.8
// "Finalize", success path). Returns apperr.ErrLeaseLost if the guarded
// update affected zero rows.
func (m *Manager) FinalizeDone(ctx context.Context, sessionID string) error {
	affected, err := m.queries.FinalizeSessionDone(ctx, sqlc.FinalizeSessionDoneParams{ID: sessionID, LockedBy: m.workerID, DoneState: m.states.Done})
	if err != nil {
		return apperr.Wrap(err, apperr.KindTransientDB, apperr.StageLifecycle, "finalize session done")
	}
	if affected == 0 {
		return apperr.Wrap(apperr.ErrLeaseLost, apperr.KindLeaseLost, apperr.StageLifecycle, "finalize done lost ownership")
	}
	m.log.Info("session finalized done", zap.String("session_id", sessionID))
	return nil
}

// FinalizeFailed marks the session failed with a descriptive error and
// clears the lease (§4.8 "Finalize", failure path).
func (m *Manager) FinalizeFailed(ctx context.Context, sessionID, reason string) error {
	affected, err := m.queries.FinalizeSessionFailed(ctx, sqlc.FinalizeSessionFailedParams{ID: sessionID, LockedBy: m.workerID, Error: reason, FailedState: m.states.Failed})
	if err != nil {
		return apperr.Wrap(err, apperr.KindTransientDB, apperr.StageLifecycle, "finalize session failed")
	}
	if affected == 0 {
		return apperr.Wrap(apperr.ErrLeaseLost, apperr.KindLeaseLost, apperr.StageLifecycle, "finalize failed lost ownership")
	}
	m.log.Warn("session finalized failed", zap.String("session_id", sessionID), zap.String("error", reason))
	return nil
}

// ListImages returns a claimed session's images ordered by sequence.
func (m *Manager) ListImages(ctx context.Context, sessionID string) ([]sqlc.Image, error) {
	images, err := m.queries.ListSessionImages(ctx, sessionID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindTransientDB, apperr.StageLifecycle, "list session images")
	}
	return images, nil
}
