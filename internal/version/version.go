// Package version implements the Version Writer (C7): per-date
// serialized insert of new immutable schedule versions with no-change
// dedupe (spec §4.7).
package version

import (
	"context"

	"go.uber.org/zap"

	"scheduleingest.dev/worker/internal/domain"
	"scheduleingest.dev/worker/internal/pkg/apperr"
	"scheduleingest.dev/worker/internal/pkg/logger"
	"scheduleingest.dev/worker/internal/repository/sqlc"

	"github.com/jackc/pgx/v5"
)

// Writer wraps the sqlc queries needed to serialize version inserts for
// one (user_id, schedule_date) behind a transactional advisory lock.
type Writer struct {
	log *zap.Logger
}

// New builds a Writer.
func New() *Writer {
	return &Writer{log: logger.With(zap.String("component", "version_writer"))}
}

// Result is the outcome of one WriteVersion attempt.
type Result struct {
	Outcome domain.VersionOutcome
	Version int32
}

// WriteVersion implements §4.7 steps 1-4. queries must already be bound
// to the caller's transaction (via sqlc.Queries.WithTx) so the advisory
// lock, the read, and the insert all participate in one unit of work.
func (w *Writer) WriteVersion(ctx context.Context, queries *sqlc.Queries, userID, scheduleDate, sessionID string, payload []byte, payloadHash string) (Result, error) {
	if err := queries.AdvisoryLockDay(ctx, userID, scheduleDate); err != nil {
		return Result{}, apperr.Wrap(err, apperr.KindTransientDB, apperr.StageDB, "acquire day advisory lock")
	}

	latest, err := queries.GetLatestVersion(ctx, userID, scheduleDate)
	nextVersion := int32(1)
	switch {
	case err == nil:
		if latest.PayloadHash == payloadHash {
			w.log.Debug("version unchanged",
				zap.String("user_id", userID), zap.String("schedule_date", scheduleDate),
				zap.Int32("version", latest.Version))
			return Result{Outcome: domain.VersionUnchanged, Version: latest.Version}, nil
		}
		nextVersion = latest.Version + 1
	case err == pgx.ErrNoRows:
		// no prior version; nextVersion stays 1.
	default:
		return Result{}, apperr.Wrap(err, apperr.KindTransientDB, apperr.StageDB, "read latest schedule version")
	}

	inserted, err := queries.InsertScheduleVersion(ctx, sqlc.InsertScheduleVersionParams{
		UserID:       userID,
		ScheduleDate: scheduleDate,
		Version:      nextVersion,
		SessionID:    sessionID,
		Payload:      payload,
		PayloadHash:  payloadHash,
	})
	if err != nil {
		return Result{}, apperr.Wrap(err, apperr.KindTransientDB, apperr.StageDB, "insert schedule version")
	}
	if !inserted {
		w.log.Info("version insert raced, already existed",
			zap.String("user_id", userID), zap.String("schedule_date", scheduleDate),
			zap.Int32("version", nextVersion))
		return Result{Outcome: domain.VersionAlreadyExisted, Version: nextVersion}, nil
	}

	w.log.Info("version created",
		zap.String("user_id", userID), zap.String("schedule_date", scheduleDate),
		zap.Int32("version", nextVersion))
	return Result{Outcome: domain.VersionCreated, Version: nextVersion}, nil
}
