// Package eventstore implements the Event Store (C4): loading the prior
// day snapshot, running the diff engine, persisting the resulting
// events with dedupe, and upserting the new diff baseline — all inside
// one transaction (spec §4.4).
package eventstore

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"scheduleingest.dev/worker/internal/canonical"
	"scheduleingest.dev/worker/internal/diffengine"
	"scheduleingest.dev/worker/internal/domain"
	"scheduleingest.dev/worker/internal/pkg/apperr"
	"scheduleingest.dev/worker/internal/pkg/logger"
	"scheduleingest.dev/worker/internal/repository/sqlc"
)

// Store wraps the sqlc queries needed to run one diff cycle.
type Store struct {
	log *zap.Logger
}

// New builds a Store.
func New() *Store {
	return &Store{log: logger.With(zap.String("component", "event_store"))}
}

// PersistedEvent is an event after it has been assigned an id, the
// shape the notification mapper (C5) consumes.
type PersistedEvent struct {
	EventID             string
	EventType           domain.EventType
	LocationFingerprint string
	CustomerFingerprint string
	OldValue            *domain.CanonicalShift
	NewValue            *domain.CanonicalShift
}

// RunDiffCycle implements §4.4: load the prior snapshot, diff it against
// next, persist the new events (dedupe-insert), and upsert the snapshot.
// queries must already be bound to the caller's transaction.
func (s *Store) RunDiffCycle(ctx context.Context, queries *sqlc.Queries, userID, scheduleDate, sourceSessionID string, next []domain.CanonicalShift) ([]PersistedEvent, error) {
	prior, err := s.loadPriorShifts(ctx, queries, userID, scheduleDate)
	if err != nil {
		return nil, err
	}

	events, err := diffengine.Diff(prior, next)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindAggregation, apperr.StageDiff, "run diff engine")
	}
	s.log.Info("diff.computed",
		zap.String("user_id", userID), zap.String("schedule_date", scheduleDate),
		zap.Int("event_count", len(events)))

	persisted := make([]PersistedEvent, 0, len(events))
	for _, ev := range events {
		oldHash, err := canonical.HashCanonicalShift(ev.OldValue)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindCanonicalization, apperr.StageDiff, "hash old value")
		}
		newHash, err := canonical.HashCanonicalShift(ev.NewValue)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindCanonicalization, apperr.StageDiff, "hash new value")
		}

		oldJSON, err := marshalShiftOrNil(ev.OldValue)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindCanonicalization, apperr.StageDiff, "marshal old value")
		}
		newJSON, err := marshalShiftOrNil(ev.NewValue)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindCanonicalization, apperr.StageDiff, "marshal new value")
		}

		eventID := uuid.NewString()
		inserted, err := queries.InsertScheduleEvent(ctx, sqlc.InsertScheduleEventParams{
			EventID:             eventID,
			UserID:              userID,
			ScheduleDate:        scheduleDate,
			EventType:           string(ev.Type),
			LocationFingerprint: ev.LocationFingerprint,
			CustomerFingerprint: ev.CustomerFingerprint,
			OldValue:            oldJSON,
			NewValue:            newJSON,
			OldValueHash:        oldHash,
			NewValueHash:        newHash,
			SourceSessionID:     sourceSessionID,
		})
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindTransientDB, apperr.StageDB, "insert schedule event")
		}
		if !inserted {
			s.log.Debug("event already existed, skipped", zap.String("event_type", string(ev.Type)))
			continue
		}
		persisted = append(persisted, PersistedEvent{
			EventID:             eventID,
			EventType:           ev.Type,
			LocationFingerprint: ev.LocationFingerprint,
			CustomerFingerprint: ev.CustomerFingerprint,
			OldValue:            ev.OldValue,
			NewValue:            ev.NewValue,
		})
	}

	snapshotPayload, err := marshalShifts(next)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindCanonicalization, apperr.StageDiff, "marshal new snapshot")
	}
	if err := queries.UpsertDaySnapshot(ctx, sqlc.UpsertDaySnapshotParams{
		UserID:          userID,
		ScheduleDate:    scheduleDate,
		SnapshotPayload: snapshotPayload,
		SourceSessionID: sourceSessionID,
	}); err != nil {
		return nil, apperr.Wrap(err, apperr.KindTransientDB, apperr.StageDB, "upsert day snapshot")
	}

	s.log.Debug("day snapshot upserted",
		zap.String("user_id", userID), zap.String("schedule_date", scheduleDate),
		zap.Int("persisted_event_count", len(persisted)))
	return persisted, nil
}

// loadPriorShifts returns the empty slice when no snapshot exists yet
// (§4.4 "empty if absent").
func (s *Store) loadPriorShifts(ctx context.Context, queries *sqlc.Queries, userID, scheduleDate string) ([]domain.CanonicalShift, error) {
	snap, err := queries.GetDaySnapshot(ctx, userID, scheduleDate)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindTransientDB, apperr.StageDB, "load day snapshot")
	}

	var shifts []domain.CanonicalShift
	if err := json.Unmarshal(snap.SnapshotPayload, &shifts); err != nil {
		return nil, apperr.Wrap(err, apperr.KindSchemaContract, apperr.StageDB, "unmarshal day snapshot")
	}
	return shifts, nil
}

func marshalShiftOrNil(shift *domain.CanonicalShift) ([]byte, error) {
	if shift == nil {
		return nil, nil
	}
	return json.Marshal(shift)
}

func marshalShifts(shifts []domain.CanonicalShift) ([]byte, error) {
	if shifts == nil {
		shifts = []domain.CanonicalShift{}
	}
	return json.Marshal(shifts)
}
