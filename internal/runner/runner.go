// Package runner implements the Runner Loop (C9): the long-lived
// process that polls for finalizable sessions and drives each one
// through the full pipeline described by spec §2's data-flow table.
package runner

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"scheduleingest.dev/worker/internal/aggregate"
	"scheduleingest.dev/worker/internal/canonical"
	"scheduleingest.dev/worker/internal/domain"
	"scheduleingest.dev/worker/internal/eventstore"
	"scheduleingest.dev/worker/internal/lease"
	"scheduleingest.dev/worker/internal/notifymap"
	"scheduleingest.dev/worker/internal/notifystore"
	"scheduleingest.dev/worker/internal/pipeline"
	"scheduleingest.dev/worker/internal/pkg/apperr"
	"scheduleingest.dev/worker/internal/pkg/logger"
	"scheduleingest.dev/worker/internal/pkg/worker"
	"scheduleingest.dev/worker/internal/repository/sqlc"
	"scheduleingest.dev/worker/internal/version"
)

// Params configures one Runner.
type Params struct {
	Pool                *pgxpool.Pool
	Pools               *worker.Pools
	Pipeline            *pipeline.Pipeline
	Blobs               pipeline.BlobStore
	WorkerID            string
	PollInterval        time.Duration
	LeaseTimeoutSeconds int32
	HeartbeatSeconds    int32
	IdleTimeoutSeconds  int32
	SummaryThreshold    int
	ToleranceMinutes    int
	States              lease.StateNames
}

// Runner owns the poll loop and per-session pipeline wiring.
type Runner struct {
	p        Params
	queries  *sqlc.Queries
	leaseMgr *lease.Manager
	events   *eventstore.Store
	versions *version.Writer
	notifier *notifystore.Store
	log      *zap.Logger
}

// New builds a Runner.
func New(p Params) *Runner {
	queries := sqlc.New(p.Pool)
	return &Runner{
		p:        p,
		queries:  queries,
		leaseMgr: lease.New(queries, p.WorkerID, p.LeaseTimeoutSeconds, p.HeartbeatSeconds, p.IdleTimeoutSeconds, p.States),
		events:   eventstore.New(),
		versions: version.New(),
		notifier: notifystore.New(),
		log:      logger.With(zap.String("component", "runner"), zap.String("worker_id", p.WorkerID)),
	}
}

// Run blocks, executing one poll iteration every PollInterval until ctx
// is cancelled (spec §5 "Scheduling model").
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.p.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("runner stopping")
			return
		case <-ticker.C:
			r.runIteration(ctx)
		}
	}
}

// runIteration processes at most one finalizable session, submitting
// the work to the ingest pool so OCR (CPU-bound, blocking) never runs
// on the poll loop's own goroutine.
func (r *Runner) runIteration(ctx context.Context) {
	session, err := r.leaseMgr.Claim(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrNoFinalizableSession) {
			return
		}
		r.log.Error("claim failed", logger.ErrorFields(err)...)
		return
	}

	correlationID := uuid.NewString()
	sessionLog := r.log.With(logger.Session(session.ID, session.UserID, correlationID)...)
	sessionLog.Info("session.finalized")

	if err := r.p.Pools.Ingest.Submit(ctx, func(ctx context.Context) {
		r.processSession(ctx, session, sessionLog)
	}); err != nil {
		sessionLog.Error("submit to ingest pool failed", logger.ErrorFields(err)...)
	}
}

// processSession drives one claimed session through the full pipeline
// and finalizes it, guarded throughout by an independent heartbeat.
func (r *Runner) processSession(ctx context.Context, session sqlc.Session, log *zap.Logger) {
	hb := r.leaseMgr.Heartbeat(ctx, session.ID)
	defer hb.Stop()

	scheduleDate := session.CreatedAt.Format("2006-01-02")

	shifts, err := r.runPipeline(ctx, session, log)
	if err != nil {
		r.fail(ctx, session.ID, log, err)
		return
	}
	if hb.Lost() {
		log.Warn("lease lost before aggregation completed, aborting")
		return
	}

	aggregated, err := aggregate.Aggregate(shifts, r.p.ToleranceMinutes)
	if err != nil {
		r.fail(ctx, session.ID, log, apperr.Wrap(err, apperr.KindAggregation, apperr.StageDiff, "aggregate screenshots"))
		return
	}
	log.Info("aggregation.completed", zap.Int("shift_count", len(aggregated)))

	canon := make([]domain.CanonicalShift, 0, len(aggregated))
	for _, a := range aggregated {
		canon = append(canon, a.CanonicalShift)
	}
	result, err := canonical.Canonicalize(scheduleDate, aggregated)
	if err != nil {
		r.fail(ctx, session.ID, log, apperr.Wrap(err, apperr.KindCanonicalization, apperr.StageDiff, "canonicalize day"))
		return
	}

	if hb.Lost() {
		log.Warn("lease lost before persistence, aborting without writing")
		return
	}

	if err := r.persist(ctx, session, scheduleDate, canon, result, log); err != nil {
		r.fail(ctx, session.ID, log, err)
		return
	}

	if err := r.leaseMgr.FinalizeDone(ctx, session.ID); err != nil {
		log.Error("finalize done failed", logger.ErrorFields(err)...)
		return
	}
	log.Info("session.processed")
}

// runPipeline fetches each image's bytes and runs OCR → layout →
// normalize, collecting every image's canonical shifts as one
// per-screenshot slice for the aggregator (§4.2 step 1's screenshot
// provenance).
func (r *Runner) runPipeline(ctx context.Context, session sqlc.Session, log *zap.Logger) ([][]domain.CanonicalShift, error) {
	images, err := r.leaseMgr.ListImages(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	screenshots := make([][]domain.CanonicalShift, 0, len(images))
	for _, img := range images {
		blob, err := r.p.Blobs.Get(ctx, img.R2Key)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindExternal, apperr.StageOCR, "fetch image blob")
		}
		shifts, err := r.p.Pipeline.ProcessImage(ctx, blob)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindExternal, apperr.StageOCR, "process image through collaborator pipeline")
		}
		log.Info("layout.shifts_detected", zap.Int32("sequence", img.Sequence), zap.Int("count", len(shifts)))
		screenshots = append(screenshots, shifts)
	}
	log.Info("ocr.completed", zap.Int("image_count", len(images)))
	return screenshots, nil
}

// persist runs the version write, diff/event persistence, and
// notification mapping/storage in one transaction, so a session is
// never half-written (§5 "Cancellation and timeouts").
func (r *Runner) persist(ctx context.Context, session sqlc.Session, scheduleDate string, canon []domain.CanonicalShift, canonResult canonical.Result, log *zap.Logger) error {
	tx, err := r.p.Pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(err, apperr.KindTransientDB, apperr.StageDB, "begin persistence transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	qtx := r.queries.WithTx(tx)

	versionResult, err := r.versions.WriteVersion(ctx, qtx, session.UserID, scheduleDate, session.ID, canonResult.PayloadJSON, canonResult.PayloadHash)
	if err != nil {
		return err
	}

	persistedEvents, err := r.events.RunDiffCycle(ctx, qtx, session.UserID, scheduleDate, session.ID, canon)
	if err != nil {
		return err
	}

	notifications := notifymap.Map(session.UserID, scheduleDate, session.ID, persistedEvents, nil, r.p.SummaryThreshold)
	if err := r.notifier.Persist(ctx, qtx, session.UserID, scheduleDate, session.ID, notifications); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(err, apperr.KindTransientDB, apperr.StageDB, "commit persistence transaction")
	}

	log.Info("version.written", zap.String("outcome", string(versionResult.Outcome)), zap.Int32("version", versionResult.Version))
	log.Info("events.persisted", zap.Int("count", len(persistedEvents)))
	log.Info("notifications.generated", zap.Int("count", len(notifications)))
	log.Info("notifications.stored", zap.Int("count", len(notifications)))
	return nil
}

// fail marks the session failed with a descriptive error, per §7's
// policy for TransientDB/External/Canonicalization/Aggregation/
// SchemaContract/Unexpected kinds. A LeaseLost error is only logged and
// never writes to the session.
func (r *Runner) fail(ctx context.Context, sessionID string, log *zap.Logger, err error) {
	if appErr, ok := apperr.As(err); ok && !appErr.Kind.TerminatesSession() {
		log.Warn("lease lost during processing, aborting without finalizing", logger.ErrorFields(err)...)
		return
	}
	log.Error("session processing failed", logger.ErrorFields(err)...)
	if ferr := r.leaseMgr.FinalizeFailed(ctx, sessionID, err.Error()); ferr != nil {
		log.Error("finalize failed transition failed", logger.ErrorFields(ferr)...)
	}
}
