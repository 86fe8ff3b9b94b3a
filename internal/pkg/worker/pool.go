// Package worker provides goroutine pool management.
//
// Coding standard: naked goroutines are forbidden outside a few named
// exceptions (signal waiters, ticker loops). Per-session processing goes
// through a Pool with context propagation, so a cancelled context or a
// shutdown signal stops in-flight work instead of leaking a goroutine.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"scheduleingest.dev/worker/internal/pkg/logger"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Pool wraps ants.Pool with context-aware submission.
type Pool struct {
	pool *ants.Pool
	name string
}

// Pools is the runner's worker pool collection. The ingest pipeline
// (OCR → layout → normalize → aggregate → canonicalize → persist) runs
// on Ingest; the lease heartbeat never goes through a pool — it runs on
// its own ticker goroutine so a saturated pool can never starve it.
type Pools struct {
	Ingest *Pool

	serviceCtx    context.Context
	serviceCancel context.CancelFunc
}

// PoolConfig contains worker pool configuration.
type PoolConfig struct {
	IngestPoolSize int
}

// DefaultPoolConfig returns default configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{IngestPoolSize: 8}
}

// NewPools creates the worker pool collection.
func NewPools(ctx context.Context, cfg PoolConfig) (*Pools, error) {
	serviceCtx, serviceCancel := context.WithCancel(ctx)

	panicHandler := func(p interface{}) {
		logger.Error("worker panic recovered",
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	ingestAnts, err := ants.NewPool(cfg.IngestPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(30*time.Second),
	)
	if err != nil {
		serviceCancel()
		return nil, err
	}

	return &Pools{
		Ingest:        &Pool{pool: ingestAnts, name: "ingest"},
		serviceCtx:    serviceCtx,
		serviceCancel: serviceCancel,
	}, nil
}

// Submit submits a context-aware task. The task receives the caller's
// context and SHOULD check ctx.Done() at blocking points. If the context
// is already cancelled, returns ctx.Err() immediately without submitting.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return p.pool.Submit(func() {
		select {
		case <-ctx.Done():
			logger.Debug("task skipped: context cancelled",
				zap.String("pool", p.name),
				zap.Error(ctx.Err()),
			)
			return
		default:
		}
		task(ctx)
	})
}

// Shutdown gracefully shuts down the pool with a timeout. Cancels the
// service context first, then waits for running tasks (max 30s).
func (p *Pools) Shutdown() {
	p.serviceCancel()

	const shutdownTimeout = 30 * time.Second
	if err := p.Ingest.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("ingest pool shutdown timeout", zap.Error(err))
	}
}

// Metrics returns pool metrics for observability.
func (p *Pools) Metrics() map[string]int {
	return map[string]int{
		"running": p.Ingest.pool.Running(),
		"free":    p.Ingest.pool.Free(),
		"cap":     p.Ingest.pool.Cap(),
	}
}
