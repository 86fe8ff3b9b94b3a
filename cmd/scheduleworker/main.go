// Package main is the entry point for the schedule ingest worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"scheduleingest.dev/worker/internal/config"
	"scheduleingest.dev/worker/internal/infrastructure"
	"scheduleingest.dev/worker/internal/lease"
	"scheduleingest.dev/worker/internal/pipeline"
	"scheduleingest.dev/worker/internal/pkg/logger"
	"scheduleingest.dev/worker/internal/pkg/worker"
	"scheduleingest.dev/worker/internal/runner"
)

// serviceName is the §6 "service" structured log field for this binary.
const serviceName = "scheduleworker"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, serviceName); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting schedule ingest worker",
		zap.String("worker_id", cfg.Worker.ID),
		zap.String("log_level", cfg.Log.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	pools, err := worker.NewPools(ctx, worker.PoolConfig{IngestPoolSize: cfg.Worker.IngestPoolSize})
	if err != nil {
		return fmt.Errorf("create worker pools: %w", err)
	}
	defer pools.Shutdown()

	r := runner.New(runner.Params{
		Pool:  db.Pool,
		Pools: pools,
		Pipeline: &pipeline.Pipeline{
			OCR:        pipeline.NoopOCR{},
			Layout:     pipeline.NoopLayoutParser{},
			Normalizer: pipeline.NoopNormalizer{},
		},
		Blobs:               pipeline.FileBlobStore{Root: cfg.Worker.BlobStoreRoot},
		WorkerID:            cfg.Worker.ID,
		PollInterval:        time.Duration(cfg.Worker.PollSeconds) * time.Second,
		LeaseTimeoutSeconds: int32(cfg.Worker.LeaseTimeoutSeconds),
		HeartbeatSeconds:    int32(cfg.Worker.LeaseHeartbeatSeconds),
		IdleTimeoutSeconds:  int32(cfg.Worker.SessionIdleTimeoutSeconds),
		SummaryThreshold:    cfg.Worker.SummaryThreshold,
		ToleranceMinutes:    cfg.Worker.TimeToleranceMinutes,
		States: lease.StateNames{
			Pending:    cfg.States.Pending,
			Processing: cfg.States.Processing,
			Done:       cfg.States.Done,
			Failed:     cfg.States.Failed,
		},
	})

	runDone := make(chan struct{})
	go func() { //nolint:naked-goroutine // runner's own top-level loop is exempt, same as the teacher's server goroutine
		defer close(runDone)
		r.Run(ctx)
	}()

	logger.Info("worker started", zap.Int("poll_seconds", cfg.Worker.PollSeconds))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")
	cancel()

	select {
	case <-runDone:
	case <-time.After(30 * time.Second):
		logger.Warn("runner did not stop within shutdown timeout")
	}

	logger.Info("worker stopped gracefully")
	return nil
}
