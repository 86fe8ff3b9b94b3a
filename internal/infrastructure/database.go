// Package infrastructure provides database connection pool setup.
package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"scheduleingest.dev/worker/internal/config"
	"scheduleingest.dev/worker/internal/pkg/logger"
)

// DatabaseClients contains all database-related clients.
//
// Coding standard: use this struct to manage connection pools. Do not
// create separate sql.Open()/pgxpool.New() calls elsewhere — every
// component (repository queries, advisory locks, lease claims) shares
// this one pool so a transaction begun on it sees a consistent
// search_path and connection-level session settings.
type DatabaseClients struct {
	Pool *pgxpool.Pool
}

// NewDatabaseClients creates database clients with a shared connection pool.
func NewDatabaseClients(ctx context.Context, cfg config.DatabaseConfig) (*DatabaseClients, error) {
	dsn := cfg.DSN()

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = time.Minute

	schema := cfg.Schema
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, "SET timezone = 'UTC'"); err != nil {
			return err
		}
		if schema != "" {
			if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path = %s, public", pgx.Identifier{schema}.Sanitize())); err != nil {
				return err
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("database connection pool created",
		zap.Int32("max_conns", cfg.MaxConns),
		zap.Int32("min_conns", cfg.MinConns),
		zap.String("schema", schema),
	)

	return &DatabaseClients{Pool: pool}, nil
}

// Close closes the connection pool gracefully.
func (c *DatabaseClients) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}
