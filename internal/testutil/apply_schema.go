package testutil

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplySchema executes a full DDL script (as produced by
// internal/repository/sqlc/schema.sql) against pool, failing the test on
// any error. Intended to run once per isolated test schema, immediately
// after OpenPGXPool.
func ApplySchema(t *testing.T, pool *pgxpool.Pool, ddl string) {
	t.Helper()

	if _, err := pool.Exec(context.Background(), ddl); err != nil {
		t.Fatalf("apply schema DDL: %v", err)
	}
}
