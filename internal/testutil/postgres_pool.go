package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OpenPGXPool opens a pgxpool against a real PostgreSQL instance, scoped to
// a schema created fresh for this one test run. Every package under
// internal/repository/sqlc, internal/version, internal/eventstore,
// internal/lease, and internal/notifystore shares this harness instead of
// mocking the capture_session/schedule_version/schedule_event tables, per
// the project's Postgres-only test policy: these tables live behind
// real constraints (unique indexes, advisory locks, ownership-guarded
// updates) that a mock would have to reimplement to be worth anything.
// Fails the test fast when no DSN is configured.
func OpenPGXPool(t *testing.T, schemaPrefix string) *pgxpool.Pool {
	t.Helper()

	dsn := testDSN()
	if dsn == "" {
		t.Fatalf("PostgreSQL test DSN is required: set TEST_DATABASE_URL or DATABASE_URL")
	}

	ctx := context.Background()
	schema := newSchemaName(schemaPrefix)

	bootstrap, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres bootstrap pool: %v", err)
	}
	t.Cleanup(bootstrap.Close)

	if err := bootstrap.Ping(ctx); err != nil {
		t.Fatalf("ping postgres: %v", err)
	}

	createTestSchema(t, ctx, bootstrap, schema)

	scopedDSN, err := dsnWithSearchPath(dsn, schema)
	if err != nil {
		t.Fatalf("build postgres DSN with search_path %q: %v", schema, err)
	}

	scoped, err := pgxpool.New(ctx, scopedDSN)
	if err != nil {
		t.Fatalf("open postgres test pool scoped to schema %q: %v", schema, err)
	}
	t.Cleanup(scoped.Close)

	if err := scoped.Ping(ctx); err != nil {
		t.Fatalf("ping schema-scoped postgres test pool: %v", err)
	}

	return scoped
}

// testDSN resolves the DSN a test run connects with, preferring a
// dedicated test database over whatever DATABASE_URL the worker itself
// would use in production.
func testDSN() string {
	if dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL")); dsn != "" {
		return dsn
	}
	return strings.TrimSpace(os.Getenv("DATABASE_URL"))
}

// createTestSchema creates schema on bootstrap and registers a t.Cleanup
// that drops it when the test finishes. A test binary that is killed or
// times out skips the cleanup and can leave the schema behind.
func createTestSchema(t *testing.T, ctx context.Context, bootstrap *pgxpool.Pool, schema string) {
	t.Helper()

	if _, err := bootstrap.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA "%s"`, schema)); err != nil {
		t.Fatalf("create test schema %q: %v", schema, err)
	}
	t.Cleanup(func() {
		_, _ = bootstrap.Exec(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS "%s" CASCADE`, schema))
	})
}
