// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresURLEnv names the database used by postgres integration tests.
const PostgresURLEnv = "AGENTCHAT_TEST_DATABASE_URL"

// PostgresPool returns a pool whose search_path points at a throwaway
// schema. The test is skipped when PostgresURLEnv is unset; the schema is
// dropped when the test ends.
func PostgresPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := strings.TrimSpace(os.Getenv(PostgresURLEnv))
	if dbURL == "" {
		t.Skipf("%s not set", PostgresURLEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	admin, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect %s: %v", PostgresURLEnv, err)
	}
	t.Cleanup(admin.Close)

	schema := fmt.Sprintf("agentchat_it_%d", time.Now().UnixNano())
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		t.Fatalf("create schema %s: %v", schema, err)
	}

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		t.Fatalf("parse %s: %v", PostgresURLEnv, err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect schema pool: %v", err)
	}
	// Registered after admin.Close, so it runs first.
	t.Cleanup(func() {
		pool.Close()
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dropCancel()
		_, _ = admin.Exec(dropCtx, "DROP SCHEMA "+schema+" CASCADE")
	})

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("ping postgres: %v", err)
	}
	return pool
}
