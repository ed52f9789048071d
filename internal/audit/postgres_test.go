//go:build postgres

package audit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testPool *pgxpool.Pool

// TestMain uses DATABASE_URL when set and otherwise starts a PostgreSQL
// container with testcontainers-go.
func TestMain(m *testing.M) {
	ctx := context.Background()

	var container testcontainers.Container
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		c, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("mockapi_test"),
			tcpostgres.WithUsername("mockapi"),
			tcpostgres.WithPassword("mockapi"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start PostgreSQL container: %v\n", err)
			os.Exit(1)
		}
		container = c
		connStr, err = c.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to get connection string: %v\n", err)
			_ = c.Terminate(ctx)
			os.Exit(1)
		}
	}

	l, err := NewPostgresAuditLogger(ctx, connStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create audit logger: %v\n", err)
		if container != nil {
			_ = container.Terminate(ctx)
		}
		os.Exit(1)
	}
	testPool = l.pool

	code := m.Run()

	_ = l.Close()
	if container != nil {
		_ = container.Terminate(ctx)
	}
	os.Exit(code)
}

func TestPostgresAuditLogger(t *testing.T) {
	runConformance(t, func(t *testing.T) AuditLogger {
		if _, err := testPool.Exec(context.Background(), `TRUNCATE audit_log`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return NewPostgresAuditLoggerFromPool(testPool)
	})
}

func TestPostgresAuditLogger_MigrateIdempotent(t *testing.T) {
	l := NewPostgresAuditLoggerFromPool(testPool)
	if err := l.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
}
