//go:build postgres

package audit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oxidecomputer/console-sub002/internal/domain"
)

var postgresMigrations = []migration{
	{1, "create_audit_log", `
		CREATE TABLE IF NOT EXISTS audit_log (
			seq              BIGSERIAL PRIMARY KEY,
			id               UUID NOT NULL UNIQUE,
			operation_id     TEXT NOT NULL,
			request_id       TEXT NOT NULL,
			request_uri      TEXT NOT NULL,
			source_ip        TEXT NOT NULL,
			user_agent       TEXT,
			auth_method      TEXT,
			actor_kind       TEXT NOT NULL,
			silo_id          TEXT,
			silo_user_id     TEXT,
			result_kind      TEXT NOT NULL,
			http_status_code INTEGER,
			error_code       TEXT,
			error_message    TEXT,
			time_started     TIMESTAMPTZ NOT NULL,
			time_completed   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS audit_log_time_completed ON audit_log (time_completed);`},
}

// PostgresAuditLogger is a PostgreSQL-backed implementation of AuditLogger.
type PostgresAuditLogger struct {
	pool    *pgxpool.Pool
	ownPool bool // true if we created the pool (and should close it)
	now     func() time.Time
}

// NewPostgresAuditLogger connects to connStr and applies the audit schema.
func NewPostgresAuditLogger(ctx context.Context, connStr string) (*PostgresAuditLogger, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	l := &PostgresAuditLogger{pool: pool, ownPool: true, now: time.Now}
	if err := l.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

// NewPostgresAuditLoggerFromPool wraps an existing pool. Migrations are not run.
func NewPostgresAuditLoggerFromPool(pool *pgxpool.Pool) *PostgresAuditLogger {
	return &PostgresAuditLogger{pool: pool, now: time.Now}
}

// Migrate applies pending audit schema migrations.
func (s *PostgresAuditLogger) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS audit_schema_migrations (version BIGINT PRIMARY KEY, name TEXT NOT NULL, applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW())`); err != nil {
		return fmt.Errorf("create audit_schema_migrations: %w", err)
	}
	for _, m := range postgresMigrations {
		var applied bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM audit_schema_migrations WHERE version = $1)`, m.version).Scan(&applied); err != nil {
			return fmt.Errorf("query applied migrations: %w", err)
		}
		if applied {
			continue
		}
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx for migration %s: %w", m.name, err)
		}
		if _, err := tx.Exec(ctx, m.stmt); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO audit_schema_migrations(version, name) VALUES($1, $2)`, m.version, m.name); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.name, err)
		}
	}
	return nil
}

// Close closes the connection pool if we own it.
func (s *PostgresAuditLogger) Close() error {
	if s.ownPool {
		s.pool.Close()
	}
	return nil
}

// Log records an entry.
func (s *PostgresAuditLogger) Log(ctx context.Context, e *Entry) error {
	if e == nil {
		return nil
	}
	prepare(e, uuid.NewString, s.now())

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (id, operation_id, request_id, request_uri, source_ip, user_agent, auth_method,
			actor_kind, silo_id, silo_user_id, result_kind, http_status_code, error_code, error_message,
			time_started, time_completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		e.ID, e.OperationID, e.RequestID, e.RequestURI, e.SourceIP,
		nullStr(e.UserAgent), nullStr(e.AuthMethod),
		e.Actor.Kind, nullStr(e.Actor.SiloID), nullStr(e.Actor.SiloUserID),
		e.Result.Kind, nullInt(e.Result.HTTPStatusCode),
		nullStr(e.Result.ErrorCode), nullStr(e.Result.ErrorMessage),
		e.TimeStarted, e.TimeCompleted,
	)
	return err
}

// List returns one page of matching entries.
func (s *PostgresAuditLogger) List(ctx context.Context, opts ListOptions) (domain.ResultsPage[Entry], error) {
	where := "seq > COALESCE((SELECT seq FROM audit_log WHERE id::text = $1), 0)"
	args := []any{opts.Page.PageToken}

	if opts.OperationID != "" {
		args = append(args, opts.OperationID)
		where += " AND operation_id = $" + strconv.Itoa(len(args))
	}
	if opts.StartTime != nil {
		args = append(args, *opts.StartTime)
		where += " AND time_completed >= $" + strconv.Itoa(len(args))
	}
	if opts.EndTime != nil {
		args = append(args, *opts.EndTime)
		where += " AND time_completed < $" + strconv.Itoa(len(args))
	}

	limit := pageLimit(opts.Page)
	args = append(args, limit+1)
	query := `SELECT id::text, operation_id, request_id, request_uri, source_ip, user_agent, auth_method,
			actor_kind, silo_id, silo_user_id, result_kind, http_status_code, error_code, error_message,
			time_started, time_completed
		FROM audit_log WHERE ` + where + ` ORDER BY seq LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return domain.ResultsPage[Entry]{}, err
	}
	defer rows.Close()

	items, err := scanEntries(rows)
	if err != nil {
		return domain.ResultsPage[Entry]{}, err
	}
	return pageOf(items, limit), nil
}

// DeleteOlderThan removes entries completed before the cutoff.
func (s *PostgresAuditLogger) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_log WHERE time_completed < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var items []Entry
	for rows.Next() {
		var e Entry
		var userAgent, authMethod, siloID, siloUserID, errorCode, errorMessage *string
		var status *int
		if err := rows.Scan(&e.ID, &e.OperationID, &e.RequestID, &e.RequestURI, &e.SourceIP, &userAgent, &authMethod,
			&e.Actor.Kind, &siloID, &siloUserID, &e.Result.Kind, &status, &errorCode, &errorMessage,
			&e.TimeStarted, &e.TimeCompleted); err != nil {
			return nil, err
		}
		e.UserAgent = deref(userAgent)
		e.AuthMethod = deref(authMethod)
		e.Actor.SiloID = deref(siloID)
		e.Actor.SiloUserID = deref(siloUserID)
		e.Result.ErrorCode = deref(errorCode)
		e.Result.ErrorMessage = deref(errorMessage)
		if status != nil {
			e.Result.HTTPStatusCode = *status
		}
		e.TimeStarted = e.TimeStarted.UTC()
		e.TimeCompleted = e.TimeCompleted.UTC()
		items = append(items, e)
	}
	return items, rows.Err()
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt(i int) *int {
	if i == 0 {
		return nil
	}
	return &i
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

var (
	_ AuditLogger = (*PostgresAuditLogger)(nil)
	_ Pruner      = (*PostgresAuditLogger)(nil)
)
