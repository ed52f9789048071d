//go:build sqlite

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // CGO-less SQLite driver

	"github.com/oxidecomputer/console-sub002/internal/domain"
)

// sqliteTime is fixed width so stored timestamps compare as text.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

var sqliteMigrations = []migration{
	{1, "create_audit_log", `
		CREATE TABLE IF NOT EXISTS audit_log (
			seq              INTEGER PRIMARY KEY AUTOINCREMENT,
			id               TEXT NOT NULL UNIQUE,
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
			time_started     TEXT NOT NULL,
			time_completed   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS audit_log_time_completed ON audit_log (time_completed);`},
}

// SQLiteAuditLogger is a SQLite-backed implementation of AuditLogger.
type SQLiteAuditLogger struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteAuditLogger opens dsn and applies the audit schema.
func NewSQLiteAuditLogger(dsn string) (*SQLiteAuditLogger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrateSQLite(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate audit schema: %w", err)
	}
	return &SQLiteAuditLogger{db: db, now: time.Now}, nil
}

func migrateSQLite(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS audit_schema_migrations (version INTEGER PRIMARY KEY, name TEXT NOT NULL, applied_at TEXT NOT NULL)`); err != nil {
		return err
	}
	for _, m := range sqliteMigrations {
		var n int
		if err := db.QueryRow(`SELECT COUNT(1) FROM audit_schema_migrations WHERE version = ?`, m.version).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO audit_schema_migrations(version, name, applied_at) VALUES(?, ?, ?)`,
			m.version, m.name, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteAuditLogger) Close() error {
	return s.db.Close()
}

// Log records an entry.
func (s *SQLiteAuditLogger) Log(ctx context.Context, e *Entry) error {
	if e == nil {
		return nil
	}
	prepare(e, uuid.NewString, s.now())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, operation_id, request_id, request_uri, source_ip, user_agent, auth_method,
			actor_kind, silo_id, silo_user_id, result_kind, http_status_code, error_code, error_message,
			time_started, time_completed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OperationID, e.RequestID, e.RequestURI, e.SourceIP,
		nullString(e.UserAgent), nullString(e.AuthMethod),
		e.Actor.Kind, nullString(e.Actor.SiloID), nullString(e.Actor.SiloUserID),
		e.Result.Kind, sql.NullInt64{Int64: int64(e.Result.HTTPStatusCode), Valid: e.Result.HTTPStatusCode != 0},
		nullString(e.Result.ErrorCode), nullString(e.Result.ErrorMessage),
		e.TimeStarted.Format(sqliteTime), e.TimeCompleted.Format(sqliteTime),
	)
	return err
}

// List returns one page of matching entries.
func (s *SQLiteAuditLogger) List(ctx context.Context, opts ListOptions) (domain.ResultsPage[Entry], error) {
	where := "seq > COALESCE((SELECT seq FROM audit_log WHERE id = ?), 0)"
	args := []any{opts.Page.PageToken}

	if opts.OperationID != "" {
		where += " AND operation_id = ?"
		args = append(args, opts.OperationID)
	}
	if opts.StartTime != nil {
		where += " AND time_completed >= ?"
		args = append(args, opts.StartTime.UTC().Format(sqliteTime))
	}
	if opts.EndTime != nil {
		where += " AND time_completed < ?"
		args = append(args, opts.EndTime.UTC().Format(sqliteTime))
	}

	limit := pageLimit(opts.Page)
	query := `SELECT id, operation_id, request_id, request_uri, source_ip, user_agent, auth_method,
			actor_kind, silo_id, silo_user_id, result_kind, http_status_code, error_code, error_message,
			time_started, time_completed
		FROM audit_log WHERE ` + where + ` ORDER BY seq LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.ResultsPage[Entry]{}, err
	}
	defer rows.Close()

	var items []Entry
	for rows.Next() {
		var e Entry
		var userAgent, authMethod, siloID, siloUserID, errorCode, errorMessage sql.NullString
		var status sql.NullInt64
		var started, completed string
		if err := rows.Scan(&e.ID, &e.OperationID, &e.RequestID, &e.RequestURI, &e.SourceIP, &userAgent, &authMethod,
			&e.Actor.Kind, &siloID, &siloUserID, &e.Result.Kind, &status, &errorCode, &errorMessage,
			&started, &completed); err != nil {
			return domain.ResultsPage[Entry]{}, err
		}
		e.UserAgent = userAgent.String
		e.AuthMethod = authMethod.String
		e.Actor.SiloID = siloID.String
		e.Actor.SiloUserID = siloUserID.String
		e.Result.HTTPStatusCode = int(status.Int64)
		e.Result.ErrorCode = errorCode.String
		e.Result.ErrorMessage = errorMessage.String
		e.TimeStarted, _ = time.Parse(sqliteTime, started)
		e.TimeCompleted, _ = time.Parse(sqliteTime, completed)
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return domain.ResultsPage[Entry]{}, err
	}
	return pageOf(items, limit), nil
}

// DeleteOlderThan removes entries completed before the cutoff.
func (s *SQLiteAuditLogger) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_log WHERE time_completed < ?`, before.UTC().Format(sqliteTime))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var (
	_ AuditLogger = (*SQLiteAuditLogger)(nil)
	_ Pruner      = (*SQLiteAuditLogger)(nil)
)
