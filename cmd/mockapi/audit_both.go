//go:build sqlite && postgres

package main

import (
	"context"
	"strings"
	"time"

	"github.com/oxidecomputer/console-sub002/internal/audit"
	"github.com/oxidecomputer/console-sub002/internal/observability"
)

// selectAuditLogger picks PostgreSQL for postgres:// DSNs and SQLite for
// anything else.
func selectAuditLogger(cfg Config, logger observability.Logger) auditBackend {
	dsn := cfg.AuditDSN
	switch {
	case dsn == "":
		return memoryAudit()
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		al, err := audit.NewPostgresAuditLogger(ctx, dsn)
		if err != nil {
			logger.Error("postgres audit logger init failed; falling back to memory", "error", err)
			return memoryAudit()
		}
		logger.Info("using postgres audit logger")
		return auditBackend{logger: al, pruner: al}
	default:
		al, err := audit.NewSQLiteAuditLogger(dsn)
		if err != nil {
			logger.Error("sqlite audit logger init failed; falling back to memory", "error", err)
			return memoryAudit()
		}
		logger.Info("using sqlite audit logger", "dsn", dsn)
		return auditBackend{logger: al, pruner: al}
	}
}
