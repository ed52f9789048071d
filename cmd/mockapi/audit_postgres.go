//go:build postgres && !sqlite

package main

import (
	"context"
	"time"

	"github.com/oxidecomputer/console-sub002/internal/audit"
	"github.com/oxidecomputer/console-sub002/internal/observability"
)

// selectAuditLogger returns a PostgreSQL-backed audit log when built with
// the 'postgres' tag and an audit DSN (a postgres:// URL) is set.
func selectAuditLogger(cfg Config, logger observability.Logger) auditBackend {
	if cfg.AuditDSN == "" {
		return memoryAudit()
	}
	return postgresAudit(cfg.AuditDSN, logger)
}

func postgresAudit(url string, logger observability.Logger) auditBackend {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	al, err := audit.NewPostgresAuditLogger(ctx, url)
	if err != nil {
		logger.Error("postgres audit logger init failed; falling back to memory", "error", err)
		return memoryAudit()
	}
	logger.Info("using postgres audit logger")
	return auditBackend{logger: al, pruner: al}
}
