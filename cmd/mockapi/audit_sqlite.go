//go:build sqlite && !postgres

package main

import (
	"github.com/oxidecomputer/console-sub002/internal/audit"
	"github.com/oxidecomputer/console-sub002/internal/observability"
)

// selectAuditLogger returns a SQLite-backed audit log when built with the
// 'sqlite' tag and an audit DSN is set (e.g. file:audit.db?cache=shared).
func selectAuditLogger(cfg Config, logger observability.Logger) auditBackend {
	if cfg.AuditDSN == "" {
		return memoryAudit()
	}
	al, err := audit.NewSQLiteAuditLogger(cfg.AuditDSN)
	if err != nil {
		logger.Error("sqlite audit logger init failed; falling back to memory", "error", err)
		return memoryAudit()
	}
	logger.Info("using sqlite audit logger", "dsn", cfg.AuditDSN)
	return auditBackend{logger: al, pruner: al}
}
