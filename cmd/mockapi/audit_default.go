//go:build !sqlite && !postgres

package main

import "github.com/oxidecomputer/console-sub002/internal/observability"

// selectAuditLogger returns the in-memory audit log when built without the
// 'sqlite' or 'postgres' tags. A configured DSN only earns a hint.
func selectAuditLogger(cfg Config, logger observability.Logger) auditBackend {
	if cfg.AuditDSN != "" {
		logger.Warn("audit DSN set, but binary not built with -tags sqlite or -tags postgres; using in-memory audit log")
	}
	return memoryAudit()
}
