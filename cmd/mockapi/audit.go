package main

import "github.com/oxidecomputer/console-sub002/internal/audit"

// auditBackend is the audit log the server records to and, when it can
// drop old entries, the pruner the retention loop drives.
type auditBackend struct {
	logger audit.AuditLogger
	pruner audit.Pruner
}

func memoryAudit() auditBackend {
	al := audit.NewMemoryAuditLogger()
	return auditBackend{logger: al, pruner: al}
}
