package storage

import "strings"

// Fixture names that make an operation fail on purpose, so client error
// handling can be exercised against realistic failures.
const (
	FaultProjectUnavailable = "error-503" // suffix, project view
	FaultProjectForbidden   = "error-403" // suffix, project view
	FaultDiskCreate         = "disk-create-500"
	FaultDiskSnapshot       = "disk-snapshot-error"
	FaultSnapshotDelete     = "delete-500"
	FaultNoDefaultPool      = "no-default-pool"
)

func projectViewFault(ref string) error {
	switch {
	case strings.HasSuffix(ref, FaultProjectUnavailable):
		return Unavailable("service unavailable")
	case strings.HasSuffix(ref, FaultProjectForbidden):
		return Forbidden("action is forbidden")
	}
	return nil
}
