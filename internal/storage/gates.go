package storage

import (
	"strings"

	"github.com/oxidecomputer/console-sub002/internal/domain"
)

// states is the set of states in which an operation is permitted.
type states[S ~string] []S

func (ss states[S]) allows(s S) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// String renders the set as "a", "a or b", "a, b, or c".
func (ss states[S]) String() string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = string(s)
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " or " + parts[1]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + ", or " + parts[len(parts)-1]
}

var diskCan = struct {
	delete, snapshot, attach, detach, setAsBootDisk states[domain.DiskStateName]
}{
	delete:        states[domain.DiskStateName]{domain.DiskDetached, domain.DiskFaulted},
	snapshot:      states[domain.DiskStateName]{domain.DiskAttached, domain.DiskDetached},
	attach:        states[domain.DiskStateName]{domain.DiskCreating, domain.DiskDetached},
	detach:        states[domain.DiskStateName]{domain.DiskAttached},
	setAsBootDisk: states[domain.DiskStateName]{domain.DiskAttached},
}

var instanceCan = struct {
	start, stop, reboot, delete, update, attachDisk, detachDisk, editNics states[domain.InstanceState]
}{
	start:      states[domain.InstanceState]{domain.InstanceStopped},
	stop:       states[domain.InstanceState]{domain.InstanceRunning, domain.InstanceStarting, domain.InstanceRebooting, domain.InstanceFailed},
	reboot:     states[domain.InstanceState]{domain.InstanceRunning},
	delete:     states[domain.InstanceState]{domain.InstanceStopped, domain.InstanceFailed},
	update:     states[domain.InstanceState]{domain.InstanceStopped, domain.InstanceFailed, domain.InstanceCreating},
	attachDisk: states[domain.InstanceState]{domain.InstanceCreating, domain.InstanceStopped},
	detachDisk: states[domain.InstanceState]{domain.InstanceCreating, domain.InstanceStopped, domain.InstanceFailed},
	editNics:   states[domain.InstanceState]{domain.InstanceStopped},
}

func requireInstance(inst *domain.Instance, allowed states[domain.InstanceState], action string) error {
	if allowed.allows(inst.RunState) {
		return nil
	}
	return Precondition("instance %q can only %s if %s (currently %s)", inst.Name, action, allowed, inst.RunState)
}

func requireDisk(d *domain.Disk, allowed states[domain.DiskStateName], action string) error {
	if allowed.allows(d.State.State) {
		return nil
	}
	return Precondition("disk %q can only %s if %s (currently %s)", d.Name, action, allowed, d.State.State)
}
