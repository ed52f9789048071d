package storage

import (
	"errors"
	"fmt"

	"github.com/oxidecomputer/console-sub002/internal/domain"
)

// InitialState is the fixed snapshot a Store is built from and reset to.
type InitialState struct {
	Projects          []domain.Project          `yaml:"projects"`
	Instances         []domain.Instance         `yaml:"instances"`
	Disks             []domain.Disk             `yaml:"disks"`
	Snapshots         []domain.Snapshot         `yaml:"snapshots"`
	Vpcs              []domain.Vpc              `yaml:"vpcs"`
	VpcSubnets        []domain.VpcSubnet        `yaml:"vpc_subnets"`
	FirewallRules     []domain.VpcFirewallRule  `yaml:"vpc_firewall_rules"`
	NetworkInterfaces []domain.NetworkInterface `yaml:"network_interfaces"`
	IpPools           []domain.IpPool           `yaml:"ip_pools"`
	IpPoolRanges      []domain.IpPoolRange      `yaml:"ip_pool_ranges"`
	Silos             []domain.Silo             `yaml:"silos"`
	Sleds             []domain.Sled             `yaml:"sleds"`
	SshKeys           []domain.SshKey           `yaml:"ssh_keys"`
	Users             []domain.User             `yaml:"users"`
	RoleAssignments   []domain.RoleAssignment   `yaml:"role_assignments"`
}

// state is the live, mutable set of collections. Lookups return pointers
// into these slices so field updates are visible to later reads.
type state struct {
	Projects          []*domain.Project
	Instances         []*domain.Instance
	Disks             []*domain.Disk
	Snapshots         []*domain.Snapshot
	Vpcs              []*domain.Vpc
	VpcSubnets        []*domain.VpcSubnet
	FirewallRules     []*domain.VpcFirewallRule
	NetworkInterfaces []*domain.NetworkInterface
	IpPools           []*domain.IpPool
	IpPoolRanges      []*domain.IpPoolRange
	Silos             []*domain.Silo
	Sleds             []*domain.Sled
	SshKeys           []*domain.SshKey
	Users             []*domain.User
	RoleAssignments   []*domain.RoleAssignment
}

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInstance(i domain.Instance) domain.Instance {
	i.BootDiskID = cloneStr(i.BootDiskID)
	return i
}

func cloneDisk(d domain.Disk) domain.Disk {
	d.SnapshotID = cloneStr(d.SnapshotID)
	d.ImageID = cloneStr(d.ImageID)
	return d
}

func cloneSubnet(s domain.VpcSubnet) domain.VpcSubnet {
	s.CustomRouterID = cloneStr(s.CustomRouterID)
	return s
}

func cloneRule(r domain.VpcFirewallRule) domain.VpcFirewallRule { return r.Clone() }

func same[T any](v T) T { return v }

// pointers deep-copies in into a fresh slice of pointers.
func pointers[T any](in []T, clone func(T) T) []*T {
	out := make([]*T, len(in))
	for i := range in {
		v := clone(in[i])
		out[i] = &v
	}
	return out
}

// values deep-copies live records back into a value slice.
func values[T any](in []*T, clone func(T) T) []T {
	out := make([]T, len(in))
	for i, p := range in {
		out[i] = clone(*p)
	}
	return out
}

func newState(init *InitialState) *state {
	if init == nil {
		init = &InitialState{}
	}
	return &state{
		Projects:          pointers(init.Projects, same[domain.Project]),
		Instances:         pointers(init.Instances, cloneInstance),
		Disks:             pointers(init.Disks, cloneDisk),
		Snapshots:         pointers(init.Snapshots, same[domain.Snapshot]),
		Vpcs:              pointers(init.Vpcs, same[domain.Vpc]),
		VpcSubnets:        pointers(init.VpcSubnets, cloneSubnet),
		FirewallRules:     pointers(init.FirewallRules, cloneRule),
		NetworkInterfaces: pointers(init.NetworkInterfaces, same[domain.NetworkInterface]),
		IpPools:           pointers(init.IpPools, same[domain.IpPool]),
		IpPoolRanges:      pointers(init.IpPoolRanges, same[domain.IpPoolRange]),
		Silos:             pointers(init.Silos, same[domain.Silo]),
		Sleds:             pointers(init.Sleds, same[domain.Sled]),
		SshKeys:           pointers(init.SshKeys, same[domain.SshKey]),
		Users:             pointers(init.Users, same[domain.User]),
		RoleAssignments:   pointers(init.RoleAssignments, same[domain.RoleAssignment]),
	}
}

// export copies the live state into an InitialState.
func (db *state) export() *InitialState {
	return &InitialState{
		Projects:          values(db.Projects, same[domain.Project]),
		Instances:         values(db.Instances, cloneInstance),
		Disks:             values(db.Disks, cloneDisk),
		Snapshots:         values(db.Snapshots, same[domain.Snapshot]),
		Vpcs:              values(db.Vpcs, same[domain.Vpc]),
		VpcSubnets:        values(db.VpcSubnets, cloneSubnet),
		FirewallRules:     values(db.FirewallRules, cloneRule),
		NetworkInterfaces: values(db.NetworkInterfaces, same[domain.NetworkInterface]),
		IpPools:           values(db.IpPools, same[domain.IpPool]),
		IpPoolRanges:      values(db.IpPoolRanges, same[domain.IpPoolRange]),
		Silos:             values(db.Silos, same[domain.Silo]),
		Sleds:             values(db.Sleds, same[domain.Sled]),
		SshKeys:           values(db.SshKeys, same[domain.SshKey]),
		Users:             values(db.Users, same[domain.User]),
		RoleAssignments:   values(db.RoleAssignments, same[domain.RoleAssignment]),
	}
}

// counts returns the number of live records per collection.
func (db *state) counts() map[string]int {
	return map[string]int{
		"projects":           len(db.Projects),
		"instances":          len(db.Instances),
		"disks":              len(db.Disks),
		"snapshots":          len(db.Snapshots),
		"vpcs":               len(db.Vpcs),
		"vpc_subnets":        len(db.VpcSubnets),
		"vpc_firewall_rules": len(db.FirewallRules),
		"network_interfaces": len(db.NetworkInterfaces),
		"ip_pools":           len(db.IpPools),
		"ip_pool_ranges":     len(db.IpPoolRanges),
		"silos":              len(db.Silos),
		"sleds":              len(db.Sleds),
		"ssh_keys":           len(db.SshKeys),
		"users":              len(db.Users),
		"role_assignments":   len(db.RoleAssignments),
	}
}

// remove drops every element matching drop, keeping order.
func remove[T any](items []*T, drop func(*T) bool) []*T {
	out := items[:0]
	for _, item := range items {
		if !drop(item) {
			out = append(out, item)
		}
	}
	for i := len(out); i < len(items); i++ {
		items[i] = nil
	}
	return out
}

// Validate checks the referential integrity of an initial state: unique
// identifiers per collection, parents that resolve, and sibling names that
// do not collide.
func (in *InitialState) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	ids := func(kind string, n int, id func(int) string) map[string]bool {
		seen := make(map[string]bool, n)
		for i := 0; i < n; i++ {
			v := id(i)
			if !IsID(v) {
				add("%s %d: id %q is not a UUID", kind, i, v)
			}
			if seen[v] {
				add("%s: duplicate id %q", kind, v)
			}
			seen[v] = true
		}
		return seen
	}
	uniqueNames := func(kind string, n int, key func(int) (scope, name string)) {
		seen := make(map[[2]string]bool, n)
		for i := 0; i < n; i++ {
			scope, name := key(i)
			k := [2]string{scope, name}
			if seen[k] {
				add("%s: duplicate name %q in scope %q", kind, name, scope)
			}
			seen[k] = true
		}
	}

	projects := ids("project", len(in.Projects), func(i int) string { return in.Projects[i].ID })
	uniqueNames("project", len(in.Projects), func(i int) (string, string) { return "", in.Projects[i].Name })

	instances := ids("instance", len(in.Instances), func(i int) string { return in.Instances[i].ID })
	uniqueNames("instance", len(in.Instances), func(i int) (string, string) {
		return in.Instances[i].ProjectID, in.Instances[i].Name
	})
	for _, inst := range in.Instances {
		if !projects[inst.ProjectID] {
			add("instance %q: project %q does not exist", inst.Name, inst.ProjectID)
		}
	}

	disks := ids("disk", len(in.Disks), func(i int) string { return in.Disks[i].ID })
	uniqueNames("disk", len(in.Disks), func(i int) (string, string) { return in.Disks[i].ProjectID, in.Disks[i].Name })
	for _, d := range in.Disks {
		if !projects[d.ProjectID] {
			add("disk %q: project %q does not exist", d.Name, d.ProjectID)
		}
		if d.State.Instance != "" && !instances[d.State.Instance] {
			add("disk %q: instance %q does not exist", d.Name, d.State.Instance)
		}
	}
	for _, inst := range in.Instances {
		if inst.BootDiskID != nil && !disks[*inst.BootDiskID] {
			add("instance %q: boot disk %q does not exist", inst.Name, *inst.BootDiskID)
		}
	}

	ids("snapshot", len(in.Snapshots), func(i int) string { return in.Snapshots[i].ID })
	uniqueNames("snapshot", len(in.Snapshots), func(i int) (string, string) {
		return in.Snapshots[i].ProjectID, in.Snapshots[i].Name
	})
	for _, s := range in.Snapshots {
		if !projects[s.ProjectID] {
			add("snapshot %q: project %q does not exist", s.Name, s.ProjectID)
		}
	}

	vpcs := ids("vpc", len(in.Vpcs), func(i int) string { return in.Vpcs[i].ID })
	uniqueNames("vpc", len(in.Vpcs), func(i int) (string, string) { return in.Vpcs[i].ProjectID, in.Vpcs[i].Name })
	for _, v := range in.Vpcs {
		if !projects[v.ProjectID] {
			add("vpc %q: project %q does not exist", v.Name, v.ProjectID)
		}
	}

	subnets := ids("subnet", len(in.VpcSubnets), func(i int) string { return in.VpcSubnets[i].ID })
	uniqueNames("subnet", len(in.VpcSubnets), func(i int) (string, string) {
		return in.VpcSubnets[i].VpcID, in.VpcSubnets[i].Name
	})
	for _, s := range in.VpcSubnets {
		if !vpcs[s.VpcID] {
			add("subnet %q: vpc %q does not exist", s.Name, s.VpcID)
		}
	}

	ids("firewall rule", len(in.FirewallRules), func(i int) string { return in.FirewallRules[i].ID })
	uniqueNames("firewall rule", len(in.FirewallRules), func(i int) (string, string) {
		return in.FirewallRules[i].VpcID, in.FirewallRules[i].Name
	})
	for _, r := range in.FirewallRules {
		if !vpcs[r.VpcID] {
			add("firewall rule %q: vpc %q does not exist", r.Name, r.VpcID)
		}
	}

	ids("network interface", len(in.NetworkInterfaces), func(i int) string { return in.NetworkInterfaces[i].ID })
	uniqueNames("network interface", len(in.NetworkInterfaces), func(i int) (string, string) {
		return in.NetworkInterfaces[i].InstanceID, in.NetworkInterfaces[i].Name
	})
	for _, n := range in.NetworkInterfaces {
		if !instances[n.InstanceID] {
			add("network interface %q: instance %q does not exist", n.Name, n.InstanceID)
		}
		if !vpcs[n.VpcID] {
			add("network interface %q: vpc %q does not exist", n.Name, n.VpcID)
		}
		if !subnets[n.SubnetID] {
			add("network interface %q: subnet %q does not exist", n.Name, n.SubnetID)
		}
	}

	pools := ids("ip pool", len(in.IpPools), func(i int) string { return in.IpPools[i].ID })
	uniqueNames("ip pool", len(in.IpPools), func(i int) (string, string) { return "", in.IpPools[i].Name })
	ids("ip pool range", len(in.IpPoolRanges), func(i int) string { return in.IpPoolRanges[i].ID })
	for _, r := range in.IpPoolRanges {
		if !pools[r.IpPoolID] {
			add("ip pool range %q: pool %q does not exist", r.ID, r.IpPoolID)
		}
	}

	silos := ids("silo", len(in.Silos), func(i int) string { return in.Silos[i].ID })
	uniqueNames("silo", len(in.Silos), func(i int) (string, string) { return "", in.Silos[i].Name })

	ids("sled", len(in.Sleds), func(i int) string { return in.Sleds[i].ID })

	users := ids("user", len(in.Users), func(i int) string { return in.Users[i].ID })
	for _, u := range in.Users {
		if !silos[u.SiloID] {
			add("user %q: silo %q does not exist", u.DisplayName, u.SiloID)
		}
	}

	ids("ssh key", len(in.SshKeys), func(i int) string { return in.SshKeys[i].ID })
	uniqueNames("ssh key", len(in.SshKeys), func(i int) (string, string) {
		return in.SshKeys[i].SiloUserID, in.SshKeys[i].Name
	})
	for _, k := range in.SshKeys {
		if !users[k.SiloUserID] {
			add("ssh key %q: user %q does not exist", k.Name, k.SiloUserID)
		}
	}

	for _, ra := range in.RoleAssignments {
		switch ra.ResourceType {
		case domain.ResourceFleet:
		case domain.ResourceSilo:
			if !silos[ra.ResourceID] {
				add("role assignment: silo %q does not exist", ra.ResourceID)
			}
		case domain.ResourceProject:
			if !projects[ra.ResourceID] {
				add("role assignment: project %q does not exist", ra.ResourceID)
			}
		default:
			add("role assignment: unknown resource type %q", ra.ResourceType)
		}
		if ra.IdentityType == domain.IdentitySiloUser && !users[ra.IdentityID] {
			add("role assignment: user %q does not exist", ra.IdentityID)
		}
	}

	return errors.Join(errs...)
}
