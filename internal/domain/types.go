// Package domain defines the API resource records and request bodies.
package domain

import "time"

// Byte size units used for disk and memory sizes.
const (
	KiB int64 = 1024
	MiB       = 1024 * KiB
	GiB       = 1024 * MiB
)

// Identity holds the fields shared by every named resource.
type Identity struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Description  string    `json:"description" yaml:"description"`
	TimeCreated  time.Time `json:"time_created" yaml:"time_created"`
	TimeModified time.Time `json:"time_modified" yaml:"time_modified"`
}

// RecordID returns the resource identifier.
func (i Identity) RecordID() string { return i.ID }

// RecordName returns the resource name.
func (i Identity) RecordName() string { return i.Name }

// Project groups instances, disks, snapshots and VPCs.
type Project struct {
	Identity `yaml:",inline"`
}

// InstanceState is the coarse run state of an instance.
type InstanceState string

const (
	InstanceCreating  InstanceState = "creating"
	InstanceStarting  InstanceState = "starting"
	InstanceRunning   InstanceState = "running"
	InstanceStopping  InstanceState = "stopping"
	InstanceStopped   InstanceState = "stopped"
	InstanceRebooting InstanceState = "rebooting"
	InstanceMigrating InstanceState = "migrating"
	InstanceRepairing InstanceState = "repairing"
	InstanceFailed    InstanceState = "failed"
	InstanceDestroyed InstanceState = "destroyed"
)

// Instance is a virtual machine within a project.
type Instance struct {
	Identity            `yaml:",inline"`
	ProjectID           string        `json:"project_id" yaml:"project_id"`
	Hostname            string        `json:"hostname" yaml:"hostname"`
	Memory              int64         `json:"memory" yaml:"memory"`
	NCPUs               int           `json:"ncpus" yaml:"ncpus"`
	RunState            InstanceState `json:"run_state" yaml:"run_state"`
	TimeRunStateUpdated time.Time     `json:"time_run_state_updated" yaml:"time_run_state_updated"`
	BootDiskID          *string       `json:"boot_disk_id" yaml:"boot_disk_id,omitempty"`
	AutoRestartEnabled  bool          `json:"auto_restart_enabled" yaml:"auto_restart_enabled"`
}

// DiskStateName is the coarse state tag of a disk.
type DiskStateName string

const (
	DiskCreating    DiskStateName = "creating"
	DiskDetached    DiskStateName = "detached"
	DiskAttaching   DiskStateName = "attaching"
	DiskAttached    DiskStateName = "attached"
	DiskDetaching   DiskStateName = "detaching"
	DiskMaintenance DiskStateName = "maintenance"
	DiskDestroyed   DiskStateName = "destroyed"
	DiskFaulted     DiskStateName = "faulted"
)

// DiskState is the disk state tag plus the instance it refers to, if any.
type DiskState struct {
	State    DiskStateName `json:"state" yaml:"state"`
	Instance string        `json:"instance,omitempty" yaml:"instance,omitempty"`
}

// Disk is a block device within a project.
type Disk struct {
	Identity   `yaml:",inline"`
	ProjectID  string    `json:"project_id" yaml:"project_id"`
	Size       int64     `json:"size" yaml:"size"`
	BlockSize  int64     `json:"block_size" yaml:"block_size"`
	State      DiskState `json:"state" yaml:"state"`
	DevicePath string    `json:"device_path" yaml:"device_path"`
	SnapshotID *string   `json:"snapshot_id,omitempty" yaml:"snapshot_id,omitempty"`
	ImageID    *string   `json:"image_id,omitempty" yaml:"image_id,omitempty"`
}

// SnapshotState is the state of a snapshot.
type SnapshotState string

const (
	SnapshotCreating SnapshotState = "creating"
	SnapshotReady    SnapshotState = "ready"
	SnapshotFaulted  SnapshotState = "faulted"
)

// Snapshot is a point-in-time copy of a disk.
type Snapshot struct {
	Identity  `yaml:",inline"`
	ProjectID string        `json:"project_id" yaml:"project_id"`
	DiskID    string        `json:"disk_id" yaml:"disk_id"`
	Size      int64         `json:"size" yaml:"size"`
	State     SnapshotState `json:"state" yaml:"state"`
}

// Vpc is a virtual private cloud within a project.
type Vpc struct {
	Identity       `yaml:",inline"`
	ProjectID      string `json:"project_id" yaml:"project_id"`
	DNSName        string `json:"dns_name" yaml:"dns_name"`
	IPv6Prefix     string `json:"ipv6_prefix" yaml:"ipv6_prefix"`
	SystemRouterID string `json:"system_router_id" yaml:"system_router_id"`
}

// VpcSubnet is a subnet within a VPC.
type VpcSubnet struct {
	Identity       `yaml:",inline"`
	VpcID          string  `json:"vpc_id" yaml:"vpc_id"`
	IPv4Block      string  `json:"ipv4_block" yaml:"ipv4_block"`
	IPv6Block      string  `json:"ipv6_block" yaml:"ipv6_block"`
	CustomRouterID *string `json:"custom_router_id,omitempty" yaml:"custom_router_id,omitempty"`
}

// FirewallTarget is a typed reference used in firewall rule targets and host filters.
type FirewallTarget struct {
	Type  string `json:"type" yaml:"type"`
	Value string `json:"value" yaml:"value"`
}

// FirewallFilter narrows the traffic a rule applies to.
type FirewallFilter struct {
	Hosts     []FirewallTarget `json:"hosts,omitempty" yaml:"hosts,omitempty"`
	Protocols []string         `json:"protocols,omitempty" yaml:"protocols,omitempty"`
	Ports     []string         `json:"ports,omitempty" yaml:"ports,omitempty"`
}

// VpcFirewallRule is a single rule in a VPC's firewall rule set.
type VpcFirewallRule struct {
	Identity  `yaml:",inline"`
	VpcID     string           `json:"vpc_id" yaml:"vpc_id"`
	Status    string           `json:"status" yaml:"status"`
	Direction string           `json:"direction" yaml:"direction"`
	Action    string           `json:"action" yaml:"action"`
	Priority  int              `json:"priority" yaml:"priority"`
	Targets   []FirewallTarget `json:"targets" yaml:"targets"`
	Filters   FirewallFilter   `json:"filters" yaml:"filters"`
}

// Clone returns a copy that shares no slices with r.
func (r VpcFirewallRule) Clone() VpcFirewallRule {
	r.Targets = append([]FirewallTarget(nil), r.Targets...)
	r.Filters.Hosts = append([]FirewallTarget(nil), r.Filters.Hosts...)
	r.Filters.Protocols = append([]string(nil), r.Filters.Protocols...)
	r.Filters.Ports = append([]string(nil), r.Filters.Ports...)
	return r
}

// NetworkInterface attaches an instance to a VPC subnet.
type NetworkInterface struct {
	Identity   `yaml:",inline"`
	InstanceID string `json:"instance_id" yaml:"instance_id"`
	VpcID      string `json:"vpc_id" yaml:"vpc_id"`
	SubnetID   string `json:"subnet_id" yaml:"subnet_id"`
	IP         string `json:"ip" yaml:"ip"`
	MAC        string `json:"mac" yaml:"mac"`
	Primary    bool   `json:"primary" yaml:"primary"`
}

// IpPool is a named set of external address ranges.
type IpPool struct {
	Identity `yaml:",inline"`
}

// IpRange is an inclusive address range.
type IpRange struct {
	First string `json:"first" yaml:"first"`
	Last  string `json:"last" yaml:"last"`
}

// IpPoolRange is a range belonging to an IP pool.
type IpPoolRange struct {
	ID          string    `json:"id" yaml:"id"`
	IpPoolID    string    `json:"ip_pool_id" yaml:"ip_pool_id"`
	Range       IpRange   `json:"range" yaml:"range"`
	TimeCreated time.Time `json:"time_created" yaml:"time_created"`
}

// RecordID returns the range identifier.
func (r IpPoolRange) RecordID() string { return r.ID }

// Silo is a tenant of the fleet.
type Silo struct {
	Identity     `yaml:",inline"`
	Discoverable bool   `json:"discoverable" yaml:"discoverable"`
	IdentityMode string `json:"identity_mode" yaml:"identity_mode"`
}

// Baseboard identifies the physical board of a sled.
type Baseboard struct {
	Serial   string `json:"serial" yaml:"serial"`
	Part     string `json:"part" yaml:"part"`
	Revision int    `json:"revision" yaml:"revision"`
}

// Sled is a physical compute node. Sleds are read-only.
type Sled struct {
	ID                    string    `json:"id" yaml:"id"`
	Baseboard             Baseboard `json:"baseboard" yaml:"baseboard"`
	RackID                string    `json:"rack_id" yaml:"rack_id"`
	PolicyKind            string    `json:"policy_kind" yaml:"policy_kind"`
	State                 string    `json:"state" yaml:"state"`
	UsableHardwareThreads int       `json:"usable_hardware_threads" yaml:"usable_hardware_threads"`
	UsablePhysicalRAM     int64     `json:"usable_physical_ram" yaml:"usable_physical_ram"`
	TimeCreated           time.Time `json:"time_created" yaml:"time_created"`
	TimeModified          time.Time `json:"time_modified" yaml:"time_modified"`
}

// RecordID returns the sled identifier.
func (s Sled) RecordID() string { return s.ID }

// SshKey is a public key owned by a user.
type SshKey struct {
	Identity   `yaml:",inline"`
	SiloUserID string `json:"silo_user_id" yaml:"silo_user_id"`
	PublicKey  string `json:"public_key" yaml:"public_key"`
}

// User is a silo user.
type User struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	SiloID      string `json:"silo_id" yaml:"silo_id"`
}

// RecordID returns the user identifier.
func (u User) RecordID() string { return u.ID }

// Identity types for role assignments.
const (
	IdentitySiloUser  = "silo_user"
	IdentitySiloGroup = "silo_group"
)

// Resource types a role assignment can target.
const (
	ResourceFleet   = "fleet"
	ResourceSilo    = "silo"
	ResourceProject = "project"
)

// RoleAssignment grants a role on a resource to an identity.
type RoleAssignment struct {
	ResourceType string `json:"resource_type" yaml:"resource_type"`
	ResourceID   string `json:"resource_id" yaml:"resource_id"`
	IdentityID   string `json:"identity_id" yaml:"identity_id"`
	IdentityType string `json:"identity_type" yaml:"identity_type"`
	RoleName     string `json:"role_name" yaml:"role_name"`
}

// PolicyAssignment is the wire form of a role assignment inside a Policy.
type PolicyAssignment struct {
	IdentityID   string `json:"identity_id"`
	IdentityType string `json:"identity_type"`
	RoleName     string `json:"role_name"`
}

// Policy is the full set of role assignments on a resource.
type Policy struct {
	RoleAssignments []PolicyAssignment `json:"role_assignments"`
}
