package domain

// ProjectCreate is the body of a project create request.
type ProjectCreate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ProjectUpdate is the body of a project update request. Nil fields are left untouched.
type ProjectUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// DiskSource describes what a new disk is created from.
type DiskSource struct {
	Type       string `json:"type"`
	BlockSize  int64  `json:"block_size,omitempty"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	ImageID    string `json:"image_id,omitempty"`
}

// Disk source types.
const (
	DiskSourceBlank    = "blank"
	DiskSourceSnapshot = "snapshot"
	DiskSourceImage    = "image"
)

// DiskCreate is the body of a disk create request.
type DiskCreate struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Size        int64      `json:"size"`
	DiskSource  DiskSource `json:"disk_source"`
}

// SnapshotCreate is the body of a snapshot create request.
type SnapshotCreate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Disk        string `json:"disk"`
}

// InstanceDiskAttachment is one entry of an instance's disks at create time.
type InstanceDiskAttachment struct {
	Type        string     `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Size        int64      `json:"size,omitempty"`
	DiskSource  DiskSource `json:"disk_source,omitempty"`
}

// Instance disk attachment types.
const (
	DiskAttachmentAttach = "attach"
	DiskAttachmentCreate = "create"
)

// NetworkInterfaceCreate is the body of a network interface create request,
// also used inside InstanceNetworkInterfaces.
type NetworkInterfaceCreate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	VpcName     string `json:"vpc_name"`
	SubnetName  string `json:"subnet_name"`
	IP          string `json:"ip,omitempty"`
}

// InstanceNetworkInterfaces selects how NICs are set up for a new instance.
type InstanceNetworkInterfaces struct {
	Type   string                   `json:"type"`
	Params []NetworkInterfaceCreate `json:"params,omitempty"`
}

// Instance network interface attachment types.
const (
	NetworkInterfacesDefault = "default"
	NetworkInterfacesNone    = "none"
	NetworkInterfacesCreate  = "create"
)

// InstanceCreate is the body of an instance create request.
type InstanceCreate struct {
	Name              string                     `json:"name"`
	Description       string                     `json:"description"`
	Hostname          string                     `json:"hostname"`
	Memory            int64                      `json:"memory"`
	NCPUs             int                        `json:"ncpus"`
	Disks             []InstanceDiskAttachment   `json:"disks,omitempty"`
	BootDisk          *InstanceDiskAttachment    `json:"boot_disk,omitempty"`
	NetworkInterfaces *InstanceNetworkInterfaces `json:"network_interfaces,omitempty"`
	Start             *bool                      `json:"start,omitempty"`
}

// InstanceUpdate is the body of an instance update request.
type InstanceUpdate struct {
	Memory             int64   `json:"memory"`
	NCPUs              int     `json:"ncpus"`
	BootDisk           *string `json:"boot_disk"`
	AutoRestartEnabled *bool   `json:"auto_restart_enabled,omitempty"`
}

// DiskPath names a disk in attach and detach requests.
type DiskPath struct {
	Disk string `json:"disk"`
}

// VpcCreate is the body of a VPC create request.
type VpcCreate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	DNSName     string `json:"dns_name"`
	IPv6Prefix  string `json:"ipv6_prefix,omitempty"`
}

// VpcUpdate is the body of a VPC update request.
type VpcUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	DNSName     *string `json:"dns_name,omitempty"`
}

// VpcSubnetCreate is the body of a subnet create request.
type VpcSubnetCreate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IPv4Block   string `json:"ipv4_block"`
	IPv6Block   string `json:"ipv6_block,omitempty"`
}

// VpcSubnetUpdate is the body of a subnet update request.
type VpcSubnetUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// FirewallRuleUpdate is one rule in a firewall rule set replacement.
type FirewallRuleUpdate struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Status      string           `json:"status"`
	Direction   string           `json:"direction"`
	Action      string           `json:"action"`
	Priority    int              `json:"priority"`
	Targets     []FirewallTarget `json:"targets"`
	Filters     FirewallFilter   `json:"filters"`
}

// FirewallRulesUpdate replaces the whole rule set of a VPC.
type FirewallRulesUpdate struct {
	Rules []FirewallRuleUpdate `json:"rules"`
}

// FirewallRules is the response of a firewall rules view or update.
type FirewallRules struct {
	Rules []VpcFirewallRule `json:"rules"`
}

// NetworkInterfaceUpdate is the body of a network interface update request.
type NetworkInterfaceUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Primary     *bool   `json:"primary,omitempty"`
}

// IpPoolCreate is the body of an IP pool create request.
type IpPoolCreate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// IpPoolUpdate is the body of an IP pool update request.
type IpPoolUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// SiloCreate is the body of a silo create request.
type SiloCreate struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Discoverable bool   `json:"discoverable"`
	IdentityMode string `json:"identity_mode"`
}

// SshKeyCreate is the body of an SSH key create request.
type SshKeyCreate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PublicKey   string `json:"public_key"`
}

// CurrentUser is the response of the current-user endpoint.
type CurrentUser struct {
	User
	SiloName string `json:"silo_name"`
}

// Ping is the response of the ping endpoint.
type Ping struct {
	Status string `json:"status"`
}
