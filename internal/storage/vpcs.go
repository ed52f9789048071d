package storage

import (
	"context"
	"net/netip"
	"strings"

	"github.com/oxidecomputer/console-sub002/internal/cidr"
	"github.com/oxidecomputer/console-sub002/internal/domain"
	"github.com/oxidecomputer/console-sub002/internal/validation"
)

// Defaults applied to new VPCs.
const (
	DefaultSubnetName      = "default"
	DefaultSubnetIPv4Block = "172.30.0.0/22"
	DefaultVpcIPv6Prefix   = "fd2d:4569:88b1::/48"
	defaultRulePriority    = 65534
)

func defaultFirewallRules(vpcName string) []domain.FirewallRuleUpdate {
	vpcTarget := []domain.FirewallTarget{{Type: "vpc", Value: vpcName}}
	rule := func(name, desc string, filters domain.FirewallFilter) domain.FirewallRuleUpdate {
		return domain.FirewallRuleUpdate{
			Name:        name,
			Description: desc,
			Status:      "enabled",
			Direction:   "inbound",
			Action:      "allow",
			Priority:    defaultRulePriority,
			Targets:     vpcTarget,
			Filters:     filters,
		}
	}
	return []domain.FirewallRuleUpdate{
		rule("allow-internal-inbound",
			"allow inbound traffic to all instances within the VPC if originated within the VPC",
			domain.FirewallFilter{Hosts: vpcTarget}),
		rule("allow-ssh",
			"allow inbound TCP connections on port 22 from anywhere",
			domain.FirewallFilter{Protocols: []string{"TCP"}, Ports: []string{"22"}}),
		rule("allow-icmp",
			"allow inbound ICMP traffic from anywhere",
			domain.FirewallFilter{Protocols: []string{"ICMP"}}),
		rule("allow-rdp",
			"allow inbound TCP connections on port 3389 from anywhere",
			domain.FirewallFilter{Protocols: []string{"TCP"}, Ports: []string{"3389"}}),
	}
}

// projectVpc resolves a VPC reference relative to a project id.
func (db *state) projectVpc(projectID, ref string) (*domain.Vpc, error) {
	sel := VpcSelector{Project: projectID, Vpc: ref}
	if IsID(ref) {
		sel.Project = ""
	}
	return db.vpc(sel)
}

// projectSubnet resolves a VPC and one of its subnets relative to a project id.
func (db *state) projectSubnet(projectID, vpcRef, subnetRef string) (*domain.Vpc, *domain.VpcSubnet, error) {
	v, err := db.projectVpc(projectID, vpcRef)
	if err != nil {
		return nil, nil, err
	}
	var sn *domain.VpcSubnet
	if IsID(subnetRef) {
		sn, err = db.subnet(SubnetSelector{Subnet: subnetRef})
	} else {
		sn, err = db.subnet(SubnetSelector{Vpc: v.ID, Subnet: subnetRef})
	}
	if err != nil {
		return nil, nil, err
	}
	if sn.VpcID != v.ID {
		return nil, nil, Invalid("subnet %q is not in vpc %q", sn.Name, v.Name)
	}
	return v, sn, nil
}

// ListVpcs returns one page of the VPCs in a project.
func (s *Store) ListVpcs(ctx context.Context, project string, p domain.PageParams) (domain.ResultsPage[domain.Vpc], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proj, err := s.db.project(project)
	if err != nil {
		return domain.ResultsPage[domain.Vpc]{}, err
	}
	var vpcs []*domain.Vpc
	for _, v := range s.db.Vpcs {
		if v.ProjectID == proj.ID {
			vpcs = append(vpcs, v)
		}
	}
	return domain.MapPage(domain.Paginate(vpcs, p), deref[domain.Vpc]), nil
}

// CreateVpc adds a VPC together with its default subnet and firewall rules.
func (s *Store) CreateVpc(ctx context.Context, project string, in domain.VpcCreate) (domain.Vpc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proj, err := s.db.project(project)
	if err != nil {
		return domain.Vpc{}, err
	}
	if err := errIfExists(s.db.Vpcs, "vpc", in.Name, func(v *domain.Vpc) bool { return v.ProjectID == proj.ID }); err != nil {
		return domain.Vpc{}, err
	}
	if in.DNSName == "" {
		return domain.Vpc{}, Invalid("dns_name is required")
	}
	ipv6 := in.IPv6Prefix
	if ipv6 == "" {
		ipv6 = DefaultVpcIPv6Prefix
	} else if p, err := netip.ParsePrefix(ipv6); err != nil || !p.Addr().Is6() {
		return domain.Vpc{}, Invalid("invalid ipv6 prefix %q", ipv6)
	}
	v := &domain.Vpc{
		Identity:       s.identity(in.Name, in.Description),
		ProjectID:      proj.ID,
		DNSName:        in.DNSName,
		IPv6Prefix:     ipv6,
		SystemRouterID: s.newID(),
	}
	s.db.Vpcs = append(s.db.Vpcs, v)
	s.db.VpcSubnets = append(s.db.VpcSubnets, &domain.VpcSubnet{
		Identity:  s.identity(DefaultSubnetName, "The default subnet for "+in.Name),
		VpcID:     v.ID,
		IPv4Block: DefaultSubnetIPv4Block,
		IPv6Block: subnetIPv6(ipv6),
	})
	s.replaceRules(v.ID, defaultFirewallRules(v.Name))
	return *v, nil
}

// subnetIPv6 narrows a VPC prefix to the first /64.
func subnetIPv6(vpcPrefix string) string {
	p, err := netip.ParsePrefix(vpcPrefix)
	if err != nil || p.Bits() > 64 {
		return vpcPrefix
	}
	return netip.PrefixFrom(p.Masked().Addr(), 64).String()
}

// GetVpc resolves a VPC.
func (s *Store) GetVpc(ctx context.Context, sel VpcSelector) (domain.Vpc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.db.vpc(sel)
	if err != nil {
		return domain.Vpc{}, err
	}
	return *v, nil
}

// UpdateVpc renames a VPC or changes its DNS name.
func (s *Store) UpdateVpc(ctx context.Context, sel VpcSelector, in domain.VpcUpdate) (domain.Vpc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.db.vpc(sel)
	if err != nil {
		return domain.Vpc{}, err
	}
	if err := errIfRenameCollides(s.db.Vpcs, "vpc", v.ID, in.Name,
		func(x *domain.Vpc) bool { return x.ProjectID == v.ProjectID }); err != nil {
		return domain.Vpc{}, err
	}
	if in.DNSName != nil {
		v.DNSName = *in.DNSName
	}
	s.rename(&v.Identity, in.Name, in.Description)
	return *v, nil
}

// DeleteVpc removes a VPC, its subnets, and its firewall rules. It fails
// while any network interface still uses the VPC.
func (s *Store) DeleteVpc(ctx context.Context, sel VpcSelector) (domain.Vpc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.db.vpc(sel)
	if err != nil {
		return domain.Vpc{}, err
	}
	for _, n := range s.db.NetworkInterfaces {
		if n.VpcID == v.ID {
			return domain.Vpc{}, Precondition("vpc %q is in use by network interface %q", v.Name, n.Name)
		}
	}
	s.db.VpcSubnets = remove(s.db.VpcSubnets, func(sn *domain.VpcSubnet) bool { return sn.VpcID == v.ID })
	s.db.FirewallRules = remove(s.db.FirewallRules, func(r *domain.VpcFirewallRule) bool { return r.VpcID == v.ID })
	s.db.Vpcs = remove(s.db.Vpcs, func(x *domain.Vpc) bool { return x.ID == v.ID })
	return *v, nil
}

// ListSubnets returns one page of the subnets in a VPC.
func (s *Store) ListSubnets(ctx context.Context, sel VpcSelector, p domain.PageParams) (domain.ResultsPage[domain.VpcSubnet], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.db.vpc(sel)
	if err != nil {
		return domain.ResultsPage[domain.VpcSubnet]{}, err
	}
	var subnets []*domain.VpcSubnet
	for _, sn := range s.db.VpcSubnets {
		if sn.VpcID == v.ID {
			subnets = append(subnets, sn)
		}
	}
	return domain.MapPage(domain.Paginate(subnets, p), copySubnet), nil
}

func copySubnet(sn *domain.VpcSubnet) domain.VpcSubnet { return cloneSubnet(*sn) }

// checkSubnetBlock validates an IPv4 block and rejects overlap with the
// other subnets of the VPC.
func (db *state) checkSubnetBlock(vpcID, skipID, block string) error {
	if err := validation.ValidateIPv4Block(block); err != nil {
		return Invalid("%v", err)
	}
	pfx := netip.MustParsePrefix(strings.TrimSpace(block))
	for _, sn := range db.VpcSubnets {
		if sn.VpcID != vpcID || sn.ID == skipID {
			continue
		}
		other, err := netip.ParsePrefix(sn.IPv4Block)
		if err != nil {
			continue
		}
		if cidr.Overlaps(pfx.Masked(), other.Masked()) {
			return Invalid("ipv4 block %s overlaps with subnet %q (%s)", block, sn.Name, sn.IPv4Block)
		}
	}
	return nil
}

// CreateSubnet adds a subnet to a VPC.
func (s *Store) CreateSubnet(ctx context.Context, sel VpcSelector, in domain.VpcSubnetCreate) (domain.VpcSubnet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.db.vpc(sel)
	if err != nil {
		return domain.VpcSubnet{}, err
	}
	if err := errIfExists(s.db.VpcSubnets, "subnet", in.Name,
		func(sn *domain.VpcSubnet) bool { return sn.VpcID == v.ID }); err != nil {
		return domain.VpcSubnet{}, err
	}
	if err := s.db.checkSubnetBlock(v.ID, "", in.IPv4Block); err != nil {
		return domain.VpcSubnet{}, err
	}
	ipv6 := in.IPv6Block
	if ipv6 == "" {
		ipv6 = subnetIPv6(v.IPv6Prefix)
	}
	sn := &domain.VpcSubnet{
		Identity:  s.identity(in.Name, in.Description),
		VpcID:     v.ID,
		IPv4Block: strings.TrimSpace(in.IPv4Block),
		IPv6Block: ipv6,
	}
	s.db.VpcSubnets = append(s.db.VpcSubnets, sn)
	return cloneSubnet(*sn), nil
}

// GetSubnet resolves a subnet.
func (s *Store) GetSubnet(ctx context.Context, sel SubnetSelector) (domain.VpcSubnet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn, err := s.db.subnet(sel)
	if err != nil {
		return domain.VpcSubnet{}, err
	}
	return cloneSubnet(*sn), nil
}

// UpdateSubnet renames or redescribes a subnet.
func (s *Store) UpdateSubnet(ctx context.Context, sel SubnetSelector, in domain.VpcSubnetUpdate) (domain.VpcSubnet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn, err := s.db.subnet(sel)
	if err != nil {
		return domain.VpcSubnet{}, err
	}
	if err := errIfRenameCollides(s.db.VpcSubnets, "subnet", sn.ID, in.Name,
		func(x *domain.VpcSubnet) bool { return x.VpcID == sn.VpcID }); err != nil {
		return domain.VpcSubnet{}, err
	}
	s.rename(&sn.Identity, in.Name, in.Description)
	return cloneSubnet(*sn), nil
}

// DeleteSubnet removes a subnet that no network interface uses.
func (s *Store) DeleteSubnet(ctx context.Context, sel SubnetSelector) (domain.VpcSubnet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn, err := s.db.subnet(sel)
	if err != nil {
		return domain.VpcSubnet{}, err
	}
	for _, n := range s.db.NetworkInterfaces {
		if n.SubnetID == sn.ID {
			return domain.VpcSubnet{}, Precondition("subnet %q is in use by network interface %q", sn.Name, n.Name)
		}
	}
	s.db.VpcSubnets = remove(s.db.VpcSubnets, func(x *domain.VpcSubnet) bool { return x.ID == sn.ID })
	return cloneSubnet(*sn), nil
}

func (db *state) rules(vpcID string) []domain.VpcFirewallRule {
	var out []domain.VpcFirewallRule
	for _, r := range db.FirewallRules {
		if r.VpcID == vpcID {
			out = append(out, r.Clone())
		}
	}
	return out
}

// GetFirewallRules returns the firewall rule set of a VPC.
func (s *Store) GetFirewallRules(ctx context.Context, sel VpcSelector) (domain.FirewallRules, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.db.vpc(sel)
	if err != nil {
		return domain.FirewallRules{}, err
	}
	return domain.FirewallRules{Rules: s.db.rules(v.ID)}, nil
}

// UpdateFirewallRules replaces the whole firewall rule set of a VPC.
func (s *Store) UpdateFirewallRules(ctx context.Context, sel VpcSelector, in domain.FirewallRulesUpdate) (domain.FirewallRules, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.db.vpc(sel)
	if err != nil {
		return domain.FirewallRules{}, err
	}
	seen := make(map[string]bool, len(in.Rules))
	for _, r := range in.Rules {
		if seen[r.Name] {
			return domain.FirewallRules{}, Invalid("firewall rule names must be unique: %q appears more than once", r.Name)
		}
		seen[r.Name] = true
		if err := checkRule(r); err != nil {
			return domain.FirewallRules{}, err
		}
	}
	s.replaceRules(v.ID, in.Rules)
	return domain.FirewallRules{Rules: s.db.rules(v.ID)}, nil
}

func checkRule(r domain.FirewallRuleUpdate) error {
	switch r.Status {
	case "enabled", "disabled":
	default:
		return Invalid("firewall rule %q: status must be enabled or disabled", r.Name)
	}
	switch r.Direction {
	case "inbound", "outbound":
	default:
		return Invalid("firewall rule %q: direction must be inbound or outbound", r.Name)
	}
	switch r.Action {
	case "allow", "deny":
	default:
		return Invalid("firewall rule %q: action must be allow or deny", r.Name)
	}
	if r.Priority < 0 || r.Priority > 65535 {
		return Invalid("firewall rule %q: priority must be between 0 and 65535", r.Name)
	}
	return nil
}

func (s *Store) replaceRules(vpcID string, rules []domain.FirewallRuleUpdate) {
	s.db.FirewallRules = remove(s.db.FirewallRules, func(r *domain.VpcFirewallRule) bool { return r.VpcID == vpcID })
	for _, r := range rules {
		rule := domain.VpcFirewallRule{
			Identity:  s.identity(r.Name, r.Description),
			VpcID:     vpcID,
			Status:    r.Status,
			Direction: r.Direction,
			Action:    r.Action,
			Priority:  r.Priority,
			Targets:   r.Targets,
			Filters:   r.Filters,
		}.Clone()
		s.db.FirewallRules = append(s.db.FirewallRules, &rule)
	}
}
