package storage

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/oxidecomputer/console-sub002/internal/cidr"
	"github.com/oxidecomputer/console-sub002/internal/domain"
)

// reservedSubnetAddrs is the number of addresses at the start of every
// subnet that are never handed out to interfaces.
const reservedSubnetAddrs = 5

func subnetPrefix(sn *domain.VpcSubnet) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(sn.IPv4Block)
	if err != nil {
		return netip.Prefix{}, Internal("subnet %q has invalid ipv4 block %q", sn.Name, sn.IPv4Block)
	}
	return p.Masked(), nil
}

// ipClaims holds addresses handed out by a mutation that has not been
// written yet, keyed by subnet id.
type ipClaims map[string]map[netip.Addr]bool

func (c ipClaims) has(subnetID string, ip netip.Addr) bool {
	return c[subnetID][ip]
}

func (c ipClaims) add(subnetID string, ip netip.Addr) {
	if c[subnetID] == nil {
		c[subnetID] = make(map[netip.Addr]bool)
	}
	c[subnetID][ip] = true
}

func (db *state) ipInUse(subnetID string, ip netip.Addr, claimed ipClaims) bool {
	if claimed.has(subnetID, ip) {
		return true
	}
	for _, n := range db.NetworkInterfaces {
		if n.SubnetID != subnetID {
			continue
		}
		if a, err := netip.ParseAddr(n.IP); err == nil && a == ip {
			return true
		}
	}
	return false
}

// checkNicIP validates a requested interface address against its subnet and
// records it in claimed.
func (db *state) checkNicIP(sn *domain.VpcSubnet, ip string, claimed ipClaims) error {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return Invalid("invalid IPv4 address %q", ip)
	}
	pfx, err := subnetPrefix(sn)
	if err != nil {
		return err
	}
	if !cidr.PrefixContainsAddr(pfx, addr) {
		return Invalid("IP address %s is not in subnet %q (%s)", ip, sn.Name, pfx)
	}
	if db.ipInUse(sn.ID, addr, claimed) {
		return Invalid("IP address %s is already in use in subnet %q", ip, sn.Name)
	}
	claimed.add(sn.ID, addr)
	return nil
}

// allocateIP returns the first free address in a subnet after the reserved
// addresses, stopping short of the broadcast address, and records it in
// claimed.
func (db *state) allocateIP(sn *domain.VpcSubnet, claimed ipClaims) (string, error) {
	pfx, err := subnetPrefix(sn)
	if err != nil {
		return "", err
	}
	last := cidr.LastAddr(pfx)
	addr := pfx.Addr()
	for i := 0; i < reservedSubnetAddrs; i++ {
		addr = addr.Next()
	}
	for ; addr.IsValid() && addr.Less(last); addr = addr.Next() {
		if !db.ipInUse(sn.ID, addr, claimed) {
			claimed.add(sn.ID, addr)
			return addr.String(), nil
		}
	}
	return "", Unavailable("no free addresses in subnet %q", sn.Name)
}

// claimIP checks a requested address, or allocates one when none is given.
func (db *state) claimIP(sn *domain.VpcSubnet, ip string, claimed ipClaims) (string, error) {
	if ip == "" {
		return db.allocateIP(sn, claimed)
	}
	if err := db.checkNicIP(sn, ip, claimed); err != nil {
		return "", err
	}
	return ip, nil
}

func (db *state) allocateMAC() string {
	used := make(map[string]bool, len(db.NetworkInterfaces))
	for _, n := range db.NetworkInterfaces {
		used[n.MAC] = true
	}
	for n := len(db.NetworkInterfaces) + 1; ; n++ {
		mac := fmt.Sprintf("A8:40:25:F%X:%02X:%02X", (n>>16)&0xf, (n>>8)&0xff, n&0xff)
		if !used[mac] {
			return mac
		}
	}
}

// addNIC writes a new interface with an address the caller has already
// checked or allocated. The first interface of an instance is primary.
func (s *Store) addNIC(instanceID string, in domain.NetworkInterfaceCreate, ip string, v *domain.Vpc, sn *domain.VpcSubnet) *domain.NetworkInterface {
	primary := true
	for _, n := range s.db.NetworkInterfaces {
		if n.InstanceID == instanceID {
			primary = false
			break
		}
	}
	nic := &domain.NetworkInterface{
		Identity:   s.identity(in.Name, in.Description),
		InstanceID: instanceID,
		VpcID:      v.ID,
		SubnetID:   sn.ID,
		IP:         ip,
		MAC:        s.db.allocateMAC(),
		Primary:    primary,
	}
	s.db.NetworkInterfaces = append(s.db.NetworkInterfaces, nic)
	return nic
}

// ListNetworkInterfaces returns one page of an instance's interfaces.
func (s *Store) ListNetworkInterfaces(ctx context.Context, sel InstanceSelector, p domain.PageParams) (domain.ResultsPage[domain.NetworkInterface], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, err := s.db.instance(sel)
	if err != nil {
		return domain.ResultsPage[domain.NetworkInterface]{}, err
	}
	var nics []*domain.NetworkInterface
	for _, n := range s.db.NetworkInterfaces {
		if n.InstanceID == inst.ID {
			nics = append(nics, n)
		}
	}
	return domain.MapPage(domain.Paginate(nics, p), deref[domain.NetworkInterface]), nil
}

// CreateNetworkInterface adds an interface to a stopped instance.
func (s *Store) CreateNetworkInterface(ctx context.Context, sel InstanceSelector, in domain.NetworkInterfaceCreate) (domain.NetworkInterface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, err := s.db.instance(sel)
	if err != nil {
		return domain.NetworkInterface{}, err
	}
	if err := requireInstance(inst, instanceCan.editNics, "add network interfaces"); err != nil {
		return domain.NetworkInterface{}, err
	}
	count := 0
	for _, n := range s.db.NetworkInterfaces {
		if n.InstanceID == inst.ID {
			count++
		}
	}
	if count >= MaxNICsPerInstance {
		return domain.NetworkInterface{}, Invalid("instance %q already has the maximum of %d network interfaces", inst.Name, MaxNICsPerInstance)
	}
	if err := errIfExists(s.db.NetworkInterfaces, "network interface", in.Name,
		func(n *domain.NetworkInterface) bool { return n.InstanceID == inst.ID }); err != nil {
		return domain.NetworkInterface{}, err
	}
	v, sn, err := s.db.projectSubnet(inst.ProjectID, in.VpcName, in.SubnetName)
	if err != nil {
		return domain.NetworkInterface{}, err
	}
	ip, err := s.db.claimIP(sn, in.IP, ipClaims{})
	if err != nil {
		return domain.NetworkInterface{}, err
	}
	return *s.addNIC(inst.ID, in, ip, v, sn), nil
}

// GetNetworkInterface resolves an interface.
func (s *Store) GetNetworkInterface(ctx context.Context, sel NetworkInterfaceSelector) (domain.NetworkInterface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nic, err := s.db.networkInterface(sel)
	if err != nil {
		return domain.NetworkInterface{}, err
	}
	return *nic, nil
}

// UpdateNetworkInterface renames an interface or makes it primary. Making an
// interface primary demotes the current primary and requires the instance to
// be stopped.
func (s *Store) UpdateNetworkInterface(ctx context.Context, sel NetworkInterfaceSelector, in domain.NetworkInterfaceUpdate) (domain.NetworkInterface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nic, err := s.db.networkInterface(sel)
	if err != nil {
		return domain.NetworkInterface{}, err
	}
	sameInstance := func(n *domain.NetworkInterface) bool { return n.InstanceID == nic.InstanceID }
	if err := errIfRenameCollides(s.db.NetworkInterfaces, "network interface", nic.ID, in.Name, sameInstance); err != nil {
		return domain.NetworkInterface{}, err
	}
	if in.Primary != nil && *in.Primary && !nic.Primary {
		inst, err := lookupByID(s.db.Instances, nic.InstanceID, "instance")
		if err != nil {
			return domain.NetworkInterface{}, err
		}
		if err := requireInstance(inst, instanceCan.editNics, "change its primary network interface"); err != nil {
			return domain.NetworkInterface{}, err
		}
		for _, n := range s.db.NetworkInterfaces {
			if sameInstance(n) && n.Primary {
				n.Primary = false
				s.touch(&n.Identity)
			}
		}
		nic.Primary = true
	}
	s.rename(&nic.Identity, in.Name, in.Description)
	return *nic, nil
}

// DeleteNetworkInterface removes an interface from a stopped instance. The
// primary interface can only go once it is the last one.
func (s *Store) DeleteNetworkInterface(ctx context.Context, sel NetworkInterfaceSelector) (domain.NetworkInterface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nic, err := s.db.networkInterface(sel)
	if err != nil {
		return domain.NetworkInterface{}, err
	}
	inst, err := lookupByID(s.db.Instances, nic.InstanceID, "instance")
	if err != nil {
		return domain.NetworkInterface{}, err
	}
	if err := requireInstance(inst, instanceCan.editNics, "remove network interfaces"); err != nil {
		return domain.NetworkInterface{}, err
	}
	if nic.Primary {
		for _, n := range s.db.NetworkInterfaces {
			if n.InstanceID == inst.ID && n.ID != nic.ID {
				return domain.NetworkInterface{}, Precondition("the primary interface may not be deleted while secondary interfaces are still attached")
			}
		}
	}
	s.db.NetworkInterfaces = remove(s.db.NetworkInterfaces, func(n *domain.NetworkInterface) bool { return n.ID == nic.ID })
	return *nic, nil
}
