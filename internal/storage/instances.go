package storage

import (
	"context"

	"github.com/oxidecomputer/console-sub002/internal/domain"
)

// Instance sizing bounds.
const (
	MinInstanceMemory  = 1 * domain.GiB
	MaxInstanceMemory  = 256 * domain.GiB
	MaxInstanceCPUs    = 64
	MaxNICsPerInstance = 8
)

func checkInstanceSize(memory int64, ncpus int) error {
	if memory > MaxInstanceMemory {
		return Invalid("memory can be at most %d GiB", MaxInstanceMemory/domain.GiB)
	}
	if memory < MinInstanceMemory {
		return Invalid("memory must be at least %d GiB", MinInstanceMemory/domain.GiB)
	}
	if ncpus > MaxInstanceCPUs {
		return Invalid("vCPUs must be less than %d", MaxInstanceCPUs)
	}
	if ncpus < 1 {
		return Invalid("must have at least 1 vCPU")
	}
	return nil
}

func copyInstance(i *domain.Instance) domain.Instance { return cloneInstance(*i) }

// projectDisk resolves a disk reference relative to a project id. Id
// references are looked up directly.
func (db *state) projectDisk(projectID, ref string) (*domain.Disk, error) {
	sel := DiskSelector{Project: projectID, Disk: ref}
	if IsID(ref) {
		sel.Project = ""
	}
	return db.disk(sel)
}

// ListInstances returns one page of the instances in a project.
func (s *Store) ListInstances(ctx context.Context, project string, p domain.PageParams) (domain.ResultsPage[domain.Instance], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proj, err := s.db.project(project)
	if err != nil {
		return domain.ResultsPage[domain.Instance]{}, err
	}
	var out []*domain.Instance
	for _, inst := range s.db.Instances {
		if inst.ProjectID == proj.ID {
			out = append(out, inst)
		}
	}
	return domain.MapPage(domain.Paginate(out, p), copyInstance), nil
}

// CreateInstance creates an instance with its disks and network interfaces.
// All checks run before anything is written, so a failed create leaves no
// orphaned disks or interfaces behind.
func (s *Store) CreateInstance(ctx context.Context, project string, in domain.InstanceCreate) (domain.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proj, err := s.db.project(project)
	if err != nil {
		return domain.Instance{}, err
	}
	if in.Name == FaultNoDefaultPool {
		return domain.Instance{}, NotFound("default IP pool for current silo")
	}
	inProject := func(i *domain.Instance) bool { return i.ProjectID == proj.ID }
	if err := errIfExists(s.db.Instances, "instance", in.Name, inProject); err != nil {
		return domain.Instance{}, err
	}
	if err := checkInstanceSize(in.Memory, in.NCPUs); err != nil {
		return domain.Instance{}, err
	}

	all := append([]domain.InstanceDiskAttachment(nil), in.Disks...)
	if in.BootDisk != nil {
		all = append(all, *in.BootDisk)
	}
	creating := map[string]bool{}
	for _, da := range all {
		switch da.Type {
		case domain.DiskAttachmentCreate:
			if creating[da.Name] {
				return domain.Instance{}, AlreadyExists("disk", da.Name)
			}
			creating[da.Name] = true
			if err := errIfExists(s.db.Disks, "disk", da.Name, func(d *domain.Disk) bool { return d.ProjectID == proj.ID }); err != nil {
				return domain.Instance{}, err
			}
			src := da.DiskSource
			if src.Type == "" {
				src = domain.DiskSource{Type: domain.DiskSourceBlank, BlockSize: DefaultBlockSize}
			}
			if _, _, err := s.db.resolveDiskSource(src, da.Size); err != nil {
				return domain.Instance{}, err
			}
		case domain.DiskAttachmentAttach:
			if creating[da.Name] {
				continue
			}
			d, err := s.db.projectDisk(proj.ID, da.Name)
			if err != nil {
				return domain.Instance{}, err
			}
			if d.State.State != domain.DiskDetached {
				return domain.Instance{}, Precondition("disk %q is already attached to an instance", da.Name)
			}
		default:
			return domain.Instance{}, Invalid("unknown disk attachment type %q", da.Type)
		}
	}

	nics := in.NetworkInterfaces
	if nics == nil {
		nics = &domain.InstanceNetworkInterfaces{Type: domain.NetworkInterfacesDefault}
	}
	type nicTarget struct {
		params domain.NetworkInterfaceCreate
		ip     string
		vpc    *domain.Vpc
		subnet *domain.VpcSubnet
	}
	var targets []nicTarget
	claimed := ipClaims{}
	switch nics.Type {
	case domain.NetworkInterfacesNone:
	case domain.NetworkInterfacesDefault:
		for _, v := range s.db.Vpcs {
			if v.ProjectID != proj.ID {
				continue
			}
			for _, sn := range s.db.VpcSubnets {
				if sn.VpcID != v.ID {
					continue
				}
				ip, err := s.db.allocateIP(sn, claimed)
				if err != nil {
					return domain.Instance{}, err
				}
				targets = append(targets, nicTarget{
					params: domain.NetworkInterfaceCreate{Name: "default", Description: "The default network interface"},
					ip:     ip,
					vpc:    v,
					subnet: sn,
				})
				break
			}
			break
		}
	case domain.NetworkInterfacesCreate:
		if len(nics.Params) > MaxNICsPerInstance {
			return domain.Instance{}, Invalid("cannot create more than %d nics per instance", MaxNICsPerInstance)
		}
		names := map[string]bool{}
		for _, np := range nics.Params {
			if names[np.Name] {
				return domain.Instance{}, AlreadyExists("network interface", np.Name)
			}
			names[np.Name] = true
			v, sn, err := s.db.projectSubnet(proj.ID, np.VpcName, np.SubnetName)
			if err != nil {
				return domain.Instance{}, err
			}
			ip, err := s.db.claimIP(sn, np.IP, claimed)
			if err != nil {
				return domain.Instance{}, err
			}
			targets = append(targets, nicTarget{params: np, ip: ip, vpc: v, subnet: sn})
		}
	default:
		return domain.Instance{}, Invalid("unknown network interface type %q", nics.Type)
	}

	// Writes start here.
	inst := &domain.Instance{
		Identity:           s.identity(in.Name, in.Description),
		ProjectID:          proj.ID,
		Hostname:           in.Hostname,
		Memory:             in.Memory,
		NCPUs:              in.NCPUs,
		AutoRestartEnabled: true,
	}
	for _, da := range all {
		if da.Type == domain.DiskAttachmentCreate {
			src := da.DiskSource
			if src.Type == "" {
				src = domain.DiskSource{Type: domain.DiskSourceBlank, BlockSize: DefaultBlockSize}
			}
			blockSize, snapshotID, _ := s.db.resolveDiskSource(src, da.Size)
			s.db.Disks = append(s.db.Disks, &domain.Disk{
				Identity:   s.identity(da.Name, da.Description),
				ProjectID:  proj.ID,
				Size:       da.Size,
				BlockSize:  blockSize,
				State:      domain.DiskState{State: domain.DiskAttached, Instance: inst.ID},
				DevicePath: "/mnt/" + da.Name,
				SnapshotID: snapshotID,
			})
			continue
		}
		d, _ := s.db.projectDisk(proj.ID, da.Name)
		d.State = domain.DiskState{State: domain.DiskAttached, Instance: inst.ID}
		s.touch(&d.Identity)
	}
	if in.BootDisk != nil {
		d, err := s.db.projectDisk(proj.ID, in.BootDisk.Name)
		if err == nil {
			id := d.ID
			inst.BootDiskID = &id
		}
	}
	for _, t := range targets {
		s.addNIC(inst.ID, t.params, t.ip, t.vpc, t.subnet)
	}
	s.db.Instances = append(s.db.Instances, inst)

	if in.Start == nil || *in.Start {
		s.setRunState(inst, domain.InstanceCreating, domain.InstanceStarting, domain.InstanceRunning)
	} else {
		s.setRunState(inst, domain.InstanceCreating, domain.InstanceStopped)
	}
	return cloneInstance(*inst), nil
}

// GetInstance resolves an instance.
func (s *Store) GetInstance(ctx context.Context, sel InstanceSelector) (domain.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, err := s.db.instance(sel)
	if err != nil {
		return domain.Instance{}, err
	}
	return cloneInstance(*inst), nil
}

// UpdateInstance resizes an instance or changes its boot disk. Both require
// the instance to be stopped, failed, or still creating.
func (s *Store) UpdateInstance(ctx context.Context, sel InstanceSelector, in domain.InstanceUpdate) (domain.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, err := s.db.instance(sel)
	if err != nil {
		return domain.Instance{}, err
	}
	if err := checkInstanceSize(in.Memory, in.NCPUs); err != nil {
		return domain.Instance{}, err
	}
	if in.Memory != inst.Memory || in.NCPUs != inst.NCPUs {
		if err := requireInstance(inst, instanceCan.update, "be resized"); err != nil {
			return domain.Instance{}, err
		}
	}

	var bootDiskID *string
	if in.BootDisk != nil && *in.BootDisk != "" {
		d, err := s.db.projectDisk(inst.ProjectID, *in.BootDisk)
		if err != nil {
			return domain.Instance{}, err
		}
		if d.State.Instance != inst.ID {
			return domain.Instance{}, Precondition("boot disk %q must be attached to instance %q", d.Name, inst.Name)
		}
		if err := requireDisk(d, diskCan.setAsBootDisk, "be set as boot disk"); err != nil {
			return domain.Instance{}, err
		}
		id := d.ID
		bootDiskID = &id
	}
	changed := (bootDiskID == nil) != (inst.BootDiskID == nil) ||
		(bootDiskID != nil && *bootDiskID != *inst.BootDiskID)
	if changed {
		if err := requireInstance(inst, instanceCan.update, "change boot disk"); err != nil {
			return domain.Instance{}, err
		}
	}

	inst.Memory = in.Memory
	inst.NCPUs = in.NCPUs
	inst.BootDiskID = bootDiskID
	if in.AutoRestartEnabled != nil {
		inst.AutoRestartEnabled = *in.AutoRestartEnabled
	}
	s.touch(&inst.Identity)
	return cloneInstance(*inst), nil
}

// DeleteInstance removes a stopped or failed instance together with its
// network interfaces. Its disks are detached, not deleted.
func (s *Store) DeleteInstance(ctx context.Context, sel InstanceSelector) (domain.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, err := s.db.instance(sel)
	if err != nil {
		return domain.Instance{}, err
	}
	if err := requireInstance(inst, instanceCan.delete, "be deleted"); err != nil {
		return domain.Instance{}, err
	}
	for _, d := range s.db.Disks {
		if d.State.Instance == inst.ID {
			d.State = domain.DiskState{State: domain.DiskDetached}
			s.touch(&d.Identity)
		}
	}
	s.db.NetworkInterfaces = remove(s.db.NetworkInterfaces, func(n *domain.NetworkInterface) bool { return n.InstanceID == inst.ID })
	s.db.Instances = remove(s.db.Instances, func(x *domain.Instance) bool { return x.ID == inst.ID })
	return cloneInstance(*inst), nil
}

// StartInstance moves a stopped instance through starting to running.
func (s *Store) StartInstance(ctx context.Context, sel InstanceSelector) (domain.Instance, error) {
	return s.transition(sel, instanceCan.start, "be started", domain.InstanceStarting, domain.InstanceRunning)
}

// StopInstance moves an instance through stopping to stopped.
func (s *Store) StopInstance(ctx context.Context, sel InstanceSelector) (domain.Instance, error) {
	return s.transition(sel, instanceCan.stop, "be stopped", domain.InstanceStopping, domain.InstanceStopped)
}

// RebootInstance moves a running instance through rebooting back to running.
func (s *Store) RebootInstance(ctx context.Context, sel InstanceSelector) (domain.Instance, error) {
	return s.transition(sel, instanceCan.reboot, "be rebooted", domain.InstanceRebooting, domain.InstanceRunning)
}

func (s *Store) transition(sel InstanceSelector, allowed states[domain.InstanceState], action string, steps ...domain.InstanceState) (domain.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, err := s.db.instance(sel)
	if err != nil {
		return domain.Instance{}, err
	}
	if err := requireInstance(inst, allowed, action); err != nil {
		return domain.Instance{}, err
	}
	s.setRunState(inst, steps...)
	return cloneInstance(*inst), nil
}

// ListInstanceDisks returns one page of the disks attached to an instance.
func (s *Store) ListInstanceDisks(ctx context.Context, sel InstanceSelector, p domain.PageParams) (domain.ResultsPage[domain.Disk], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, err := s.db.instance(sel)
	if err != nil {
		return domain.ResultsPage[domain.Disk]{}, err
	}
	var disks []*domain.Disk
	for _, d := range s.db.Disks {
		if d.State.Instance == inst.ID {
			disks = append(disks, d)
		}
	}
	return domain.MapPage(domain.Paginate(disks, p), copyDisk), nil
}

// AttachDisk attaches a detached disk to an instance that is stopped or
// still creating.
func (s *Store) AttachDisk(ctx context.Context, sel InstanceSelector, disk string) (domain.Disk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, err := s.db.instance(sel)
	if err != nil {
		return domain.Disk{}, err
	}
	if err := requireInstance(inst, instanceCan.attachDisk, "attach disks"); err != nil {
		return domain.Disk{}, err
	}
	d, err := s.db.projectDisk(inst.ProjectID, disk)
	if err != nil {
		return domain.Disk{}, err
	}
	if d.ProjectID != inst.ProjectID {
		return domain.Disk{}, Invalid("disk %q is not in the same project as instance %q", d.Name, inst.Name)
	}
	if err := requireDisk(d, diskCan.attach, "be attached"); err != nil {
		return domain.Disk{}, err
	}
	d.State = domain.DiskState{State: domain.DiskAttached, Instance: inst.ID}
	s.touch(&d.Identity)
	return cloneDisk(*d), nil
}

// DetachDisk detaches a disk from the instance it is attached to. Detaching
// the boot disk clears the instance's boot disk.
func (s *Store) DetachDisk(ctx context.Context, sel InstanceSelector, disk string) (domain.Disk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, err := s.db.instance(sel)
	if err != nil {
		return domain.Disk{}, err
	}
	if err := requireInstance(inst, instanceCan.detachDisk, "detach disks"); err != nil {
		return domain.Disk{}, err
	}
	d, err := s.db.projectDisk(inst.ProjectID, disk)
	if err != nil {
		return domain.Disk{}, err
	}
	if d.State.Instance != inst.ID {
		return domain.Disk{}, Precondition("disk %q is not attached to instance %q", d.Name, inst.Name)
	}
	if err := requireDisk(d, diskCan.detach, "be detached"); err != nil {
		return domain.Disk{}, err
	}
	d.State = domain.DiskState{State: domain.DiskDetached}
	s.touch(&d.Identity)
	if inst.BootDiskID != nil && *inst.BootDiskID == d.ID {
		inst.BootDiskID = nil
		s.touch(&inst.Identity)
	}
	return cloneDisk(*d), nil
}
