package storage

import (
	"github.com/google/uuid"

	"github.com/oxidecomputer/console-sub002/internal/domain"
)

// RefKind tells whether a reference names a record by identifier or by name.
type RefKind int

const (
	RefName RefKind = iota + 1
	RefID
)

// Ref is a classified name-or-id reference.
type Ref struct {
	Kind  RefKind
	Value string
}

// ParseRef classifies s. Strings in canonical UUID form are identifiers,
// anything else non-empty is a name. ok is false for an empty string.
func ParseRef(s string) (ref Ref, ok bool) {
	if s == "" {
		return Ref{}, false
	}
	if len(s) == 36 {
		if _, err := uuid.Parse(s); err == nil {
			return Ref{Kind: RefID, Value: s}, true
		}
	}
	return Ref{Kind: RefName, Value: s}, true
}

// IsID reports whether s is in identifier form.
func IsID(s string) bool {
	r, ok := ParseRef(s)
	return ok && r.Kind == RefID
}

// Selectors carry a reference plus the ancestor scope needed to resolve a name.
type (
	InstanceSelector struct {
		Project  string
		Instance string
	}
	DiskSelector struct {
		Project string
		Disk    string
	}
	SnapshotSelector struct {
		Project  string
		Snapshot string
	}
	VpcSelector struct {
		Project string
		Vpc     string
	}
	SubnetSelector struct {
		Project string
		Vpc     string
		Subnet  string
	}
	NetworkInterfaceSelector struct {
		Project   string
		Instance  string
		Interface string
	}
)

type named interface {
	domain.Identified
	RecordName() string
}

type parentSelector struct {
	name  string
	value string
}

// ensureNoParents rejects ancestor selectors given alongside an id reference.
func ensureNoParents(kind string, parents ...parentSelector) error {
	for _, p := range parents {
		if p.value != "" {
			return Invalid("when %s is specified by ID, %s should not be specified", kind, p.name)
		}
	}
	return nil
}

func lookupByID[T domain.Identified](items []T, id, kind string) (T, error) {
	for _, item := range items {
		if item.RecordID() == id {
			return item, nil
		}
	}
	var zero T
	return zero, NotFound("%s with id %q", kind, id)
}

func lookupByName[T named](items []T, name, kind string, inScope func(T) bool) (T, error) {
	for _, item := range items {
		if item.RecordName() == name && (inScope == nil || inScope(item)) {
			return item, nil
		}
	}
	var zero T
	return zero, NotFound("%s with name %q", kind, name)
}

// errIfExists fails with ErrAlreadyExists when a record in scope already uses name.
func errIfExists[T named](items []T, kind, name string, inScope func(T) bool) error {
	for _, item := range items {
		if item.RecordName() == name && (inScope == nil || inScope(item)) {
			return AlreadyExists(kind, name)
		}
	}
	return nil
}

// errIfRenameCollides is errIfExists for renames, ignoring the record being renamed.
func errIfRenameCollides[T named](items []T, kind, id string, name *string, inScope func(T) bool) error {
	if name == nil {
		return nil
	}
	for _, item := range items {
		if item.RecordID() != id && item.RecordName() == *name && (inScope == nil || inScope(item)) {
			return AlreadyExists(kind, *name)
		}
	}
	return nil
}

func (db *state) project(ref string) (*domain.Project, error) {
	r, ok := ParseRef(ref)
	if !ok {
		return nil, NotFound("no project specified")
	}
	if r.Kind == RefID {
		return lookupByID(db.Projects, r.Value, "project")
	}
	return lookupByName(db.Projects, r.Value, "project", nil)
}

func (db *state) instance(sel InstanceSelector) (*domain.Instance, error) {
	r, ok := ParseRef(sel.Instance)
	if !ok {
		return nil, NotFound("no instance specified")
	}
	if r.Kind == RefID {
		if err := ensureNoParents("instance", parentSelector{"project", sel.Project}); err != nil {
			return nil, err
		}
		return lookupByID(db.Instances, r.Value, "instance")
	}
	p, err := db.project(sel.Project)
	if err != nil {
		return nil, err
	}
	return lookupByName(db.Instances, r.Value, "instance", func(i *domain.Instance) bool { return i.ProjectID == p.ID })
}

func (db *state) disk(sel DiskSelector) (*domain.Disk, error) {
	r, ok := ParseRef(sel.Disk)
	if !ok {
		return nil, NotFound("no disk specified")
	}
	if r.Kind == RefID {
		if err := ensureNoParents("disk", parentSelector{"project", sel.Project}); err != nil {
			return nil, err
		}
		return lookupByID(db.Disks, r.Value, "disk")
	}
	p, err := db.project(sel.Project)
	if err != nil {
		return nil, err
	}
	return lookupByName(db.Disks, r.Value, "disk", func(d *domain.Disk) bool { return d.ProjectID == p.ID })
}

func (db *state) snapshot(sel SnapshotSelector) (*domain.Snapshot, error) {
	r, ok := ParseRef(sel.Snapshot)
	if !ok {
		return nil, NotFound("no snapshot specified")
	}
	if r.Kind == RefID {
		if err := ensureNoParents("snapshot", parentSelector{"project", sel.Project}); err != nil {
			return nil, err
		}
		return lookupByID(db.Snapshots, r.Value, "snapshot")
	}
	p, err := db.project(sel.Project)
	if err != nil {
		return nil, err
	}
	return lookupByName(db.Snapshots, r.Value, "snapshot", func(s *domain.Snapshot) bool { return s.ProjectID == p.ID })
}

func (db *state) vpc(sel VpcSelector) (*domain.Vpc, error) {
	r, ok := ParseRef(sel.Vpc)
	if !ok {
		return nil, NotFound("no VPC specified")
	}
	if r.Kind == RefID {
		if err := ensureNoParents("vpc", parentSelector{"project", sel.Project}); err != nil {
			return nil, err
		}
		return lookupByID(db.Vpcs, r.Value, "vpc")
	}
	p, err := db.project(sel.Project)
	if err != nil {
		return nil, err
	}
	return lookupByName(db.Vpcs, r.Value, "vpc", func(v *domain.Vpc) bool { return v.ProjectID == p.ID })
}

func (db *state) subnet(sel SubnetSelector) (*domain.VpcSubnet, error) {
	r, ok := ParseRef(sel.Subnet)
	if !ok {
		return nil, NotFound("no subnet specified")
	}
	if r.Kind == RefID {
		if err := ensureNoParents("subnet",
			parentSelector{"project", sel.Project},
			parentSelector{"vpc", sel.Vpc},
		); err != nil {
			return nil, err
		}
		return lookupByID(db.VpcSubnets, r.Value, "subnet")
	}
	v, err := db.vpc(VpcSelector{Project: sel.Project, Vpc: sel.Vpc})
	if err != nil {
		return nil, err
	}
	return lookupByName(db.VpcSubnets, r.Value, "subnet", func(s *domain.VpcSubnet) bool { return s.VpcID == v.ID })
}

func (db *state) networkInterface(sel NetworkInterfaceSelector) (*domain.NetworkInterface, error) {
	r, ok := ParseRef(sel.Interface)
	if !ok {
		return nil, NotFound("no network interface specified")
	}
	if r.Kind == RefID {
		if err := ensureNoParents("network interface",
			parentSelector{"project", sel.Project},
			parentSelector{"instance", sel.Instance},
		); err != nil {
			return nil, err
		}
		return lookupByID(db.NetworkInterfaces, r.Value, "network interface")
	}
	inst, err := db.instance(InstanceSelector{Project: sel.Project, Instance: sel.Instance})
	if err != nil {
		return nil, err
	}
	return lookupByName(db.NetworkInterfaces, r.Value, "network interface",
		func(n *domain.NetworkInterface) bool { return n.InstanceID == inst.ID })
}

func (db *state) ipPool(ref string) (*domain.IpPool, error) {
	r, ok := ParseRef(ref)
	if !ok {
		return nil, NotFound("no IP pool specified")
	}
	if r.Kind == RefID {
		return lookupByID(db.IpPools, r.Value, "ip pool")
	}
	return lookupByName(db.IpPools, r.Value, "ip pool", nil)
}

func (db *state) silo(ref string) (*domain.Silo, error) {
	r, ok := ParseRef(ref)
	if !ok {
		return nil, NotFound("no silo specified")
	}
	if r.Kind == RefID {
		return lookupByID(db.Silos, r.Value, "silo")
	}
	return lookupByName(db.Silos, r.Value, "silo", nil)
}

func (db *state) sled(ref string) (*domain.Sled, error) {
	r, ok := ParseRef(ref)
	if !ok {
		return nil, NotFound("no sled specified")
	}
	if r.Kind != RefID {
		return nil, NotFound("sled with id %q", r.Value)
	}
	return lookupByID(db.Sleds, r.Value, "sled")
}

func (db *state) user(id string) (*domain.User, error) {
	if id == "" {
		return nil, NotFound("no user specified")
	}
	return lookupByID(db.Users, id, "user")
}

func (db *state) sshKey(userID, ref string) (*domain.SshKey, error) {
	r, ok := ParseRef(ref)
	if !ok {
		return nil, NotFound("no ssh key specified")
	}
	if r.Kind == RefID {
		k, err := lookupByID(db.SshKeys, r.Value, "ssh key")
		if err != nil {
			return nil, err
		}
		if k.SiloUserID != userID {
			return nil, NotFound("ssh key with id %q", r.Value)
		}
		return k, nil
	}
	return lookupByName(db.SshKeys, r.Value, "ssh key", func(k *domain.SshKey) bool { return k.SiloUserID == userID })
}
