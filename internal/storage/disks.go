package storage

import (
	"context"

	"github.com/oxidecomputer/console-sub002/internal/domain"
)

// Disk size bounds.
const (
	MinDiskSize      = 1 * domain.GiB
	MaxDiskSize      = 1023 * domain.GiB
	DefaultBlockSize = 4096
)

var validBlockSizes = []int64{512, 2048, 4096}

// checkDiskSize validates a requested disk size against the bounds, the block
// size, and the size of the source snapshot if there is one.
func checkDiskSize(size, blockSize, minSize int64) error {
	if size < MinDiskSize {
		return Invalid("disk size must be greater than or equal to %d GiB", MinDiskSize/domain.GiB)
	}
	if size > MaxDiskSize {
		return Invalid("disk size must be less than or equal to %d GiB", MaxDiskSize/domain.GiB)
	}
	if blockSize > 0 && size%blockSize != 0 {
		return Invalid("disk size must be a multiple of block size %d", blockSize)
	}
	if size < minSize {
		return Invalid("disk size must be at least the source size of %d bytes", minSize)
	}
	return nil
}

// resolveDiskSource checks a disk source and returns the block size and
// snapshot id for a disk created from it.
func (db *state) resolveDiskSource(src domain.DiskSource, size int64) (int64, *string, error) {
	switch src.Type {
	case domain.DiskSourceBlank:
		valid := false
		for _, b := range validBlockSizes {
			if src.BlockSize == b {
				valid = true
			}
		}
		if !valid {
			return 0, nil, Invalid("block size must be one of 512, 2048, or 4096")
		}
		return src.BlockSize, nil, checkDiskSize(size, src.BlockSize, 0)
	case domain.DiskSourceSnapshot:
		snap, err := lookupByID(db.Snapshots, src.SnapshotID, "snapshot")
		if err != nil {
			return 0, nil, err
		}
		id := snap.ID
		return DefaultBlockSize, &id, checkDiskSize(size, DefaultBlockSize, snap.Size)
	case domain.DiskSourceImage:
		return 0, nil, NotImplemented("creating disks from images is not supported")
	}
	return 0, nil, Invalid("unknown disk source type %q", src.Type)
}

// ListDisks returns one page of the disks in a project.
func (s *Store) ListDisks(ctx context.Context, project string, p domain.PageParams) (domain.ResultsPage[domain.Disk], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proj, err := s.db.project(project)
	if err != nil {
		return domain.ResultsPage[domain.Disk]{}, err
	}
	var disks []*domain.Disk
	for _, d := range s.db.Disks {
		if d.ProjectID == proj.ID {
			disks = append(disks, d)
		}
	}
	return domain.MapPage(domain.Paginate(disks, p), copyDisk), nil
}

func copyDisk(d *domain.Disk) domain.Disk { return cloneDisk(*d) }

// CreateDisk adds a detached disk to a project.
func (s *Store) CreateDisk(ctx context.Context, project string, in domain.DiskCreate) (domain.Disk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proj, err := s.db.project(project)
	if err != nil {
		return domain.Disk{}, err
	}
	if in.Name == FaultDiskCreate {
		return domain.Disk{}, Internal("disk creation failed")
	}
	if err := errIfExists(s.db.Disks, "disk", in.Name, func(d *domain.Disk) bool { return d.ProjectID == proj.ID }); err != nil {
		return domain.Disk{}, err
	}
	blockSize, snapshotID, err := s.db.resolveDiskSource(in.DiskSource, in.Size)
	if err != nil {
		return domain.Disk{}, err
	}
	d := &domain.Disk{
		Identity:   s.identity(in.Name, in.Description),
		ProjectID:  proj.ID,
		Size:       in.Size,
		BlockSize:  blockSize,
		State:      domain.DiskState{State: domain.DiskDetached},
		DevicePath: "/mnt/" + in.Name,
		SnapshotID: snapshotID,
	}
	s.db.Disks = append(s.db.Disks, d)
	return cloneDisk(*d), nil
}

// GetDisk resolves a disk.
func (s *Store) GetDisk(ctx context.Context, sel DiskSelector) (domain.Disk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.db.disk(sel)
	if err != nil {
		return domain.Disk{}, err
	}
	return cloneDisk(*d), nil
}

// DeleteDisk removes a disk that is detached or faulted.
func (s *Store) DeleteDisk(ctx context.Context, sel DiskSelector) (domain.Disk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.db.disk(sel)
	if err != nil {
		return domain.Disk{}, err
	}
	if err := requireDisk(d, diskCan.delete, "be deleted"); err != nil {
		return domain.Disk{}, err
	}
	s.db.Disks = remove(s.db.Disks, func(x *domain.Disk) bool { return x.ID == d.ID })
	return cloneDisk(*d), nil
}

// ListSnapshots returns one page of the snapshots in a project.
func (s *Store) ListSnapshots(ctx context.Context, project string, p domain.PageParams) (domain.ResultsPage[domain.Snapshot], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proj, err := s.db.project(project)
	if err != nil {
		return domain.ResultsPage[domain.Snapshot]{}, err
	}
	var snaps []*domain.Snapshot
	for _, sn := range s.db.Snapshots {
		if sn.ProjectID == proj.ID {
			snaps = append(snaps, sn)
		}
	}
	return domain.MapPage(domain.Paginate(snaps, p), deref[domain.Snapshot]), nil
}

// CreateSnapshot snapshots a disk that is attached or detached.
func (s *Store) CreateSnapshot(ctx context.Context, project string, in domain.SnapshotCreate) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proj, err := s.db.project(project)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if err := errIfExists(s.db.Snapshots, "snapshot", in.Name, func(sn *domain.Snapshot) bool { return sn.ProjectID == proj.ID }); err != nil {
		return domain.Snapshot{}, err
	}
	sel := DiskSelector{Project: proj.ID, Disk: in.Disk}
	if IsID(in.Disk) {
		sel.Project = ""
	}
	d, err := s.db.disk(sel)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if d.Name == FaultDiskSnapshot {
		return domain.Snapshot{}, Precondition("cannot snapshot disk %q", d.Name)
	}
	if err := requireDisk(d, diskCan.snapshot, "be snapshotted"); err != nil {
		return domain.Snapshot{}, err
	}
	sn := &domain.Snapshot{
		Identity:  s.identity(in.Name, in.Description),
		ProjectID: proj.ID,
		DiskID:    d.ID,
		Size:      d.Size,
		State:     domain.SnapshotReady,
	}
	s.db.Snapshots = append(s.db.Snapshots, sn)
	return *sn, nil
}

// GetSnapshot resolves a snapshot.
func (s *Store) GetSnapshot(ctx context.Context, sel SnapshotSelector) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn, err := s.db.snapshot(sel)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return *sn, nil
}

// DeleteSnapshot removes a snapshot. Disks created from it are unaffected.
func (s *Store) DeleteSnapshot(ctx context.Context, sel SnapshotSelector) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn, err := s.db.snapshot(sel)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if sn.Name == FaultSnapshotDelete {
		return domain.Snapshot{}, Internal("snapshot deletion failed")
	}
	s.db.Snapshots = remove(s.db.Snapshots, func(x *domain.Snapshot) bool { return x.ID == sn.ID })
	return *sn, nil
}
