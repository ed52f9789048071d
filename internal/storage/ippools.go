package storage

import (
	"context"

	"github.com/oxidecomputer/console-sub002/internal/cidr"
	"github.com/oxidecomputer/console-sub002/internal/domain"
)

// ListIpPools returns one page of IP pools.
func (s *Store) ListIpPools(ctx context.Context, p domain.PageParams) (domain.ResultsPage[domain.IpPool], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.MapPage(domain.Paginate(s.db.IpPools, p), deref[domain.IpPool]), nil
}

// CreateIpPool adds an empty IP pool.
func (s *Store) CreateIpPool(ctx context.Context, in domain.IpPoolCreate) (domain.IpPool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := errIfExists(s.db.IpPools, "ip pool", in.Name, nil); err != nil {
		return domain.IpPool{}, err
	}
	pool := &domain.IpPool{Identity: s.identity(in.Name, in.Description)}
	s.db.IpPools = append(s.db.IpPools, pool)
	return *pool, nil
}

// GetIpPool resolves an IP pool.
func (s *Store) GetIpPool(ctx context.Context, ref string) (domain.IpPool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pool, err := s.db.ipPool(ref)
	if err != nil {
		return domain.IpPool{}, err
	}
	return *pool, nil
}

// UpdateIpPool renames or redescribes an IP pool.
func (s *Store) UpdateIpPool(ctx context.Context, ref string, in domain.IpPoolUpdate) (domain.IpPool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pool, err := s.db.ipPool(ref)
	if err != nil {
		return domain.IpPool{}, err
	}
	if err := errIfRenameCollides(s.db.IpPools, "ip pool", pool.ID, in.Name, nil); err != nil {
		return domain.IpPool{}, err
	}
	s.rename(&pool.Identity, in.Name, in.Description)
	return *pool, nil
}

// DeleteIpPool removes a pool that has no ranges left.
func (s *Store) DeleteIpPool(ctx context.Context, ref string) (domain.IpPool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pool, err := s.db.ipPool(ref)
	if err != nil {
		return domain.IpPool{}, err
	}
	for _, r := range s.db.IpPoolRanges {
		if r.IpPoolID == pool.ID {
			return domain.IpPool{}, Precondition("IP Pool cannot be deleted while it contains IP ranges")
		}
	}
	s.db.IpPools = remove(s.db.IpPools, func(x *domain.IpPool) bool { return x.ID == pool.ID })
	return *pool, nil
}

// ListIpPoolRanges returns one page of a pool's ranges.
func (s *Store) ListIpPoolRanges(ctx context.Context, ref string, p domain.PageParams) (domain.ResultsPage[domain.IpPoolRange], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pool, err := s.db.ipPool(ref)
	if err != nil {
		return domain.ResultsPage[domain.IpPoolRange]{}, err
	}
	var ranges []*domain.IpPoolRange
	for _, r := range s.db.IpPoolRanges {
		if r.IpPoolID == pool.ID {
			ranges = append(ranges, r)
		}
	}
	return domain.MapPage(domain.Paginate(ranges, p), deref[domain.IpPoolRange]), nil
}

// AddIpPoolRange adds a range to a pool. Ranges may not overlap any range
// in any pool.
func (s *Store) AddIpPoolRange(ctx context.Context, ref string, in domain.IpRange) (domain.IpPoolRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pool, err := s.db.ipPool(ref)
	if err != nil {
		return domain.IpPoolRange{}, err
	}
	first, last, err := cidr.ParseRange(in.First, in.Last)
	if err != nil {
		return domain.IpPoolRange{}, Invalid("%v", err)
	}
	for _, r := range s.db.IpPoolRanges {
		f, l, err := cidr.ParseRange(r.Range.First, r.Range.Last)
		if err != nil || f.Is4() != first.Is4() {
			continue
		}
		if cidr.RangesOverlap(first, last, f, l) {
			return domain.IpPoolRange{}, Invalid("the provided IP range %s-%s overlaps with an existing range", in.First, in.Last)
		}
	}
	r := &domain.IpPoolRange{
		ID:          s.newID(),
		IpPoolID:    pool.ID,
		Range:       domain.IpRange{First: first.String(), Last: last.String()},
		TimeCreated: s.now(),
	}
	s.db.IpPoolRanges = append(s.db.IpPoolRanges, r)
	return *r, nil
}

// RemoveIpPoolRange removes the range of a pool whose bounds match exactly.
func (s *Store) RemoveIpPoolRange(ctx context.Context, ref string, in domain.IpRange) (domain.IpPoolRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pool, err := s.db.ipPool(ref)
	if err != nil {
		return domain.IpPoolRange{}, err
	}
	first, last, err := cidr.ParseRange(in.First, in.Last)
	if err != nil {
		return domain.IpPoolRange{}, Invalid("%v", err)
	}
	for _, r := range s.db.IpPoolRanges {
		if r.IpPoolID != pool.ID {
			continue
		}
		f, l, err := cidr.ParseRange(r.Range.First, r.Range.Last)
		if err == nil && f == first && l == last {
			s.db.IpPoolRanges = remove(s.db.IpPoolRanges, func(x *domain.IpPoolRange) bool { return x.ID == r.ID })
			return *r, nil
		}
	}
	return domain.IpPoolRange{}, NotFound("ip pool range %s-%s in pool %q", in.First, in.Last, pool.Name)
}
