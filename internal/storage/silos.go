package storage

import (
	"context"

	"github.com/oxidecomputer/console-sub002/internal/domain"
)

// Silo identity modes.
const (
	IdentityModeSAMLJIT = "saml_jit"
	IdentityModeLocal   = "local_only"
)

// ListSilos returns one page of silos.
func (s *Store) ListSilos(ctx context.Context, p domain.PageParams) (domain.ResultsPage[domain.Silo], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.MapPage(domain.Paginate(s.db.Silos, p), deref[domain.Silo]), nil
}

// CreateSilo adds a silo.
func (s *Store) CreateSilo(ctx context.Context, in domain.SiloCreate) (domain.Silo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := errIfExists(s.db.Silos, "silo", in.Name, nil); err != nil {
		return domain.Silo{}, err
	}
	mode := in.IdentityMode
	switch mode {
	case "":
		mode = IdentityModeLocal
	case IdentityModeLocal, IdentityModeSAMLJIT:
	default:
		return domain.Silo{}, Invalid("identity_mode must be %s or %s", IdentityModeLocal, IdentityModeSAMLJIT)
	}
	silo := &domain.Silo{
		Identity:     s.identity(in.Name, in.Description),
		Discoverable: in.Discoverable,
		IdentityMode: mode,
	}
	s.db.Silos = append(s.db.Silos, silo)
	return *silo, nil
}

// GetSilo resolves a silo.
func (s *Store) GetSilo(ctx context.Context, ref string) (domain.Silo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	silo, err := s.db.silo(ref)
	if err != nil {
		return domain.Silo{}, err
	}
	return *silo, nil
}

// DeleteSilo removes a silo and the role assignments granted on it. A silo
// that still has users cannot be deleted.
func (s *Store) DeleteSilo(ctx context.Context, ref string) (domain.Silo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	silo, err := s.db.silo(ref)
	if err != nil {
		return domain.Silo{}, err
	}
	for _, u := range s.db.Users {
		if u.SiloID == silo.ID {
			return domain.Silo{}, Precondition("silo %q still has users", silo.Name)
		}
	}
	s.db.Silos = remove(s.db.Silos, func(x *domain.Silo) bool { return x.ID == silo.ID })
	s.db.RoleAssignments = remove(s.db.RoleAssignments, func(ra *domain.RoleAssignment) bool {
		return ra.ResourceType == domain.ResourceSilo && ra.ResourceID == silo.ID
	})
	return *silo, nil
}

// ListSleds returns one page of the sled inventory.
func (s *Store) ListSleds(ctx context.Context, p domain.PageParams) (domain.ResultsPage[domain.Sled], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.MapPage(domain.Paginate(s.db.Sleds, p), deref[domain.Sled]), nil
}

// GetSled looks up a sled by id.
func (s *Store) GetSled(ctx context.Context, id string) (domain.Sled, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sled, err := s.db.sled(id)
	if err != nil {
		return domain.Sled{}, err
	}
	return *sled, nil
}
