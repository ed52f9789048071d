package storage

import (
	"context"

	"github.com/oxidecomputer/console-sub002/internal/domain"
	"github.com/oxidecomputer/console-sub002/internal/validation"
)

// currentUser resolves the acting user. An empty id selects the first user.
func (db *state) currentUser(id string) (*domain.User, error) {
	if id == "" {
		if len(db.Users) == 0 {
			return nil, NotFound("no users configured")
		}
		return db.Users[0], nil
	}
	return db.user(id)
}

// CurrentUser returns the acting user along with the name of their silo.
func (s *Store) CurrentUser(ctx context.Context, userID string) (domain.CurrentUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.db.currentUser(userID)
	if err != nil {
		return domain.CurrentUser{}, err
	}
	out := domain.CurrentUser{User: *u}
	if silo, err := lookupByID(s.db.Silos, u.SiloID, "silo"); err == nil {
		out.SiloName = silo.Name
	}
	return out, nil
}

// ListUsers returns one page of users.
func (s *Store) ListUsers(ctx context.Context, p domain.PageParams) (domain.ResultsPage[domain.User], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.MapPage(domain.Paginate(s.db.Users, p), deref[domain.User]), nil
}

// ListSshKeys returns one page of the acting user's SSH keys.
func (s *Store) ListSshKeys(ctx context.Context, userID string, p domain.PageParams) (domain.ResultsPage[domain.SshKey], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.db.currentUser(userID)
	if err != nil {
		return domain.ResultsPage[domain.SshKey]{}, err
	}
	var keys []*domain.SshKey
	for _, k := range s.db.SshKeys {
		if k.SiloUserID == u.ID {
			keys = append(keys, k)
		}
	}
	return domain.MapPage(domain.Paginate(keys, p), deref[domain.SshKey]), nil
}

// CreateSshKey adds a public key for the acting user.
func (s *Store) CreateSshKey(ctx context.Context, userID string, in domain.SshKeyCreate) (domain.SshKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.db.currentUser(userID)
	if err != nil {
		return domain.SshKey{}, err
	}
	if err := errIfExists(s.db.SshKeys, "ssh key", in.Name,
		func(k *domain.SshKey) bool { return k.SiloUserID == u.ID }); err != nil {
		return domain.SshKey{}, err
	}
	if err := validation.ValidateSSHPublicKey(in.PublicKey); err != nil {
		return domain.SshKey{}, Invalid("%v", err)
	}
	k := &domain.SshKey{
		Identity:   s.identity(in.Name, in.Description),
		SiloUserID: u.ID,
		PublicKey:  in.PublicKey,
	}
	s.db.SshKeys = append(s.db.SshKeys, k)
	return *k, nil
}

// GetSshKey resolves one of the acting user's keys.
func (s *Store) GetSshKey(ctx context.Context, userID, ref string) (domain.SshKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.db.currentUser(userID)
	if err != nil {
		return domain.SshKey{}, err
	}
	k, err := s.db.sshKey(u.ID, ref)
	if err != nil {
		return domain.SshKey{}, err
	}
	return *k, nil
}

// DeleteSshKey removes one of the acting user's keys.
func (s *Store) DeleteSshKey(ctx context.Context, userID, ref string) (domain.SshKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.db.currentUser(userID)
	if err != nil {
		return domain.SshKey{}, err
	}
	k, err := s.db.sshKey(u.ID, ref)
	if err != nil {
		return domain.SshKey{}, err
	}
	s.db.SshKeys = remove(s.db.SshKeys, func(x *domain.SshKey) bool { return x.ID == k.ID })
	return *k, nil
}
