package storage

import (
	"context"

	"github.com/oxidecomputer/console-sub002/internal/domain"
)

// Role names.
const (
	RoleAdmin               = "admin"
	RoleCollaborator        = "collaborator"
	RoleLimitedCollaborator = "limited_collaborator"
	RoleViewer              = "viewer"
)

var rolesFor = map[string][]string{
	domain.ResourceSilo:    {RoleAdmin, RoleCollaborator, RoleViewer},
	domain.ResourceProject: {RoleAdmin, RoleCollaborator, RoleLimitedCollaborator, RoleViewer},
}

func (db *state) policy(resourceType, resourceID string) domain.Policy {
	out := domain.Policy{RoleAssignments: []domain.PolicyAssignment{}}
	for _, ra := range db.RoleAssignments {
		if ra.ResourceType == resourceType && ra.ResourceID == resourceID {
			out.RoleAssignments = append(out.RoleAssignments, domain.PolicyAssignment{
				IdentityID:   ra.IdentityID,
				IdentityType: ra.IdentityType,
				RoleName:     ra.RoleName,
			})
		}
	}
	return out
}

// setPolicy validates a policy and replaces every assignment on the resource.
func (db *state) setPolicy(resourceType, resourceID string, in domain.Policy) (domain.Policy, error) {
	valid := rolesFor[resourceType]
	seen := make(map[string]bool, len(in.RoleAssignments))
	for _, a := range in.RoleAssignments {
		ok := false
		for _, r := range valid {
			if a.RoleName == r {
				ok = true
				break
			}
		}
		if !ok {
			return domain.Policy{}, Invalid("role %q is not valid for a %s", a.RoleName, resourceType)
		}
		switch a.IdentityType {
		case domain.IdentitySiloUser:
			if _, err := db.user(a.IdentityID); err != nil {
				return domain.Policy{}, err
			}
		case domain.IdentitySiloGroup:
		default:
			return domain.Policy{}, Invalid("unknown identity type %q", a.IdentityType)
		}
		if seen[a.IdentityID] {
			return domain.Policy{}, Invalid("identity %q has more than one role", a.IdentityID)
		}
		seen[a.IdentityID] = true
	}
	db.RoleAssignments = remove(db.RoleAssignments, func(ra *domain.RoleAssignment) bool {
		return ra.ResourceType == resourceType && ra.ResourceID == resourceID
	})
	for _, a := range in.RoleAssignments {
		db.RoleAssignments = append(db.RoleAssignments, &domain.RoleAssignment{
			ResourceType: resourceType,
			ResourceID:   resourceID,
			IdentityID:   a.IdentityID,
			IdentityType: a.IdentityType,
			RoleName:     a.RoleName,
		})
	}
	return db.policy(resourceType, resourceID), nil
}

// GetProjectPolicy returns the role assignments on a project.
func (s *Store) GetProjectPolicy(ctx context.Context, project string) (domain.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.db.project(project)
	if err != nil {
		return domain.Policy{}, err
	}
	return s.db.policy(domain.ResourceProject, p.ID), nil
}

// UpdateProjectPolicy replaces the role assignments on a project.
func (s *Store) UpdateProjectPolicy(ctx context.Context, project string, in domain.Policy) (domain.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.db.project(project)
	if err != nil {
		return domain.Policy{}, err
	}
	return s.db.setPolicy(domain.ResourceProject, p.ID, in)
}

// GetSiloPolicy returns the role assignments on the acting user's silo.
func (s *Store) GetSiloPolicy(ctx context.Context, userID string) (domain.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.db.currentUser(userID)
	if err != nil {
		return domain.Policy{}, err
	}
	return s.db.policy(domain.ResourceSilo, u.SiloID), nil
}

// UpdateSiloPolicy replaces the role assignments on the acting user's silo.
func (s *Store) UpdateSiloPolicy(ctx context.Context, userID string, in domain.Policy) (domain.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.db.currentUser(userID)
	if err != nil {
		return domain.Policy{}, err
	}
	return s.db.setPolicy(domain.ResourceSilo, u.SiloID, in)
}
