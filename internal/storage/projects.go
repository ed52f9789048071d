package storage

import (
	"context"

	"github.com/oxidecomputer/console-sub002/internal/domain"
)

func deref[T any](p *T) T { return *p }

// ListProjects returns one page of projects.
func (s *Store) ListProjects(ctx context.Context, p domain.PageParams) (domain.ResultsPage[domain.Project], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.MapPage(domain.Paginate(s.db.Projects, p), deref[domain.Project]), nil
}

// CreateProject adds a project. Project names are unique in the silo.
func (s *Store) CreateProject(ctx context.Context, in domain.ProjectCreate) (domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := errIfExists(s.db.Projects, "project", in.Name, nil); err != nil {
		return domain.Project{}, err
	}
	p := &domain.Project{Identity: s.identity(in.Name, in.Description)}
	s.db.Projects = append(s.db.Projects, p)
	return *p, nil
}

// GetProject resolves a project by name or id.
func (s *Store) GetProject(ctx context.Context, ref string) (domain.Project, error) {
	if err := projectViewFault(ref); err != nil {
		return domain.Project{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.db.project(ref)
	if err != nil {
		return domain.Project{}, err
	}
	return *p, nil
}

// UpdateProject renames or redescribes a project.
func (s *Store) UpdateProject(ctx context.Context, ref string, in domain.ProjectUpdate) (domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.db.project(ref)
	if err != nil {
		return domain.Project{}, err
	}
	if err := errIfRenameCollides(s.db.Projects, "project", p.ID, in.Name, nil); err != nil {
		return domain.Project{}, err
	}
	s.rename(&p.Identity, in.Name, in.Description)
	return *p, nil
}

// DeleteProject removes a project. It fails while the project still has a VPC.
// Role assignments on the project are removed with it.
func (s *Store) DeleteProject(ctx context.Context, ref string) (domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.db.project(ref)
	if err != nil {
		return domain.Project{}, err
	}
	for _, v := range s.db.Vpcs {
		if v.ProjectID == p.ID {
			return domain.Project{}, Precondition("project to be deleted contains a vpc: %s", v.Name)
		}
	}
	s.db.Projects = remove(s.db.Projects, func(x *domain.Project) bool { return x.ID == p.ID })
	s.db.RoleAssignments = remove(s.db.RoleAssignments, func(ra *domain.RoleAssignment) bool {
		return ra.ResourceType == domain.ResourceProject && ra.ResourceID == p.ID
	})
	return *p, nil
}
