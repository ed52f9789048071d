package api

import (
	"net/http"

	"github.com/oxidecomputer/console-sub002/internal/domain"
)

func (s *Server) handleProjectList(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	page, err := s.store.ListProjects(r.Context(), p)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleProjectCreate(w http.ResponseWriter, r *http.Request) {
	var in domain.ProjectCreate
	if !s.decodeBody(w, r, &in) || !s.checkNames(w, r, []string{in.Name}, in.Description) {
		return
	}
	project, err := s.store.CreateProject(r.Context(), in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusCreated, project)
}

func (s *Server) handleProjectView(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.pathRef(w, r, "project")
	if !ok {
		return
	}
	project, err := s.store.GetProject(r.Context(), ref)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleProjectUpdate(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.pathRef(w, r, "project")
	if !ok {
		return
	}
	var in domain.ProjectUpdate
	if !s.decodeBody(w, r, &in) || !s.checkNames(w, r, optionalNames(in.Name), optionalString(in.Description)) {
		return
	}
	project, err := s.store.UpdateProject(r.Context(), ref, in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, project)
}

func (s *Server) handleProjectDelete(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.pathRef(w, r, "project")
	if !ok {
		return
	}
	project, err := s.store.DeleteProject(r.Context(), ref)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	noContent(w, project)
}

func (s *Server) handleProjectPolicyView(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.pathRef(w, r, "project")
	if !ok {
		return
	}
	policy, err := s.store.GetProjectPolicy(r.Context(), ref)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func (s *Server) handleProjectPolicyUpdate(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.pathRef(w, r, "project")
	if !ok {
		return
	}
	var in domain.Policy
	if !s.decodeBody(w, r, &in) {
		return
	}
	policy, err := s.store.UpdateProjectPolicy(r.Context(), ref, in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, policy)
}
