package api

import (
	"net/http"

	"github.com/oxidecomputer/console-sub002/internal/domain"
)

func (s *Server) handleCurrentUserView(w http.ResponseWriter, r *http.Request) {
	me, err := s.store.CurrentUser(r.Context(), CurrentUserFromContext(r.Context()))
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	page, err := s.store.ListUsers(r.Context(), p)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSshKeyList(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	page, err := s.store.ListSshKeys(r.Context(), CurrentUserFromContext(r.Context()), p)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSshKeyCreate(w http.ResponseWriter, r *http.Request) {
	var in domain.SshKeyCreate
	if !s.decodeBody(w, r, &in) || !s.checkNames(w, r, []string{in.Name}, in.Description) {
		return
	}
	key, err := s.store.CreateSshKey(r.Context(), CurrentUserFromContext(r.Context()), in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusCreated, key)
}

func (s *Server) handleSshKeyView(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.pathRef(w, r, "ssh_key")
	if !ok {
		return
	}
	key, err := s.store.GetSshKey(r.Context(), CurrentUserFromContext(r.Context()), ref)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, key)
}

func (s *Server) handleSshKeyDelete(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.pathRef(w, r, "ssh_key")
	if !ok {
		return
	}
	key, err := s.store.DeleteSshKey(r.Context(), CurrentUserFromContext(r.Context()), ref)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	noContent(w, key)
}

func (s *Server) handleSiloPolicyView(w http.ResponseWriter, r *http.Request) {
	policy, err := s.store.GetSiloPolicy(r.Context(), CurrentUserFromContext(r.Context()))
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func (s *Server) handleSiloPolicyUpdate(w http.ResponseWriter, r *http.Request) {
	var in domain.Policy
	if !s.decodeBody(w, r, &in) {
		return
	}
	policy, err := s.store.UpdateSiloPolicy(r.Context(), CurrentUserFromContext(r.Context()), in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, policy)
}
