package api

import (
	"net/http"

	"github.com/oxidecomputer/console-sub002/internal/domain"
	"github.com/oxidecomputer/console-sub002/internal/storage"
)

// nicInstanceSelector reads the instance that owns the interfaces from the
// query string.
func (s *Server) nicInstanceSelector(w http.ResponseWriter, r *http.Request) (storage.InstanceSelector, bool) {
	instance, ok := s.requireQuery(w, r, "instance")
	if !ok {
		return storage.InstanceSelector{}, false
	}
	q, ok := s.queryRefs(w, r, "project")
	if !ok {
		return storage.InstanceSelector{}, false
	}
	return storage.InstanceSelector{Project: q["project"], Instance: instance}, true
}

func (s *Server) nicSelector(w http.ResponseWriter, r *http.Request) (storage.NetworkInterfaceSelector, bool) {
	ref, ok := s.pathRef(w, r, "interface")
	if !ok {
		return storage.NetworkInterfaceSelector{}, false
	}
	q, ok := s.queryRefs(w, r, "project", "instance")
	if !ok {
		return storage.NetworkInterfaceSelector{}, false
	}
	return storage.NetworkInterfaceSelector{Project: q["project"], Instance: q["instance"], Interface: ref}, true
}

func (s *Server) handleNetworkInterfaceList(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.nicInstanceSelector(w, r)
	if !ok {
		return
	}
	p, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	page, err := s.store.ListNetworkInterfaces(r.Context(), sel, p)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleNetworkInterfaceCreate(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.nicInstanceSelector(w, r)
	if !ok {
		return
	}
	var in domain.NetworkInterfaceCreate
	if !s.decodeBody(w, r, &in) || !s.checkNames(w, r, []string{in.Name, in.VpcName, in.SubnetName}, in.Description) {
		return
	}
	nic, err := s.store.CreateNetworkInterface(r.Context(), sel, in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusCreated, nic)
}

func (s *Server) handleNetworkInterfaceView(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.nicSelector(w, r)
	if !ok {
		return
	}
	nic, err := s.store.GetNetworkInterface(r.Context(), sel)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, nic)
}

func (s *Server) handleNetworkInterfaceUpdate(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.nicSelector(w, r)
	if !ok {
		return
	}
	var in domain.NetworkInterfaceUpdate
	if !s.decodeBody(w, r, &in) || !s.checkNames(w, r, optionalNames(in.Name), optionalString(in.Description)) {
		return
	}
	nic, err := s.store.UpdateNetworkInterface(r.Context(), sel, in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, nic)
}

func (s *Server) handleNetworkInterfaceDelete(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.nicSelector(w, r)
	if !ok {
		return
	}
	nic, err := s.store.DeleteNetworkInterface(r.Context(), sel)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	noContent(w, nic)
}
