package api

import (
	"context"
	"net/http"

	"github.com/oxidecomputer/console-sub002/internal/domain"
	"github.com/oxidecomputer/console-sub002/internal/storage"
)

func (s *Server) instanceSelector(w http.ResponseWriter, r *http.Request) (storage.InstanceSelector, bool) {
	ref, ok := s.pathRef(w, r, "instance")
	if !ok {
		return storage.InstanceSelector{}, false
	}
	q, ok := s.queryRefs(w, r, "project")
	if !ok {
		return storage.InstanceSelector{}, false
	}
	return storage.InstanceSelector{Project: q["project"], Instance: ref}, true
}

func (s *Server) handleInstanceList(w http.ResponseWriter, r *http.Request) {
	project, ok := s.requireQuery(w, r, "project")
	if !ok {
		return
	}
	p, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	page, err := s.store.ListInstances(r.Context(), project, p)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// instanceCreateNames collects every name an instance create body introduces.
func instanceCreateNames(in domain.InstanceCreate) []string {
	names := []string{in.Name}
	disks := in.Disks
	if in.BootDisk != nil {
		disks = append(append([]domain.InstanceDiskAttachment(nil), disks...), *in.BootDisk)
	}
	for _, d := range disks {
		names = append(names, d.Name)
	}
	if in.NetworkInterfaces != nil {
		for _, n := range in.NetworkInterfaces.Params {
			names = append(names, n.Name, n.VpcName, n.SubnetName)
		}
	}
	return names
}

func (s *Server) handleInstanceCreate(w http.ResponseWriter, r *http.Request) {
	project, ok := s.requireQuery(w, r, "project")
	if !ok {
		return
	}
	var in domain.InstanceCreate
	if !s.decodeBody(w, r, &in) || !s.checkNames(w, r, instanceCreateNames(in), in.Description) {
		return
	}
	if in.Hostname == "" {
		s.writeErr(r.Context(), w, http.StatusBadRequest, CodeInvalidRequest, "hostname is required")
		return
	}
	inst, err := s.store.CreateInstance(r.Context(), project, in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusCreated, inst)
}

func (s *Server) handleInstanceView(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.instanceSelector(w, r)
	if !ok {
		return
	}
	inst, err := s.store.GetInstance(r.Context(), sel)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleInstanceUpdate(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.instanceSelector(w, r)
	if !ok {
		return
	}
	var in domain.InstanceUpdate
	if !s.decodeBody(w, r, &in) {
		return
	}
	if in.BootDisk != nil && *in.BootDisk != "" && !validRef(*in.BootDisk) {
		s.writeErr(r.Context(), w, http.StatusBadRequest, CodeInvalidRequest, "invalid boot_disk: "+*in.BootDisk)
		return
	}
	inst, err := s.store.UpdateInstance(r.Context(), sel, in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, inst)
}

func (s *Server) handleInstanceDelete(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.instanceSelector(w, r)
	if !ok {
		return
	}
	inst, err := s.store.DeleteInstance(r.Context(), sel)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	noContent(w, inst)
}

// instanceAction serves start, stop and reboot.
func (s *Server) instanceAction(action func(context.Context, storage.InstanceSelector) (domain.Instance, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sel, ok := s.instanceSelector(w, r)
		if !ok {
			return
		}
		inst, err := action(r.Context(), sel)
		if err != nil {
			s.writeStoreErr(r.Context(), w, err)
			return
		}
		respond(w, http.StatusAccepted, inst)
	}
}

func (s *Server) handleInstanceDiskList(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.instanceSelector(w, r)
	if !ok {
		return
	}
	p, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	page, err := s.store.ListInstanceDisks(r.Context(), sel, p)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// instanceDiskAction serves disk attach and detach.
func (s *Server) instanceDiskAction(action func(context.Context, storage.InstanceSelector, string) (domain.Disk, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sel, ok := s.instanceSelector(w, r)
		if !ok {
			return
		}
		var in domain.DiskPath
		if !s.decodeBody(w, r, &in) {
			return
		}
		if !validRef(in.Disk) {
			s.writeErr(r.Context(), w, http.StatusBadRequest, CodeInvalidRequest, "invalid disk: "+in.Disk)
			return
		}
		disk, err := action(r.Context(), sel, in.Disk)
		if err != nil {
			s.writeStoreErr(r.Context(), w, err)
			return
		}
		respond(w, http.StatusAccepted, disk)
	}
}

func (s *Server) handleInstanceSerialConsoleStream(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.instanceSelector(w, r); !ok {
		return
	}
	s.writeStoreErr(r.Context(), w, storage.NotImplemented("serial console streaming is not implemented"))
}
