package api

import (
	"net/http"

	"github.com/oxidecomputer/console-sub002/internal/domain"
	"github.com/oxidecomputer/console-sub002/internal/storage"
)

func (s *Server) diskSelector(w http.ResponseWriter, r *http.Request) (storage.DiskSelector, bool) {
	ref, ok := s.pathRef(w, r, "disk")
	if !ok {
		return storage.DiskSelector{}, false
	}
	q, ok := s.queryRefs(w, r, "project")
	if !ok {
		return storage.DiskSelector{}, false
	}
	return storage.DiskSelector{Project: q["project"], Disk: ref}, true
}

func (s *Server) handleDiskList(w http.ResponseWriter, r *http.Request) {
	project, ok := s.requireQuery(w, r, "project")
	if !ok {
		return
	}
	p, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	page, err := s.store.ListDisks(r.Context(), project, p)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleDiskCreate(w http.ResponseWriter, r *http.Request) {
	project, ok := s.requireQuery(w, r, "project")
	if !ok {
		return
	}
	var in domain.DiskCreate
	if !s.decodeBody(w, r, &in) || !s.checkNames(w, r, []string{in.Name}, in.Description) {
		return
	}
	disk, err := s.store.CreateDisk(r.Context(), project, in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusCreated, disk)
}

func (s *Server) handleDiskView(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.diskSelector(w, r)
	if !ok {
		return
	}
	disk, err := s.store.GetDisk(r.Context(), sel)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, disk)
}

func (s *Server) handleDiskDelete(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.diskSelector(w, r)
	if !ok {
		return
	}
	disk, err := s.store.DeleteDisk(r.Context(), sel)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	noContent(w, disk)
}

func (s *Server) snapshotSelector(w http.ResponseWriter, r *http.Request) (storage.SnapshotSelector, bool) {
	ref, ok := s.pathRef(w, r, "snapshot")
	if !ok {
		return storage.SnapshotSelector{}, false
	}
	q, ok := s.queryRefs(w, r, "project")
	if !ok {
		return storage.SnapshotSelector{}, false
	}
	return storage.SnapshotSelector{Project: q["project"], Snapshot: ref}, true
}

func (s *Server) handleSnapshotList(w http.ResponseWriter, r *http.Request) {
	project, ok := s.requireQuery(w, r, "project")
	if !ok {
		return
	}
	p, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	page, err := s.store.ListSnapshots(r.Context(), project, p)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSnapshotCreate(w http.ResponseWriter, r *http.Request) {
	project, ok := s.requireQuery(w, r, "project")
	if !ok {
		return
	}
	var in domain.SnapshotCreate
	if !s.decodeBody(w, r, &in) || !s.checkNames(w, r, []string{in.Name}, in.Description) {
		return
	}
	if !validRef(in.Disk) {
		s.writeErr(r.Context(), w, http.StatusBadRequest, CodeInvalidRequest, "invalid disk: "+in.Disk)
		return
	}
	snap, err := s.store.CreateSnapshot(r.Context(), project, in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusCreated, snap)
}

func (s *Server) handleSnapshotView(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.snapshotSelector(w, r)
	if !ok {
		return
	}
	snap, err := s.store.GetSnapshot(r.Context(), sel)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSnapshotDelete(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.snapshotSelector(w, r)
	if !ok {
		return
	}
	snap, err := s.store.DeleteSnapshot(r.Context(), sel)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	noContent(w, snap)
}
