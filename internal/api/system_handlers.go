package api

import (
	"fmt"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/oxidecomputer/console-sub002/internal/audit"
	"github.com/oxidecomputer/console-sub002/internal/domain"
	"github.com/oxidecomputer/console-sub002/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"collections": s.store.Counts(),
	})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.Ping{Status: "ok"})
}

// handleReset restores the fixture state. The audit log is kept.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.store.Reset(r.Context())
	s.logger.InfoContext(r.Context(), "store reset", appendRequestID(r.Context(), nil)...)
	w.WriteHeader(http.StatusNoContent)
}

// handleStateExport dumps the live state as a fixture document that
// mockapi -fixtures can load.
func (s *Server) handleStateExport(w http.ResponseWriter, r *http.Request) {
	data, err := yaml.Marshal(s.store.Export(r.Context()))
	if err != nil {
		s.writeStoreErr(r.Context(), w, storage.Internal("encode state: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleNotImplemented answers operations the mock does not model.
func (s *Server) handleNotImplemented(w http.ResponseWriter, r *http.Request) {
	s.writeStoreErr(r.Context(), w, storage.NotImplemented("%s is not implemented", OperationFromContext(r.Context())))
}

func (s *Server) handleAuditLogList(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	opts := audit.ListOptions{Page: p, OperationID: r.URL.Query().Get("operation_id")}
	var err error
	if opts.StartTime, err = parseTimeParam(r, "start_time"); err == nil {
		opts.EndTime, err = parseTimeParam(r, "end_time")
	}
	if err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	if opts.StartTime != nil && opts.EndTime != nil && opts.EndTime.Before(*opts.StartTime) {
		s.writeErr(r.Context(), w, http.StatusBadRequest, CodeInvalidRequest, "end_time must not be before start_time")
		return
	}
	page, err := s.auditLogger.List(r.Context(), opts)
	if err != nil {
		s.writeStoreErr(r.Context(), w, fmt.Errorf("list audit log: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleIpPoolList(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	page, err := s.store.ListIpPools(r.Context(), p)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleIpPoolCreate(w http.ResponseWriter, r *http.Request) {
	var in domain.IpPoolCreate
	if !s.decodeBody(w, r, &in) || !s.checkNames(w, r, []string{in.Name}, in.Description) {
		return
	}
	pool, err := s.store.CreateIpPool(r.Context(), in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusCreated, pool)
}

func (s *Server) handleIpPoolView(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.pathRef(w, r, "pool")
	if !ok {
		return
	}
	pool, err := s.store.GetIpPool(r.Context(), ref)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

func (s *Server) handleIpPoolUpdate(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.pathRef(w, r, "pool")
	if !ok {
		return
	}
	var in domain.IpPoolUpdate
	if !s.decodeBody(w, r, &in) || !s.checkNames(w, r, optionalNames(in.Name), optionalString(in.Description)) {
		return
	}
	pool, err := s.store.UpdateIpPool(r.Context(), ref, in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, pool)
}

func (s *Server) handleIpPoolDelete(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.pathRef(w, r, "pool")
	if !ok {
		return
	}
	pool, err := s.store.DeleteIpPool(r.Context(), ref)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	noContent(w, pool)
}

func (s *Server) handleIpPoolRangeList(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.pathRef(w, r, "pool")
	if !ok {
		return
	}
	p, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	page, err := s.store.ListIpPoolRanges(r.Context(), ref, p)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleIpPoolRangeAdd(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.pathRef(w, r, "pool")
	if !ok {
		return
	}
	var in domain.IpRange
	if !s.decodeBody(w, r, &in) {
		return
	}
	rng, err := s.store.AddIpPoolRange(r.Context(), ref, in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusCreated, rng)
}

func (s *Server) handleIpPoolRangeRemove(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.pathRef(w, r, "pool")
	if !ok {
		return
	}
	var in domain.IpRange
	if !s.decodeBody(w, r, &in) {
		return
	}
	rng, err := s.store.RemoveIpPoolRange(r.Context(), ref, in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	noContent(w, rng)
}

func (s *Server) handleSiloList(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	page, err := s.store.ListSilos(r.Context(), p)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSiloCreate(w http.ResponseWriter, r *http.Request) {
	var in domain.SiloCreate
	if !s.decodeBody(w, r, &in) || !s.checkNames(w, r, []string{in.Name}, in.Description) {
		return
	}
	silo, err := s.store.CreateSilo(r.Context(), in)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	respond(w, http.StatusCreated, silo)
}

func (s *Server) handleSiloView(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.pathRef(w, r, "silo")
	if !ok {
		return
	}
	silo, err := s.store.GetSilo(r.Context(), ref)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, silo)
}

func (s *Server) handleSiloDelete(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.pathRef(w, r, "silo")
	if !ok {
		return
	}
	silo, err := s.store.DeleteSilo(r.Context(), ref)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	noContent(w, silo)
}

func (s *Server) handleSledList(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	page, err := s.store.ListSleds(r.Context(), p)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSledView(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sled_id")
	if !storage.IsID(id) {
		s.writeErr(r.Context(), w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("invalid path parameter sled_id: %q", id))
		return
	}
	sled, err := s.store.GetSled(r.Context(), id)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, sled)
}
