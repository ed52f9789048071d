package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/oxidecomputer/console-sub002/internal/domain"
	"github.com/oxidecomputer/console-sub002/internal/storage"
	"github.com/oxidecomputer/console-sub002/internal/validation"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// maxPageLimit is the largest accepted limit query value.
const maxPageLimit = 10000

// validRef reports whether v is usable as a name-or-id reference.
func validRef(v string) bool {
	return storage.IsID(v) || validation.ValidateName(v) == nil
}

// pathRef returns the path parameter name. A value that can be neither a
// name nor an id cannot refer to anything, so it is answered with 404.
func (s *Server) pathRef(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := r.PathValue(name)
	if !validRef(v) {
		s.writeErr(r.Context(), w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("invalid path parameter %s: %q", name, v))
		return "", false
	}
	return v, true
}

// queryRefs reads optional name-or-id selectors from the query string.
// Malformed values are answered with 400.
func (s *Server) queryRefs(w http.ResponseWriter, r *http.Request, names ...string) (map[string]string, bool) {
	out := make(map[string]string, len(names))
	q := r.URL.Query()
	for _, n := range names {
		v := q.Get(n)
		if v != "" && !validRef(v) {
			s.writeErr(r.Context(), w, http.StatusBadRequest, CodeInvalidRequest, fmt.Sprintf("invalid query parameter %s: %q", n, v))
			return nil, false
		}
		out[n] = v
	}
	return out, true
}

// requireQuery is queryRefs for a selector that must be present.
func (s *Server) requireQuery(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	refs, ok := s.queryRefs(w, r, name)
	if !ok {
		return "", false
	}
	if refs[name] == "" {
		s.writeErr(r.Context(), w, http.StatusBadRequest, CodeInvalidRequest, fmt.Sprintf("missing query parameter %s", name))
		return "", false
	}
	return refs[name], true
}

func parsePageParams(r *http.Request) (domain.PageParams, error) {
	q := r.URL.Query()
	p := domain.PageParams{PageToken: q.Get("page_token")}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return p, fmt.Errorf("invalid limit %q: must be a non-negative integer", raw)
		}
		if n > maxPageLimit {
			return p, fmt.Errorf("invalid limit %d: must be at most %d", n, maxPageLimit)
		}
		p.Limit = n
	}
	return p, nil
}

// pageParams parses limit and page_token, answering 400 when they are bad.
func (s *Server) pageParams(w http.ResponseWriter, r *http.Request) (domain.PageParams, bool) {
	p, err := parsePageParams(r)
	if err != nil {
		s.writeErr(r.Context(), w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return p, false
	}
	return p, true
}

func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: must be an RFC 3339 timestamp", name, raw)
	}
	return &t, nil
}

// decodeBody reads a JSON body into dst, answering 400 on failure.
// Unknown fields are rejected.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "invalid request body: " + err.Error()
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		s.writeErr(r.Context(), w, http.StatusBadRequest, CodeInvalidRequest, msg)
		return false
	}
	return true
}

// checkNames validates body names and descriptions, answering 400 on the
// first failure. Empty optional names are skipped by passing nil.
func (s *Server) checkNames(w http.ResponseWriter, r *http.Request, names []string, descriptions ...string) bool {
	for _, n := range names {
		if err := validation.ValidateName(n); err != nil {
			s.writeErr(r.Context(), w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
			return false
		}
	}
	for _, d := range descriptions {
		if err := validation.ValidateDescription(d); err != nil {
			s.writeErr(r.Context(), w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
			return false
		}
	}
	return true
}

// optionalNames collects the set fields of an update body.
func optionalNames(names ...*string) []string {
	var out []string
	for _, n := range names {
		if n != nil {
			out = append(out, *n)
		}
	}
	return out
}

func optionalString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
