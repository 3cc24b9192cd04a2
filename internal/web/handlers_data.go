package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// defaultRowLimit is the page size of GET /rows.
const defaultRowLimit = 100

// handleGetSession returns a session snapshot.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// rowsResponse is one page of session rows.
type rowsResponse struct {
	Rows   [][]any `json:"rows"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
	Total  int     `json:"total"`
}

// handleGetRows returns a page of the session's rows.
// Query: offset (default 0), limit (default 100, max 1000).
func (s *Server) handleGetRows(w http.ResponseWriter, r *http.Request) {
	offset := parseIntParam(r, "offset", 0)
	limit := parseIntParam(r, "limit", defaultRowLimit)
	if limit == 0 || limit > 1000 {
		limit = defaultRowLimit
	}

	rows, total, err := s.service.Rows(chi.URLParam(r, "id"), offset, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsResponse{
		Rows:   rows,
		Offset: min(offset, total),
		Limit:  limit,
		Total:  total,
	})
}
