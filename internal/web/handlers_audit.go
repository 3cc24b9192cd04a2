package web

import (
	"net/http"
)

// handleAuditLog returns the newest audit entries.
// Query: limit (default 50).
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 50)

	entries, err := s.service.AuditLog(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
