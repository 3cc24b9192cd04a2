package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleHealth reports liveness and import capacity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"imports": s.service.Limiter().Status(),
	})
}

// handleListTables returns every target table.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ListTables())
}

// handleGetTable returns one target table with its columns.
func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	table, err := s.service.Table(chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

// handleImportQueueStatus returns the current state of the import limiter.
// Used for monitoring and to check if the system can accept more imports.
func (s *Server) handleImportQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Limiter().Status())
}
