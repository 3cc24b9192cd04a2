package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/tabimport/internal/core"
)

// handleDeleteSession drops a session, cancelling its import if one runs.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteSession(chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAutoMap replaces the session's mappings with the automatic proposal.
func (s *Server) handleAutoMap(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.AutoMap(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type setMappingsRequest struct {
	Mappings []core.WireMapping `json:"mappings" validate:"required,dive"`
}

// handleSetMappings replaces the session's mappings. Booleans may be JSON
// booleans or "true"/"false" strings.
func (s *Server) handleSetMappings(w http.ResponseWriter, r *http.Request) {
	var req setMappingsRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	view, err := s.service.SetMappings(chi.URLParam(r, "id"), core.FromWireMappings(req.Mappings))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleApplyTemplate maps the session's headers with a saved template.
func (s *Server) handleApplyTemplate(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.ApplyTemplate(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "templateID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type updateRowsRequest struct {
	Rows [][]any `json:"rows" validate:"required"`
}

// handleUpdateRows replaces every row of the session.
func (s *Server) handleUpdateRows(w http.ResponseWriter, r *http.Request) {
	var req updateRowsRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	view, err := s.service.UpdateRows(chi.URLParam(r, "id"), jsonCells(req.Rows))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type updateCellRequest struct {
	Row    *int `json:"row" validate:"required,min=0"`
	Column *int `json:"column" validate:"required,min=0"`
	Value  any  `json:"value"`
}

// handleUpdateCell edits one cell. row and column are 0-based.
func (s *Server) handleUpdateCell(w http.ResponseWriter, r *http.Request) {
	var req updateCellRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	view, err := s.service.UpdateCell(chi.URLParam(r, "id"), *req.Row, *req.Column, jsonCell(req.Value))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleValidate validates every row and moves the session to previewed.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	preview, err := s.service.ValidateSession(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}
