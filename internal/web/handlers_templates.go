package web

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/tabimport/internal/core"
)

// Template API. Mapping booleans are written as "true"/"false" strings.

type createTemplateRequest struct {
	Name      string             `json:"name" validate:"required,max=200"`
	TableName string             `json:"tableName" validate:"required"`
	Mappings  []core.WireMapping `json:"mappings" validate:"required,min=1,dive"`
}

type updateTemplateRequest struct {
	Name     string             `json:"name" validate:"required,max=200"`
	Mappings []core.WireMapping `json:"mappings" validate:"required,min=1,dive"`
}

// handleListTemplates returns the templates of the table named by ?table=.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	tableName := r.URL.Query().Get("table")
	if tableName == "" {
		s.respondError(w, r, fmt.Errorf("%w: missing table parameter", errBadRequest))
		return
	}

	templates, err := s.service.ListTemplates(r.Context(), tableName)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	out := make([]core.WireTemplate, len(templates))
	for i, t := range templates {
		out[i] = core.ToWireTemplate(t)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetTemplate returns a single template by ID.
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, core.ToWireTemplate(t))
}

// handleCreateTemplate saves a new template.
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	t, err := s.service.CreateTemplate(r.Context(), req.Name, req.TableName, core.FromWireMappings(req.Mappings))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, core.ToWireTemplate(t))
}

// handleUpdateTemplate renames a template and replaces its mappings.
func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var req updateTemplateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	t, err := s.service.UpdateTemplate(r.Context(), chi.URLParam(r, "id"), req.Name, core.FromWireMappings(req.Mappings))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, core.ToWireTemplate(t))
}

// handleDeleteTemplate deletes a template.
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// templateMatchResponse is a scored template in wire form.
type templateMatchResponse struct {
	Template   core.WireTemplate `json:"template"`
	MatchScore float64           `json:"matchScore"`
}

// handleMatchTemplates scores the table's templates against the session's
// headers, best first.
func (s *Server) handleMatchTemplates(w http.ResponseWriter, r *http.Request) {
	matches, err := s.service.MatchSessionTemplates(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	out := make([]templateMatchResponse, len(matches))
	for i, m := range matches {
		out[i] = templateMatchResponse{Template: core.ToWireTemplate(m.Template), MatchScore: m.MatchScore}
	}
	writeJSON(w, http.StatusOK, out)
}
