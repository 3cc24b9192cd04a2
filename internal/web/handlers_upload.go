package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/tabimport/internal/core"
	"github.com/JonMunkholm/tabimport/internal/fileparse"
	"github.com/JonMunkholm/tabimport/internal/logging"
)

// multipartOverhead leaves room for form fields and part headers on top of
// the file itself.
const multipartOverhead = 1 << 20

// handleCreateSession parses an uploaded file and opens an import session.
// Form fields: "file" (the spreadsheet) and "table" (target table name).
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.respondError(w, r, fmt.Errorf("%w: request exceeds %d bytes", fileparse.ErrFileTooLarge, tooBig.Limit))
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: invalid multipart form: %v", errBadRequest, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	tableName := r.FormValue("table")
	if tableName == "" {
		s.respondError(w, r, fmt.Errorf("%w: table is required", errBadRequest))
		return
	}
	if _, err := s.service.Table(tableName); err != nil {
		s.respondError(w, r, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: no file provided", errBadRequest))
		return
	}
	defer file.Close()

	if err := fileparse.Check(header.Filename, header.Size); err != nil {
		s.respondError(w, r, err)
		return
	}

	data, err := fileparse.Parse(file, header.Filename, header.Size)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := withRequester(r)
	view, err := s.service.CreateSession(ctx, tableName, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(ctx).Info("upload parsed",
		"session", view.ID,
		"table", tableName,
		"file", header.Filename,
		"rows", view.RowCount,
	)
	writeJSON(w, http.StatusCreated, view)
}

// handleStartImport starts submitting a previewed session's rows.
// Returns 202; the result is polled from /result.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	ctx := withRequester(r)
	view, err := s.service.StartImport(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, view)
}

// handleCancelImport cancels a running import.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.service.CancelImport(id); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling", "session": id})
}

// importResultResponse is the body of GET /result.
type importResultResponse struct {
	Phase  core.Phase         `json:"phase"`
	Done   bool               `json:"done"`
	Result *core.ImportResult `json:"result,omitempty"`
}

// handleImportResult returns the import result, or the phase while the
// import is still running.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	result, phase, err := s.service.Result(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, importResultResponse{
		Phase:  phase,
		Done:   result != nil,
		Result: result,
	})
}

// handleErrorReport streams the CSV error report of a finished import.
func (s *Server) handleErrorReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Check first so errors still get a JSON body.
	if result, _, err := s.service.Result(id); err != nil {
		s.respondError(w, r, err)
		return
	} else if result == nil {
		s.respondError(w, r, fmt.Errorf("%w: import has not finished", errConflict))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="import-errors-%s.csv"`, id))
	if err := s.service.WriteReport(id, w); err != nil {
		logging.FromContext(r.Context()).Error("write error report", "session", id, "error", err)
	}
}
