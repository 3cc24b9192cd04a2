package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with action suggestions
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. The status code is derived from the error's sentinel via statusFor
//  4. Error is mapped via core.MapError to get user-friendly message
//  5. Technical error + context is logged with request ID for correlation

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/tabimport/internal/core"
	"github.com/JonMunkholm/tabimport/internal/fileparse"
	"github.com/JonMunkholm/tabimport/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var (
	// errBadRequest marks malformed request input.
	errBadRequest = errors.New("bad request")
	// errConflict marks requests the resource's state does not allow.
	errConflict = errors.New("conflict")
)

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, core.ErrInvalidMapping),
		errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, fileparse.ErrEmptyFile):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrUnknownTable),
		errors.Is(err, core.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, errConflict),
		errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrTemplateExists):
		return http.StatusConflict
	case errors.Is(err, fileparse.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, fileparse.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrImportBlocked):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError handles error responses with user-friendly messages.
// It logs the technical error server-side and returns a JSON body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := statusFor(err)
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	// Technical detail of server faults stays in the log.
	detail := err.Error()
	if statusCode >= http.StatusInternalServerError && statusCode != http.StatusServiceUnavailable {
		detail = userMsg.Message
	}

	if statusCode == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	writeJSON(w, statusCode, ErrorResponse{
		Error:   detail,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}
