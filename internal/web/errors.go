package web

// errors.go provides unified error response handling for the web layer.
//
// Every handler error goes through respondError: the technical error is
// logged with the request ID for correlation, and the client receives
// the mapped user-facing message with an action suggestion and a stable
// machine-readable code.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/orderdesk/orderdesk/internal/importer"
	"github.com/orderdesk/orderdesk/internal/logging"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs the technical error and writes the user-facing response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := importer.MapError(err)

	logger := logging.FromContext(r.Context())
	logger.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// statusForError picks the HTTP status for a pipeline error.
func statusForError(err error) int {
	var extErr *importer.ExternalServiceError
	switch {
	case errors.As(err, &extErr):
		return http.StatusBadGateway
	case errors.Is(err, importer.ErrTooManyUploads):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}
