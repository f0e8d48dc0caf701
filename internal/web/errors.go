package web

// errors.go provides unified error response handling for the web layer.
//
// Every failure is logged with its technical detail and request id, then
// returned to the client as the user-facing message from core.MapError.
// API routes answer in JSON; the preview page answers with plain text in
// core.FormatUserError form.

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/tracesynth/internal/core"
	"github.com/JonMunkholm/tracesynth/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// errBadRequest marks malformed requests.
var errBadRequest = errors.New("bad request")

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest), errors.Is(err, ErrPathOutsideRoot):
		return http.StatusBadRequest
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, core.ErrParse), errors.Is(err, core.ErrInvalidTable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManySaves), errors.Is(err, ErrNoDatabase):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrSaveExhausted):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	// Unmapped errors and server faults are errors; mapped client
	// mistakes are warnings.
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError || !core.IsUserFacing(err) {
		level = slog.LevelError
	}
	logging.WithRequestID(r.Context(), s.logger).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}

	if wantsJSON(r) {
		respondErrorJSON(w, userMsg, status)
	} else {
		http.Error(w, core.FormatUserError(err), status)
	}
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}
