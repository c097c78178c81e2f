package web

// errors.go centralizes error responses. Full detail is logged
// server-side with the request ID; clients get a sanitized message in a
// JSON envelope.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wareloop/skulink/internal/core"
	"github.com/wareloop/skulink/internal/logging"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError maps a service error to a status code and writes it.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, core.ErrInvalidInput):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, core.ErrTooManyIngests):
		status = http.StatusTooManyRequests
		message = err.Error()
		w.Header().Set("Retry-After", "30")
	}

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
	)

	writeErrorJSON(w, status, message)
}

// writeError writes a literal error message without a wrapped error.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	logging.FromContext(r.Context()).Warn("request rejected",
		"path", r.URL.Path,
		"status", status,
		"reason", message,
	)
	writeErrorJSON(w, status, message)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; nothing left but to log it.
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
