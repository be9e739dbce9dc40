package api

import (
	"errors"
	"net/http"
)

// Sentinel errors for API-layer conditions.
var (
	ErrBadRequest  = errors.New("BAD_REQUEST")
	ErrNotFound    = errors.New("NOT_FOUND")
	ErrUnavailable = errors.New("UNAVAILABLE")
)

// WriteFromError maps an error to the envelope and HTTP status.
func WriteFromError(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		WriteSuccess(w, nil)
	case errors.Is(err, ErrBadRequest):
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed or missing required parameter", nil)
	case errors.Is(err, ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, ErrUnavailable):
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "No usable position for this vehicle", nil)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error",
			map[string]any{"original": err.Error()})
	}
}
