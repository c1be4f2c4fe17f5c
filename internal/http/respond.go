package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"tally/internal/core"
)

// envelope is the uniform JSON response shape used across all routes.
type envelope map[string]any

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// respondError writes a {success:false, message} failure envelope.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, envelope{"success": false, "message": message})
}

// respondAuthError writes the bare {message} shape used by the auth
// boundary, which never reveals which part of the check failed.
func respondAuthError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, envelope{"message": message})
}

// respondValidation writes the field-level error list as a 400.
func respondValidation(w http.ResponseWriter, errs core.ValidationErrors) {
	respondJSON(w, http.StatusBadRequest, envelope{"success": false, "errors": errs})
}
