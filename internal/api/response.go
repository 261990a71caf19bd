package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondWithJSON writes a JSON response with the given status code.
func respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondWithError writes a JSON error body with a sanitized message.
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, ErrorResponse{Error: message})
}

// respondWithMappedError maps an internal error to a status code and safe
// message, logs the full error, and writes the response.
func respondWithMappedError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)

	if status >= http.StatusInternalServerError {
		log.Error("request failed", "error", err, "path", r.URL.Path, "method", r.Method)
	} else {
		log.Debug("request rejected", "error", err, "path", r.URL.Path, "method", r.Method)
	}
	respondWithError(w, status, message)
}
