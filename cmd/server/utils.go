package main

import (
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/lychee-technology/prism"
)

// APIResponse is the standard error envelope. Successful responses carry the
// engine's result types directly.
type APIResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// writeJSON writes JSON response to http.ResponseWriter
func writeJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, message string) error {
	return writeJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   message,
	})
}

// writeSuccess writes a success response
func writeSuccess(w http.ResponseWriter, statusCode int, data any) error {
	return writeJSON(w, statusCode, data)
}

// readJSONBody reads and decodes JSON from request body
func readJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// statusForError maps engine errors onto HTTP status codes. Planner
// validation failures are the caller's fault; driver failures are ours.
func statusForError(err error) int {
	switch {
	case prism.IsValidationError(err):
		return http.StatusBadRequest
	case prism.IsTimeout(err):
		return http.StatusGatewayTimeout
	case prism.IsCancelled(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// splitCommaList splits a comma-separated query parameter, dropping empties.
func splitCommaList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
