// Package httputil provides JSON response helpers for the NoteStash HTTP API.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierr "github.com/notestash/notestash/internal/errors"
)

// WriteJSON serializes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// errorBody is the JSON body returned for every error response.
// The original API surfaced errors under an "error" field; the code is
// added so clients can match without parsing messages.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteError writes err as a structured JSON error response. Unrecognized
// errors are mapped to the generic Internal error so backend detail never
// leaks to clients; the original error is logged server-side.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apierr.APIError
	if !errors.As(err, &ae) {
		slog.Error("Unexpected error", "method", r.Method, "path", r.URL.Path, "error", err)
		ae = apierr.ErrInternal
	}
	WriteJSON(w, ae.HTTPStatus, errorBody{Error: ae.Message, Code: ae.Code})
}

// WriteMessage writes a `{"msg": ...}` body, the shape used by mutating
// endpoints that have nothing else to return.
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"msg": msg})
}
