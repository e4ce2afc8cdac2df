// Package handlers implements the HTTP handlers for the NoteStash API.
package handlers

import (
	"encoding/json"
	"net/http"

	apierr "github.com/notestash/notestash/internal/errors"
)

// decodeJSON decodes a request body into v, mapping any decoding failure to
// the InvalidInput API error.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return apierr.ErrInvalidInput.WithMessage("Malformed JSON body")
	}
	return nil
}
