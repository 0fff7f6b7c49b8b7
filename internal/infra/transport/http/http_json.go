package http

import (
	"errors"
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/mkrupp/homecase-lending/internal/domain"
)

// maxBodyBytes caps the size of JSON request bodies.
const maxBodyBytes = 1 << 20

//nolint:gochecknoglobals
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ReadJSON decodes the request body into v. Malformed or oversized bodies are
// reported as domain.ErrInvalidInput.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", errors.Join(domain.ErrInvalidInput, err))
	}

	return nil
}

// WriteJSON encodes v as the response body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	return nil
}
