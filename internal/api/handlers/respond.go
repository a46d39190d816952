package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
)

// ErrorResponse is the body of every rejected request. Form echoes the
// submitted non-secret fields so a client can re-display the form.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
	Form   map[string]string `json:"form,omitempty"`
}

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, resp ErrorResponse) {
	writeJSON(w, status, resp)
}

// decodeBody fills dst from a JSON body or, for HTML form posts, from the
// url-encoded form using the same field names.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{ fromForm(get func(string) string) }) error {
	if r.Body == nil {
		return errors.New("empty request body")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("invalid form body: %w", err)
		}
		dst.fromForm(r.PostForm.Get)
		return nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return fmt.Errorf("invalid form body: %w", err)
		}
		dst.fromForm(r.PostForm.Get)
		return nil
	default:
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return fmt.Errorf("invalid JSON body: %w", err)
		}
		return nil
	}
}
