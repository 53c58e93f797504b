package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vaughan-dsouza/usersapi/internal/apperrors"
	"github.com/vaughan-dsouza/usersapi/internal/logging"
)

const maxBodyBytes = 1 << 20

// Envelope is the shape of every JSON response body.
type Envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Count   *int              `json:"count,omitempty"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`
}

// JSON writes a JSON response with status code.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// OK writes a successful envelope.
func OK(w http.ResponseWriter, status int, msg string, data any) {
	JSON(w, status, Envelope{Success: true, Message: msg, Data: data})
}

// OKList writes a successful envelope carrying a collection, its size and
// the filters that produced it.
func OKList[T any](w http.ResponseWriter, msg string, items []T, filters map[string]string) {
	n := len(items)
	JSON(w, http.StatusOK, Envelope{Success: true, Message: msg, Count: &n, Data: items, Filters: filters})
}

// JSONError writes {"success": false, "message": "..."} with a given status.
func JSONError(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, Envelope{Success: false, Message: msg})
}

// WriteError maps err onto the error taxonomy. Internal causes are logged
// and replaced by a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	ae := apperrors.From(err)
	status := ae.Status()

	if status >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "kind", ae.Kind.String(), "error", ae.Err)
	} else if ae.Err != nil {
		log.Debug(r.Context(), "request rejected", "method", r.Method, "path", r.URL.Path, "kind", ae.Kind.String(), "error", ae.Err)
	}

	JSON(w, status, Envelope{Success: false, Message: ae.Message, Errors: ae.Fields})
}

// DecodeJSON parses the JSON body into v and handles invalid JSON.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		JSONError(w, http.StatusBadRequest, "empty request body")
		return http.ErrBodyNotAllowed
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			JSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return err
		}
		JSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return err
	}

	return nil
}
