package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// Envelope is the standard JSON response structure.
type Envelope struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail contains error information returned to clients.
type ErrorDetail struct {
	Code    string              `json:"code,omitempty"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

// JSON writes v wrapped in the standard envelope with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Data: v})
}

// NoContent writes an empty 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes err as a JSON error envelope. HTTPError values keep their
// status and key; ValidationError maps to 422 with field details; anything
// else becomes an opaque 500 so dependency errors never leak to clients.
func Error(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	detail := &ErrorDetail{Code: "internal_error", Message: http.StatusText(http.StatusInternalServerError)}

	var valErr ValidationError
	var httpErr HTTPError
	switch {
	case errors.As(err, &valErr):
		status = http.StatusUnprocessableEntity
		detail.Code = "validation_error"
		detail.Message = "validation failed"
		if len(valErr) > 0 {
			detail.Details = map[string][]string(valErr)
		}
	case errors.As(err, &httpErr):
		status = httpErr.Code
		detail.Code = httpErr.Key
		detail.Message = http.StatusText(httpErr.Code)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Error: detail})
}

// maxBodySize caps JSON request bodies at 1 MiB.
const maxBodySize = 1 << 20

// Decode parses a JSON request body into v, rejecting unknown fields and
// oversized payloads.
func Decode(r *http.Request, v any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}
