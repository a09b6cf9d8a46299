package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"immo/internal/core"
	"immo/internal/log"
	"immo/internal/store"
	"immo/internal/workflow"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// badRequest marks client errors that never reached the services.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case core.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrInvalidTransition), errors.Is(err, store.ErrInUse):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrNoActiveTenants),
		errors.Is(err, workflow.ErrNoStatements),
		errors.Is(err, workflow.ErrNoYear),
		errors.Is(err, workflow.ErrNoProperty):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeError responds with the mapped status. Internal errors are logged
// and their message is not exposed.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	if status == http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(),
			"Request failed", err, log.ComponentHTTP, op, log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()))
		body = errorBody{Error: "internal error"}
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a single JSON document into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest{fmt.Errorf("invalid request body: %w", err)}
	}
	if dec.More() {
		return badRequest{errors.New("invalid request body: trailing data")}
	}
	return nil
}

// queryYear reads the year query parameter, falling back to def.
func queryYear(r *http.Request, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("year"))
	if v == "" {
		return def, nil
	}
	y, err := strconv.Atoi(v)
	if err != nil || y < 1900 || y > 9999 {
		return 0, badRequest{fmt.Errorf("invalid year %q", v)}
	}
	return y, nil
}

// parseOptionalDate parses an optional YYYY-MM-DD value.
func parseOptionalDate(name, v string) (core.Date, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, badRequest{fmt.Errorf("invalid %s %q: %w", name, v, err)}
	}
	return d, nil
}

func currentYear() int { return time.Now().Year() }

// sanitizeInput removes control characters except tab and newlines, and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
