package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"immo/internal/log"
)

func TestMiddlewareRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(log.NewText(&buf, slog.LevelInfo, log.ComponentHTTP), nil)

	mux := http.NewServeMux()
	var seen string
	mux.HandleFunc("GET /api/statements/{id}", func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})
	h := m.Middleware(mux)

	r := httptest.NewRequest(http.MethodGet, "/api/statements/abc", nil)
	r.Header.Set(HeaderRequestID, "client-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if seen != "client-42" {
		t.Errorf("request id in context = %q, want client-42", seen)
	}
	if rec.Header().Get(HeaderRequestID) != "client-42" {
		t.Errorf("response header = %q", rec.Header().Get(HeaderRequestID))
	}
	out := buf.String()
	if !strings.Contains(out, "request_id=client-42") || !strings.Contains(out, "status_code=404") {
		t.Errorf("log line missing fields: %q", out)
	}
	if m.GetMetrics().TotalRequests != 1 {
		t.Errorf("TotalRequests = %d", m.GetMetrics().TotalRequests)
	}
}

func TestMiddlewareRejectsInvalidRequestID(t *testing.T) {
	m := NewMiddleware(log.NewText(&bytes.Buffer{}, slog.LevelInfo, log.ComponentHTTP), nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderRequestID, "bad id with spaces\n")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if got := rec.Header().Get(HeaderRequestID); !strings.HasPrefix(got, "req_") {
		t.Errorf("generated request id = %q", got)
	}
}
