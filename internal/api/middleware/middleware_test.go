package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dvloznov/budget-bot/internal/logger"
)

func TestRequestID(t *testing.T) {
	var gotID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = RequestIDFromContext(r.Context())
	}))

	t.Run("generates an ID", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if gotID == "" {
			t.Fatal("no request ID in context")
		}
		if rec.Header().Get("X-Request-ID") != gotID {
			t.Errorf("response header %q, context %q", rec.Header().Get("X-Request-ID"), gotID)
		}
	})

	t.Run("honors the caller's ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "req-42")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if gotID != "req-42" {
			t.Errorf("request ID = %q, want req-42", gotID)
		}
	})
}

func TestLoggerStoresRequestScopedLogger(t *testing.T) {
	var buf bytes.Buffer
	base := logger.NewWithWriter(&buf)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		log.Info().Msg("handled")
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()

	RequestID(Logger(base)(handler)).ServeHTTP(rec, req)

	out := buf.String()
	if !strings.Contains(out, "handled") {
		t.Fatalf("handler line missing from log output: %q", out)
	}
	// Both the handler's line and the request summary carry the ID.
	if n := strings.Count(out, "req-42"); n < 2 {
		t.Errorf("request ID occurrences = %d, want at least 2: %q", n, out)
	}
	if !strings.Contains(out, `"status":204`) {
		t.Errorf("summary line missing the captured status: %q", out)
	}
}
