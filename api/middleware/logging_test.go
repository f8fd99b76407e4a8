package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ticketblitz/ticketblitz-backend/pkg/logger"
)

func TestLoggingPassesResponseThrough(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "middleware-test"})
	handler := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}
	if rr.Body.String() != "short and stout" {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestLoggingPreservesFlusher(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "middleware-test"})
	flushable := false
	handler := Logging(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
	}))

	// httptest.ResponseRecorder implements http.Flusher, so the wrapped
	// writer must keep exposing it for the stock stream
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stream", nil))

	if !flushable {
		t.Fatal("expected http.Flusher to survive the logging wrapper")
	}
}
