package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"smartledger/internal/log"
)

func TestMiddleware_RequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		wantSame bool
	}{
		{"generated when absent", "", false},
		{"proxy id kept", "abc-123", true},
		{"id with spaces replaced", "bad id", false},
		{"overlong id replaced", strings.Repeat("x", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			mw := NewMiddleware(func(*http.Request) string { return "10.0.0.1" }, nil)
			h := mw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
				if log.FromContext(r.Context()).Component() != log.ComponentHTTP {
					t.Errorf("request logger missing from context")
				}
				w.WriteHeader(http.StatusTeapot)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != http.StatusTeapot {
				t.Errorf("status = %d", rr.Code)
			}
			if seen == "" || rr.Header().Get(RequestIDHeader) != seen {
				t.Errorf("response id %q, context id %q", rr.Header().Get(RequestIDHeader), seen)
			}
			if (seen == tt.incoming) != tt.wantSame {
				t.Errorf("request id = %q, incoming %q", seen, tt.incoming)
			}
			if !tt.wantSame && !strings.HasPrefix(seen, "req_") {
				t.Errorf("generated id %q lacks prefix", seen)
			}
		})
	}
}

func TestMiddleware_Metrics(t *testing.T) {
	mw := NewMiddleware(nil, nil)
	h := mw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < 3; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	}
	if got := mw.GetMetrics().TotalRequests; got != 3 {
		t.Errorf("TotalRequests = %d, want 3", got)
	}
}

func TestResponseWriter_Unwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	if err := http.NewResponseController(rw).Flush(); err != nil {
		t.Errorf("Flush through wrapper: %v", err)
	}
	if !rec.Flushed {
		t.Error("underlying recorder was not flushed")
	}
}
