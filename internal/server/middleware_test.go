package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/claude/ironlog/internal/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type staticValidator struct {
	token string
	user  uuid.UUID
}

func (v staticValidator) ValidateAccessToken(token string) (uuid.UUID, error) {
	if token != v.token {
		return uuid.Nil, errors.New("bad token")
	}
	return v.user, nil
}

// TestBearerAuth verifies token checking and the user ID handed to handlers.
func TestBearerAuth(t *testing.T) {
	user := uuid.New()
	tests := []struct {
		name     string
		header   string
		wantCode int
		wantUser uuid.UUID
	}{
		{"valid", "Bearer good", http.StatusOK, user},
		{"lowercase scheme", "bearer good", http.StatusOK, user},
		{"missing", "", http.StatusUnauthorized, uuid.Nil},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, uuid.Nil},
		{"bad token", "Bearer nope", http.StatusUnauthorized, uuid.Nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got uuid.UUID
			h := BearerAuth(staticValidator{"good", user})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = userIDFromContext(r)
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if got != tt.wantUser {
				t.Errorf("user = %s, want %s", got, tt.wantUser)
			}
		})
	}
}

// TestUserIDFromContextDefault verifies the zero user outside BearerAuth.
func TestUserIDFromContextDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := userIDFromContext(req); id != uuid.Nil {
		t.Errorf("userIDFromContext without context value = %s, want nil UUID", id)
	}
}

// TestCORSPreflight verifies that OPTIONS requests are answered directly.
func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if called {
		t.Error("preflight should not reach the handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
		t.Errorf("allow headers = %q", got)
	}
}

// TestRequestMetrics verifies requests are counted by method and status.
func TestRequestMetrics(t *testing.T) {
	m, _ := metrics.NewTestManagerAndRegistry()
	h := RequestMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	for range 3 {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	if got := testutil.ToFloat64(m.CounterRequests.WithLabelValues("GET", "418")); got != 3 {
		t.Errorf("requests{GET,418} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.GaugeRequests); got != 0 {
		t.Errorf("in-flight gauge = %v, want 0", got)
	}
}
