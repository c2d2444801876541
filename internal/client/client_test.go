package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/claude/ironlog/internal/auth"
	"github.com/claude/ironlog/internal/ingest"
	"github.com/claude/ironlog/internal/mcp"
	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

// newTestServer creates an httptest server that routes requests to handler
// functions keyed by "METHOD path" and checks the bearer token.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		h, ok := handlers[key]
		if !ok {
			t.Errorf("unexpected request: %s", key)
			http.NotFound(w, r)
			return
		}
		if r.URL.Path != "/api/v1/auth/login" && r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("%s: Authorization = %q", key, r.Header.Get("Authorization"))
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestActiveSession verifies decoding and the 404 to nil mapping.
func TestActiveSession(t *testing.T) {
	id := uuid.New()
	open := true
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/sessions/active": func(w http.ResponseWriter, r *http.Request) {
			if !open {
				http.Error(w, `{"error":"active session not found"}`, http.StatusNotFound)
				return
			}
			writeTestJSON(t, w, models.SessionDetail{Session: models.Session{ID: id, Name: "Legs"}})
		},
	})
	defer ts.Close()

	c := New(ts.URL+"/", "tok")
	d, err := c.ActiveSession(context.Background(), uuid.Nil)
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || d.ID != id {
		t.Fatalf("active = %+v, want %s", d, id)
	}

	open = false
	d, err = c.ActiveSession(context.Background(), uuid.Nil)
	if err != nil || d != nil {
		t.Errorf("closed active = %+v, %v; want nil, nil", d, err)
	}
}

// TestSessionsLimit verifies the limit query parameter.
func TestSessionsLimit(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/sessions": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("limit"); got != "5" {
				t.Errorf("limit=%q, want 5", got)
			}
			writeTestJSON(t, w, []models.Session{{Name: "A"}, {Name: "B"}})
		},
	})
	defer ts.Close()

	list, err := New(ts.URL, "tok").Sessions(context.Background(), uuid.Nil, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("got %d sessions, want 2", len(list))
	}
}

// TestExercisesCategory verifies the category filter is forwarded.
func TestExercisesCategory(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/exercises": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("category"); got != "back" {
				t.Errorf("category=%q, want back", got)
			}
			writeTestJSON(t, w, []models.Exercise{{Name: "Deadlift", Category: models.CategoryBack}})
		},
	})
	defer ts.Close()

	back := models.CategoryBack
	list, err := New(ts.URL, "tok").Exercises(context.Background(), uuid.Nil, &back)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "Deadlift" {
		t.Errorf("exercises = %+v", list)
	}
}

// TestBodyWeight verifies the summary payload is decoded.
func TestBodyWeight(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/bodyweight": func(w http.ResponseWriter, r *http.Request) {
			e := models.BodyWeightEntry{WeightLbs: 180}
			writeTestJSON(t, w, mcp.BodyWeightSummary{Entries: []models.BodyWeightEntry{e}, Latest: &e, ChangeLbs: -1.5})
		},
	})
	defer ts.Close()

	sum, err := New(ts.URL, "tok").BodyWeight(context.Background(), uuid.Nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Latest == nil || sum.Latest.WeightLbs != 180 || sum.ChangeLbs != -1.5 {
		t.Errorf("summary = %+v", sum)
	}
}

// TestIngestUploadsExport verifies the CSV body and the decoded result.
func TestIngestUploadsExport(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/import/alpha": func(w http.ResponseWriter, r *http.Request) {
			if ct := r.Header.Get("Content-Type"); ct != "text/csv" {
				t.Errorf("Content-Type = %q", ct)
			}
			b, _ := io.ReadAll(r.Body)
			if string(b) != "csv-body" {
				t.Errorf("body = %q", b)
			}
			writeTestJSON(t, w, ingest.Result{SessionsReceived: 2, SessionsImported: 2})
		},
	})
	defer ts.Close()

	res, err := New(ts.URL, "tok").Ingest(context.Background(), uuid.Nil, strings.NewReader("csv-body"))
	if err != nil {
		t.Fatal(err)
	}
	if res.SessionsImported != 2 {
		t.Errorf("result = %+v", res)
	}
}

// TestLogin verifies that the access token is kept for later calls.
func TestLogin(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/auth/login": func(w http.ResponseWriter, r *http.Request) {
			var req auth.LoginRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatal(err)
			}
			if req.Email != "a@example.com" || req.Password != "pw" {
				t.Errorf("login request = %+v", req)
			}
			writeTestJSON(t, w, map[string]any{"tokens": auth.Tokens{AccessToken: "tok"}})
		},
		"GET /api/v1/records": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, []models.PersonalRecord{})
		},
	})
	defer ts.Close()

	c := New(ts.URL, "")
	if err := c.Login(context.Background(), "a@example.com", "pw"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Records(context.Background(), uuid.Nil); err != nil {
		t.Fatal(err)
	}
}

// TestServerError verifies that non-2xx responses carry the status.
func TestServerError(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/records": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
	})
	defer ts.Close()

	_, err := New(ts.URL, "tok").Records(context.Background(), uuid.Nil)
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("err = %v, want status 500", err)
	}
}
