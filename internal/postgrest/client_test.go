package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/claude/ironlog/internal/bodyweight"
	"github.com/claude/ironlog/internal/exercises"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/records"
	"github.com/claude/ironlog/internal/sessions"
	"github.com/claude/ironlog/internal/storage"
	"github.com/google/uuid"
)

var (
	_ sessions.Store   = (*Client)(nil)
	_ records.Store    = (*Client)(nil)
	_ exercises.Store  = (*Client)(nil)
	_ bodyweight.Store = (*Client)(nil)
)

const testKey = "service-key"

// newTestServer routes requests to handlers keyed by "METHOD /rest/v1/table"
// and checks the auth headers on every call.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("apikey"); got != testKey {
			t.Errorf("apikey = %q, want %q", got, testKey)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer "+testKey {
			t.Errorf("Authorization = %q", got)
		}
		h, ok := handlers[r.Method+" "+r.URL.Path]
		if !ok {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

func noRows(t *testing.T, w http.ResponseWriter) {
	writeTestJSON(t, w, http.StatusNotAcceptable, map[string]string{
		"code":    "PGRST116",
		"message": "JSON object requested, multiple (or no) rows returned",
	})
}

// TestGetActiveSession verifies the filter, ordering and limit parameters.
func TestGetActiveSession(t *testing.T) {
	userID := uuid.New()
	want := models.Session{ID: uuid.New(), UserID: userID, Name: "Push", StartTime: time.Now().UTC()}

	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /rest/v1/workout_sessions": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if got := q.Get("user_id"); got != "eq."+userID.String() {
				t.Errorf("user_id=%q", got)
			}
			if got := q.Get("end_time"); got != "is.null" {
				t.Errorf("end_time=%q, want is.null", got)
			}
			if got := q.Get("order"); got != "start_time.desc" {
				t.Errorf("order=%q, want start_time.desc", got)
			}
			if got := q.Get("limit"); got != "1" {
				t.Errorf("limit=%q, want 1", got)
			}
			writeTestJSON(t, w, http.StatusOK, []models.Session{want})
		},
	})
	defer ts.Close()

	got, err := New(ts.URL, testKey).GetActiveSession(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != want.ID || !got.InProgress() {
		t.Errorf("got %+v, want open session %s", got, want.ID)
	}
}

// TestGetActiveSessionNone verifies that an empty result is ErrNotFound.
func TestGetActiveSessionNone(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /rest/v1/workout_sessions": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, http.StatusOK, []models.Session{})
		},
	})
	defer ts.Close()

	_, err := New(ts.URL, testKey).GetActiveSession(context.Background(), uuid.New())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// TestGetSessionNotFound verifies single-object coercion and the PGRST116 mapping.
func TestGetSessionNotFound(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /rest/v1/workout_sessions": func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Accept"); got != mediaObject {
				t.Errorf("Accept = %q, want %q", got, mediaObject)
			}
			noRows(t, w)
		},
	})
	defer ts.Close()

	_, err := New(ts.URL, testKey).GetSession(context.Background(), uuid.New())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotAcceptable {
		t.Errorf("err = %v, want APIError with status 406", err)
	}
}

// TestCreateSessionConflict verifies that a unique violation is ErrConflict.
func TestCreateSessionConflict(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"POST /rest/v1/workout_sessions": func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Prefer"); got != "return=representation" {
				t.Errorf("Prefer = %q", got)
			}
			writeTestJSON(t, w, http.StatusConflict, map[string]string{
				"code":    "23505",
				"message": `duplicate key value violates unique constraint "idx_workout_sessions_one_open"`,
			})
		},
	})
	defer ts.Close()

	s := &models.Session{ID: uuid.New(), UserID: uuid.New(), Name: "Pull", StartTime: time.Now()}
	err := New(ts.URL, testKey).CreateSession(context.Background(), s)
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func finishHandlers(t *testing.T, session models.Session, seID uuid.UUID, patched *map[string]any, result []models.Session) map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"GET /rest/v1/workout_sessions": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, http.StatusOK, session)
		},
		"GET /rest/v1/session_exercises": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("select"); got != "*,exercises(name,category)" {
				t.Errorf("select=%q", got)
			}
			writeTestJSON(t, w, http.StatusOK, []map[string]any{{
				"id":          seID,
				"session_id":  session.ID,
				"exercise_id": uuid.New(),
				"order_index": 0,
				"exercises":   map[string]any{"name": "Squat", "category": "legs"},
			}})
		},
		"GET /rest/v1/exercise_sets": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("session_exercise_id"); got != "in.("+seID.String()+")" {
				t.Errorf("session_exercise_id=%q", got)
			}
			writeTestJSON(t, w, http.StatusOK, []models.ExerciseSet{
				{ID: uuid.New(), SessionExerciseID: seID, SetNumber: 1, WeightLbs: 135, Reps: 8, Completed: true},
			})
		},
		"PATCH /rest/v1/workout_sessions": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("end_time"); got != "is.null" {
				t.Errorf("end_time=%q, want is.null", got)
			}
			if err := json.NewDecoder(r.Body).Decode(patched); err != nil {
				t.Fatal(err)
			}
			writeTestJSON(t, w, http.StatusOK, result)
		},
	}
}

func volumeFinisher(s models.Session, sets []models.ExerciseSet) (models.Completion, error) {
	var volume float64
	for _, set := range sets {
		volume += set.WeightLbs * float64(set.Reps)
	}
	return models.Completion{EndTime: s.StartTime.Add(time.Hour), DurationMinutes: 60, TotalVolumeLbs: volume}, nil
}

// TestFinishSession verifies the read, compute, conditional-patch sequence.
func TestFinishSession(t *testing.T) {
	start := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	session := models.Session{ID: uuid.New(), UserID: uuid.New(), Name: "Legs", StartTime: start}
	end := start.Add(time.Hour)
	done := session
	done.EndTime = &end

	var patched map[string]any
	ts := newTestServer(t, finishHandlers(t, session, uuid.New(), &patched, []models.Session{done}))
	defer ts.Close()

	got, err := New(ts.URL, testKey).FinishSession(context.Background(), session.ID, volumeFinisher)
	if err != nil {
		t.Fatal(err)
	}
	if got.InProgress() {
		t.Error("returned session is still in progress")
	}
	if patched["total_volume_lbs"] != 1080.0 {
		t.Errorf("total_volume_lbs = %v, want 1080", patched["total_volume_lbs"])
	}
	if _, ok := patched["notes"]; ok {
		t.Error("notes sent although the completion left them unset")
	}
}

// TestFinishSessionLostRace verifies that a patch matching no open row is ErrConflict.
func TestFinishSessionLostRace(t *testing.T) {
	session := models.Session{ID: uuid.New(), UserID: uuid.New(), Name: "Legs", StartTime: time.Now()}
	var patched map[string]any
	ts := newTestServer(t, finishHandlers(t, session, uuid.New(), &patched, []models.Session{}))
	defer ts.Close()

	_, err := New(ts.URL, testKey).FinishSession(context.Background(), session.ID, volumeFinisher)
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

// TestUpsertRecordReplace verifies the dominance filter on the patch and the
// history append.
func TestUpsertRecordReplace(t *testing.T) {
	userID, exerciseID := uuid.New(), uuid.New()
	existing := models.PersonalRecord{ID: uuid.New(), UserID: userID, ExerciseID: exerciseID, WeightLbs: 200, Reps: 3}
	logged := false

	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /rest/v1/personal_records": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, http.StatusOK, existing)
		},
		"PATCH /rest/v1/personal_records": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if got := q.Get("id"); got != "eq."+existing.ID.String() {
				t.Errorf("id=%q", got)
			}
			if got, want := q.Get("or"), "(weight_lbs.lt.200,and(weight_lbs.eq.200,reps.lt.6))"; got != want {
				t.Errorf("or=%q, want %q", got, want)
			}
			updated := existing
			updated.Reps = 6
			writeTestJSON(t, w, http.StatusOK, []models.PersonalRecord{updated})
		},
		"POST /rest/v1/personal_record_log": func(w http.ResponseWriter, r *http.Request) {
			logged = true
			w.WriteHeader(http.StatusCreated)
		},
	})
	defer ts.Close()

	r := &models.PersonalRecord{ID: uuid.New(), UserID: userID, ExerciseID: exerciseID, WeightLbs: 200, Reps: 6, AchievedAt: time.Now()}
	if err := New(ts.URL, testKey).UpsertRecord(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if r.ID != existing.ID {
		t.Errorf("record id = %s, want the existing %s", r.ID, existing.ID)
	}
	if !logged {
		t.Error("history row not written")
	}
}

// TestUpsertRecordFirst verifies the insert path used when no record exists.
func TestUpsertRecordFirst(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /rest/v1/personal_records": func(w http.ResponseWriter, r *http.Request) {
			noRows(t, w)
		},
		"POST /rest/v1/personal_records": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("on_conflict"); got != "user_id,exercise_id" {
				t.Errorf("on_conflict=%q", got)
			}
			if got := r.Header.Get("Prefer"); !strings.Contains(got, "resolution=ignore-duplicates") {
				t.Errorf("Prefer = %q", got)
			}
			var body models.PersonalRecord
			_ = json.NewDecoder(r.Body).Decode(&body)
			writeTestJSON(t, w, http.StatusCreated, []models.PersonalRecord{body})
		},
		"POST /rest/v1/personal_record_log": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		},
	})
	defer ts.Close()

	r := &models.PersonalRecord{ID: uuid.New(), UserID: uuid.New(), ExerciseID: uuid.New(), WeightLbs: 95, Reps: 5}
	if err := New(ts.URL, testKey).UpsertRecord(context.Background(), r); err != nil {
		t.Fatal(err)
	}
}

// TestUpsertRecordLost verifies that a patch matching nothing is ErrConflict
// and nothing is logged.
func TestUpsertRecordLost(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /rest/v1/personal_records": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, http.StatusOK, models.PersonalRecord{ID: uuid.New(), WeightLbs: 300, Reps: 1})
		},
		"PATCH /rest/v1/personal_records": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, http.StatusOK, []models.PersonalRecord{})
		},
	})
	defer ts.Close()

	r := &models.PersonalRecord{ID: uuid.New(), UserID: uuid.New(), ExerciseID: uuid.New(), WeightLbs: 200, Reps: 3}
	if err := New(ts.URL, testKey).UpsertRecord(context.Background(), r); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

// TestFindExerciseByName verifies that wildcard hits are filtered to an exact
// case-insensitive match.
func TestFindExerciseByName(t *testing.T) {
	userID := uuid.New()
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /rest/v1/exercises": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if got := q.Get("name"); got != "ilike.bench press" {
				t.Errorf("name=%q", got)
			}
			if got := q.Get("or"); got != "(is_custom.eq.false,created_by.eq."+userID.String()+")" {
				t.Errorf("or=%q", got)
			}
			writeTestJSON(t, w, http.StatusOK, []models.Exercise{
				{ID: uuid.New(), Name: "Bench Press", Category: models.CategoryChest},
			})
		},
	})
	defer ts.Close()

	e, err := New(ts.URL, testKey).FindExerciseByName(context.Background(), userID, "bench press")
	if err != nil {
		t.Fatal(err)
	}
	if e.Name != "Bench Press" {
		t.Errorf("name = %q, want Bench Press", e.Name)
	}
}

// TestDeleteBodyWeightNotFound verifies that a delete matching no row is ErrNotFound.
func TestDeleteBodyWeightNotFound(t *testing.T) {
	userID, id := uuid.New(), uuid.New()
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"DELETE /rest/v1/body_weight_log": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("id") != "eq."+id.String() || q.Get("user_id") != "eq."+userID.String() {
				t.Errorf("filters = %v", q)
			}
			writeTestJSON(t, w, http.StatusOK, []any{})
		},
	})
	defer ts.Close()

	err := New(ts.URL, testKey).DeleteBodyWeight(context.Background(), userID, id)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// TestInsertSetForeignExercise verifies the ownership check ahead of the insert.
func TestInsertSetForeignExercise(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /rest/v1/session_exercises": func(w http.ResponseWriter, r *http.Request) {
			noRows(t, w)
		},
	})
	defer ts.Close()

	set := &models.ExerciseSet{ID: uuid.New(), SessionExerciseID: uuid.New(), SetNumber: 1}
	err := New(ts.URL, testKey).InsertSet(context.Background(), uuid.New(), set)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// TestUpdateSetEmptyPatch verifies that a patch without fields reads the set
// back instead of sending an empty PATCH.
func TestUpdateSetEmptyPatch(t *testing.T) {
	set := models.ExerciseSet{ID: uuid.New(), SessionExerciseID: uuid.New(), SetNumber: 1, WeightLbs: 135, Reps: 8}
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /rest/v1/exercise_sets": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("id"); got != "eq."+set.ID.String() {
				t.Errorf("id filter = %q", got)
			}
			writeTestJSON(t, w, http.StatusOK, set)
		},
	})
	defer ts.Close()

	got, err := New(ts.URL, testKey).UpdateSet(context.Background(), uuid.New(), set.ID, models.SetPatch{})
	if err != nil {
		t.Fatalf("UpdateSet: %v", err)
	}
	if got.ID != set.ID || got.WeightLbs != 135 || got.Reps != 8 {
		t.Errorf("UpdateSet = %+v, want stored set", got)
	}
}
