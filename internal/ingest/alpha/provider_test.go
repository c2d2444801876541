package alpha

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/claude/ironlog/internal/exercises"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/records"
	"github.com/claude/ironlog/internal/sessions"
	"github.com/claude/ironlog/internal/storage/memstore"
	"github.com/google/uuid"
)

type harness struct {
	store    *memstore.Store
	sessions *sessions.Service
	records  *records.Service
	provider *Provider
}

func newHarness() *harness {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	h := &harness{
		store:    store,
		sessions: sessions.NewService(store, nil, time.Minute, log),
		records:  records.NewService(store, log),
	}
	h.provider = NewProvider(exercises.NewService(store, log), h.sessions, h.records, log)
	return h
}

// TestIngestSampleExport verifies that a full export becomes completed
// sessions with converted weights and new records.
func TestIngestSampleExport(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	user := uuid.New()

	res, err := h.provider.Ingest(ctx, user, strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.SessionsReceived != 2 || res.SessionsImported != 2 || res.SessionsFailed != 0 {
		t.Fatalf("result = %+v", res)
	}
	// 22 sets in the leg session, 6 in the push session.
	if res.SetsImported != 28 {
		t.Errorf("SetsImported = %d, want 28", res.SetsImported)
	}
	if res.RecordsSet != 7 {
		t.Errorf("RecordsSet = %d, want 7", res.RecordsSet)
	}

	list, err := h.sessions.List(ctx, user, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("sessions = %d, want 2", len(list))
	}
	for _, s := range list {
		if s.EndTime == nil {
			t.Errorf("session %q not completed", s.Name)
		}
	}

	var legs *models.Session
	for i := range list {
		if strings.HasPrefix(list[i].Name, "Legs") {
			legs = &list[i]
		}
	}
	if legs == nil {
		t.Fatal("leg session missing")
	}
	if legs.DurationMinutes == nil || *legs.DurationMinutes != 62 {
		t.Errorf("DurationMinutes = %v, want 62", legs.DurationMinutes)
	}

	d, err := h.sessions.Details(ctx, legs.ID)
	if err != nil || d == nil {
		t.Fatalf("Details: %v", err)
	}
	hack := d.Exercises[0]
	if len(hack.Sets) != 5 {
		t.Fatalf("hack squat sets = %d, want 5", len(hack.Sets))
	}
	for i, set := range hack.Sets {
		if set.SetNumber != i+1 {
			t.Errorf("set %d numbered %d", i, set.SetNumber)
		}
	}
	if hack.Sets[0].Completed || hack.Sets[1].Completed {
		t.Error("warm-ups should not be completed")
	}
	top := hack.Sets[2]
	if !top.Completed || top.WeightLbs != 253.5 || top.Reps != 8 {
		t.Errorf("first working set = %+v, want 253.5x8 completed", top)
	}
	if top.RPE == nil || *top.RPE != 9 {
		t.Errorf("RPE = %v, want 9", top.RPE)
	}
	if hack.Notes == nil || *hack.Notes != "Machine, target 8 reps" {
		t.Errorf("notes = %v", hack.Notes)
	}

	bench, err := h.store.FindExerciseByName(ctx, user, "Bench Press")
	if err != nil {
		t.Fatalf("bench lookup: %v", err)
	}
	if bench.IsCustom {
		t.Error("Bench Press should resolve to the built-in exercise")
	}
	pr, err := h.records.Get(ctx, user, bench.ID)
	if err != nil || pr == nil {
		t.Fatalf("bench record: %v %v", pr, err)
	}
	if pr.WeightLbs != 226 || pr.Reps != 6 {
		t.Errorf("bench record = %vx%d, want 226x6", pr.WeightLbs, pr.Reps)
	}

	hackEx, err := h.store.FindExerciseByName(ctx, user, "Hack Squats")
	if err != nil {
		t.Fatalf("hack squat lookup: %v", err)
	}
	if !hackEx.IsCustom || hackEx.Category != models.CategoryLegs {
		t.Errorf("hack squat = %+v, want custom legs exercise", hackEx)
	}
}

// TestIngestBadExport verifies that an unreadable export is an error.
func TestIngestBadExport(t *testing.T) {
	h := newHarness()
	in := `"Legs";"2026-02-19 4:54 h";"1:02 hr"
1;115;8;1
`
	if _, err := h.provider.Ingest(context.Background(), uuid.New(), strings.NewReader(in)); err == nil {
		t.Fatal("expected parse error")
	}
}

// TestGuessCategory verifies keyword bucketing of unknown exercise names.
func TestGuessCategory(t *testing.T) {
	tests := []struct {
		name string
		want models.Category
	}{
		{"Hack Squats", models.CategoryLegs},
		{"Standing Calf Raises", models.CategoryLegs},
		{"Hanging Leg Raises", models.CategoryCore},
		{"Incline Bench Press", models.CategoryChest},
		{"Seated Cable Row", models.CategoryBack},
		{"Lat Pulldown", models.CategoryBack},
		{"Dumbbell Lateral Raise", models.CategoryShoulders},
		{"Hammer Curl", models.CategoryArms},
		{"Farmer's Walk", models.CategoryFullBody},
	}
	for _, tt := range tests {
		if got := guessCategory(tt.name); got != tt.want {
			t.Errorf("guessCategory(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

// TestConversions verifies kg to lbs rounding and the RIR to RPE mapping.
func TestConversions(t *testing.T) {
	if got := kgToLbs(102.5); got != 226 {
		t.Errorf("kgToLbs(102.5) = %v, want 226", got)
	}
	if got := kgToLbs(37.5); got != 82.7 {
		t.Errorf("kgToLbs(37.5) = %v, want 82.7", got)
	}
	half := 0.5
	if got := rpeFromRIR(&half); *got != 9.5 {
		t.Errorf("rpeFromRIR(0.5) = %v, want 9.5", *got)
	}
	if rpeFromRIR(nil) != nil {
		t.Error("rpeFromRIR(nil) should be nil")
	}
}
