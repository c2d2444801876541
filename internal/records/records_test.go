package records

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/storage/memstore"
	"github.com/google/uuid"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newService() *Service {
	return NewService(memstore.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// TestDominates verifies the weight-then-reps ordering.
func TestDominates(t *testing.T) {
	current := Lift{WeightLbs: 200, Reps: 5}
	tests := []struct {
		name      string
		candidate Lift
		want      bool
	}{
		{"same weight fewer reps", Lift{200, 3}, false},
		{"same weight same reps", Lift{200, 5}, false},
		{"same weight more reps", Lift{200, 6}, true},
		{"heavier single", Lift{205, 1}, true},
		{"lighter more reps", Lift{195, 12}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dominates(tt.candidate, current); got != tt.want {
				t.Errorf("Dominates(%v, %v) = %v, want %v", tt.candidate, current, got, tt.want)
			}
		})
	}
}

// TestUpsert walks the documented examples against a stored 200x5 record.
func TestUpsert(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name        string
		candidate   Candidate
		wantUpdated bool
		wantWeight  float64
		wantReps    int
	}{
		{"200x3 is a no-op", Candidate{WeightLbs: 200, Reps: 3}, false, 200, 5},
		{"200x6 replaces", Candidate{WeightLbs: 200, Reps: 6}, true, 200, 6},
		{"205x1 replaces", Candidate{WeightLbs: 205, Reps: 1}, true, 205, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService()
			userID, exerciseID := uuid.New(), uuid.New()
			first, updated, err := svc.Upsert(ctx, userID, exerciseID, Candidate{WeightLbs: 200, Reps: 5})
			if err != nil || !updated {
				t.Fatalf("seeding record: %v, updated=%v", err, updated)
			}

			got, updated, err := svc.Upsert(ctx, userID, exerciseID, tt.candidate)
			if err != nil {
				t.Fatalf("Upsert: %v", err)
			}
			if updated != tt.wantUpdated {
				t.Errorf("updated = %v, want %v", updated, tt.wantUpdated)
			}
			if got.WeightLbs != tt.wantWeight || got.Reps != tt.wantReps {
				t.Errorf("record = %vx%d, want %vx%d", got.WeightLbs, got.Reps, tt.wantWeight, tt.wantReps)
			}
			if got.ID != first.ID {
				t.Errorf("record id changed from %s to %s", first.ID, got.ID)
			}

			stored, _ := svc.Get(ctx, userID, exerciseID)
			if stored.WeightLbs != tt.wantWeight || stored.Reps != tt.wantReps {
				t.Errorf("stored = %vx%d, want %vx%d", stored.WeightLbs, stored.Reps, tt.wantWeight, tt.wantReps)
			}
		})
	}
}

// TestHistoryKeepsEveryRecord verifies that superseded records stay in the log.
func TestHistoryKeepsEveryRecord(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	userID, exerciseID := uuid.New(), uuid.New()
	day := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, c := range []Candidate{{WeightLbs: 185, Reps: 5}, {WeightLbs: 180, Reps: 8}, {WeightLbs: 195, Reps: 3}} {
		at := day.AddDate(0, 0, i)
		c.AchievedAt = &at
		if _, _, err := svc.Upsert(ctx, userID, exerciseID, c); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	hist, err := svc.History(ctx, userID, exerciseID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 || hist[0].WeightLbs != 195 || hist[1].WeightLbs != 185 {
		t.Errorf("History = %+v", hist)
	}
}

// TestGetMissing verifies that a missing record is nil, not an error.
func TestGetMissing(t *testing.T) {
	r, err := newService().Get(context.Background(), uuid.New(), uuid.New())
	if err != nil || r != nil {
		t.Fatalf("Get = %v, %v; want nil, nil", r, err)
	}
}

// TestApplySession verifies that the best completed set per exercise is offered.
func TestApplySession(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	userID := uuid.New()
	squat, bench := uuid.New(), uuid.New()
	end := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

	svc.Upsert(ctx, userID, bench, Candidate{WeightLbs: 225, Reps: 1})

	d := &models.SessionDetail{
		Session: models.Session{ID: uuid.New(), UserID: userID, EndTime: &end},
		Exercises: []models.ExerciseDetail{
			{
				SessionExercise: models.SessionExercise{ExerciseID: squat},
				Sets: []models.ExerciseSet{
					{WeightLbs: 315, Reps: 3, Completed: true},
					{WeightLbs: 405, Reps: 1, Completed: false},
					{WeightLbs: 315, Reps: 5, Completed: true},
				},
			},
			{
				SessionExercise: models.SessionExercise{ExerciseID: bench},
				Sets:            []models.ExerciseSet{{WeightLbs: 185, Reps: 8, Completed: true}},
			},
		},
	}

	updated, err := svc.ApplySession(ctx, d)
	if err != nil {
		t.Fatalf("ApplySession: %v", err)
	}
	if len(updated) != 1 || updated[0].ExerciseID != squat || updated[0].WeightLbs != 315 || updated[0].Reps != 5 {
		t.Fatalf("ApplySession updated = %+v", updated)
	}
	if !updated[0].AchievedAt.Equal(end) {
		t.Errorf("achieved_at = %v, want session end %v", updated[0].AchievedAt, end)
	}
}
