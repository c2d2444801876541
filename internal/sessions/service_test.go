package sessions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/ironlog/internal/cache"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/storage"
	"github.com/claude/ironlog/internal/storage/memstore"
	"github.com/google/uuid"
)

type fixture struct {
	svc   *Service
	store *memstore.Store
	clock time.Time
}

func newFixture(t *testing.T, c cache.Cache) *fixture {
	t.Helper()
	f := &fixture{
		store: memstore.New(),
		clock: time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.store, c, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func (f *fixture) exerciseID(t *testing.T, name string) uuid.UUID {
	t.Helper()
	e, err := f.store.FindExerciseByName(context.Background(), uuid.Nil, name)
	if err != nil {
		t.Fatalf("catalog lookup %q: %v", name, err)
	}
	return e.ID
}

// TestLegDay walks a session from creation to completion and checks the
// derived totals.
func TestLegDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	userID := uuid.New()

	sess, err := f.svc.Create(ctx, userID, NewSession{Name: "Leg Day"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	se, err := f.svc.AddExercise(ctx, sess.ID, NewExercise{ExerciseID: f.exerciseID(t, "Back Squat"), OrderIndex: 0})
	if err != nil {
		t.Fatalf("AddExercise: %v", err)
	}
	if _, err := f.svc.AddSet(ctx, sess.ID, se.ID, NewSet{SetNumber: 1, WeightLbs: 135, Reps: 8, Completed: false}); err != nil {
		t.Fatalf("AddSet 1: %v", err)
	}
	if _, err := f.svc.AddSet(ctx, sess.ID, se.ID, NewSet{SetNumber: 2, WeightLbs: 135, Reps: 8, Completed: true}); err != nil {
		t.Fatalf("AddSet 2: %v", err)
	}

	f.advance(52 * time.Minute)
	done, err := f.svc.Complete(ctx, sess.ID, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.EndTime == nil {
		t.Fatal("end_time not set")
	}
	if *done.TotalVolumeLbs != 1080 {
		t.Errorf("total_volume_lbs = %v, want 1080", *done.TotalVolumeLbs)
	}
	if *done.DurationMinutes < 0 || *done.DurationMinutes != 52 {
		t.Errorf("duration_minutes = %d, want 52", *done.DurationMinutes)
	}

	active, err := f.svc.Active(ctx, userID)
	if err != nil || active != nil {
		t.Fatalf("Active after completion = %v, %v; want nil", active, err)
	}
}

// TestCompleteExcludesIncompleteSets verifies that placeholders do not add volume.
func TestCompleteExcludesIncompleteSets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	sess, _ := f.svc.Create(ctx, uuid.New(), NewSession{Name: "Push"})
	se, _ := f.svc.AddExercise(ctx, sess.ID, NewExercise{ExerciseID: f.exerciseID(t, "Bench Press")})
	f.svc.AddSet(ctx, sess.ID, se.ID, NewSet{SetNumber: 1, WeightLbs: 100, Reps: 5, Completed: true})
	f.svc.AddSet(ctx, sess.ID, se.ID, NewSet{SetNumber: 2, WeightLbs: 80, Reps: 5, Completed: false})

	done, err := f.svc.Complete(ctx, sess.ID, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if *done.TotalVolumeLbs != 500 {
		t.Errorf("total_volume_lbs = %v, want 500", *done.TotalVolumeLbs)
	}
}

// TestCompleteDuration verifies the 45 minute example.
func TestCompleteDuration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	sess, _ := f.svc.Create(ctx, uuid.New(), NewSession{Name: "Pull"})
	f.advance(2700000 * time.Millisecond)

	done, err := f.svc.Complete(ctx, sess.ID, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if *done.DurationMinutes != 45 {
		t.Errorf("duration_minutes = %d, want 45", *done.DurationMinutes)
	}
}

// TestCompleteEmptySession verifies that finishing with no completed sets
// stores a zero volume rather than nothing.
func TestCompleteEmptySession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	sess, _ := f.svc.Create(ctx, uuid.New(), NewSession{Name: "Rest-ish"})
	done, err := f.svc.Complete(ctx, sess.ID, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.TotalVolumeLbs == nil || *done.TotalVolumeLbs != 0 {
		t.Errorf("total_volume_lbs = %v, want 0", done.TotalVolumeLbs)
	}
	if done.DurationMinutes == nil || done.EndTime == nil {
		t.Error("completion left fields unset")
	}
}

// TestCompleteTwice verifies that a second completion is refused and the
// first totals survive.
func TestCompleteTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	sess, _ := f.svc.Create(ctx, uuid.New(), NewSession{Name: "Legs"})
	f.advance(30 * time.Minute)
	first, err := f.svc.Complete(ctx, sess.ID, nil)
	if err != nil {
		t.Fatalf("first Complete: %v", err)
	}

	f.advance(30 * time.Minute)
	if _, err := f.svc.Complete(ctx, sess.ID, nil); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("second Complete err = %v, want ErrAlreadyCompleted", err)
	}

	stored, err := f.svc.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !stored.EndTime.Equal(*first.EndTime) || *stored.DurationMinutes != 30 {
		t.Errorf("stored session changed: end=%v duration=%d", stored.EndTime, *stored.DurationMinutes)
	}
}

// TestCompleteMissing verifies that completing an unknown session is an error.
func TestCompleteMissing(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Complete(context.Background(), uuid.New(), nil)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Complete err = %v, want ErrNotFound", err)
	}
}

// TestCompleteKeepsNotesWhenNil verifies that nil notes leave the stored
// notes untouched.
func TestCompleteKeepsNotesWhenNil(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	notes := "deload week"

	sess, _ := f.svc.Create(ctx, uuid.New(), NewSession{Name: "Legs", Notes: &notes})
	done, err := f.svc.Complete(ctx, sess.ID, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Notes == nil || *done.Notes != notes {
		t.Errorf("notes = %v, want %q", done.Notes, notes)
	}
}

// TestActiveSession covers the zero and one open session cases.
func TestActiveSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	userID := uuid.New()

	got, err := f.svc.Active(ctx, userID)
	if err != nil || got != nil {
		t.Fatalf("Active with no sessions = %v, %v; want nil", got, err)
	}

	sess, _ := f.svc.Create(ctx, userID, NewSession{Name: "Legs"})
	got, err = f.svc.Active(ctx, userID)
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if got == nil || got.ID != sess.ID {
		t.Fatalf("Active = %v, want %s", got, sess.ID)
	}

	other, err := f.svc.Active(ctx, uuid.New())
	if err != nil || other != nil {
		t.Fatalf("Active for other user = %v, %v; want nil", other, err)
	}
}

// TestCreateWhileActive verifies that a user cannot hold two open sessions.
func TestCreateWhileActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	userID := uuid.New()

	if _, err := f.svc.Create(ctx, userID, NewSession{Name: "Legs"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Create(ctx, userID, NewSession{Name: "Arms"}); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("second Create err = %v, want ErrAlreadyActive", err)
	}
	if _, err := f.svc.Create(ctx, uuid.New(), NewSession{Name: "Arms"}); err != nil {
		t.Fatalf("Create for another user: %v", err)
	}
}

type racingStore struct {
	*memstore.Store
}

// GetActiveSession hides the open session so the insert has to catch it.
func (racingStore) GetActiveSession(context.Context, uuid.UUID) (*models.Session, error) {
	return nil, storage.ErrNotFound
}

// TestCreateConflictFromStore verifies that a uniqueness conflict raised by
// the store is reported as ErrAlreadyActive.
func TestCreateConflictFromStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.svc.store = racingStore{f.store}
	userID := uuid.New()

	if _, err := f.svc.Create(ctx, userID, NewSession{Name: "Legs"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Create(ctx, userID, NewSession{Name: "Legs"}); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("racing Create err = %v, want ErrAlreadyActive", err)
	}
}

// TestDetailsOrdering verifies exercise and set ordering and the nil result
// for unknown sessions.
func TestDetailsOrdering(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	missing, err := f.svc.Details(ctx, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("Details of unknown session = %v, %v; want nil", missing, err)
	}

	sess, _ := f.svc.Create(ctx, uuid.New(), NewSession{Name: "Full"})
	second, _ := f.svc.AddExercise(ctx, sess.ID, NewExercise{ExerciseID: f.exerciseID(t, "Deadlift"), OrderIndex: 5})
	first, _ := f.svc.AddExercise(ctx, sess.ID, NewExercise{ExerciseID: f.exerciseID(t, "Back Squat"), OrderIndex: 2})
	f.svc.AddSet(ctx, sess.ID, first.ID, NewSet{SetNumber: 2, WeightLbs: 225, Reps: 5})
	f.svc.AddSet(ctx, sess.ID, first.ID, NewSet{SetNumber: 1, WeightLbs: 185, Reps: 5})

	d, err := f.svc.Details(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if len(d.Exercises) != 2 || d.Exercises[0].ID != first.ID || d.Exercises[1].ID != second.ID {
		t.Fatalf("exercises out of order: %+v", d.Exercises)
	}
	if d.Exercises[0].ExerciseName != "Back Squat" || d.Exercises[0].Category != models.CategoryLegs {
		t.Errorf("catalog fields missing: %+v", d.Exercises[0].SessionExercise)
	}
	sets := d.Exercises[0].Sets
	if len(sets) != 2 || sets[0].SetNumber != 1 || sets[1].SetNumber != 2 {
		t.Errorf("sets out of order: %+v", sets)
	}
	if d.Exercises[1].Sets == nil || len(d.Exercises[1].Sets) != 0 {
		t.Errorf("exercise without sets = %v, want empty slice", d.Exercises[1].Sets)
	}
}

// TestDetailsCacheInvalidation verifies that every mutation drops the cached
// detail so reads see the new state.
func TestDetailsCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, cache.NewLocal(1))

	sess, _ := f.svc.Create(ctx, uuid.New(), NewSession{Name: "Legs"})
	se, _ := f.svc.AddExercise(ctx, sess.ID, NewExercise{ExerciseID: f.exerciseID(t, "Back Squat")})

	d, _ := f.svc.Details(ctx, sess.ID)
	if len(d.Exercises[0].Sets) != 0 {
		t.Fatalf("unexpected sets before AddSet")
	}

	set, err := f.svc.AddSet(ctx, sess.ID, se.ID, NewSet{SetNumber: 1, WeightLbs: 135, Reps: 8})
	if err != nil {
		t.Fatalf("AddSet: %v", err)
	}
	d, _ = f.svc.Details(ctx, sess.ID)
	if len(d.Exercises[0].Sets) != 1 {
		t.Fatalf("Details after AddSet served stale cache: %+v", d.Exercises[0].Sets)
	}

	done := true
	if _, err := f.svc.UpdateSet(ctx, sess.ID, set.ID, models.SetPatch{Completed: &done}); err != nil {
		t.Fatalf("UpdateSet: %v", err)
	}
	d, _ = f.svc.Details(ctx, sess.ID)
	if !d.Exercises[0].Sets[0].Completed {
		t.Fatal("Details after UpdateSet served stale cache")
	}

	if _, err := f.svc.Complete(ctx, sess.ID, nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	d, _ = f.svc.Details(ctx, sess.ID)
	if d.EndTime == nil || *d.TotalVolumeLbs != 1080 {
		t.Fatalf("Details after Complete served stale cache: %+v", d.Session)
	}

	if err := f.svc.Discard(ctx, sess.ID); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	d, err = f.svc.Details(ctx, sess.ID)
	if err != nil || d != nil {
		t.Fatalf("Details after Discard = %v, %v; want nil", d, err)
	}
}

// TestSetMutations covers update, delete and exercise removal.
func TestSetMutations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	sess, _ := f.svc.Create(ctx, uuid.New(), NewSession{Name: "Legs"})
	se, _ := f.svc.AddExercise(ctx, sess.ID, NewExercise{ExerciseID: f.exerciseID(t, "Back Squat")})
	set, _ := f.svc.AddSet(ctx, sess.ID, se.ID, NewSet{SetNumber: 1, WeightLbs: 135, Reps: 8})

	w, rpe := 140.0, 8.5
	updated, err := f.svc.UpdateSet(ctx, sess.ID, set.ID, models.SetPatch{WeightLbs: &w, RPE: &rpe})
	if err != nil {
		t.Fatalf("UpdateSet: %v", err)
	}
	if updated.WeightLbs != 140 || updated.Reps != 8 || *updated.RPE != 8.5 {
		t.Errorf("UpdateSet = %+v", updated)
	}

	if err := f.svc.DeleteSet(ctx, sess.ID, set.ID); err != nil {
		t.Fatalf("DeleteSet: %v", err)
	}
	if err := f.svc.DeleteSet(ctx, sess.ID, set.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second DeleteSet err = %v, want ErrNotFound", err)
	}

	f.svc.AddSet(ctx, sess.ID, se.ID, NewSet{SetNumber: 1, WeightLbs: 135, Reps: 8, Completed: true})
	if err := f.svc.RemoveExercise(ctx, sess.ID, se.ID); err != nil {
		t.Fatalf("RemoveExercise: %v", err)
	}
	done, _ := f.svc.Complete(ctx, sess.ID, nil)
	if *done.TotalVolumeLbs != 0 {
		t.Errorf("removed exercise still counted: volume = %v", *done.TotalVolumeLbs)
	}
}

// TestSetScopedToSession verifies that sets of one session cannot be edited
// through another session's id.
func TestSetScopedToSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	mine, _ := f.svc.Create(ctx, uuid.New(), NewSession{Name: "Mine"})
	theirs, _ := f.svc.Create(ctx, uuid.New(), NewSession{Name: "Theirs"})
	se, _ := f.svc.AddExercise(ctx, theirs.ID, NewExercise{ExerciseID: f.exerciseID(t, "Back Squat")})
	set, _ := f.svc.AddSet(ctx, theirs.ID, se.ID, NewSet{SetNumber: 1, WeightLbs: 135, Reps: 8})

	if _, err := f.svc.AddSet(ctx, mine.ID, se.ID, NewSet{SetNumber: 1}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("AddSet across sessions err = %v, want ErrNotFound", err)
	}
	if err := f.svc.DeleteSet(ctx, mine.ID, set.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("DeleteSet across sessions err = %v, want ErrNotFound", err)
	}
}

// TestAddSetRejectsNegativeLoad verifies input validation.
func TestAddSetRejectsNegativeLoad(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	sess, _ := f.svc.Create(ctx, uuid.New(), NewSession{Name: "Legs"})
	se, _ := f.svc.AddExercise(ctx, sess.ID, NewExercise{ExerciseID: f.exerciseID(t, "Back Squat")})

	if _, err := f.svc.AddSet(ctx, sess.ID, se.ID, NewSet{WeightLbs: -5, Reps: 5}); !errors.Is(err, models.ErrInvalid) {
		t.Errorf("negative weight err = %v, want ErrInvalid", err)
	}
	reps := -1
	if _, err := f.svc.UpdateSet(ctx, sess.ID, uuid.New(), models.SetPatch{Reps: &reps}); !errors.Is(err, models.ErrInvalid) {
		t.Errorf("negative reps err = %v, want ErrInvalid", err)
	}
}

// TestListNewestFirst verifies session history ordering and limits.
func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	userID := uuid.New()

	for _, name := range []string{"A", "B", "C"} {
		sess, err := f.svc.Create(ctx, userID, NewSession{Name: name})
		if err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
		f.advance(time.Hour)
		if _, err := f.svc.Complete(ctx, sess.ID, nil); err != nil {
			t.Fatalf("Complete %s: %v", name, err)
		}
	}

	list, err := f.svc.List(ctx, userID, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Name != "C" || list[1].Name != "B" {
		t.Errorf("List = %+v", list)
	}
}

// TestImport verifies that an imported session arrives completed with
// derived totals.
func TestImport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	userID := uuid.New()
	start := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	d, err := f.svc.Import(ctx, userID, ImportedSession{
		Name:      "Upper A",
		StartTime: start,
		EndTime:   start.Add(70 * time.Minute),
		Exercises: []ImportedExercise{{
			ExerciseID: f.exerciseID(t, "Bench Press"),
			Sets: []NewSet{
				{SetNumber: 1, WeightLbs: 95, Reps: 10, Completed: false},
				{SetNumber: 1, WeightLbs: 185, Reps: 5, Completed: true},
				{SetNumber: 2, WeightLbs: 185, Reps: 5, Completed: true},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if *d.DurationMinutes != 70 || *d.TotalVolumeLbs != 1850 {
		t.Errorf("imported totals: duration=%d volume=%v", *d.DurationMinutes, *d.TotalVolumeLbs)
	}

	loaded, err := f.svc.Details(ctx, d.ID)
	if err != nil || loaded == nil {
		t.Fatalf("Details: %v, %v", loaded, err)
	}
	if len(loaded.Exercises) != 1 || len(loaded.Exercises[0].Sets) != 3 {
		t.Errorf("imported children not stored: %+v", loaded.Exercises)
	}

	active, _ := f.svc.Active(ctx, userID)
	if active != nil {
		t.Errorf("imported session reported as active")
	}
}

// interleavingStore runs onLoad once, right after the sets of a detail load
// have been read.
type interleavingStore struct {
	*memstore.Store
	onLoad func()
}

func (s *interleavingStore) ListSetsForExercises(ctx context.Context, ids []uuid.UUID) ([]models.ExerciseSet, error) {
	sets, err := s.Store.ListSetsForExercises(ctx, ids)
	if fn := s.onLoad; fn != nil {
		s.onLoad = nil
		fn()
	}
	return sets, err
}

// TestDetailsSkipsCacheAfterConcurrentWrite verifies that a detail loaded
// while a mutation finished is not left in the cache.
func TestDetailsSkipsCacheAfterConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, cache.NewLocal(1))
	store := &interleavingStore{Store: f.store}
	f.svc.store = store

	sess, _ := f.svc.Create(ctx, uuid.New(), NewSession{Name: "Legs"})
	se, _ := f.svc.AddExercise(ctx, sess.ID, NewExercise{ExerciseID: f.exerciseID(t, "Back Squat")})

	store.onLoad = func() {
		if _, err := f.svc.AddSet(ctx, sess.ID, se.ID, NewSet{SetNumber: 1, WeightLbs: 135, Reps: 8}); err != nil {
			t.Errorf("AddSet during load: %v", err)
		}
	}
	d, err := f.svc.Details(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if len(d.Exercises[0].Sets) != 0 {
		t.Fatalf("load saw %d sets, want the pre-write snapshot", len(d.Exercises[0].Sets))
	}

	d, err = f.svc.Details(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if len(d.Exercises[0].Sets) != 1 {
		t.Fatalf("Details after AddSet returned %d sets, want 1", len(d.Exercises[0].Sets))
	}
}

// TestUpdateSetEmptyPatch verifies that a patch without fields is rejected.
func TestUpdateSetEmptyPatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	sess, _ := f.svc.Create(ctx, uuid.New(), NewSession{Name: "Legs"})
	se, _ := f.svc.AddExercise(ctx, sess.ID, NewExercise{ExerciseID: f.exerciseID(t, "Back Squat")})
	set, _ := f.svc.AddSet(ctx, sess.ID, se.ID, NewSet{SetNumber: 1, WeightLbs: 135, Reps: 8})

	if _, err := f.svc.UpdateSet(ctx, sess.ID, set.ID, models.SetPatch{}); !errors.Is(err, models.ErrInvalid) {
		t.Fatalf("empty patch err = %v, want ErrInvalid", err)
	}
}
