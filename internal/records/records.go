// Package records keeps each user's best lift per exercise. A lift beats
// another when it is heavier, or equally heavy for more reps.
package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/storage"
	"github.com/google/uuid"
)

// Store is the persistence the records service needs.
type Store interface {
	GetRecord(ctx context.Context, userID, exerciseID uuid.UUID) (*models.PersonalRecord, error)
	ListRecords(ctx context.Context, userID uuid.UUID) ([]models.PersonalRecord, error)
	RecordHistory(ctx context.Context, userID, exerciseID uuid.UUID) ([]models.PersonalRecord, error)
	UpsertRecord(ctx context.Context, r *models.PersonalRecord) error
}

var _ Store = (*storage.DB)(nil)

// Lift is a (weight, reps) pair.
type Lift struct {
	WeightLbs float64
	Reps      int
}

// Dominates reports whether candidate beats current: higher weight wins,
// equal weight with more reps wins, anything else does not.
func Dominates(candidate, current Lift) bool {
	if candidate.WeightLbs != current.WeightLbs {
		return candidate.WeightLbs > current.WeightLbs
	}
	return candidate.Reps > current.Reps
}

// Candidate is a lift offered as a new personal record.
type Candidate struct {
	WeightLbs  float64    `json:"weight_lbs"`
	Reps       int        `json:"reps"`
	AchievedAt *time.Time `json:"achieved_at,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
}

// Service implements personal record operations.
type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

// NewService creates a records service.
func NewService(store Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// Get returns the current record, or nil if the user has none for the exercise.
func (s *Service) Get(ctx context.Context, userID, exerciseID uuid.UUID) (*models.PersonalRecord, error) {
	r, err := s.store.GetRecord(ctx, userID, exerciseID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("getting personal record", "user_id", userID, "exercise_id", exerciseID, "error", err)
		return nil, err
	}
	return r, nil
}

// List returns every current record of the user.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]models.PersonalRecord, error) {
	list, err := s.store.ListRecords(ctx, userID)
	if err != nil {
		s.log.Error("listing personal records", "user_id", userID, "error", err)
		return nil, err
	}
	return list, nil
}

// History returns every record the user has set on the exercise, newest first.
func (s *Service) History(ctx context.Context, userID, exerciseID uuid.UUID) ([]models.PersonalRecord, error) {
	list, err := s.store.RecordHistory(ctx, userID, exerciseID)
	if err != nil {
		s.log.Error("listing personal record history", "user_id", userID, "exercise_id", exerciseID, "error", err)
		return nil, err
	}
	return list, nil
}

// Upsert offers c as the user's record on the exercise. When c does not beat
// the stored record the call changes nothing and returns the stored record
// with updated=false.
func (s *Service) Upsert(ctx context.Context, userID, exerciseID uuid.UUID, c Candidate) (*models.PersonalRecord, bool, error) {
	if c.WeightLbs < 0 || c.Reps < 0 {
		return nil, false, fmt.Errorf("%w: weight_lbs and reps must be non-negative", models.ErrInvalid)
	}

	cur, err := s.Get(ctx, userID, exerciseID)
	if err != nil {
		return nil, false, err
	}
	if cur != nil && !Dominates(Lift{c.WeightLbs, c.Reps}, Lift{cur.WeightLbs, cur.Reps}) {
		return cur, false, nil
	}

	r := &models.PersonalRecord{
		ID:         uuid.New(),
		UserID:     userID,
		ExerciseID: exerciseID,
		WeightLbs:  c.WeightLbs,
		Reps:       c.Reps,
		AchievedAt: s.now().UTC(),
		Notes:      c.Notes,
	}
	if c.AchievedAt != nil {
		r.AchievedAt = *c.AchievedAt
	}
	if cur != nil {
		r.ID = cur.ID
	}

	err = s.store.UpsertRecord(ctx, r)
	if errors.Is(err, storage.ErrConflict) {
		// A concurrent writer stored a better lift between the read and the write.
		cur, err = s.Get(ctx, userID, exerciseID)
		return cur, false, err
	}
	if err != nil {
		s.log.Error("upserting personal record", "user_id", userID, "exercise_id", exerciseID, "error", err)
		return nil, false, err
	}
	s.log.Info("new personal record", "user_id", userID, "exercise_id", exerciseID,
		"weight_lbs", r.WeightLbs, "reps", r.Reps)
	return r, true, nil
}

// ApplySession offers the best completed set of every exercise in a finished
// session as a record and returns the records that changed.
func (s *Service) ApplySession(ctx context.Context, d *models.SessionDetail) ([]models.PersonalRecord, error) {
	at := s.now().UTC()
	if d.EndTime != nil {
		at = *d.EndTime
	}

	var updated []models.PersonalRecord
	for _, ex := range d.Exercises {
		best, ok := bestSet(ex.Sets)
		if !ok {
			continue
		}
		r, changed, err := s.Upsert(ctx, d.UserID, ex.ExerciseID, Candidate{
			WeightLbs:  best.WeightLbs,
			Reps:       best.Reps,
			AchievedAt: &at,
		})
		if err != nil {
			return updated, fmt.Errorf("applying session %s: %w", d.ID, err)
		}
		if changed {
			updated = append(updated, *r)
		}
	}
	return updated, nil
}

func bestSet(sets []models.ExerciseSet) (Lift, bool) {
	var best Lift
	found := false
	for _, set := range sets {
		if !set.Completed || set.Reps == 0 {
			continue
		}
		l := Lift{set.WeightLbs, set.Reps}
		if !found || Dominates(l, best) {
			best, found = l, true
		}
	}
	return best, found
}
