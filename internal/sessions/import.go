package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

// ImportedSession is a finished workout recorded outside the app.
type ImportedSession struct {
	Name      string
	StartTime time.Time
	EndTime   time.Time
	Notes     *string
	Exercises []ImportedExercise
}

// ImportedExercise is one catalog exercise of an imported session.
type ImportedExercise struct {
	ExerciseID uuid.UUID
	Notes      *string
	Sets       []NewSet
}

// Import stores an already finished session in one write. Order indexes
// follow the slice order; set numbers are kept as given.
func (s *Service) Import(ctx context.Context, userID uuid.UUID, in ImportedSession) (*models.SessionDetail, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: session name is required", models.ErrInvalid)
	}
	end := in.EndTime
	if end.Before(in.StartTime) {
		end = in.StartTime
	}

	d := &models.SessionDetail{
		Session: models.Session{
			ID:        uuid.New(),
			UserID:    userID,
			Name:      in.Name,
			StartTime: in.StartTime,
			EndTime:   &end,
			Notes:     in.Notes,
		},
		Exercises: make([]models.ExerciseDetail, 0, len(in.Exercises)),
	}

	var all []models.ExerciseSet
	for i, ex := range in.Exercises {
		ed := models.ExerciseDetail{
			SessionExercise: models.SessionExercise{
				ID:         uuid.New(),
				SessionID:  d.ID,
				ExerciseID: ex.ExerciseID,
				OrderIndex: i,
				Notes:      ex.Notes,
			},
			Sets: make([]models.ExerciseSet, 0, len(ex.Sets)),
		}
		for _, ns := range ex.Sets {
			if err := validateLoad(&ns.WeightLbs, &ns.Reps); err != nil {
				return nil, err
			}
			set := models.ExerciseSet{
				ID:                uuid.New(),
				SessionExerciseID: ed.ID,
				SetNumber:         ns.SetNumber,
				WeightLbs:         ns.WeightLbs,
				Reps:              ns.Reps,
				RPE:               ns.RPE,
				Completed:         ns.Completed,
			}
			ed.Sets = append(ed.Sets, set)
			all = append(all, set)
		}
		d.Exercises = append(d.Exercises, ed)
	}

	dur := DurationMinutes(in.StartTime, end)
	vol := TotalVolume(all)
	d.DurationMinutes = &dur
	d.TotalVolumeLbs = &vol

	if err := s.store.ImportSession(ctx, d); err != nil {
		return nil, s.fail("importing session", err, "user_id", userID, "name", in.Name)
	}
	s.log.Info("session imported", "session_id", d.ID, "user_id", userID, "name", d.Name,
		"exercises", len(d.Exercises), "total_volume_lbs", vol)
	return d, nil
}
