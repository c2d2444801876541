package sessions

import (
	"math"
	"time"

	"github.com/claude/ironlog/internal/models"
)

// DurationMinutes is the wall-clock length of a session rounded to the
// nearest minute. A clock that moved backwards yields 0.
func DurationMinutes(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Minutes()))
}

// TotalVolume sums weight × reps over the completed sets. Incomplete sets
// are placeholders and contribute nothing.
func TotalVolume(sets []models.ExerciseSet) float64 {
	var total float64
	for _, s := range sets {
		if !s.Completed {
			continue
		}
		total += s.WeightLbs * float64(s.Reps)
	}
	return total
}

// finisher builds the completion for a session closed at end. It refuses
// sessions that already have an end time so stored totals are never rewritten.
func finisher(end time.Time, notes *string) models.FinishFunc {
	return func(s models.Session, sets []models.ExerciseSet) (models.Completion, error) {
		if !s.InProgress() {
			return models.Completion{}, ErrAlreadyCompleted
		}
		return models.Completion{
			EndTime:         end,
			DurationMinutes: DurationMinutes(s.StartTime, end),
			TotalVolumeLbs:  TotalVolume(sets),
			Notes:           notes,
		}, nil
	}
}
