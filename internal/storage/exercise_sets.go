package storage

import (
	"context"
	"fmt"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const setColumns = `id, session_exercise_id, set_number, weight_lbs, reps, rpe, completed, created_at`

func scanSet(row scanner) (*models.ExerciseSet, error) {
	var s models.ExerciseSet
	if err := row.Scan(&s.ID, &s.SessionExerciseID, &s.SetNumber, &s.WeightLbs, &s.Reps,
		&s.RPE, &s.Completed, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSets(rows pgx.Rows) ([]models.ExerciseSet, error) {
	defer rows.Close()
	var result []models.ExerciseSet
	for rows.Next() {
		s, err := scanSet(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning set: %w", err)
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

// InsertSet adds a set to a session exercise. The exercise must belong to
// sessionID, otherwise ErrNotFound is returned.
func (db *DB) InsertSet(ctx context.Context, sessionID uuid.UUID, set *models.ExerciseSet) error {
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO exercise_sets (id, session_exercise_id, set_number, weight_lbs, reps, rpe, completed)
		 SELECT $1, se.id, $3, $4, $5, $6, $7
		 FROM session_exercises se
		 WHERE se.id = $2 AND se.session_id = $8
		 RETURNING created_at`,
		set.ID, set.SessionExerciseID, set.SetNumber, set.WeightLbs, set.Reps, set.RPE, set.Completed,
		sessionID).Scan(&set.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting set: %w", classify(err))
	}
	return nil
}

// UpdateSet applies patch to a set of the given session and returns the new row.
func (db *DB) UpdateSet(ctx context.Context, sessionID, id uuid.UUID, patch models.SetPatch) (*models.ExerciseSet, error) {
	s, err := scanSet(db.Pool.QueryRow(ctx,
		`UPDATE exercise_sets s
		 SET weight_lbs = COALESCE($3, s.weight_lbs),
		     reps = COALESCE($4, s.reps),
		     rpe = COALESCE($5, s.rpe),
		     completed = COALESCE($6, s.completed)
		 FROM session_exercises se
		 WHERE s.id = $1 AND se.id = s.session_exercise_id AND se.session_id = $2
		 RETURNING s.id, s.session_exercise_id, s.set_number, s.weight_lbs, s.reps, s.rpe, s.completed, s.created_at`,
		id, sessionID, patch.WeightLbs, patch.Reps, patch.RPE, patch.Completed))
	if err != nil {
		return nil, fmt.Errorf("updating set: %w", classify(err))
	}
	return s, nil
}

// DeleteSet removes a set of the given session.
func (db *DB) DeleteSet(ctx context.Context, sessionID, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM exercise_sets s
		 USING session_exercises se
		 WHERE s.id = $1 AND se.id = s.session_exercise_id AND se.session_id = $2`,
		id, sessionID)
	if err != nil {
		return fmt.Errorf("deleting set: %w", err)
	}
	return mustAffect(tag)
}

// ListSetsForExercises returns the sets of the given session exercises,
// grouped by exercise and ordered by set_number.
func (db *DB) ListSetsForExercises(ctx context.Context, exerciseIDs []uuid.UUID) ([]models.ExerciseSet, error) {
	if len(exerciseIDs) == 0 {
		return nil, nil
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT `+setColumns+` FROM exercise_sets
		 WHERE session_exercise_id = ANY($1)
		 ORDER BY session_exercise_id, set_number ASC`, exerciseIDs)
	if err != nil {
		return nil, fmt.Errorf("querying sets: %w", err)
	}
	return collectSets(rows)
}
