package storage

import (
	"context"
	"fmt"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

// InsertSessionExercise adds a catalog exercise to a session.
func (db *DB) InsertSessionExercise(ctx context.Context, se *models.SessionExercise) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO session_exercises (id, session_id, exercise_id, order_index, notes)
		 VALUES ($1, $2, $3, $4, $5)`,
		se.ID, se.SessionID, se.ExerciseID, se.OrderIndex, se.Notes)
	if err != nil {
		return fmt.Errorf("inserting session exercise: %w", classify(err))
	}
	return nil
}

// DeleteSessionExercise removes an exercise from a session. Its sets go with it.
func (db *DB) DeleteSessionExercise(ctx context.Context, sessionID, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM session_exercises WHERE id = $1 AND session_id = $2`, id, sessionID)
	if err != nil {
		return fmt.Errorf("deleting session exercise: %w", err)
	}
	return mustAffect(tag)
}

// ListSessionExercises returns the exercises of a session ordered by order_index,
// with catalog name and category attached.
func (db *DB) ListSessionExercises(ctx context.Context, sessionID uuid.UUID) ([]models.SessionExercise, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT se.id, se.session_id, se.exercise_id, se.order_index, se.notes, e.name, e.category
		 FROM session_exercises se
		 JOIN exercises e ON e.id = se.exercise_id
		 WHERE se.session_id = $1
		 ORDER BY se.order_index ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying session exercises: %w", err)
	}
	defer rows.Close()

	var result []models.SessionExercise
	for rows.Next() {
		var se models.SessionExercise
		if err := rows.Scan(&se.ID, &se.SessionID, &se.ExerciseID, &se.OrderIndex, &se.Notes,
			&se.ExerciseName, &se.Category); err != nil {
			return nil, fmt.Errorf("scanning session exercise: %w", err)
		}
		result = append(result, se)
	}
	return result, rows.Err()
}
