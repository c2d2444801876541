package storage

import (
	"context"
	"fmt"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

const exerciseColumns = `id, name, category, description, form_notes, is_custom, created_by, created_at`

func scanExercise(row scanner) (*models.Exercise, error) {
	var e models.Exercise
	if err := row.Scan(&e.ID, &e.Name, &e.Category, &e.Description, &e.FormNotes,
		&e.IsCustom, &e.CreatedBy, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListExercises returns built-in exercises plus the caller's custom ones, by name.
func (db *DB) ListExercises(ctx context.Context, f models.ExerciseFilter) ([]models.Exercise, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+exerciseColumns+` FROM exercises
		 WHERE (is_custom = FALSE OR created_by = $1)
		   AND ($2::text IS NULL OR category = $2)
		 ORDER BY name ASC`, f.UserID, f.Category)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer rows.Close()

	var result []models.Exercise
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

// GetExercise retrieves a catalog exercise by ID.
func (db *DB) GetExercise(ctx context.Context, id uuid.UUID) (*models.Exercise, error) {
	e, err := scanExercise(db.Pool.QueryRow(ctx,
		`SELECT `+exerciseColumns+` FROM exercises WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("querying exercise: %w", classify(err))
	}
	return e, nil
}

// FindExerciseByName looks up an exercise visible to userID by case-insensitive
// name, preferring built-ins.
func (db *DB) FindExerciseByName(ctx context.Context, userID uuid.UUID, name string) (*models.Exercise, error) {
	e, err := scanExercise(db.Pool.QueryRow(ctx,
		`SELECT `+exerciseColumns+` FROM exercises
		 WHERE lower(name) = lower($1) AND (is_custom = FALSE OR created_by = $2)
		 ORDER BY is_custom ASC
		 LIMIT 1`, name, userID))
	if err != nil {
		return nil, fmt.Errorf("querying exercise by name: %w", classify(err))
	}
	return e, nil
}

// InsertExercise adds a catalog exercise.
func (db *DB) InsertExercise(ctx context.Context, e *models.Exercise) error {
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO exercises (id, name, category, description, form_notes, is_custom, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		e.ID, e.Name, e.Category, e.Description, e.FormNotes, e.IsCustom, e.CreatedBy).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting exercise: %w", classify(err))
	}
	return nil
}

// UpdateExercise overwrites the mutable fields of a custom exercise.
func (db *DB) UpdateExercise(ctx context.Context, e *models.Exercise) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE exercises SET name = $2, category = $3, description = $4, form_notes = $5
		 WHERE id = $1 AND is_custom = TRUE`,
		e.ID, e.Name, e.Category, e.Description, e.FormNotes)
	if err != nil {
		return fmt.Errorf("updating exercise: %w", classify(err))
	}
	return mustAffect(tag)
}

// DeleteExercise removes a custom exercise.
func (db *DB) DeleteExercise(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM exercises WHERE id = $1 AND is_custom = TRUE`, id)
	if err != nil {
		return fmt.Errorf("deleting exercise: %w", classify(err))
	}
	return mustAffect(tag)
}
