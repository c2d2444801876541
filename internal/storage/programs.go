package storage

import (
	"context"
	"fmt"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const programColumns = `id, name, description, duration_weeks, created_by, created_at`

func scanProgram(row scanner) (*models.Program, error) {
	var p models.Program
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.DurationWeeks, &p.CreatedBy, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPrograms returns every program, by name.
func (db *DB) ListPrograms(ctx context.Context) ([]models.Program, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+programColumns+` FROM programs ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying programs: %w", err)
	}
	defer rows.Close()

	var result []models.Program
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning program: %w", err)
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

// GetProgram retrieves a program header by ID.
func (db *DB) GetProgram(ctx context.Context, id uuid.UUID) (*models.Program, error) {
	p, err := scanProgram(db.Pool.QueryRow(ctx,
		`SELECT `+programColumns+` FROM programs WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("querying program: %w", classify(err))
	}
	return p, nil
}

// ListProgramBlocks returns the blocks of a program ordered by order_index.
func (db *DB) ListProgramBlocks(ctx context.Context, programID uuid.UUID) ([]models.ProgramBlock, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, program_id, name, order_index, start_week, end_week
		 FROM program_blocks
		 WHERE program_id = $1
		 ORDER BY order_index ASC`, programID)
	if err != nil {
		return nil, fmt.Errorf("querying program blocks: %w", err)
	}
	defer rows.Close()

	var result []models.ProgramBlock
	for rows.Next() {
		var b models.ProgramBlock
		if err := rows.Scan(&b.ID, &b.ProgramID, &b.Name, &b.OrderIndex, &b.StartWeek, &b.EndWeek); err != nil {
			return nil, fmt.Errorf("scanning program block: %w", err)
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

// ListProgramWorkouts returns a program's workouts ordered by week and day.
// A non-nil week restricts the result to that week.
func (db *DB) ListProgramWorkouts(ctx context.Context, programID uuid.UUID, week *int) ([]models.Workout, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, program_id, block_id, name, week, day
		 FROM workouts
		 WHERE program_id = $1 AND ($2::int IS NULL OR week = $2)
		 ORDER BY week ASC, day ASC`, programID, week)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	defer rows.Close()

	var result []models.Workout
	for rows.Next() {
		var w models.Workout
		if err := rows.Scan(&w.ID, &w.ProgramID, &w.BlockID, &w.Name, &w.Week, &w.Day); err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// ListWorkoutExercises returns the target exercises of the given workouts
// ordered by workout and order_index.
func (db *DB) ListWorkoutExercises(ctx context.Context, workoutIDs []uuid.UUID) ([]models.WorkoutExercise, error) {
	if len(workoutIDs) == 0 {
		return nil, nil
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, workout_id, exercise_id, order_index, target_sets, target_reps,
		 target_weight_lbs, target_rpe, rest_seconds
		 FROM workout_exercises
		 WHERE workout_id = ANY($1)
		 ORDER BY workout_id, order_index ASC`, workoutIDs)
	if err != nil {
		return nil, fmt.Errorf("querying workout exercises: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutExercise
	for rows.Next() {
		var we models.WorkoutExercise
		if err := rows.Scan(&we.ID, &we.WorkoutID, &we.ExerciseID, &we.OrderIndex, &we.TargetSets,
			&we.TargetReps, &we.TargetWeightLbs, &we.TargetRPE, &we.RestSeconds); err != nil {
			return nil, fmt.Errorf("scanning workout exercise: %w", err)
		}
		result = append(result, we)
	}
	return result, rows.Err()
}

// CreateProgram inserts a program with its blocks, workouts and target
// exercises in one transaction.
func (db *DB) CreateProgram(ctx context.Context, p *models.ProgramDetail) error {
	return db.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO programs (id, name, description, duration_weeks, created_by)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING created_at`,
			p.ID, p.Name, p.Description, p.DurationWeeks, p.CreatedBy).Scan(&p.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting program: %w", classify(err))
		}

		for _, b := range p.Blocks {
			if _, err := tx.Exec(ctx,
				`INSERT INTO program_blocks (id, program_id, name, order_index, start_week, end_week)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				b.ID, p.ID, b.Name, b.OrderIndex, b.StartWeek, b.EndWeek); err != nil {
				return fmt.Errorf("inserting program block: %w", classify(err))
			}
		}

		for _, w := range p.Workouts {
			if _, err := tx.Exec(ctx,
				`INSERT INTO workouts (id, program_id, block_id, name, week, day)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				w.ID, p.ID, w.BlockID, w.Name, w.Week, w.Day); err != nil {
				return fmt.Errorf("inserting workout: %w", classify(err))
			}
			for _, we := range w.Exercises {
				if _, err := tx.Exec(ctx,
					`INSERT INTO workout_exercises (id, workout_id, exercise_id, order_index, target_sets,
					 target_reps, target_weight_lbs, target_rpe, rest_seconds)
					 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
					we.ID, w.ID, we.ExerciseID, we.OrderIndex, we.TargetSets, we.TargetReps,
					we.TargetWeightLbs, we.TargetRPE, we.RestSeconds); err != nil {
					return fmt.Errorf("inserting workout exercise: %w", classify(err))
				}
			}
		}
		return nil
	})
}

const enrollmentColumns = `id, user_id, program_id, current_week, status, started_at`

func scanEnrollment(row scanner) (*models.AthleteProgram, error) {
	var a models.AthleteProgram
	if err := row.Scan(&a.ID, &a.UserID, &a.ProgramID, &a.CurrentWeek, &a.Status, &a.StartedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// InsertEnrollment enrolls a user in a program. A second enrollment in the
// same program yields ErrConflict.
func (db *DB) InsertEnrollment(ctx context.Context, a *models.AthleteProgram) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO athlete_programs (id, user_id, program_id, current_week, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.UserID, a.ProgramID, a.CurrentWeek, a.Status, a.StartedAt)
	if err != nil {
		return fmt.Errorf("inserting enrollment: %w", classify(err))
	}
	return nil
}

// GetEnrollment retrieves an enrollment by ID.
func (db *DB) GetEnrollment(ctx context.Context, id uuid.UUID) (*models.AthleteProgram, error) {
	a, err := scanEnrollment(db.Pool.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM athlete_programs WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("querying enrollment: %w", classify(err))
	}
	return a, nil
}

// ListEnrollments returns a user's enrollments, newest first.
func (db *DB) ListEnrollments(ctx context.Context, userID uuid.UUID) ([]models.AthleteProgram, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+enrollmentColumns+` FROM athlete_programs
		 WHERE user_id = $1
		 ORDER BY started_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying enrollments: %w", err)
	}
	defer rows.Close()

	var result []models.AthleteProgram
	for rows.Next() {
		a, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning enrollment: %w", err)
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// UpdateEnrollment writes the week and status of an enrollment.
func (db *DB) UpdateEnrollment(ctx context.Context, a *models.AthleteProgram) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE athlete_programs SET current_week = $2, status = $3 WHERE id = $1`,
		a.ID, a.CurrentWeek, a.Status)
	if err != nil {
		return fmt.Errorf("updating enrollment: %w", err)
	}
	return mustAffect(tag)
}
