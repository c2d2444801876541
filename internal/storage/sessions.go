package storage

import (
	"context"
	"fmt"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const sessionColumns = `id, user_id, template_id, name, start_time, end_time,
	duration_minutes, total_volume_lbs, notes, created_at`

func scanSession(row scanner) (*models.Session, error) {
	var s models.Session
	if err := row.Scan(&s.ID, &s.UserID, &s.TemplateID, &s.Name, &s.StartTime, &s.EndTime,
		&s.DurationMinutes, &s.TotalVolumeLbs, &s.Notes, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSession inserts a new session header. CreatedAt is filled from the database.
// A second open session for the same user violates idx_workout_sessions_one_open
// and is reported as ErrConflict.
func (db *DB) CreateSession(ctx context.Context, s *models.Session) error {
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO workout_sessions (id, user_id, template_id, name, start_time, notes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		s.ID, s.UserID, s.TemplateID, s.Name, s.StartTime, s.Notes).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting session: %w", classify(err))
	}
	return nil
}

// GetSession retrieves a session header by ID.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s, err := scanSession(db.Pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", classify(err))
	}
	return s, nil
}

// GetActiveSession returns the most recently started open session of a user.
func (db *DB) GetActiveSession(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	s, err := scanSession(db.Pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions
		 WHERE user_id = $1 AND end_time IS NULL
		 ORDER BY start_time DESC
		 LIMIT 1`, userID))
	if err != nil {
		return nil, fmt.Errorf("querying active session: %w", classify(err))
	}
	return s, nil
}

// ListSessions returns a user's sessions, newest first.
func (db *DB) ListSessions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Session, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions
		 WHERE user_id = $1
		 ORDER BY start_time DESC
		 LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

// DeleteSession removes a session together with its exercises and sets.
func (db *DB) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM workout_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return mustAffect(tag)
}

// FinishSession locks the session header, hands it and all of its sets to
// finish, and writes the resulting completion in the same transaction.
func (db *DB) FinishSession(ctx context.Context, id uuid.UUID, finish models.FinishFunc) (*models.Session, error) {
	var done *models.Session
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		s, err := scanSession(tx.QueryRow(ctx,
			`SELECT `+sessionColumns+` FROM workout_sessions WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return fmt.Errorf("locking session: %w", classify(err))
		}

		rows, err := tx.Query(ctx,
			`SELECT s.id, s.session_exercise_id, s.set_number, s.weight_lbs, s.reps, s.rpe, s.completed, s.created_at
			 FROM exercise_sets s
			 JOIN session_exercises se ON se.id = s.session_exercise_id
			 WHERE se.session_id = $1`, id)
		if err != nil {
			return fmt.Errorf("querying session sets: %w", err)
		}
		sets, err := collectSets(rows)
		if err != nil {
			return err
		}

		c, err := finish(*s, sets)
		if err != nil {
			return err
		}

		done, err = scanSession(tx.QueryRow(ctx,
			`UPDATE workout_sessions
			 SET end_time = $2, duration_minutes = $3, total_volume_lbs = $4, notes = COALESCE($5, notes)
			 WHERE id = $1
			 RETURNING `+sessionColumns,
			id, c.EndTime, c.DurationMinutes, c.TotalVolumeLbs, c.Notes))
		if err != nil {
			return fmt.Errorf("completing session: %w", classify(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return done, nil
}

// ImportSession inserts a finished session with all of its exercises and sets
// in one transaction.
func (db *DB) ImportSession(ctx context.Context, d *models.SessionDetail) error {
	return db.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO workout_sessions (id, user_id, template_id, name, start_time, end_time,
			 duration_minutes, total_volume_lbs, notes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING created_at`,
			d.ID, d.UserID, d.TemplateID, d.Name, d.StartTime, d.EndTime,
			d.DurationMinutes, d.TotalVolumeLbs, d.Notes).Scan(&d.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting imported session: %w", classify(err))
		}

		for _, ex := range d.Exercises {
			if _, err := tx.Exec(ctx,
				`INSERT INTO session_exercises (id, session_id, exercise_id, order_index, notes)
				 VALUES ($1, $2, $3, $4, $5)`,
				ex.ID, d.ID, ex.ExerciseID, ex.OrderIndex, ex.Notes); err != nil {
				return fmt.Errorf("inserting imported exercise: %w", classify(err))
			}
			for _, set := range ex.Sets {
				if _, err := tx.Exec(ctx,
					`INSERT INTO exercise_sets (id, session_exercise_id, set_number, weight_lbs, reps, rpe, completed)
					 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
					set.ID, ex.ID, set.SetNumber, set.WeightLbs, set.Reps, set.RPE, set.Completed); err != nil {
					return fmt.Errorf("inserting imported set: %w", classify(err))
				}
			}
		}
		return nil
	})
}
