package storage

import (
	"context"
	"fmt"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const recordColumns = `id, user_id, exercise_id, weight_lbs, reps, achieved_at, notes`

func scanRecord(row scanner) (*models.PersonalRecord, error) {
	var r models.PersonalRecord
	if err := row.Scan(&r.ID, &r.UserID, &r.ExerciseID, &r.WeightLbs, &r.Reps,
		&r.AchievedAt, &r.Notes); err != nil {
		return nil, err
	}
	return &r, nil
}

func collectRecords(rows pgx.Rows) ([]models.PersonalRecord, error) {
	defer rows.Close()
	var result []models.PersonalRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning personal record: %w", err)
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

// GetRecord returns the current personal record for a user and exercise.
func (db *DB) GetRecord(ctx context.Context, userID, exerciseID uuid.UUID) (*models.PersonalRecord, error) {
	r, err := scanRecord(db.Pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM personal_records
		 WHERE user_id = $1 AND exercise_id = $2`, userID, exerciseID))
	if err != nil {
		return nil, fmt.Errorf("querying personal record: %w", classify(err))
	}
	return r, nil
}

// ListRecords returns all current personal records of a user, newest first.
func (db *DB) ListRecords(ctx context.Context, userID uuid.UUID) ([]models.PersonalRecord, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+recordColumns+` FROM personal_records
		 WHERE user_id = $1
		 ORDER BY achieved_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying personal records: %w", err)
	}
	return collectRecords(rows)
}

// RecordHistory returns every record a user has set on an exercise, newest first.
func (db *DB) RecordHistory(ctx context.Context, userID, exerciseID uuid.UUID) ([]models.PersonalRecord, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+recordColumns+` FROM personal_record_log
		 WHERE user_id = $1 AND exercise_id = $2
		 ORDER BY achieved_at DESC`, userID, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("querying personal record history: %w", err)
	}
	return collectRecords(rows)
}

// UpsertRecord stores r as the current record for its (user, exercise) pair and
// appends it to the history log. The replacement only happens when r beats the
// stored row on weight, then reps; otherwise ErrConflict is returned and
// nothing is written.
func (db *DB) UpsertRecord(ctx context.Context, r *models.PersonalRecord) error {
	return db.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO personal_records (id, user_id, exercise_id, weight_lbs, reps, achieved_at, notes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (user_id, exercise_id) DO UPDATE
			 SET weight_lbs = EXCLUDED.weight_lbs, reps = EXCLUDED.reps,
			     achieved_at = EXCLUDED.achieved_at, notes = EXCLUDED.notes
			 WHERE EXCLUDED.weight_lbs > personal_records.weight_lbs
			    OR (EXCLUDED.weight_lbs = personal_records.weight_lbs AND EXCLUDED.reps > personal_records.reps)
			 RETURNING id`,
			r.ID, r.UserID, r.ExerciseID, r.WeightLbs, r.Reps, r.AchievedAt, r.Notes).Scan(&r.ID)
		if err != nil {
			if classify(err) == ErrNotFound {
				return ErrConflict
			}
			return fmt.Errorf("upserting personal record: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO personal_record_log (id, user_id, exercise_id, weight_lbs, reps, achieved_at, notes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New(), r.UserID, r.ExerciseID, r.WeightLbs, r.Reps, r.AchievedAt, r.Notes); err != nil {
			return fmt.Errorf("logging personal record: %w", err)
		}
		return nil
	})
}
