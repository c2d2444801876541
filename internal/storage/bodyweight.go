package storage

import (
	"context"
	"fmt"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

// InsertBodyWeight adds a body-weight entry.
func (db *DB) InsertBodyWeight(ctx context.Context, e *models.BodyWeightEntry) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO body_weight_log (id, user_id, weight_lbs, logged_at, notes)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.UserID, e.WeightLbs, e.LoggedAt, e.Notes)
	if err != nil {
		return fmt.Errorf("inserting body weight: %w", err)
	}
	return nil
}

// ListBodyWeight returns a user's most recent entries, newest first.
func (db *DB) ListBodyWeight(ctx context.Context, userID uuid.UUID, limit int) ([]models.BodyWeightEntry, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, weight_lbs, logged_at, notes
		 FROM body_weight_log
		 WHERE user_id = $1
		 ORDER BY logged_at DESC
		 LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying body weight: %w", err)
	}
	defer rows.Close()

	var result []models.BodyWeightEntry
	for rows.Next() {
		var e models.BodyWeightEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.WeightLbs, &e.LoggedAt, &e.Notes); err != nil {
			return nil, fmt.Errorf("scanning body weight: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// DeleteBodyWeight removes one of the user's entries.
func (db *DB) DeleteBodyWeight(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM body_weight_log WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting body weight: %w", err)
	}
	return mustAffect(tag)
}
