package postgrest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/storage"
	"github.com/google/uuid"
)

const (
	tableRecords   = "personal_records"
	tableRecordLog = "personal_record_log"
)

func (c *Client) GetRecord(ctx context.Context, userID, exerciseID uuid.UUID) (*models.PersonalRecord, error) {
	var r models.PersonalRecord
	err := c.getOne(ctx, tableRecords, url.Values{
		"user_id":     {eq(userID)},
		"exercise_id": {eq(exerciseID)},
	}, &r)
	if err != nil {
		return nil, fmt.Errorf("querying personal record: %w", err)
	}
	return &r, nil
}

func (c *Client) ListRecords(ctx context.Context, userID uuid.UUID) ([]models.PersonalRecord, error) {
	var rows []models.PersonalRecord
	err := c.get(ctx, tableRecords, url.Values{
		"user_id": {eq(userID)},
		"order":   {"achieved_at.desc"},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("querying personal records: %w", err)
	}
	return rows, nil
}

func (c *Client) RecordHistory(ctx context.Context, userID, exerciseID uuid.UUID) ([]models.PersonalRecord, error) {
	var rows []models.PersonalRecord
	err := c.get(ctx, tableRecordLog, url.Values{
		"user_id":     {eq(userID)},
		"exercise_id": {eq(exerciseID)},
		"order":       {"achieved_at.desc"},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("querying personal record history: %w", err)
	}
	return rows, nil
}

// UpsertRecord stores r as the current record when it beats the stored one
// on weight, then reps, and appends it to the history log. A candidate that
// does not win, or loses a concurrent race, yields ErrConflict.
func (c *Client) UpsertRecord(ctx context.Context, r *models.PersonalRecord) error {
	current, err := c.GetRecord(ctx, r.UserID, r.ExerciseID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if err := c.insertRecord(ctx, r); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		r.ID = current.ID
		if err := c.replaceRecord(ctx, r); err != nil {
			return err
		}
	}

	if err := c.insert(ctx, tableRecordLog, models.PersonalRecord{
		ID:         uuid.New(),
		UserID:     r.UserID,
		ExerciseID: r.ExerciseID,
		WeightLbs:  r.WeightLbs,
		Reps:       r.Reps,
		AchievedAt: r.AchievedAt,
		Notes:      r.Notes,
	}, nil); err != nil {
		return fmt.Errorf("logging personal record: %w", err)
	}
	return nil
}

// insertRecord creates the first record of a pair. A row that appeared in the
// meantime is left alone.
func (c *Client) insertRecord(ctx context.Context, r *models.PersonalRecord) error {
	var stored []models.PersonalRecord
	err := c.do(ctx, request{
		method: http.MethodPost,
		table:  tableRecords,
		query:  url.Values{"on_conflict": {"user_id,exercise_id"}},
		body:   r,
		prefer: []string{"resolution=ignore-duplicates", "return=representation"},
	}, &stored)
	if err != nil {
		return fmt.Errorf("inserting personal record: %w", err)
	}
	if len(stored) == 0 {
		return storage.ErrConflict
	}
	return nil
}

// replaceRecord patches the stored row only while r still dominates it.
func (c *Client) replaceRecord(ctx context.Context, r *models.PersonalRecord) error {
	w := strconv.FormatFloat(r.WeightLbs, 'f', -1, 64)
	var updated []models.PersonalRecord
	err := c.patch(ctx, tableRecords, url.Values{
		"id": {eq(r.ID)},
		"or": {fmt.Sprintf("(weight_lbs.lt.%s,and(weight_lbs.eq.%s,reps.lt.%d))", w, w, r.Reps)},
	}, map[string]any{
		"weight_lbs":  r.WeightLbs,
		"reps":        r.Reps,
		"achieved_at": r.AchievedAt,
		"notes":       r.Notes,
	}, &updated)
	if err != nil {
		return fmt.Errorf("updating personal record: %w", err)
	}
	if len(updated) == 0 {
		return storage.ErrConflict
	}
	return nil
}
