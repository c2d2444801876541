package postgrest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/storage"
	"github.com/google/uuid"
)

const (
	tableSessions         = "workout_sessions"
	tableSessionExercises = "session_exercises"
	tableSets             = "exercise_sets"
)

type sessionRow struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	TemplateID      *uuid.UUID `json:"template_id"`
	Name            string     `json:"name"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationMinutes *int       `json:"duration_minutes"`
	TotalVolumeLbs  *float64   `json:"total_volume_lbs"`
	Notes           *string    `json:"notes"`
}

func newSessionRow(s *models.Session) sessionRow {
	return sessionRow{
		ID:              s.ID,
		UserID:          s.UserID,
		TemplateID:      s.TemplateID,
		Name:            s.Name,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		DurationMinutes: s.DurationMinutes,
		TotalVolumeLbs:  s.TotalVolumeLbs,
		Notes:           s.Notes,
	}
}

type sessionExerciseRow struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	ExerciseID uuid.UUID `json:"exercise_id"`
	OrderIndex int       `json:"order_index"`
	Notes      *string   `json:"notes"`
}

type setRow struct {
	ID                uuid.UUID `json:"id"`
	SessionExerciseID uuid.UUID `json:"session_exercise_id"`
	SetNumber         int       `json:"set_number"`
	WeightLbs         float64   `json:"weight_lbs"`
	Reps              int       `json:"reps"`
	RPE               *float64  `json:"rpe"`
	Completed         bool      `json:"completed"`
}

func newSetRow(s *models.ExerciseSet) setRow {
	return setRow{
		ID:                s.ID,
		SessionExerciseID: s.SessionExerciseID,
		SetNumber:         s.SetNumber,
		WeightLbs:         s.WeightLbs,
		Reps:              s.Reps,
		RPE:               s.RPE,
		Completed:         s.Completed,
	}
}

// CreateSession inserts an open session. The hosted schema carries the same
// one-open-session index, so a second open session is ErrConflict.
func (c *Client) CreateSession(ctx context.Context, s *models.Session) error {
	var stored models.Session
	if err := c.insert(ctx, tableSessions, newSessionRow(s), &stored); err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	s.CreatedAt = stored.CreatedAt
	return nil
}

func (c *Client) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var s models.Session
	if err := c.getOne(ctx, tableSessions, url.Values{"id": {eq(id)}}, &s); err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &s, nil
}

// GetActiveSession returns the most recently started open session of a user.
func (c *Client) GetActiveSession(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	var rows []models.Session
	err := c.get(ctx, tableSessions, url.Values{
		"user_id":  {eq(userID)},
		"end_time": {"is.null"},
		"order":    {"start_time.desc"},
		"limit":    {"1"},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("querying active session: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("querying active session: %w", storage.ErrNotFound)
	}
	return &rows[0], nil
}

func (c *Client) ListSessions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Session, error) {
	var rows []models.Session
	err := c.get(ctx, tableSessions, url.Values{
		"user_id": {eq(userID)},
		"order":   {"start_time.desc"},
		"limit":   {strconv.Itoa(limit)},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	return rows, nil
}

// DeleteSession removes a session. Exercises and sets cascade server-side.
func (c *Client) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if err := c.remove(ctx, tableSessions, url.Values{"id": {eq(id)}}); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// FinishSession reads the session and its sets, lets finish compute the
// completion and writes it back only if the session is still open. Losing
// that race to another writer yields ErrConflict.
func (c *Client) FinishSession(ctx context.Context, id uuid.UUID, finish models.FinishFunc) (*models.Session, error) {
	s, err := c.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	exercises, err := c.ListSessionExercises(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(exercises))
	for i, se := range exercises {
		ids[i] = se.ID
	}
	sets, err := c.ListSetsForExercises(ctx, ids)
	if err != nil {
		return nil, err
	}

	done, err := finish(*s, sets)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"end_time":         done.EndTime,
		"duration_minutes": done.DurationMinutes,
		"total_volume_lbs": done.TotalVolumeLbs,
	}
	if done.Notes != nil {
		fields["notes"] = *done.Notes
	}
	var updated []models.Session
	if err := c.patch(ctx, tableSessions, url.Values{
		"id":       {eq(id)},
		"end_time": {"is.null"},
	}, fields, &updated); err != nil {
		return nil, fmt.Errorf("completing session: %w", err)
	}
	if len(updated) == 0 {
		return nil, fmt.Errorf("completing session: %w", storage.ErrConflict)
	}
	return &updated[0], nil
}

// ImportSession writes a finished session with its exercises and sets. The
// writes are not atomic; if a child insert fails the session row is deleted
// again so that no partial session stays behind.
func (c *Client) ImportSession(ctx context.Context, d *models.SessionDetail) error {
	var stored models.Session
	if err := c.insert(ctx, tableSessions, newSessionRow(&d.Session), &stored); err != nil {
		return fmt.Errorf("inserting imported session: %w", err)
	}
	d.CreatedAt = stored.CreatedAt

	var (
		exercises []sessionExerciseRow
		sets      []setRow
	)
	for i := range d.Exercises {
		ex := &d.Exercises[i]
		exercises = append(exercises, sessionExerciseRow{
			ID:         ex.ID,
			SessionID:  d.ID,
			ExerciseID: ex.ExerciseID,
			OrderIndex: ex.OrderIndex,
			Notes:      ex.Notes,
		})
		for j := range ex.Sets {
			sets = append(sets, newSetRow(&ex.Sets[j]))
		}
	}

	err := func() error {
		if len(exercises) > 0 {
			if err := c.insertMany(ctx, tableSessionExercises, exercises); err != nil {
				return fmt.Errorf("inserting imported exercises: %w", err)
			}
		}
		if len(sets) > 0 {
			if err := c.insertMany(ctx, tableSets, sets); err != nil {
				return fmt.Errorf("inserting imported sets: %w", err)
			}
		}
		return nil
	}()
	if err != nil {
		if rmErr := c.DeleteSession(ctx, d.ID); rmErr != nil {
			return errors.Join(err, rmErr)
		}
		return err
	}
	return nil
}

func (c *Client) InsertSessionExercise(ctx context.Context, se *models.SessionExercise) error {
	err := c.insert(ctx, tableSessionExercises, sessionExerciseRow{
		ID:         se.ID,
		SessionID:  se.SessionID,
		ExerciseID: se.ExerciseID,
		OrderIndex: se.OrderIndex,
		Notes:      se.Notes,
	}, nil)
	if err != nil {
		return fmt.Errorf("inserting session exercise: %w", err)
	}
	return nil
}

func (c *Client) DeleteSessionExercise(ctx context.Context, sessionID, id uuid.UUID) error {
	err := c.remove(ctx, tableSessionExercises, url.Values{
		"id":         {eq(id)},
		"session_id": {eq(sessionID)},
	})
	if err != nil {
		return fmt.Errorf("deleting session exercise: %w", err)
	}
	return nil
}

// ListSessionExercises embeds the catalog row to fill name and category.
func (c *Client) ListSessionExercises(ctx context.Context, sessionID uuid.UUID) ([]models.SessionExercise, error) {
	var rows []struct {
		models.SessionExercise
		Exercise struct {
			Name     string          `json:"name"`
			Category models.Category `json:"category"`
		} `json:"exercises"`
	}
	err := c.get(ctx, tableSessionExercises, url.Values{
		"select":     {"*,exercises(name,category)"},
		"session_id": {eq(sessionID)},
		"order":      {"order_index.asc"},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("querying session exercises: %w", err)
	}

	result := make([]models.SessionExercise, 0, len(rows))
	for _, r := range rows {
		se := r.SessionExercise
		se.ExerciseName = r.Exercise.Name
		se.Category = r.Exercise.Category
		result = append(result, se)
	}
	return result, nil
}

// ownedExercise checks that a session exercise belongs to sessionID.
func (c *Client) ownedExercise(ctx context.Context, sessionID, id uuid.UUID) error {
	var row struct {
		ID uuid.UUID `json:"id"`
	}
	return c.getOne(ctx, tableSessionExercises, url.Values{
		"select":     {"id"},
		"id":         {eq(id)},
		"session_id": {eq(sessionID)},
	}, &row)
}

// ownedSet checks that a set belongs to an exercise of sessionID.
func (c *Client) ownedSet(ctx context.Context, sessionID, id uuid.UUID) error {
	var row struct {
		ID uuid.UUID `json:"id"`
	}
	return c.getOne(ctx, tableSets, url.Values{
		"select":                       {"id,session_exercises!inner(session_id)"},
		"id":                           {eq(id)},
		"session_exercises.session_id": {eq(sessionID)},
	}, &row)
}

func (c *Client) InsertSet(ctx context.Context, sessionID uuid.UUID, set *models.ExerciseSet) error {
	if err := c.ownedExercise(ctx, sessionID, set.SessionExerciseID); err != nil {
		return fmt.Errorf("inserting set: %w", err)
	}
	var stored models.ExerciseSet
	if err := c.insert(ctx, tableSets, newSetRow(set), &stored); err != nil {
		return fmt.Errorf("inserting set: %w", err)
	}
	set.CreatedAt = stored.CreatedAt
	return nil
}

func (c *Client) UpdateSet(ctx context.Context, sessionID, id uuid.UUID, patch models.SetPatch) (*models.ExerciseSet, error) {
	if err := c.ownedSet(ctx, sessionID, id); err != nil {
		return nil, fmt.Errorf("updating set: %w", err)
	}
	if patch.Empty() {
		var set models.ExerciseSet
		if err := c.getOne(ctx, tableSets, url.Values{"id": {eq(id)}}, &set); err != nil {
			return nil, fmt.Errorf("updating set: %w", err)
		}
		return &set, nil
	}
	var updated []models.ExerciseSet
	if err := c.patch(ctx, tableSets, url.Values{"id": {eq(id)}}, patch, &updated); err != nil {
		return nil, fmt.Errorf("updating set: %w", err)
	}
	if len(updated) == 0 {
		return nil, fmt.Errorf("updating set: %w", storage.ErrNotFound)
	}
	return &updated[0], nil
}

func (c *Client) DeleteSet(ctx context.Context, sessionID, id uuid.UUID) error {
	if err := c.ownedSet(ctx, sessionID, id); err != nil {
		return fmt.Errorf("deleting set: %w", err)
	}
	if err := c.remove(ctx, tableSets, url.Values{"id": {eq(id)}}); err != nil {
		return fmt.Errorf("deleting set: %w", err)
	}
	return nil
}

func (c *Client) ListSetsForExercises(ctx context.Context, exerciseIDs []uuid.UUID) ([]models.ExerciseSet, error) {
	if len(exerciseIDs) == 0 {
		return nil, nil
	}
	var sets []models.ExerciseSet
	err := c.get(ctx, tableSets, url.Values{
		"session_exercise_id": {in(exerciseIDs)},
		"order":               {"session_exercise_id.asc,set_number.asc"},
	}, &sets)
	if err != nil {
		return nil, fmt.Errorf("querying sets: %w", err)
	}
	return sets, nil
}
