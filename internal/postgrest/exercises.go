package postgrest

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/storage"
	"github.com/google/uuid"
)

const tableExercises = "exercises"

type exerciseRow struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Category    models.Category `json:"category"`
	Description *string         `json:"description"`
	FormNotes   *string         `json:"form_notes"`
	IsCustom    bool            `json:"is_custom"`
	CreatedBy   *uuid.UUID      `json:"created_by"`
}

// visibleTo matches built-ins and the custom exercises of userID.
func visibleTo(userID uuid.UUID) string {
	return fmt.Sprintf("(is_custom.eq.false,created_by.eq.%s)", userID)
}

func (c *Client) ListExercises(ctx context.Context, f models.ExerciseFilter) ([]models.Exercise, error) {
	q := url.Values{
		"or":    {visibleTo(f.UserID)},
		"order": {"name.asc"},
	}
	if f.Category != nil {
		q.Set("category", eq(*f.Category))
	}
	var rows []models.Exercise
	if err := c.get(ctx, tableExercises, q, &rows); err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	return rows, nil
}

func (c *Client) GetExercise(ctx context.Context, id uuid.UUID) (*models.Exercise, error) {
	var e models.Exercise
	if err := c.getOne(ctx, tableExercises, url.Values{"id": {eq(id)}}, &e); err != nil {
		return nil, fmt.Errorf("querying exercise: %w", err)
	}
	return &e, nil
}

// FindExerciseByName matches name case-insensitively and prefers built-ins.
func (c *Client) FindExerciseByName(ctx context.Context, userID uuid.UUID, name string) (*models.Exercise, error) {
	var rows []models.Exercise
	err := c.get(ctx, tableExercises, url.Values{
		"name":  {"ilike." + name},
		"or":    {visibleTo(userID)},
		"order": {"is_custom.asc"},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("querying exercise by name: %w", err)
	}
	// ilike treats * and % as wildcards, so confirm the exact match here.
	for i := range rows {
		if strings.EqualFold(rows[i].Name, name) {
			return &rows[i], nil
		}
	}
	return nil, fmt.Errorf("querying exercise by name: %w", storage.ErrNotFound)
}

func (c *Client) InsertExercise(ctx context.Context, e *models.Exercise) error {
	var stored models.Exercise
	err := c.insert(ctx, tableExercises, exerciseRow{
		ID:          e.ID,
		Name:        e.Name,
		Category:    e.Category,
		Description: e.Description,
		FormNotes:   e.FormNotes,
		IsCustom:    e.IsCustom,
		CreatedBy:   e.CreatedBy,
	}, &stored)
	if err != nil {
		return fmt.Errorf("inserting exercise: %w", err)
	}
	e.CreatedAt = stored.CreatedAt
	return nil
}

// UpdateExercise overwrites the mutable fields of a custom exercise.
func (c *Client) UpdateExercise(ctx context.Context, e *models.Exercise) error {
	var updated []models.Exercise
	err := c.patch(ctx, tableExercises, url.Values{
		"id":        {eq(e.ID)},
		"is_custom": {"is.true"},
	}, map[string]any{
		"name":        e.Name,
		"category":    e.Category,
		"description": e.Description,
		"form_notes":  e.FormNotes,
	}, &updated)
	if err != nil {
		return fmt.Errorf("updating exercise: %w", err)
	}
	if len(updated) == 0 {
		return fmt.Errorf("updating exercise: %w", storage.ErrNotFound)
	}
	return nil
}

// DeleteExercise removes a custom exercise. Built-ins never match.
func (c *Client) DeleteExercise(ctx context.Context, id uuid.UUID) error {
	err := c.remove(ctx, tableExercises, url.Values{
		"id":        {eq(id)},
		"is_custom": {"is.true"},
	})
	if err != nil {
		return fmt.Errorf("deleting exercise: %w", err)
	}
	return nil
}
