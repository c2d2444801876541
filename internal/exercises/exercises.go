// Package exercises serves the exercise catalog: shared built-ins plus
// custom exercises that only their creator can see and change.
package exercises

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/storage"
	"github.com/google/uuid"
)

// ErrNotOwner is returned when a user edits an exercise they did not create.
var ErrNotOwner = errors.New("exercise is not owned by user")

// Store is the persistence the catalog needs.
type Store interface {
	ListExercises(ctx context.Context, f models.ExerciseFilter) ([]models.Exercise, error)
	GetExercise(ctx context.Context, id uuid.UUID) (*models.Exercise, error)
	FindExerciseByName(ctx context.Context, userID uuid.UUID, name string) (*models.Exercise, error)
	InsertExercise(ctx context.Context, e *models.Exercise) error
	UpdateExercise(ctx context.Context, e *models.Exercise) error
	DeleteExercise(ctx context.Context, id uuid.UUID) error
}

var _ Store = (*storage.DB)(nil)

// Service implements catalog operations.
type Service struct {
	store Store
	log   *slog.Logger
}

// NewService creates a catalog service.
func NewService(store Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log}
}

// NewExercise holds the fields of a custom exercise.
type NewExercise struct {
	Name        string          `json:"name"`
	Category    models.Category `json:"category"`
	Description *string         `json:"description,omitempty"`
	FormNotes   *string         `json:"form_notes,omitempty"`
}

// List returns built-ins and the user's custom exercises, optionally
// restricted to one category.
func (s *Service) List(ctx context.Context, userID uuid.UUID, category *models.Category) ([]models.Exercise, error) {
	list, err := s.store.ListExercises(ctx, models.ExerciseFilter{UserID: userID, Category: category})
	if err != nil {
		s.log.Error("listing exercises", "user_id", userID, "error", err)
		return nil, err
	}
	return list, nil
}

// Get returns an exercise visible to userID, or nil.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*models.Exercise, error) {
	e, err := s.store.GetExercise(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("getting exercise", "exercise_id", id, "error", err)
		return nil, err
	}
	if e.IsCustom && !e.OwnedBy(userID) {
		return nil, nil
	}
	return e, nil
}

// CreateCustom adds a custom exercise owned by userID.
func (s *Service) CreateCustom(ctx context.Context, userID uuid.UUID, in NewExercise) (*models.Exercise, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: exercise name is required", models.ErrInvalid)
	}
	cat, err := models.ParseCategory(string(in.Category))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}

	e := &models.Exercise{
		ID:          uuid.New(),
		Name:        name,
		Category:    cat,
		Description: in.Description,
		FormNotes:   in.FormNotes,
		IsCustom:    true,
		CreatedBy:   &userID,
	}
	if err := s.store.InsertExercise(ctx, e); err != nil {
		s.log.Error("creating exercise", "user_id", userID, "name", name, "error", err)
		return nil, err
	}
	return e, nil
}

// Update changes a custom exercise. Built-ins and other users' exercises
// yield ErrNotOwner.
func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, patch models.ExercisePatch) (*models.Exercise, error) {
	e, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if patch.Category != nil {
		if _, err := models.ParseCategory(string(*patch.Category)); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalid, err)
		}
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, fmt.Errorf("%w: exercise name is required", models.ErrInvalid)
	}

	next := patch.Apply(*e)
	if err := s.store.UpdateExercise(ctx, &next); err != nil {
		s.log.Error("updating exercise", "exercise_id", id, "error", err)
		return nil, err
	}
	return &next, nil
}

// Delete removes a custom exercise owned by userID.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteExercise(ctx, id); err != nil {
		s.log.Error("deleting exercise", "exercise_id", id, "error", err)
		return err
	}
	return nil
}

// FindOrCreate resolves name against the catalog visible to userID and
// creates a custom exercise when nothing matches.
func (s *Service) FindOrCreate(ctx context.Context, userID uuid.UUID, name string, category models.Category) (*models.Exercise, error) {
	e, err := s.store.FindExerciseByName(ctx, userID, strings.TrimSpace(name))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		s.log.Error("finding exercise", "name", name, "error", err)
		return nil, err
	}
	return s.CreateCustom(ctx, userID, NewExercise{Name: name, Category: category})
}

func (s *Service) owned(ctx context.Context, userID, id uuid.UUID) (*models.Exercise, error) {
	e, err := s.store.GetExercise(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.OwnedBy(userID) {
		return nil, ErrNotOwner
	}
	return e, nil
}
