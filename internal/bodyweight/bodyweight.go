// Package bodyweight is the body-weight log.
package bodyweight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/storage"
	"github.com/google/uuid"
)

const (
	defaultLimit = 30
	maxLimit     = 365
)

// Store is the persistence the body-weight log needs.
type Store interface {
	InsertBodyWeight(ctx context.Context, e *models.BodyWeightEntry) error
	ListBodyWeight(ctx context.Context, userID uuid.UUID, limit int) ([]models.BodyWeightEntry, error)
	DeleteBodyWeight(ctx context.Context, userID, id uuid.UUID) error
}

var _ Store = (*storage.DB)(nil)

// Entry is a new measurement. LoggedAt defaults to now.
type Entry struct {
	WeightLbs float64    `json:"weight_lbs"`
	LoggedAt  *time.Time `json:"logged_at,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
}

type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

func NewService(store Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// Log records a measurement.
func (s *Service) Log(ctx context.Context, userID uuid.UUID, in Entry) (*models.BodyWeightEntry, error) {
	if in.WeightLbs <= 0 {
		return nil, fmt.Errorf("%w: weight_lbs must be positive", models.ErrInvalid)
	}
	e := &models.BodyWeightEntry{
		ID:        uuid.New(),
		UserID:    userID,
		WeightLbs: in.WeightLbs,
		LoggedAt:  s.now().UTC(),
		Notes:     in.Notes,
	}
	if in.LoggedAt != nil {
		e.LoggedAt = *in.LoggedAt
	}
	if err := s.store.InsertBodyWeight(ctx, e); err != nil {
		s.log.Error("logging body weight", "user_id", userID, "error", err)
		return nil, err
	}
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (s *Service) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]models.BodyWeightEntry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	list, err := s.store.ListBodyWeight(ctx, userID, min(limit, maxLimit))
	if err != nil {
		s.log.Error("listing body weight", "user_id", userID, "error", err)
		return nil, err
	}
	return list, nil
}

// Latest returns the newest entry, or nil if the user has none.
func (s *Service) Latest(ctx context.Context, userID uuid.UUID) (*models.BodyWeightEntry, error) {
	list, err := s.Recent(ctx, userID, 1)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// Delete removes one of the user's entries.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	err := s.store.DeleteBodyWeight(ctx, userID, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Error("deleting body weight", "user_id", userID, "entry_id", id, "error", err)
	}
	return err
}

// Change is the difference between the newest and the oldest entry of a
// newest-first window. Fewer than two entries yield 0.
func Change(entries []models.BodyWeightEntry) float64 {
	if len(entries) < 2 {
		return 0
	}
	return entries[0].WeightLbs - entries[len(entries)-1].WeightLbs
}
