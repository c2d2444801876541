package memstore

import (
	"context"
	"sort"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/storage"
	"github.com/google/uuid"
)

func (s *Store) GetRecord(_ context.Context, userID, exerciseID uuid.UUID) (*models.PersonalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[[2]uuid.UUID{userID, exerciseID}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &r, nil
}

func (s *Store) ListRecords(_ context.Context, userID uuid.UUID) ([]models.PersonalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.PersonalRecord
	for _, r := range s.records {
		if r.UserID == userID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AchievedAt.After(result[j].AchievedAt) })
	return result, nil
}

func (s *Store) RecordHistory(_ context.Context, userID, exerciseID uuid.UUID) ([]models.PersonalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.PersonalRecord
	for _, r := range s.recordLog {
		if r.UserID == userID && r.ExerciseID == exerciseID {
			result = append(result, r)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].AchievedAt.After(result[j].AchievedAt) })
	return result, nil
}

// UpsertRecord mirrors the conditional upsert of the Postgres gateway.
func (s *Store) UpsertRecord(_ context.Context, r *models.PersonalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]uuid.UUID{r.UserID, r.ExerciseID}
	if cur, ok := s.records[key]; ok {
		if !(r.WeightLbs > cur.WeightLbs || (r.WeightLbs == cur.WeightLbs && r.Reps > cur.Reps)) {
			return storage.ErrConflict
		}
		r.ID = cur.ID
	}
	s.records[key] = *r
	entry := *r
	entry.ID = uuid.New()
	s.recordLog = append(s.recordLog, entry)
	return nil
}
