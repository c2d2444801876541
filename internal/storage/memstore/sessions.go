package memstore

import (
	"context"
	"sort"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/storage"
	"github.com/google/uuid"
)

func (s *Store) CreateSession(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.EndTime == nil {
		for _, other := range s.sessions {
			if other.UserID == sess.UserID && other.EndTime == nil {
				return storage.ErrConflict
			}
		}
	}
	sess.CreatedAt = s.now()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *Store) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &sess, nil
}

func (s *Store) GetActiveSession(_ context.Context, userID uuid.UUID) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *models.Session
	for _, sess := range s.sessions {
		if sess.UserID != userID || sess.EndTime != nil {
			continue
		}
		if found == nil || sess.StartTime.After(found.StartTime) {
			sess := sess
			found = &sess
		}
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return found, nil
}

func (s *Store) ListSessions(_ context.Context, userID uuid.UUID, limit int) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			result = append(result, sess)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.After(result[j].StartTime) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) DeleteSession(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return storage.ErrNotFound
	}
	for seID, se := range s.sessionExercises {
		if se.SessionID == id {
			s.deleteSessionExerciseLocked(seID)
		}
	}
	delete(s.sessions, id)
	return nil
}

// FinishSession holds the store lock across the read, the callback and the
// write, which gives the same isolation as the row lock in Postgres.
func (s *Store) FinishSession(_ context.Context, id uuid.UUID, finish models.FinishFunc) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}

	var sets []models.ExerciseSet
	for _, set := range s.sets {
		if se, ok := s.sessionExercises[set.SessionExerciseID]; ok && se.SessionID == id {
			sets = append(sets, set)
		}
	}

	c, err := finish(sess, sets)
	if err != nil {
		return nil, err
	}

	end, dur, vol := c.EndTime, c.DurationMinutes, c.TotalVolumeLbs
	sess.EndTime = &end
	sess.DurationMinutes = &dur
	sess.TotalVolumeLbs = &vol
	if c.Notes != nil {
		sess.Notes = c.Notes
	}
	s.sessions[id] = sess
	return &sess, nil
}

func (s *Store) ImportSession(_ context.Context, d *models.SessionDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[d.ID]; ok {
		return storage.ErrConflict
	}
	d.CreatedAt = s.now()
	s.sessions[d.ID] = d.Session
	for _, ex := range d.Exercises {
		se := ex.SessionExercise
		se.SessionID = d.ID
		s.sessionExercises[se.ID] = se
		for _, set := range ex.Sets {
			set.SessionExerciseID = se.ID
			set.CreatedAt = d.CreatedAt
			s.sets[set.ID] = set
		}
	}
	return nil
}

func (s *Store) InsertSessionExercise(_ context.Context, se *models.SessionExercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[se.SessionID]; !ok {
		return storage.ErrNotFound
	}
	if _, ok := s.exercises[se.ExerciseID]; !ok {
		return storage.ErrNotFound
	}
	for _, other := range s.sessionExercises {
		if other.SessionID == se.SessionID && other.OrderIndex == se.OrderIndex {
			return storage.ErrConflict
		}
	}
	s.sessionExercises[se.ID] = *se
	return nil
}

func (s *Store) DeleteSessionExercise(_ context.Context, sessionID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	se, ok := s.sessionExercises[id]
	if !ok || se.SessionID != sessionID {
		return storage.ErrNotFound
	}
	s.deleteSessionExerciseLocked(id)
	return nil
}

func (s *Store) deleteSessionExerciseLocked(id uuid.UUID) {
	for setID, set := range s.sets {
		if set.SessionExerciseID == id {
			delete(s.sets, setID)
		}
	}
	delete(s.sessionExercises, id)
}

func (s *Store) ListSessionExercises(_ context.Context, sessionID uuid.UUID) ([]models.SessionExercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.SessionExercise
	for _, se := range s.sessionExercises {
		if se.SessionID != sessionID {
			continue
		}
		if e, ok := s.exercises[se.ExerciseID]; ok {
			se.ExerciseName, se.Category = e.Name, e.Category
		}
		result = append(result, se)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].OrderIndex < result[j].OrderIndex })
	return result, nil
}

func (s *Store) InsertSet(_ context.Context, sessionID uuid.UUID, set *models.ExerciseSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ownsExerciseLocked(sessionID, set.SessionExerciseID) {
		return storage.ErrNotFound
	}
	set.CreatedAt = s.now()
	s.sets[set.ID] = *set
	return nil
}

func (s *Store) UpdateSet(_ context.Context, sessionID, id uuid.UUID, patch models.SetPatch) (*models.ExerciseSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[id]
	if !ok || !s.ownsExerciseLocked(sessionID, set.SessionExerciseID) {
		return nil, storage.ErrNotFound
	}
	set = patch.Apply(set)
	s.sets[id] = set
	return &set, nil
}

func (s *Store) DeleteSet(_ context.Context, sessionID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[id]
	if !ok || !s.ownsExerciseLocked(sessionID, set.SessionExerciseID) {
		return storage.ErrNotFound
	}
	delete(s.sets, id)
	return nil
}

func (s *Store) ListSetsForExercises(_ context.Context, exerciseIDs []uuid.UUID) ([]models.ExerciseSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(exerciseIDs))
	for _, id := range exerciseIDs {
		want[id] = true
	}
	var result []models.ExerciseSet
	for _, set := range s.sets {
		if want[set.SessionExerciseID] {
			result = append(result, set)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SessionExerciseID != result[j].SessionExerciseID {
			return result[i].SessionExerciseID.String() < result[j].SessionExerciseID.String()
		}
		return result[i].SetNumber < result[j].SetNumber
	})
	return result, nil
}

func (s *Store) ownsExerciseLocked(sessionID, sessionExerciseID uuid.UUID) bool {
	se, ok := s.sessionExercises[sessionExerciseID]
	return ok && se.SessionID == sessionID
}
