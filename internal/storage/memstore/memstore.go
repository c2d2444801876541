// Package memstore is an in-process implementation of every service store.
// It backs the "memory" backend and the service and handler tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/storage"
	"github.com/google/uuid"
)

// Store holds all rows in maps guarded by a single mutex.
type Store struct {
	mu sync.Mutex

	users         map[uuid.UUID]models.User
	refreshTokens map[string]models.RefreshToken

	exercises map[uuid.UUID]models.Exercise

	sessions         map[uuid.UUID]models.Session
	sessionExercises map[uuid.UUID]models.SessionExercise
	sets             map[uuid.UUID]models.ExerciseSet

	records   map[[2]uuid.UUID]models.PersonalRecord
	recordLog []models.PersonalRecord

	bodyWeight map[uuid.UUID]models.BodyWeightEntry

	programs    map[uuid.UUID]models.ProgramDetail
	enrollments map[uuid.UUID]models.AthleteProgram

	now func() time.Time
}

// New returns an empty store with the built-in exercise catalog loaded.
func New() *Store {
	s := &Store{
		users:            make(map[uuid.UUID]models.User),
		refreshTokens:    make(map[string]models.RefreshToken),
		exercises:        make(map[uuid.UUID]models.Exercise),
		sessions:         make(map[uuid.UUID]models.Session),
		sessionExercises: make(map[uuid.UUID]models.SessionExercise),
		sets:             make(map[uuid.UUID]models.ExerciseSet),
		records:          make(map[[2]uuid.UUID]models.PersonalRecord),
		bodyWeight:       make(map[uuid.UUID]models.BodyWeightEntry),
		programs:         make(map[uuid.UUID]models.ProgramDetail),
		enrollments:      make(map[uuid.UUID]models.AthleteProgram),
		now:              time.Now,
	}
	for _, b := range builtins {
		id := uuid.New()
		s.exercises[id] = models.Exercise{ID: id, Name: b.name, Category: b.category, CreatedAt: s.now()}
	}
	return s
}

var builtins = []struct {
	name     string
	category models.Category
}{
	{"Back Squat", models.CategoryLegs},
	{"Front Squat", models.CategoryLegs},
	{"Romanian Deadlift", models.CategoryLegs},
	{"Leg Press", models.CategoryLegs},
	{"Bench Press", models.CategoryChest},
	{"Incline Dumbbell Press", models.CategoryChest},
	{"Deadlift", models.CategoryBack},
	{"Barbell Row", models.CategoryBack},
	{"Pull-Up", models.CategoryBack},
	{"Overhead Press", models.CategoryShoulders},
	{"Lateral Raise", models.CategoryShoulders},
	{"Barbell Curl", models.CategoryArms},
	{"Triceps Pushdown", models.CategoryArms},
	{"Plank", models.CategoryCore},
	{"Hanging Leg Raise", models.CategoryCore},
	{"Clean and Press", models.CategoryFullBody},
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// Users

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return storage.ErrConflict
		}
	}
	u.CreatedAt = s.now()
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) SaveRefreshToken(_ context.Context, rt *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refreshTokens[rt.Token]; ok {
		return storage.ErrConflict
	}
	s.refreshTokens[rt.Token] = *rt
	return nil
}

func (s *Store) GetRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.refreshTokens[token]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &rt, nil
}

func (s *Store) RevokeRefreshToken(_ context.Context, token string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.refreshTokens[token]
	if !ok || rt.RevokedAt != nil {
		return storage.ErrNotFound
	}
	rt.RevokedAt = &at
	s.refreshTokens[token] = rt
	return nil
}

// Exercises

func (s *Store) ListExercises(_ context.Context, f models.ExerciseFilter) ([]models.Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Exercise
	for _, e := range s.exercises {
		if e.IsCustom && !e.OwnedBy(f.UserID) {
			continue
		}
		if f.Category != nil && e.Category != *f.Category {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) GetExercise(_ context.Context, id uuid.UUID) (*models.Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exercises[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &e, nil
}

func (s *Store) FindExerciseByName(_ context.Context, userID uuid.UUID, name string) (*models.Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *models.Exercise
	for _, e := range s.exercises {
		if !strings.EqualFold(e.Name, name) || (e.IsCustom && !e.OwnedBy(userID)) {
			continue
		}
		if found == nil || (found.IsCustom && !e.IsCustom) {
			e := e
			found = &e
		}
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return found, nil
}

func (s *Store) InsertExercise(_ context.Context, e *models.Exercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.CreatedAt = s.now()
	s.exercises[e.ID] = *e
	return nil
}

func (s *Store) UpdateExercise(_ context.Context, e *models.Exercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.exercises[e.ID]
	if !ok || !cur.IsCustom {
		return storage.ErrNotFound
	}
	cur.Name, cur.Category, cur.Description, cur.FormNotes = e.Name, e.Category, e.Description, e.FormNotes
	s.exercises[e.ID] = cur
	return nil
}

func (s *Store) DeleteExercise(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.exercises[id]
	if !ok || !cur.IsCustom {
		return storage.ErrNotFound
	}
	delete(s.exercises, id)
	return nil
}

// Body weight

func (s *Store) InsertBodyWeight(_ context.Context, e *models.BodyWeightEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodyWeight[e.ID] = *e
	return nil
}

func (s *Store) ListBodyWeight(_ context.Context, userID uuid.UUID, limit int) ([]models.BodyWeightEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.BodyWeightEntry
	for _, e := range s.bodyWeight {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].LoggedAt.After(result[j].LoggedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) DeleteBodyWeight(_ context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.bodyWeight[id]
	if !ok || e.UserID != userID {
		return storage.ErrNotFound
	}
	delete(s.bodyWeight, id)
	return nil
}
