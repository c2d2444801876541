package memstore

import (
	"context"
	"sort"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/storage"
	"github.com/google/uuid"
)

func (s *Store) ListPrograms(context.Context) ([]models.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Program
	for _, p := range s.programs {
		result = append(result, p.Program)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) GetProgram(_ context.Context, id uuid.UUID) (*models.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.programs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p.Program, nil
}

func (s *Store) ListProgramBlocks(_ context.Context, programID uuid.UUID) ([]models.ProgramBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.programs[programID]
	if !ok {
		return nil, nil
	}
	blocks := append([]models.ProgramBlock(nil), p.Blocks...)
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].OrderIndex < blocks[j].OrderIndex })
	return blocks, nil
}

func (s *Store) ListProgramWorkouts(_ context.Context, programID uuid.UUID, week *int) ([]models.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.programs[programID]
	if !ok {
		return nil, nil
	}
	var result []models.Workout
	for _, w := range p.Workouts {
		if week == nil || w.Week == *week {
			result = append(result, w.Workout)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Week != result[j].Week {
			return result[i].Week < result[j].Week
		}
		return result[i].Day < result[j].Day
	})
	return result, nil
}

func (s *Store) ListWorkoutExercises(_ context.Context, workoutIDs []uuid.UUID) ([]models.WorkoutExercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(workoutIDs))
	for _, id := range workoutIDs {
		want[id] = true
	}
	var result []models.WorkoutExercise
	for _, p := range s.programs {
		for _, w := range p.Workouts {
			if want[w.ID] {
				result = append(result, w.Exercises...)
			}
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].OrderIndex < result[j].OrderIndex })
	return result, nil
}

func (s *Store) CreateProgram(_ context.Context, p *models.ProgramDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.programs[p.ID]; ok {
		return storage.ErrConflict
	}
	p.CreatedAt = s.now()
	stored := *p
	stored.Blocks = append([]models.ProgramBlock(nil), p.Blocks...)
	stored.Workouts = make([]models.WorkoutDetail, len(p.Workouts))
	for i, w := range p.Workouts {
		w.ProgramID = p.ID
		w.Exercises = append([]models.WorkoutExercise(nil), w.Exercises...)
		for j := range w.Exercises {
			w.Exercises[j].WorkoutID = w.ID
		}
		stored.Workouts[i] = w
	}
	for i := range stored.Blocks {
		stored.Blocks[i].ProgramID = p.ID
	}
	s.programs[p.ID] = stored
	return nil
}

func (s *Store) InsertEnrollment(_ context.Context, a *models.AthleteProgram) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.enrollments {
		if other.UserID == a.UserID && other.ProgramID == a.ProgramID {
			return storage.ErrConflict
		}
	}
	s.enrollments[a.ID] = *a
	return nil
}

func (s *Store) GetEnrollment(_ context.Context, id uuid.UUID) (*models.AthleteProgram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.enrollments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &a, nil
}

func (s *Store) ListEnrollments(_ context.Context, userID uuid.UUID) ([]models.AthleteProgram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.AthleteProgram
	for _, a := range s.enrollments {
		if a.UserID == userID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartedAt.After(result[j].StartedAt) })
	return result, nil
}

func (s *Store) UpdateEnrollment(_ context.Context, a *models.AthleteProgram) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.enrollments[a.ID]
	if !ok {
		return storage.ErrNotFound
	}
	cur.CurrentWeek, cur.Status = a.CurrentWeek, a.Status
	s.enrollments[a.ID] = cur
	return nil
}
