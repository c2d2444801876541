// Package programs serves coach-authored training programs and tracks the
// athletes enrolled in them.
package programs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/storage"
	"github.com/google/uuid"
)

// ErrAlreadyEnrolled is returned when a user enrolls in the same program twice.
var ErrAlreadyEnrolled = errors.New("already enrolled in program")

// Store is the persistence the programs service needs.
type Store interface {
	ListPrograms(ctx context.Context) ([]models.Program, error)
	GetProgram(ctx context.Context, id uuid.UUID) (*models.Program, error)
	ListProgramBlocks(ctx context.Context, programID uuid.UUID) ([]models.ProgramBlock, error)
	ListProgramWorkouts(ctx context.Context, programID uuid.UUID, week *int) ([]models.Workout, error)
	ListWorkoutExercises(ctx context.Context, workoutIDs []uuid.UUID) ([]models.WorkoutExercise, error)
	CreateProgram(ctx context.Context, p *models.ProgramDetail) error

	InsertEnrollment(ctx context.Context, a *models.AthleteProgram) error
	GetEnrollment(ctx context.Context, id uuid.UUID) (*models.AthleteProgram, error)
	ListEnrollments(ctx context.Context, userID uuid.UUID) ([]models.AthleteProgram, error)
	UpdateEnrollment(ctx context.Context, a *models.AthleteProgram) error
}

var _ Store = (*storage.DB)(nil)

// ProgressPercent is the share of weeks reached, rounded to a whole percent.
// current is capped at total; a non-positive total yields 0.
func ProgressPercent(current, total int) int {
	if total <= 0 {
		return 0
	}
	current = max(0, min(current, total))
	return int(math.Round(float64(current) / float64(total) * 100))
}

// BlockForWeek returns the block covering week, or nil.
func BlockForWeek(blocks []models.ProgramBlock, week int) *models.ProgramBlock {
	for i := range blocks {
		if blocks[i].Covers(week) {
			return &blocks[i]
		}
	}
	return nil
}

// Enrollment is an athlete program with its derived progress.
type Enrollment struct {
	models.AthleteProgram
	ProgramName     string `json:"program_name"`
	DurationWeeks   int    `json:"duration_weeks"`
	ProgressPercent int    `json:"progress_percent"`
}

// WeekPlan is what a program prescribes for one week.
type WeekPlan struct {
	Week     int                    `json:"week"`
	Block    *models.ProgramBlock   `json:"block"`
	Workouts []models.WorkoutDetail `json:"workouts"`
}

// Service implements program and enrollment operations.
type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

// NewService creates a programs service.
func NewService(store Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// List returns all programs.
func (s *Service) List(ctx context.Context) ([]models.Program, error) {
	list, err := s.store.ListPrograms(ctx)
	if err != nil {
		s.log.Error("listing programs", "error", err)
		return nil, err
	}
	return list, nil
}

// Details returns the full template hierarchy of a program, or nil.
func (s *Service) Details(ctx context.Context, id uuid.UUID) (*models.ProgramDetail, error) {
	p, err := s.store.GetProgram(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("getting program", "program_id", id, "error", err)
		return nil, err
	}

	blocks, err := s.store.ListProgramBlocks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("program %s blocks: %w", id, err)
	}
	workouts, err := s.workouts(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	return &models.ProgramDetail{Program: *p, Blocks: orEmpty(blocks), Workouts: workouts}, nil
}

// WeekPlan returns the block and workouts of one program week, or nil if the
// program does not exist.
func (s *Service) WeekPlan(ctx context.Context, programID uuid.UUID, week int) (*WeekPlan, error) {
	p, err := s.store.GetProgram(ctx, programID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if week < 1 || week > p.DurationWeeks {
		return nil, fmt.Errorf("%w: week %d outside 1..%d", models.ErrInvalid, week, p.DurationWeeks)
	}

	blocks, err := s.store.ListProgramBlocks(ctx, programID)
	if err != nil {
		return nil, fmt.Errorf("program %s blocks: %w", programID, err)
	}
	workouts, err := s.workouts(ctx, programID, &week)
	if err != nil {
		return nil, err
	}
	return &WeekPlan{Week: week, Block: BlockForWeek(blocks, week), Workouts: workouts}, nil
}

func (s *Service) workouts(ctx context.Context, programID uuid.UUID, week *int) ([]models.WorkoutDetail, error) {
	ws, err := s.store.ListProgramWorkouts(ctx, programID, week)
	if err != nil {
		return nil, fmt.Errorf("program %s workouts: %w", programID, err)
	}
	ids := make([]uuid.UUID, len(ws))
	for i, w := range ws {
		ids[i] = w.ID
	}
	targets, err := s.store.ListWorkoutExercises(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("program %s workout exercises: %w", programID, err)
	}
	byWorkout := make(map[uuid.UUID][]models.WorkoutExercise, len(ws))
	for _, t := range targets {
		byWorkout[t.WorkoutID] = append(byWorkout[t.WorkoutID], t)
	}

	result := make([]models.WorkoutDetail, len(ws))
	for i, w := range ws {
		result[i] = models.WorkoutDetail{Workout: w, Exercises: orEmpty(byWorkout[w.ID])}
	}
	return result, nil
}

// Create stores a program and its nested blocks, workouts and targets.
// IDs are assigned here; the input's IDs are ignored.
func (s *Service) Create(ctx context.Context, createdBy uuid.UUID, in models.ProgramDetail) (*models.ProgramDetail, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	p := in
	p.ID = uuid.New()
	p.CreatedBy = &createdBy

	p.Blocks = make([]models.ProgramBlock, len(in.Blocks))
	for i, b := range in.Blocks {
		b.ID = uuid.New()
		b.ProgramID = p.ID
		p.Blocks[i] = b
	}

	p.Workouts = make([]models.WorkoutDetail, len(in.Workouts))
	for i, w := range in.Workouts {
		w.ID = uuid.New()
		w.ProgramID = p.ID
		if b := BlockForWeek(p.Blocks, w.Week); b != nil {
			w.BlockID = &b.ID
		}
		exs := make([]models.WorkoutExercise, len(w.Exercises))
		for j, we := range w.Exercises {
			we.ID = uuid.New()
			we.WorkoutID = w.ID
			exs[j] = we
		}
		w.Exercises = exs
		p.Workouts[i] = w
	}

	if err := s.store.CreateProgram(ctx, &p); err != nil {
		s.log.Error("creating program", "name", p.Name, "error", err)
		return nil, err
	}
	s.log.Info("program created", "program_id", p.ID, "name", p.Name, "weeks", p.DurationWeeks)
	return &p, nil
}

func validate(p models.ProgramDetail) error {
	if p.Name == "" {
		return fmt.Errorf("%w: program name is required", models.ErrInvalid)
	}
	if p.DurationWeeks <= 0 {
		return fmt.Errorf("%w: duration_weeks must be positive", models.ErrInvalid)
	}
	for _, b := range p.Blocks {
		if b.StartWeek < 1 || b.EndWeek < b.StartWeek || b.EndWeek > p.DurationWeeks {
			return fmt.Errorf("%w: block %q spans weeks %d..%d", models.ErrInvalid, b.Name, b.StartWeek, b.EndWeek)
		}
	}
	for _, w := range p.Workouts {
		if w.Week < 1 || w.Week > p.DurationWeeks {
			return fmt.Errorf("%w: workout %q is in week %d", models.ErrInvalid, w.Name, w.Week)
		}
	}
	return nil
}

// Enroll starts userID on week 1 of a program.
func (s *Service) Enroll(ctx context.Context, userID, programID uuid.UUID) (*models.AthleteProgram, error) {
	if _, err := s.store.GetProgram(ctx, programID); err != nil {
		return nil, err
	}
	a := &models.AthleteProgram{
		ID:          uuid.New(),
		UserID:      userID,
		ProgramID:   programID,
		CurrentWeek: 1,
		Status:      models.EnrollmentActive,
		StartedAt:   s.now().UTC(),
	}
	if err := s.store.InsertEnrollment(ctx, a); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrAlreadyEnrolled
		}
		s.log.Error("enrolling", "user_id", userID, "program_id", programID, "error", err)
		return nil, err
	}
	return a, nil
}

// Enrollments returns the user's enrollments with their progress.
func (s *Service) Enrollments(ctx context.Context, userID uuid.UUID) ([]Enrollment, error) {
	list, err := s.store.ListEnrollments(ctx, userID)
	if err != nil {
		s.log.Error("listing enrollments", "user_id", userID, "error", err)
		return nil, err
	}

	programs := make(map[uuid.UUID]*models.Program)
	result := make([]Enrollment, 0, len(list))
	for _, a := range list {
		p, ok := programs[a.ProgramID]
		if !ok {
			if p, err = s.store.GetProgram(ctx, a.ProgramID); err != nil {
				return nil, fmt.Errorf("enrollment %s program: %w", a.ID, err)
			}
			programs[a.ProgramID] = p
		}
		result = append(result, enrollment(a, p))
	}
	return result, nil
}

// Advance moves an enrollment to the next week. Advancing past the last
// week completes it.
func (s *Service) Advance(ctx context.Context, userID, enrollmentID uuid.UUID) (*Enrollment, error) {
	a, p, err := s.owned(ctx, userID, enrollmentID)
	if err != nil {
		return nil, err
	}
	if a.Status == models.EnrollmentCompleted {
		return nil, fmt.Errorf("%w: enrollment already completed", models.ErrInvalid)
	}

	if a.CurrentWeek >= p.DurationWeeks {
		a.CurrentWeek = p.DurationWeeks
		a.Status = models.EnrollmentCompleted
	} else {
		a.CurrentWeek++
	}
	if err := s.store.UpdateEnrollment(ctx, a); err != nil {
		return nil, err
	}
	e := enrollment(*a, p)
	return &e, nil
}

// SetStatus pauses, resumes or completes an enrollment.
func (s *Service) SetStatus(ctx context.Context, userID, enrollmentID uuid.UUID, status models.EnrollmentStatus) (*Enrollment, error) {
	if _, err := models.ParseEnrollmentStatus(string(status)); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalid, err)
	}
	a, p, err := s.owned(ctx, userID, enrollmentID)
	if err != nil {
		return nil, err
	}
	a.Status = status
	if err := s.store.UpdateEnrollment(ctx, a); err != nil {
		return nil, err
	}
	e := enrollment(*a, p)
	return &e, nil
}

func (s *Service) owned(ctx context.Context, userID, enrollmentID uuid.UUID) (*models.AthleteProgram, *models.Program, error) {
	a, err := s.store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, nil, err
	}
	if a.UserID != userID {
		return nil, nil, storage.ErrNotFound
	}
	p, err := s.store.GetProgram(ctx, a.ProgramID)
	if err != nil {
		return nil, nil, err
	}
	return a, p, nil
}

func enrollment(a models.AthleteProgram, p *models.Program) Enrollment {
	pct := ProgressPercent(a.CurrentWeek, p.DurationWeeks)
	if a.Status == models.EnrollmentCompleted {
		pct = 100
	}
	return Enrollment{
		AthleteProgram:  a,
		ProgramName:     p.Name,
		DurationWeeks:   p.DurationWeeks,
		ProgressPercent: pct,
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
