// Package sessions owns the lifecycle of a workout session: creation, the
// incremental exercise and set edits while it is open, and completion, which
// derives duration and volume from the stored sets.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/claude/ironlog/internal/cache"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/storage"
	"github.com/google/uuid"
)

var (
	// ErrAlreadyActive is returned by Create when the user has an open session.
	ErrAlreadyActive = errors.New("user already has an active session")
	// ErrAlreadyCompleted is returned by Complete for a finished session.
	ErrAlreadyCompleted = errors.New("session already completed")
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Store is the persistence the session service needs.
type Store interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetActiveSession(ctx context.Context, userID uuid.UUID) (*models.Session, error)
	ListSessions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	FinishSession(ctx context.Context, id uuid.UUID, finish models.FinishFunc) (*models.Session, error)
	ImportSession(ctx context.Context, d *models.SessionDetail) error

	InsertSessionExercise(ctx context.Context, se *models.SessionExercise) error
	DeleteSessionExercise(ctx context.Context, sessionID, id uuid.UUID) error
	ListSessionExercises(ctx context.Context, sessionID uuid.UUID) ([]models.SessionExercise, error)

	InsertSet(ctx context.Context, sessionID uuid.UUID, set *models.ExerciseSet) error
	UpdateSet(ctx context.Context, sessionID, id uuid.UUID, patch models.SetPatch) (*models.ExerciseSet, error)
	DeleteSet(ctx context.Context, sessionID, id uuid.UUID) error
	ListSetsForExercises(ctx context.Context, exerciseIDs []uuid.UUID) ([]models.ExerciseSet, error)
}

var _ Store = (*storage.DB)(nil)

// Service implements the session operations on top of a Store. Session
// details are cached under cache.SessionKey and dropped on every mutation.
type Service struct {
	store Store
	cache cache.Cache
	ttl   time.Duration
	log   *slog.Logger
	now   func() time.Time

	// writes counts finished mutations. A detail loaded while it moved may
	// predate one of them and must not stay cached.
	writes atomic.Uint64
}

// NewService creates a session service. A nil cache disables caching.
func NewService(store Store, c cache.Cache, ttl time.Duration, log *slog.Logger) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	return &Service{store: store, cache: c, ttl: ttl, log: log, now: time.Now}
}

// NewSession holds the caller-supplied fields of a new session.
type NewSession struct {
	Name       string     `json:"name"`
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
}

// NewExercise adds a catalog exercise at OrderIndex.
type NewExercise struct {
	ExerciseID uuid.UUID `json:"exercise_id"`
	OrderIndex int       `json:"order_index"`
	Notes      *string   `json:"notes,omitempty"`
}

// NewSet is a set logged against a session exercise.
type NewSet struct {
	SetNumber int      `json:"set_number"`
	WeightLbs float64  `json:"weight_lbs"`
	Reps      int      `json:"reps"`
	RPE       *float64 `json:"rpe,omitempty"`
	Completed bool     `json:"completed"`
}

// Create starts a new session for userID. It fails with ErrAlreadyActive
// when the user still has an open session.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in NewSession) (*models.Session, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: session name is required", models.ErrInvalid)
	}
	active, err := s.Active(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrAlreadyActive
	}

	sess := &models.Session{
		ID:         uuid.New(),
		UserID:     userID,
		TemplateID: in.TemplateID,
		Name:       in.Name,
		StartTime:  s.now().UTC(),
		Notes:      in.Notes,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrAlreadyActive
		}
		return nil, s.fail("creating session", err, "user_id", userID)
	}
	s.log.Info("session started", "session_id", sess.ID, "user_id", userID, "name", sess.Name)
	return sess, nil
}

// Get returns the session header, or nil if it does not exist.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail("getting session", err, "session_id", id)
	}
	return sess, nil
}

// Active returns the user's most recently started open session, or nil.
func (s *Service) Active(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	sess, err := s.store.GetActiveSession(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail("getting active session", err, "user_id", userID)
	}
	return sess, nil
}

// List returns the user's sessions, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	list, err := s.store.ListSessions(ctx, userID, limit)
	if err != nil {
		return nil, s.fail("listing sessions", err, "user_id", userID)
	}
	return list, nil
}

// Details returns the session with its exercises and their sets, or nil if
// the session does not exist. The children are read after the header, so a
// concurrent edit may show up in one and not the other.
func (s *Service) Details(ctx context.Context, id uuid.UUID) (*models.SessionDetail, error) {
	key := cache.SessionKey(id)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var d models.SessionDetail
		if err := json.Unmarshal(raw, &d); err == nil {
			return &d, nil
		}
		s.log.Warn("discarding unreadable cache entry", "key", key)
	} else if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("cache read failed", "key", key, "error", err)
	}

	gen := s.writes.Load()
	d, err := s.load(ctx, id)
	if err != nil || d == nil {
		return d, err
	}
	s.fill(ctx, key, d, gen)
	return d, nil
}

// fill caches d unless a mutation finished after gen was read. The second
// check covers a mutation whose invalidation ran between the first check and
// the write.
func (s *Service) fill(ctx context.Context, key string, d *models.SessionDetail, gen uint64) {
	if s.writes.Load() != gen {
		return
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.log.Warn("cache write failed", "key", key, "error", err)
		return
	}
	if s.writes.Load() != gen {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.log.Warn("cache invalidation failed", "key", key, "error", err)
		}
	}
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*models.SessionDetail, error) {
	sess, err := s.Get(ctx, id)
	if err != nil || sess == nil {
		return nil, err
	}

	exercises, err := s.store.ListSessionExercises(ctx, id)
	if err != nil {
		return nil, s.fail("listing session exercises", err, "session_id", id)
	}

	ids := make([]uuid.UUID, len(exercises))
	for i, ex := range exercises {
		ids[i] = ex.ID
	}
	sets, err := s.store.ListSetsForExercises(ctx, ids)
	if err != nil {
		return nil, s.fail("listing session sets", err, "session_id", id)
	}
	byExercise := make(map[uuid.UUID][]models.ExerciseSet, len(exercises))
	for _, set := range sets {
		byExercise[set.SessionExerciseID] = append(byExercise[set.SessionExerciseID], set)
	}

	d := &models.SessionDetail{Session: *sess, Exercises: make([]models.ExerciseDetail, len(exercises))}
	for i, ex := range exercises {
		exSets := byExercise[ex.ID]
		if exSets == nil {
			exSets = []models.ExerciseSet{}
		}
		d.Exercises[i] = models.ExerciseDetail{SessionExercise: ex, Sets: exSets}
	}
	return d, nil
}

// AddExercise appends a catalog exercise to the session.
func (s *Service) AddExercise(ctx context.Context, sessionID uuid.UUID, in NewExercise) (*models.SessionExercise, error) {
	defer s.invalidate(ctx, sessionID)
	se := &models.SessionExercise{
		ID:         uuid.New(),
		SessionID:  sessionID,
		ExerciseID: in.ExerciseID,
		OrderIndex: in.OrderIndex,
		Notes:      in.Notes,
	}
	if err := s.store.InsertSessionExercise(ctx, se); err != nil {
		return nil, s.fail("adding exercise", err, "session_id", sessionID, "exercise_id", in.ExerciseID)
	}
	return se, nil
}

// RemoveExercise deletes a session exercise and its sets.
func (s *Service) RemoveExercise(ctx context.Context, sessionID, sessionExerciseID uuid.UUID) error {
	defer s.invalidate(ctx, sessionID)
	if err := s.store.DeleteSessionExercise(ctx, sessionID, sessionExerciseID); err != nil {
		return s.fail("removing exercise", err, "session_id", sessionID, "session_exercise_id", sessionExerciseID)
	}
	return nil
}

// AddSet logs a set against a session exercise.
func (s *Service) AddSet(ctx context.Context, sessionID, sessionExerciseID uuid.UUID, in NewSet) (*models.ExerciseSet, error) {
	if err := validateLoad(&in.WeightLbs, &in.Reps); err != nil {
		return nil, err
	}
	defer s.invalidate(ctx, sessionID)
	set := &models.ExerciseSet{
		ID:                uuid.New(),
		SessionExerciseID: sessionExerciseID,
		SetNumber:         in.SetNumber,
		WeightLbs:         in.WeightLbs,
		Reps:              in.Reps,
		RPE:               in.RPE,
		Completed:         in.Completed,
	}
	if err := s.store.InsertSet(ctx, sessionID, set); err != nil {
		return nil, s.fail("adding set", err, "session_id", sessionID, "session_exercise_id", sessionExerciseID)
	}
	return set, nil
}

// UpdateSet changes weight, reps, RPE or the completed flag of a set in place.
func (s *Service) UpdateSet(ctx context.Context, sessionID, setID uuid.UUID, patch models.SetPatch) (*models.ExerciseSet, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("%w: set patch has no fields", models.ErrInvalid)
	}
	if err := validateLoad(patch.WeightLbs, patch.Reps); err != nil {
		return nil, err
	}
	defer s.invalidate(ctx, sessionID)
	set, err := s.store.UpdateSet(ctx, sessionID, setID, patch)
	if err != nil {
		return nil, s.fail("updating set", err, "session_id", sessionID, "set_id", setID)
	}
	return set, nil
}

// DeleteSet removes a set.
func (s *Service) DeleteSet(ctx context.Context, sessionID, setID uuid.UUID) error {
	defer s.invalidate(ctx, sessionID)
	if err := s.store.DeleteSet(ctx, sessionID, setID); err != nil {
		return s.fail("deleting set", err, "session_id", sessionID, "set_id", setID)
	}
	return nil
}

// Complete closes the session, deriving duration and total volume from its
// completed sets. The read and the write happen atomically in the store.
// A finished session yields ErrAlreadyCompleted and keeps its totals.
func (s *Service) Complete(ctx context.Context, sessionID uuid.UUID, notes *string) (*models.Session, error) {
	defer s.invalidate(ctx, sessionID)
	sess, err := s.store.FinishSession(ctx, sessionID, finisher(s.now().UTC(), notes))
	if errors.Is(err, storage.ErrConflict) {
		err = ErrAlreadyCompleted
	}
	if err != nil {
		return nil, s.fail("completing session", err, "session_id", sessionID)
	}
	s.log.Info("session completed", "session_id", sessionID,
		"duration_minutes", *sess.DurationMinutes, "total_volume_lbs", *sess.TotalVolumeLbs)
	return sess, nil
}

// Discard deletes a session and everything logged in it.
func (s *Service) Discard(ctx context.Context, sessionID uuid.UUID) error {
	defer s.invalidate(ctx, sessionID)
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return s.fail("discarding session", err, "session_id", sessionID)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, sessionID uuid.UUID) {
	s.writes.Add(1)
	if err := s.cache.Delete(ctx, cache.SessionKey(sessionID)); err != nil {
		s.log.Warn("cache invalidation failed", "session_id", sessionID, "error", err)
	}
}

// fail logs unexpected store errors and wraps every error with op.
func (s *Service) fail(op string, err error, attrs ...any) error {
	if !isExpected(err) {
		s.log.Error(op, append(attrs, "error", err)...)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isExpected(err error) bool {
	return errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, storage.ErrConflict) ||
		errors.Is(err, ErrAlreadyCompleted) ||
		errors.Is(err, models.ErrInvalid)
}

func validateLoad(weight *float64, reps *int) error {
	if weight != nil && *weight < 0 {
		return fmt.Errorf("%w: weight_lbs must be non-negative", models.ErrInvalid)
	}
	if reps != nil && *reps < 0 {
		return fmt.Errorf("%w: reps must be non-negative", models.ErrInvalid)
	}
	return nil
}
