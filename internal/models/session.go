package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session is a single workout performed by a user. EndTime is nil while the
// session is in progress; DurationMinutes and TotalVolumeLbs are set together
// with EndTime when the session is completed.
type Session struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	TemplateID      *uuid.UUID `json:"template_id,omitempty"`
	Name            string     `json:"name"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationMinutes *int       `json:"duration_minutes"`
	TotalVolumeLbs  *float64   `json:"total_volume_lbs"`
	Notes           *string    `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// InProgress reports whether the session has not been completed yet.
func (s Session) InProgress() bool {
	return s.EndTime == nil
}

// SessionExercise is an exercise added to a session. OrderIndex is assigned by
// the caller and is not gap-filled when exercises are removed.
type SessionExercise struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	ExerciseID uuid.UUID `json:"exercise_id"`
	OrderIndex int       `json:"order_index"`
	Notes      *string   `json:"notes,omitempty"`

	// Catalog fields, populated on reads.
	ExerciseName string   `json:"exercise_name,omitempty"`
	Category     Category `json:"category,omitempty"`
}

// ExerciseSet is one set of a session exercise. Only completed sets count
// towards session volume.
type ExerciseSet struct {
	ID                uuid.UUID `json:"id"`
	SessionExerciseID uuid.UUID `json:"session_exercise_id"`
	SetNumber         int       `json:"set_number"`
	WeightLbs         float64   `json:"weight_lbs"`
	Reps              int       `json:"reps"`
	RPE               *float64  `json:"rpe,omitempty"`
	Completed         bool      `json:"completed"`
	CreatedAt         time.Time `json:"created_at"`
}

// SetPatch holds the mutable fields of an ExerciseSet. Nil fields are left unchanged.
type SetPatch struct {
	WeightLbs *float64 `json:"weight_lbs,omitempty"`
	Reps      *int     `json:"reps,omitempty"`
	RPE       *float64 `json:"rpe,omitempty"`
	Completed *bool    `json:"completed,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p SetPatch) Empty() bool {
	return p.WeightLbs == nil && p.Reps == nil && p.RPE == nil && p.Completed == nil
}

// Apply returns a copy of set with the patch applied.
func (p SetPatch) Apply(set ExerciseSet) ExerciseSet {
	if p.WeightLbs != nil {
		set.WeightLbs = *p.WeightLbs
	}
	if p.Reps != nil {
		set.Reps = *p.Reps
	}
	if p.RPE != nil {
		set.RPE = p.RPE
	}
	if p.Completed != nil {
		set.Completed = *p.Completed
	}
	return set
}

// ExerciseDetail is a session exercise with its sets ordered by set number.
type ExerciseDetail struct {
	SessionExercise
	Sets []ExerciseSet `json:"sets"`
}

// SessionDetail is a session header with its exercises ordered by OrderIndex.
type SessionDetail struct {
	Session
	Exercises []ExerciseDetail `json:"exercises"`
}

// Completion holds the fields written when a session is finished.
type Completion struct {
	EndTime         time.Time
	DurationMinutes int
	TotalVolumeLbs  float64
	Notes           *string
}

// FinishFunc derives a Completion from the stored session header and every set
// that belongs to it. Gateways call it between reading and writing the header.
type FinishFunc func(s Session, sets []ExerciseSet) (Completion, error)

// ErrInvalid marks input rejected before it reaches the store.
var ErrInvalid = errors.New("invalid input")
