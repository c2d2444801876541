package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Program is a coach-authored training template spanning DurationWeeks.
type Program struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Description   *string    `json:"description,omitempty"`
	DurationWeeks int        `json:"duration_weeks"`
	CreatedBy     *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ProgramBlock is a phase of a program covering StartWeek..EndWeek inclusive.
type ProgramBlock struct {
	ID         uuid.UUID `json:"id"`
	ProgramID  uuid.UUID `json:"program_id"`
	Name       string    `json:"name"`
	OrderIndex int       `json:"order_index"`
	StartWeek  int       `json:"start_week"`
	EndWeek    int       `json:"end_week"`
}

// Covers reports whether week falls inside the block.
func (b ProgramBlock) Covers(week int) bool {
	return week >= b.StartWeek && week <= b.EndWeek
}

// Workout is a templated training day inside a program.
type Workout struct {
	ID        uuid.UUID  `json:"id"`
	ProgramID uuid.UUID  `json:"program_id"`
	BlockID   *uuid.UUID `json:"block_id,omitempty"`
	Name      string     `json:"name"`
	Week      int        `json:"week"`
	Day       int        `json:"day"`
}

// WorkoutExercise is a target prescription for one exercise in a workout.
type WorkoutExercise struct {
	ID              uuid.UUID `json:"id"`
	WorkoutID       uuid.UUID `json:"workout_id"`
	ExerciseID      uuid.UUID `json:"exercise_id"`
	OrderIndex      int       `json:"order_index"`
	TargetSets      int       `json:"target_sets"`
	TargetReps      int       `json:"target_reps"`
	TargetWeightLbs *float64  `json:"target_weight_lbs,omitempty"`
	TargetRPE       *float64  `json:"target_rpe,omitempty"`
	RestSeconds     *int      `json:"rest_seconds,omitempty"`
}

// WorkoutDetail is a workout with its ordered target exercises.
type WorkoutDetail struct {
	Workout
	Exercises []WorkoutExercise `json:"exercises"`
}

// ProgramDetail is the full template hierarchy of a program.
type ProgramDetail struct {
	Program
	Blocks   []ProgramBlock  `json:"blocks"`
	Workouts []WorkoutDetail `json:"workouts"`
}

// EnrollmentStatus is the state of an athlete's enrollment.
type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentPaused    EnrollmentStatus = "paused"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

// ParseEnrollmentStatus validates s against the known statuses.
func ParseEnrollmentStatus(s string) (EnrollmentStatus, error) {
	switch st := EnrollmentStatus(s); st {
	case EnrollmentActive, EnrollmentPaused, EnrollmentCompleted:
		return st, nil
	}
	return "", fmt.Errorf("unknown enrollment status %q", s)
}

// AthleteProgram tracks a user's position within a program.
type AthleteProgram struct {
	ID          uuid.UUID        `json:"id"`
	UserID      uuid.UUID        `json:"user_id"`
	ProgramID   uuid.UUID        `json:"program_id"`
	CurrentWeek int              `json:"current_week"`
	Status      EnrollmentStatus `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
}
