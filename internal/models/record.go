package models

import (
	"time"

	"github.com/google/uuid"
)

// PersonalRecord is a user's best (weight, reps) pair for an exercise.
type PersonalRecord struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	ExerciseID uuid.UUID `json:"exercise_id"`
	WeightLbs  float64   `json:"weight_lbs"`
	Reps       int       `json:"reps"`
	AchievedAt time.Time `json:"achieved_at"`
	Notes      *string   `json:"notes,omitempty"`
}

// BodyWeightEntry is one body-weight measurement.
type BodyWeightEntry struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	WeightLbs float64   `json:"weight_lbs"`
	LoggedAt  time.Time `json:"logged_at"`
	Notes     *string   `json:"notes,omitempty"`
}

// User is an account known to the auth service.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// RefreshToken is a stored, revocable refresh token.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	ExpiresAt time.Time
	RevokedAt *time.Time
}
