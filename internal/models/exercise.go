package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category is the muscle-group bucket of a catalog exercise.
type Category string

const (
	CategoryLegs      Category = "legs"
	CategoryChest     Category = "chest"
	CategoryBack      Category = "back"
	CategoryShoulders Category = "shoulders"
	CategoryArms      Category = "arms"
	CategoryCore      Category = "core"
	CategoryFullBody  Category = "full_body"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryLegs, CategoryChest, CategoryBack, CategoryShoulders,
	CategoryArms, CategoryCore, CategoryFullBody,
}

// ParseCategory validates s against the closed category set.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Exercise is a catalog entry. Built-in rows have IsCustom=false and no creator.
type Exercise struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Category    Category   `json:"category"`
	Description *string    `json:"description,omitempty"`
	FormNotes   *string    `json:"form_notes,omitempty"`
	IsCustom    bool       `json:"is_custom"`
	CreatedBy   *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// OwnedBy reports whether userID created this custom exercise.
func (e Exercise) OwnedBy(userID uuid.UUID) bool {
	return e.IsCustom && e.CreatedBy != nil && *e.CreatedBy == userID
}

// ExerciseFilter narrows catalog listings. UserID selects which custom
// exercises are visible alongside the built-ins.
type ExerciseFilter struct {
	UserID   uuid.UUID
	Category *Category
}

// ExercisePatch holds the mutable fields of a custom exercise.
type ExercisePatch struct {
	Name        *string   `json:"name,omitempty"`
	Category    *Category `json:"category,omitempty"`
	Description *string   `json:"description,omitempty"`
	FormNotes   *string   `json:"form_notes,omitempty"`
}

// Apply returns a copy of e with the patch applied.
func (p ExercisePatch) Apply(e Exercise) Exercise {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Description != nil {
		e.Description = p.Description
	}
	if p.FormNotes != nil {
		e.FormNotes = p.FormNotes
	}
	return e
}
