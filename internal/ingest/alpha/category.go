package alpha

import (
	"strings"

	"github.com/claude/ironlog/internal/models"
)

// categoryKeywords is checked in order; the first bucket with a matching
// keyword wins. Multi-word keywords come before their single-word parts.
var categoryKeywords = []struct {
	category models.Category
	keywords []string
}{
	{models.CategoryCore, []string{"leg raise", "plank", "crunch", "sit-up", "ab "}},
	{models.CategoryLegs, []string{"squat", "lunge", "leg", "calf", "hip thrust", "hyperextension", "glute"}},
	{models.CategoryChest, []string{"bench", "chest", "fly", "flye", "push-up", "dip"}},
	{models.CategoryBack, []string{"deadlift", "row", "pull", "lat ", "chin"}},
	{models.CategoryShoulders, []string{"overhead", "shoulder", "lateral", "military"}},
	{models.CategoryArms, []string{"curl", "tricep", "skull"}},
}

// guessCategory buckets an exercise name the catalog has never seen.
func guessCategory(name string) models.Category {
	n := strings.ToLower(name) + " "
	for _, c := range categoryKeywords {
		for _, k := range c.keywords {
			if strings.Contains(n, k) {
				return c.category
			}
		}
	}
	return models.CategoryFullBody
}
