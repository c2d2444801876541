package postgrest

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/claude/ironlog/internal/models"
	"github.com/google/uuid"
)

const tableBodyWeight = "body_weight_log"

func (c *Client) InsertBodyWeight(ctx context.Context, e *models.BodyWeightEntry) error {
	if err := c.insert(ctx, tableBodyWeight, e, nil); err != nil {
		return fmt.Errorf("inserting body weight: %w", err)
	}
	return nil
}

func (c *Client) ListBodyWeight(ctx context.Context, userID uuid.UUID, limit int) ([]models.BodyWeightEntry, error) {
	var rows []models.BodyWeightEntry
	err := c.get(ctx, tableBodyWeight, url.Values{
		"user_id": {eq(userID)},
		"order":   {"logged_at.desc"},
		"limit":   {strconv.Itoa(limit)},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("querying body weight: %w", err)
	}
	return rows, nil
}

func (c *Client) DeleteBodyWeight(ctx context.Context, userID, id uuid.UUID) error {
	err := c.remove(ctx, tableBodyWeight, url.Values{
		"id":      {eq(id)},
		"user_id": {eq(userID)},
	})
	if err != nil {
		return fmt.Errorf("deleting body weight: %w", err)
	}
	return nil
}
