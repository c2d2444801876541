package mcp

import (
	"context"
	"fmt"

	"github.com/claude/ironlog/internal/bodyweight"
	"github.com/claude/ironlog/internal/exercises"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/records"
	"github.com/claude/ironlog/internal/sessions"
	"github.com/google/uuid"
)

// BodyWeightSummary is the recent body-weight log with its trend.
type BodyWeightSummary struct {
	Entries   []models.BodyWeightEntry `json:"entries"`
	Latest    *models.BodyWeightEntry  `json:"latest"`
	ChangeLbs float64                  `json:"change_lbs"`
}

// DataSource abstracts the data layer for MCP tools. Both the local
// services and the REST client satisfy it. Missing sessions are nil.
type DataSource interface {
	ActiveSession(ctx context.Context, userID uuid.UUID) (*models.SessionDetail, error)
	Session(ctx context.Context, userID, id uuid.UUID) (*models.SessionDetail, error)
	Sessions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Session, error)
	Records(ctx context.Context, userID uuid.UUID) ([]models.PersonalRecord, error)
	Exercises(ctx context.Context, userID uuid.UUID, category *models.Category) ([]models.Exercise, error)
	BodyWeight(ctx context.Context, userID uuid.UUID, limit int) (*BodyWeightSummary, error)
}

// Local serves MCP reads straight from the domain services.
type Local struct {
	sessions   *sessions.Service
	records    *records.Service
	exercises  *exercises.Service
	bodyWeight *bodyweight.Service
}

// NewLocal wires the services a local MCP server reads from.
func NewLocal(ss *sessions.Service, rec *records.Service, ex *exercises.Service, bw *bodyweight.Service) *Local {
	return &Local{sessions: ss, records: rec, exercises: ex, bodyWeight: bw}
}

var _ DataSource = (*Local)(nil)

func (l *Local) ActiveSession(ctx context.Context, userID uuid.UUID) (*models.SessionDetail, error) {
	s, err := l.sessions.Active(ctx, userID)
	if err != nil || s == nil {
		return nil, err
	}
	return l.sessions.Details(ctx, s.ID)
}

// Session returns the session only when userID owns it.
func (l *Local) Session(ctx context.Context, userID, id uuid.UUID) (*models.SessionDetail, error) {
	d, err := l.sessions.Details(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	if d == nil || d.UserID != userID {
		return nil, nil
	}
	return d, nil
}

func (l *Local) Sessions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Session, error) {
	return l.sessions.List(ctx, userID, limit)
}

func (l *Local) Records(ctx context.Context, userID uuid.UUID) ([]models.PersonalRecord, error) {
	return l.records.List(ctx, userID)
}

func (l *Local) Exercises(ctx context.Context, userID uuid.UUID, category *models.Category) ([]models.Exercise, error) {
	return l.exercises.List(ctx, userID, category)
}

func (l *Local) BodyWeight(ctx context.Context, userID uuid.UUID, limit int) (*BodyWeightSummary, error) {
	entries, err := l.bodyWeight.Recent(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	sum := &BodyWeightSummary{Entries: entries, ChangeLbs: bodyweight.Change(entries)}
	if len(entries) > 0 {
		sum.Latest = &entries[0]
	}
	return sum, nil
}
