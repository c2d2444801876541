package alpha

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/claude/ironlog/internal/ingest"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/sessions"
	"github.com/google/uuid"
)

const lbsPerKg = 2.20462

// ExerciseResolver maps exported exercise names onto the catalog.
type ExerciseResolver interface {
	FindOrCreate(ctx context.Context, userID uuid.UUID, name string, category models.Category) (*models.Exercise, error)
}

// SessionImporter stores finished sessions.
type SessionImporter interface {
	Import(ctx context.Context, userID uuid.UUID, in sessions.ImportedSession) (*models.SessionDetail, error)
}

// RecordApplier updates personal records from a finished session.
type RecordApplier interface {
	ApplySession(ctx context.Context, d *models.SessionDetail) ([]models.PersonalRecord, error)
}

// Provider processes Alpha Progression CSV exports.
type Provider struct {
	exercises ExerciseResolver
	sessions  SessionImporter
	records   RecordApplier
	log       *slog.Logger
}

// NewProvider creates a new Alpha Progression ingest provider. records may
// be nil to skip personal-record updates.
func NewProvider(ex ExerciseResolver, ss SessionImporter, rec RecordApplier, log *slog.Logger) *Provider {
	return &Provider{exercises: ex, sessions: ss, records: rec, log: log}
}

// Ingest parses a CSV export and stores every session as a completed
// workout. A session that fails is reported in the result and the rest
// are still imported; only an unreadable export returns an error.
func (p *Provider) Ingest(ctx context.Context, userID uuid.UUID, r io.Reader) (*ingest.Result, error) {
	parsed, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}

	result := &ingest.Result{SessionsReceived: len(parsed)}
	for _, s := range parsed {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		label := s.Name + " " + s.Start.Format("2006-01-02")

		in, sets, err := p.convert(ctx, userID, s)
		if err != nil {
			result.Fail(label, err)
			continue
		}
		d, err := p.sessions.Import(ctx, userID, in)
		if err != nil {
			result.Fail(label, err)
			continue
		}
		result.SessionsImported++
		result.SetsImported += sets

		if p.records == nil {
			continue
		}
		prs, err := p.records.ApplySession(ctx, d)
		result.RecordsSet += len(prs)
		if err != nil {
			p.log.Warn("applying records for imported session", "session_id", d.ID, "error", err)
		}
	}

	result.Message = fmt.Sprintf("imported %d of %d sessions", result.SessionsImported, result.SessionsReceived)
	p.log.Info("alpha import finished", "user_id", userID,
		"received", result.SessionsReceived, "imported", result.SessionsImported,
		"failed", result.SessionsFailed, "records", result.RecordsSet)
	return result, nil
}

// convert resolves catalog exercises and turns exported sets into session
// sets, warm-ups first and renumbered from 1.
func (p *Provider) convert(ctx context.Context, userID uuid.UUID, s Session) (sessions.ImportedSession, int, error) {
	in := sessions.ImportedSession{
		Name:      s.Name,
		StartTime: s.Start,
		EndTime:   s.Start.Add(s.Duration),
		Exercises: make([]sessions.ImportedExercise, 0, len(s.Exercises)),
	}
	total := 0
	for _, ex := range s.Exercises {
		e, err := p.exercises.FindOrCreate(ctx, userID, ex.Name, guessCategory(ex.Name))
		if err != nil {
			return in, 0, fmt.Errorf("resolving exercise %q: %w", ex.Name, err)
		}
		ie := sessions.ImportedExercise{
			ExerciseID: e.ID,
			Notes:      exerciseNotes(ex),
			Sets:       make([]sessions.NewSet, 0, len(ex.Sets)),
		}
		for _, warm := range []bool{true, false} {
			for _, set := range ex.Sets {
				if set.IsWarmup != warm {
					continue
				}
				ie.Sets = append(ie.Sets, sessions.NewSet{
					SetNumber: len(ie.Sets) + 1,
					WeightLbs: kgToLbs(set.WeightKg),
					Reps:      set.Reps,
					RPE:       rpeFromRIR(set.RIR),
					Completed: !set.IsWarmup,
				})
			}
		}
		total += len(ie.Sets)
		in.Exercises = append(in.Exercises, ie)
	}
	return in, total, nil
}

func exerciseNotes(ex Exercise) *string {
	var parts []string
	if ex.Equipment != "" {
		parts = append(parts, ex.Equipment)
	}
	if ex.TargetReps > 0 {
		parts = append(parts, fmt.Sprintf("target %d reps", ex.TargetReps))
	}
	if len(parts) == 0 {
		return nil
	}
	n := strings.Join(parts, ", ")
	return &n
}

func kgToLbs(kg float64) float64 {
	return math.Round(kg*lbsPerKg*10) / 10
}

// rpeFromRIR maps reps in reserve onto the 1-10 RPE scale.
func rpeFromRIR(rir *float64) *float64 {
	if rir == nil {
		return nil
	}
	rpe := math.Max(1, 10-*rir)
	return &rpe
}
