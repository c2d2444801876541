package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/claude/ironlog/internal/auth"
	"github.com/claude/ironlog/internal/bodyweight"
	"github.com/claude/ironlog/internal/exercises"
	"github.com/claude/ironlog/internal/ingest"
	"github.com/claude/ironlog/internal/metrics"
	"github.com/claude/ironlog/internal/programs"
	"github.com/claude/ironlog/internal/records"
	"github.com/claude/ironlog/internal/sessions"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Importer ingests an export file on behalf of a user.
type Importer interface {
	Ingest(ctx context.Context, userID uuid.UUID, r io.Reader) (*ingest.Result, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the domain services the handlers call into.
type Services struct {
	Auth       *auth.Service
	Sessions   *sessions.Service
	Records    *records.Service
	Exercises  *exercises.Service
	Programs   *programs.Service
	BodyWeight *bodyweight.Service
	Alpha      Importer
	Health     Pinger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	svc      Services
	metrics  *metrics.Manager
	gatherer prometheus.Gatherer
	log      *slog.Logger
	router   chi.Router
}

// New creates a new Server with all routes configured. Auth lifecycle events
// are counted in m.
func New(svc Services, m *metrics.Manager, g prometheus.Gatherer, log *slog.Logger) *Server {
	s := &Server{
		svc:      svc,
		metrics:  m,
		gatherer: g,
		log:      log,
		router:   chi.NewRouter(),
	}
	svc.Auth.OnEvent(func(e auth.Event) {
		m.CounterAuthEvents.WithLabelValues(string(e.Kind)).Inc()
		log.Info("auth event", "kind", e.Kind, "user_id", e.UserID)
	})
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(RequestMetrics(s.metrics))
	s.router.Use(CORS)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", metrics.Handler(s.gatherer))

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/logout", s.handleLogout)
		})

		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(s.svc.Auth))

			r.Get("/me", s.handleMe)

			r.Get("/exercises", s.handleListExercises)
			r.Post("/exercises", s.handleCreateExercise)
			r.Get("/exercises/{id}", s.handleGetExercise)
			r.Patch("/exercises/{id}", s.handleUpdateExercise)
			r.Delete("/exercises/{id}", s.handleDeleteExercise)

			r.Get("/sessions", s.handleListSessions)
			r.Post("/sessions", s.handleCreateSession)
			r.Get("/sessions/active", s.handleActiveSession)
			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDiscardSession)
				r.Post("/complete", s.handleCompleteSession)
				r.Post("/exercises", s.handleAddExercise)
				r.Delete("/exercises/{seid}", s.handleRemoveExercise)
				r.Post("/exercises/{seid}/sets", s.handleAddSet)
				r.Patch("/sets/{setID}", s.handleUpdateSet)
				r.Delete("/sets/{setID}", s.handleDeleteSet)
			})

			r.Get("/records", s.handleListRecords)
			r.Get("/records/{exerciseID}", s.handleGetRecord)
			r.Post("/records/{exerciseID}", s.handleUpsertRecord)
			r.Get("/records/{exerciseID}/history", s.handleRecordHistory)

			r.Get("/programs", s.handleListPrograms)
			r.Post("/programs", s.handleCreateProgram)
			r.Get("/programs/{id}", s.handleGetProgram)
			r.Get("/programs/{id}/weeks/{week}", s.handleWeekPlan)
			r.Post("/programs/{id}/enroll", s.handleEnroll)

			r.Get("/enrollments", s.handleListEnrollments)
			r.Patch("/enrollments/{id}", s.handleSetEnrollmentStatus)
			r.Post("/enrollments/{id}/advance", s.handleAdvanceEnrollment)

			r.Get("/bodyweight", s.handleListBodyWeight)
			r.Post("/bodyweight", s.handleLogBodyWeight)
			r.Delete("/bodyweight/{id}", s.handleDeleteBodyWeight)

			r.Post("/import/alpha", s.handleAlphaImport)
		})
	})
}
