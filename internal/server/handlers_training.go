package server

import (
	"net/http"
	"strconv"

	"github.com/claude/ironlog/internal/bodyweight"
	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/records"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Records.List(r.Context(), userIDFromContext(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.PersonalRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	exerciseID, ok := parseID(w, r, "exerciseID")
	if !ok {
		return
	}
	pr, err := s.svc.Records.Get(r.Context(), userIDFromContext(r), exerciseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if pr == nil {
		notFound(w, "personal record")
		return
	}
	writeJSON(w, http.StatusOK, pr)
}

type upsertRecordResponse struct {
	Record  *models.PersonalRecord `json:"record"`
	Updated bool                   `json:"updated"`
}

func (s *Server) handleUpsertRecord(w http.ResponseWriter, r *http.Request) {
	exerciseID, ok := parseID(w, r, "exerciseID")
	if !ok {
		return
	}
	var in records.Candidate
	if !decodeJSON(w, r, &in) {
		return
	}
	userID := userIDFromContext(r)
	ex, err := s.svc.Exercises.Get(r.Context(), userID, exerciseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ex == nil {
		notFound(w, "exercise")
		return
	}
	pr, updated, err := s.svc.Records.Upsert(r.Context(), userID, exerciseID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if updated {
		s.metrics.CounterRecordsSet.Inc()
	}
	writeJSON(w, http.StatusOK, upsertRecordResponse{Record: pr, Updated: updated})
}

func (s *Server) handleRecordHistory(w http.ResponseWriter, r *http.Request) {
	exerciseID, ok := parseID(w, r, "exerciseID")
	if !ok {
		return
	}
	list, err := s.svc.Records.History(r.Context(), userIDFromContext(r), exerciseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.PersonalRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleListPrograms(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Programs.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Program{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetProgram(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	p, err := s.svc.Programs.Details(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if p == nil {
		notFound(w, "program")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateProgram(w http.ResponseWriter, r *http.Request) {
	var in models.ProgramDetail
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := s.svc.Programs.Create(r.Context(), userIDFromContext(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleWeekPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	week, err := strconv.Atoi(chi.URLParam(r, "week"))
	if err != nil {
		badRequest(w, "invalid week")
		return
	}
	plan, err := s.svc.Programs.WeekPlan(r.Context(), id, week)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if plan == nil {
		notFound(w, "program")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	a, err := s.svc.Programs.Enroll(r.Context(), userIDFromContext(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Programs.Enrollments(r.Context(), userIDFromContext(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAdvanceEnrollment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	e, err := s.svc.Programs.Advance(r.Context(), userIDFromContext(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleSetEnrollmentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status models.EnrollmentStatus `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := s.svc.Programs.SetStatus(r.Context(), userIDFromContext(r), id, req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type bodyWeightResponse struct {
	Entries   []models.BodyWeightEntry `json:"entries"`
	Latest    *models.BodyWeightEntry  `json:"latest"`
	ChangeLbs float64                  `json:"change_lbs"`
}

func (s *Server) handleListBodyWeight(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	entries, err := s.svc.BodyWeight.Recent(r.Context(), userIDFromContext(r), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := bodyWeightResponse{Entries: entries, ChangeLbs: bodyweight.Change(entries)}
	if len(entries) > 0 {
		resp.Latest = &entries[0]
	} else {
		resp.Entries = []models.BodyWeightEntry{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogBodyWeight(w http.ResponseWriter, r *http.Request) {
	var in bodyweight.Entry
	if !decodeJSON(w, r, &in) {
		return
	}
	e, err := s.svc.BodyWeight.Log(r.Context(), userIDFromContext(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleDeleteBodyWeight(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if err := s.svc.BodyWeight.Delete(r.Context(), userIDFromContext(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
