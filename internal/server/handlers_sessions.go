package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/claude/ironlog/internal/models"
	"github.com/claude/ironlog/internal/sessions"
)

// ownedSession loads the {id} session and checks that it belongs to the
// caller. Sessions of other users are reported as not found.
func (s *Server) ownedSession(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	id, ok := parseID(w, r, "id")
	if !ok {
		return nil, false
	}
	sess, err := s.svc.Sessions.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	if sess == nil || sess.UserID != userIDFromContext(r) {
		notFound(w, "session")
		return nil, false
	}
	return sess, true
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	list, err := s.svc.Sessions.List(r.Context(), userIDFromContext(r), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Session{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var in sessions.NewSession
	if !decodeJSON(w, r, &in) {
		return
	}
	sess, err := s.svc.Sessions.Create(r.Context(), userIDFromContext(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.CounterSessionsCreated.Inc()
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Sessions.Active(r.Context(), userIDFromContext(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sess == nil {
		notFound(w, "active session")
		return
	}
	d, err := s.svc.Sessions.Details(r.Context(), sess.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if d == nil {
		notFound(w, "active session")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	d, err := s.svc.Sessions.Details(r.Context(), sess.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if d == nil {
		notFound(w, "session")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDiscardSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	if err := s.svc.Sessions.Discard(r.Context(), sess.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type completeRequest struct {
	Notes *string `json:"notes,omitempty"`
}

type completeResponse struct {
	Session    *models.Session         `json:"session"`
	NewRecords []models.PersonalRecord `json:"new_records"`
}

// handleCompleteSession closes the session and then folds its best sets into
// the caller's personal records. The body is optional.
func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}

	done, err := s.svc.Sessions.Complete(r.Context(), sess.ID, req.Notes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.CounterSessionsCompleted.Inc()

	// The session is closed at this point; record failures only cost the
	// caller the new_records list.
	resp := completeResponse{Session: done, NewRecords: []models.PersonalRecord{}}
	d, err := s.svc.Sessions.Details(r.Context(), sess.ID)
	if err != nil {
		s.log.Error("loading completed session", "session_id", sess.ID, "error", err)
	}
	if d != nil {
		prs, err := s.svc.Records.ApplySession(r.Context(), d)
		if err != nil {
			s.log.Error("applying personal records", "session_id", sess.ID, "error", err)
		}
		if len(prs) > 0 {
			resp.NewRecords = prs
			s.metrics.CounterRecordsSet.Add(float64(len(prs)))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddExercise(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	var in sessions.NewExercise
	if !decodeJSON(w, r, &in) {
		return
	}
	ex, err := s.svc.Exercises.Get(r.Context(), sess.UserID, in.ExerciseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ex == nil {
		notFound(w, "exercise")
		return
	}

	se, err := s.svc.Sessions.AddExercise(r.Context(), sess.ID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	se.ExerciseName = ex.Name
	se.Category = ex.Category
	writeJSON(w, http.StatusCreated, se)
}

func (s *Server) handleRemoveExercise(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	seID, ok := parseID(w, r, "seid")
	if !ok {
		return
	}
	if err := s.svc.Sessions.RemoveExercise(r.Context(), sess.ID, seID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddSet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	seID, ok := parseID(w, r, "seid")
	if !ok {
		return
	}
	var in sessions.NewSet
	if !decodeJSON(w, r, &in) {
		return
	}
	set, err := s.svc.Sessions.AddSet(r.Context(), sess.ID, seID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, set)
}

func (s *Server) handleUpdateSet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	setID, ok := parseID(w, r, "setID")
	if !ok {
		return
	}
	var patch models.SetPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	set, err := s.svc.Sessions.UpdateSet(r.Context(), sess.ID, setID, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleDeleteSet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	setID, ok := parseID(w, r, "setID")
	if !ok {
		return
	}
	if err := s.svc.Sessions.DeleteSet(r.Context(), sess.ID, setID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
