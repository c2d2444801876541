package server

import (
	"net/http"
)

// maxImportBytes bounds an uploaded export file.
const maxImportBytes = 10 << 20

func (s *Server) handleAlphaImport(w http.ResponseWriter, r *http.Request) {
	if s.svc.Alpha == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "import not configured"})
		return
	}
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	result, err := s.svc.Alpha.Ingest(r.Context(), userIDFromContext(r), body)
	if err != nil {
		s.log.Error("alpha import error", "user_id", userIDFromContext(r), "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if result.SessionsImported > 0 {
		s.metrics.CounterSessionsCreated.Add(float64(result.SessionsImported))
	}
	writeJSON(w, http.StatusOK, result)
}
