package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/graphfront/sparql-proxy/internal/api/respond"
)

// handleJobStatus reports the most recent job for a token, or 404 once the
// sweeper has dropped it.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	status := s.queue.JobStatus(token)
	if status == nil {
		respond.WriteJSON(w, http.StatusNotFound, respond.ErrorResponse{Message: "job not found"})
		return
	}
	respond.WriteJSON(w, http.StatusOK, status)
}

// handleCancelJob cancels the most recent live job for a token. This lets
// the submitting client abandon its own query without admin credentials.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	if !s.queue.CancelByToken(token) {
		respond.WriteJSON(w, http.StatusNotFound, respond.ErrorResponse{Message: "no cancellable job"})
		return
	}
	s.log.Info().Str("token", token).Msg("job cancelled by token")
	w.WriteHeader(http.StatusNoContent)
}
