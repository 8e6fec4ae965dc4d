package api

import (
	"net/http"
	"time"

	"github.com/graphfront/sparql-proxy/internal/api/respond"
)

type healthResponse struct {
	Status        string `json:"status"`
	Backend       string `json:"backend"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Backend:       s.cfg.SparqlBackend,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}
