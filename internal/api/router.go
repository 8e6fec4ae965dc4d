package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/graphfront/sparql-proxy/internal/api/recovery"
)

// Router assembles the HTTP surface. The live channel handler is optional;
// tests that do not exercise websockets pass nil.
func (s *Server) Router(live http.Handler) http.Handler {
	r := mux.NewRouter()
	r.Use(recovery.Middleware)

	r.HandleFunc("/sparql", s.handleSparql)
	r.HandleFunc("/jobs/{token}", s.handleJobStatus).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{token}", s.handleCancelJob).Methods(http.MethodDelete)
	r.HandleFunc("/admin", s.handleAdmin).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if live != nil {
		r.Handle("/live", live)
	}
	r.PathPrefix("/").Handler(http.FileServer(http.FS(staticFiles()))).Methods(http.MethodGet)

	return r
}
