// Package api implements the proxy's HTTP surface.
package api

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/graphfront/sparql-proxy/internal/api/respond"
	"github.com/graphfront/sparql-proxy/internal/cachestore"
	"github.com/graphfront/sparql-proxy/internal/chunk"
	"github.com/graphfront/sparql-proxy/internal/compress"
	"github.com/graphfront/sparql-proxy/internal/config"
	"github.com/graphfront/sparql-proxy/internal/proxyerr"
	"github.com/graphfront/sparql-proxy/internal/queue"
	"github.com/graphfront/sparql-proxy/internal/sparql"
)

// Params carries the dependencies of a Server.
type Params struct {
	Config     *config.Config
	Store      cachestore.Store
	Compressor compress.Compressor
	Executor   *chunk.Executor
	Queue      *queue.Queue
	QueryLog   *QueryLog
	Log        zerolog.Logger
}

// Server handles proxy requests. The admin secret is fresh per process, so
// admin cookies do not survive restarts.
type Server struct {
	cfg     *config.Config
	store   cachestore.Store
	comp    compress.Compressor
	exec    *chunk.Executor
	queue   *queue.Queue
	qlog    *QueryLog
	secret  string
	started time.Time
	log     zerolog.Logger
}

// NewServer creates a Server from its dependencies.
func NewServer(p Params) *Server {
	return &Server{
		cfg:     p.Config,
		store:   p.Store,
		comp:    p.Compressor,
		exec:    p.Executor,
		queue:   p.Queue,
		qlog:    p.QueryLog,
		secret:  uuid.NewString(),
		started: time.Now(),
		log:     p.Log,
	}
}

func (s *Server) handleSparql(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodGet, http.MethodPost:
	default:
		respond.WriteError(w, proxyerr.New(proxyerr.KindMethodNotAllowed, "method not allowed"))
		return
	}

	raw, token, err := extractQuery(r)
	if err != nil {
		respond.WriteError(w, err)
		return
	}
	if strings.TrimSpace(raw) == "" {
		respond.WriteError(w, proxyerr.New(proxyerr.KindBadRequest, "query is required"))
		return
	}

	accept := r.Header.Get("Accept")
	if accept == "*/*" {
		accept = ""
	}

	n, err := sparql.Normalize(raw, accept)
	if err != nil {
		respond.WriteError(w, normalizeError(err))
		return
	}

	start := time.Now()
	ip := clientIP(r, s.cfg.TrustProxy)
	key := n.CacheKey(s.comp.ID())

	// A broken cache must not break the request; any get failure is a miss.
	if entry, err := s.store.Get(r.Context(), key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache get failed, treating as miss")
	} else if entry != nil {
		cacheHits.Inc()
		s.log.Debug().Str("key", key).Msg("cache hit")
		w.Header().Set("Content-Type", entry.ContentType)
		w.Header().Set("X-Cache", "hit")
		_, _ = w.Write(entry.Body)
		s.qlog.Record(start, time.Now(), ip, n.Raw, true, entry.ContentType, entry.Body)
		return
	}
	cacheMisses.Inc()

	job := queue.NewJob(token, n.Raw, ip, queue.RunnerFunc(func(ctx context.Context) (*queue.Result, error) {
		resp, err := s.exec.Execute(ctx, n)
		if err != nil {
			return nil, err
		}
		return &queue.Result{ContentType: resp.ContentType, Body: resp.Body}, nil
	}))

	res, err := s.queue.Enqueue(r.Context(), job)
	if err != nil {
		respond.WriteError(w, err)
		return
	}

	ct := res.ContentType
	if ct == "" {
		ct = sparql.DefaultAccept
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("X-Cache", "miss")
	_, _ = w.Write(res.Body)
	s.qlog.Record(start, time.Now(), ip, n.Raw, false, ct, res.Body)

	// Write-behind; the response is already on the wire, so a put failure
	// is only logged.
	entry := &cachestore.Entry{ContentType: ct, Body: res.Body}
	if err := s.store.Put(context.Background(), key, entry); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache put failed")
	}
}

// extractQuery pulls the query text and cancellation token out of the
// request, per the SPARQL protocol binding in use.
func extractQuery(r *http.Request) (query, token string, err error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		return q.Get("query"), q.Get("token"), nil
	}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/sparql-query":
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return "", "", proxyerr.New(proxyerr.KindBadRequest, "failed to read request body")
		}
		return string(body), r.URL.Query().Get("token"), nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return "", "", proxyerr.New(proxyerr.KindBadRequest, "malformed form body")
		}
		return r.PostFormValue("query"), r.PostFormValue("token"), nil
	default:
		return "", "", proxyerr.New(proxyerr.KindBadRequest, "unsupported content type").WithData(ct)
	}
}

func normalizeError(err error) error {
	var pe *sparql.ParseError
	switch {
	case errors.Is(err, sparql.ErrNotAQuery):
		return proxyerr.New(proxyerr.KindQueryTypeNotAllowed, "Query type not allowed")
	case errors.As(err, &pe):
		return proxyerr.New(proxyerr.KindParseError, "Query parse failed").WithData(pe.Msg)
	default:
		return proxyerr.New(proxyerr.KindParseError, "Query parse failed").WithData(err.Error())
	}
}
