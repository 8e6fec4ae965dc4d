// Package proxyservice wires the proxy components together and runs the
// HTTP server.
package proxyservice

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/graphfront/sparql-proxy/internal/api"
	"github.com/graphfront/sparql-proxy/internal/backend"
	"github.com/graphfront/sparql-proxy/internal/cachestore"
	"github.com/graphfront/sparql-proxy/internal/chunk"
	"github.com/graphfront/sparql-proxy/internal/compress"
	"github.com/graphfront/sparql-proxy/internal/config"
	"github.com/graphfront/sparql-proxy/internal/live"
	"github.com/graphfront/sparql-proxy/internal/logger"
	"github.com/graphfront/sparql-proxy/internal/queue"
)

// sweepInterval is how often terminal jobs older than the retention window
// are dropped.
const sweepInterval = 5 * time.Second

// Run starts the SPARQL proxy HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("sparql-proxy")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	// Cancellable root context bound to SIGINT/SIGTERM.
	ctx, stop := newServerContext()
	defer stop()

	comp, err := compress.ByID(cfg.Compressor)
	if err != nil {
		log.Error().Err(err).Msg("Compressor unavailable")
		return err
	}

	store, err := cachestore.New(cfg, comp)
	if err != nil {
		log.Error().Err(err).Msg("Cache store unavailable")
		return err
	}

	var qlog *api.QueryLog
	if cfg.QueryLogPath != "" {
		qlog, err = api.OpenQueryLog(cfg.QueryLogPath)
		if err != nil {
			log.Error().Err(err).Msg("Query log unavailable")
			return err
		}
		defer func() { _ = qlog.Close() }()
	}

	q := queue.New(queue.Config{
		MaxConcurrency: cfg.MaxConcurrency,
		MaxWaiting:     cfg.MaxWaiting,
		JobTimeout:     cfg.JobTimeout(),
	}, log)
	q.StartSweeper(ctx, sweepInterval, cfg.DurationToKeepOldJobs())

	exec := &chunk.Executor{
		Backend:       backend.New(cfg.SparqlBackend),
		Enabled:       cfg.EnableQuerySplitting,
		MaxChunkLimit: cfg.MaxChunkLimit,
		MaxLimit:      cfg.MaxLimit,
		Log:           log,
	}

	server := api.NewServer(api.Params{
		Config:     cfg,
		Store:      store,
		Compressor: comp,
		Executor:   exec,
		Queue:      q,
		QueryLog:   qlog,
		Log:        log,
	})
	hub := live.NewHub(q, store, server.AdminAuthorized, log)

	httpServer := newHTTPServer(ctx, cfg, server.Router(hub))
	errCh := serveHTTP(httpServer, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No read/write timeouts: requests legitimately block for the whole
		// job timeout, and the live channel holds its connection open.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// newServerContext returns a cancellable context that is cancelled on
// SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
