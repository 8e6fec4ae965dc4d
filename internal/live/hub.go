// Package live pushes queue state to admin observers over a websocket and
// accepts purge and cancel commands back.
package live

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/graphfront/sparql-proxy/internal/cachestore"
	"github.com/graphfront/sparql-proxy/internal/queue"
)

// command is one client frame.
type command struct {
	Command string `json:"command"`
	ID      string `json:"id,omitempty"`
}

// stateFrame is one server push.
type stateFrame struct {
	Command string         `json:"command"`
	State   queue.Snapshot `json:"state"`
}

// Hub upgrades authorized requests to websockets and relays queue snapshots.
type Hub struct {
	queue     *queue.Queue
	store     cachestore.Store
	authorize func(*http.Request) bool
	upgrader  websocket.Upgrader
	log       zerolog.Logger
}

// NewHub creates a Hub. authorize gates the handshake; unauthorized
// connections are refused before the upgrade.
func NewHub(q *queue.Queue, store cachestore.Store, authorize func(*http.Request) bool, log zerolog.Logger) *Hub {
	return &Hub{
		queue:     q,
		store:     store,
		authorize: authorize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The admin cookie is the credential; the dashboard may be
			// served from a different origin in development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// ServeHTTP runs one admin connection until either side hangs up.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	snapshots, unsub := h.queue.Subscribe()
	done := make(chan struct{})

	go func() {
		defer conn.Close()
		if err := conn.WriteJSON(stateFrame{Command: "state", State: h.queue.State()}); err != nil {
			return
		}
		for {
			select {
			case snap, ok := <-snapshots:
				if !ok {
					return
				}
				if err := conn.WriteJSON(stateFrame{Command: "state", State: snap}); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		var cmd command
		if err := conn.ReadJSON(&cmd); err != nil {
			break
		}
		h.dispatch(&cmd)
	}
	close(done)
	unsub()
}

func (h *Hub) dispatch(cmd *command) {
	switch cmd.Command {
	case "purge_cache":
		if err := h.store.Purge(context.Background()); err != nil {
			h.log.Error().Err(err).Msg("cache purge failed")
			return
		}
		h.log.Info().Msg("cache purged by admin")
	case "cancel_job":
		if !h.queue.Cancel(cmd.ID) {
			h.log.Warn().Str("job", cmd.ID).Msg("cancel had no effect")
		}
	default:
		h.log.Warn().Str("command", cmd.Command).Msg("unknown live command")
	}
}
