// Package respond writes proxy responses and maps the error taxonomy to HTTP.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/graphfront/sparql-proxy/internal/proxyerr"
)

// ErrorResponse is the JSON body for known precondition failures.
type ErrorResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteError maps err onto the wire. Backend errors carrying an upstream
// body pass it through with the upstream status; everything else gets the
// {message, data} envelope.
func WriteError(w http.ResponseWriter, err error) {
	pe := proxyerr.From(err)

	if pe.Body != nil {
		ct := pe.ContentType
		if ct == "" {
			ct = "text/plain; charset=utf-8"
		}
		w.Header().Set("Content-Type", ct)
		w.WriteHeader(pe.HTTPStatus())
		_, _ = w.Write(pe.Body)
		return
	}

	WriteJSON(w, pe.HTTPStatus(), ErrorResponse{Message: pe.Message, Data: pe.Data})
}
