// Package chunk executes SELECT queries as a sequence of LIMIT/OFFSET pages
// and reassembles the shards into one result set.
package chunk

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/graphfront/sparql-proxy/internal/backend"
	"github.com/graphfront/sparql-proxy/internal/proxyerr"
	"github.com/graphfront/sparql-proxy/internal/sparql"
)

// solutionPage is the subset of the SPARQL JSON results format the merger
// needs. Bindings stay raw so upstream terms survive byte for byte.
type solutionPage struct {
	Head    json.RawMessage `json:"head"`
	Results struct {
		Bindings []json.RawMessage `json:"bindings"`
	} `json:"results"`
}

// Executor runs queries against the backend, splitting SELECTs into shards
// when enabled. Non-SELECT queries, and all queries when splitting is off,
// are forwarded verbatim with the client's accept type.
type Executor struct {
	Backend       *backend.Client
	Enabled       bool
	MaxChunkLimit int64
	MaxLimit      int64
	Log           zerolog.Logger
}

// Execute runs one normalized query to completion. The non-split path
// forwards the client's original text, not the re-serialized form, so the
// upstream sees exactly what was sent.
func (e *Executor) Execute(ctx context.Context, q *sparql.Normalized) (*backend.Response, error) {
	if !e.Enabled || !q.IsSelect() {
		return e.forward(ctx, q.Raw, q.Accept)
	}
	return e.split(ctx, q)
}

func (e *Executor) forward(ctx context.Context, query, accept string) (*backend.Response, error) {
	resp, err := e.Backend.Query(ctx, query, accept)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, proxyerr.Backend(resp.StatusCode, resp.ContentType, resp.Body)
	}
	return resp, nil
}

// split issues LIMIT/OFFSET shards sequentially. Sequential issuance lets
// the loop stop as soon as enough rows are gathered and bounds backend
// concurrency to one in-flight request per job.
func (e *Executor) split(ctx context.Context, q *sparql.Normalized) (*backend.Response, error) {
	userLimit := int64(math.MaxInt64)
	if l, ok := q.Limit(); ok {
		userLimit = l
	}
	effectiveLimit := min64(userLimit, e.MaxLimit)
	chunkSize := min64(e.MaxChunkLimit, effectiveLimit)

	var (
		head     json.RawMessage
		bindings = []json.RawMessage{}
		offset   = q.Offset()
	)

	for int64(len(bindings)) < effectiveLimit {
		// A cancelled job must not start another shard.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		want := min64(chunkSize, effectiveLimit-int64(len(bindings)))
		shard := q.Rewrite(want, offset)
		e.Log.Debug().Int64("limit", want).Int64("offset", offset).Msg("issuing shard")

		resp, err := e.Backend.Query(ctx, shard, sparql.DefaultAccept)
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			return nil, proxyerr.Backend(resp.StatusCode, resp.ContentType, resp.Body)
		}

		var page solutionPage
		if err := json.Unmarshal(resp.Body, &page); err != nil {
			return nil, fmt.Errorf("parse shard result: %w", err)
		}
		if head == nil {
			head = page.Head
		}
		bindings = append(bindings, page.Results.Bindings...)

		// Fewer rows than requested means the stream is exhausted.
		if int64(len(page.Results.Bindings)) < want {
			break
		}
		offset += want
	}

	body, err := mergeResult(head, bindings)
	if err != nil {
		return nil, err
	}
	return &backend.Response{
		StatusCode:  200,
		ContentType: sparql.DefaultAccept,
		Body:        body,
	}, nil
}

func mergeResult(head json.RawMessage, bindings []json.RawMessage) ([]byte, error) {
	if head == nil {
		head = json.RawMessage(`{}`)
	}
	merged := struct {
		Head    json.RawMessage `json:"head"`
		Results struct {
			Bindings []json.RawMessage `json:"bindings"`
		} `json:"results"`
	}{Head: head}
	merged.Results.Bindings = bindings

	body, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("merge result: %w", err)
	}
	return body, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
