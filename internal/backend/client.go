// Package backend talks to the upstream SPARQL endpoint.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Response is one upstream reply. Non-2xx replies are returned, not turned
// into errors; the caller decides how to surface them.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// OK reports whether the upstream accepted the query.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Client issues SPARQL protocol requests against a single endpoint.
type Client struct {
	client   *resty.Client
	endpoint string
}

// New creates a client for the given endpoint URL.
func New(endpoint string) *Client {
	c := resty.New().
		SetHeader("User-Agent", "sparql-proxy").
		SetTimeout(24 * time.Hour) // per-job deadlines come from the context
	return &Client{client: c, endpoint: endpoint}
}

// Query POSTs the query with Content-Type application/sparql-query and the
// given Accept. The context aborts the in-flight request when cancelled.
func (c *Client) Query(ctx context.Context, query, accept string) (*Response, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/sparql-query").
		SetHeader("Accept", accept).
		SetBody(query).
		Post(c.endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("backend request: %w", err)
	}

	return &Response{
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}, nil
}
