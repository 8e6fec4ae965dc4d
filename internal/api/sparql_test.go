package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfront/sparql-proxy/internal/backend"
	"github.com/graphfront/sparql-proxy/internal/cachestore"
	"github.com/graphfront/sparql-proxy/internal/chunk"
	"github.com/graphfront/sparql-proxy/internal/compress"
	"github.com/graphfront/sparql-proxy/internal/config"
	"github.com/graphfront/sparql-proxy/internal/queue"
)

const resultJSON = `{"head":{"vars":["s"]},"results":{"bindings":[{"s":{"type":"uri","value":"http://example.org/a"}}]}}`

func jsonBackend(calls *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		w.Header().Set("Content-Type", "application/sparql-results+json")
		_, _ = w.Write([]byte(resultJSON))
	}
}

// newTestProxy assembles a proxy in front of backendHandler with an
// in-memory cache. mutate tweaks configuration before wiring.
func newTestProxy(t *testing.T, backendHandler http.Handler, mutate func(*config.Config, *queue.Config)) (*httptest.Server, *Server, *queue.Queue) {
	t.Helper()

	be := httptest.NewServer(backendHandler)
	t.Cleanup(be.Close)

	cfg := &config.Config{
		SparqlBackend:         be.URL,
		AdminUser:             "admin",
		AdminPassword:         "secret",
		MemoryCacheMaxEntries: 64,
	}
	qcfg := queue.Config{MaxConcurrency: 1}
	if mutate != nil {
		mutate(cfg, &qcfg)
	}

	store, err := cachestore.NewMemoryStore(cfg.MemoryCacheMaxEntries, cachestore.NewCodec(compress.Raw{}))
	require.NoError(t, err)

	q := queue.New(qcfg, zerolog.Nop())
	exec := &chunk.Executor{
		Backend:       backend.New(be.URL),
		MaxChunkLimit: 1000,
		MaxLimit:      10000,
		Log:           zerolog.Nop(),
	}
	s := NewServer(Params{
		Config:     cfg,
		Store:      store,
		Compressor: compress.Raw{},
		Executor:   exec,
		Queue:      q,
		Log:        zerolog.Nop(),
	})

	ts := httptest.NewServer(s.Router(nil))
	t.Cleanup(ts.Close)
	return ts, s, q
}

func TestSparql_CacheHit(t *testing.T) {
	var calls int32
	ts, _, _ := newTestProxy(t, jsonBackend(&calls), nil)

	target := ts.URL + "/sparql?query=" + url.QueryEscape("SELECT ?s WHERE { ?s ?p ?o } LIMIT 1")

	first, err := http.Get(target)
	require.NoError(t, err)
	firstBody, _ := io.ReadAll(first.Body)
	first.Body.Close()
	require.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, "miss", first.Header.Get("X-Cache"))

	second, err := http.Get(target)
	require.NoError(t, err)
	secondBody, _ := io.ReadAll(second.Body)
	second.Body.Close()
	require.Equal(t, http.StatusOK, second.StatusCode)
	assert.Equal(t, "hit", second.Header.Get("X-Cache"))

	assert.Equal(t, firstBody, secondBody, "hit must serve identical bytes")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second request must not reach the backend")
}

func TestSparql_CacheHitAcrossSyntaxVariants(t *testing.T) {
	var calls int32
	ts, _, _ := newTestProxy(t, jsonBackend(&calls), nil)

	queries := []string{
		"SELECT ?s WHERE { ?s ?p ?o } LIMIT 1",
		"select   ?s\nwhere { ?s ?p ?o }\nlimit 1",
	}
	for _, q := range queries {
		resp, err := http.Get(ts.URL + "/sparql?query=" + url.QueryEscape(q))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "equivalent queries share one cache entry")
}

func TestSparql_MethodNotAllowed(t *testing.T) {
	ts, _, _ := newTestProxy(t, jsonBackend(nil), nil)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/sparql", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestSparql_MissingQuery(t *testing.T) {
	ts, _, _ := newTestProxy(t, jsonBackend(nil), nil)

	resp, err := http.Get(ts.URL + "/sparql")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSparql_ParseFailure(t *testing.T) {
	ts, _, _ := newTestProxy(t, jsonBackend(nil), nil)

	resp, err := http.Post(ts.URL+"/sparql", "application/sparql-query", strings.NewReader("SELEKT ?x"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Query parse failed")
	assert.Contains(t, string(body), `"data"`)
}

func TestSparql_UpdateRejected(t *testing.T) {
	ts, _, _ := newTestProxy(t, jsonBackend(nil), nil)

	resp, err := http.Post(ts.URL+"/sparql", "application/sparql-query",
		strings.NewReader("INSERT DATA { <http://a> <http://b> <http://c> }"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Query type not allowed")
}

func TestSparql_FormPost(t *testing.T) {
	ts, _, _ := newTestProxy(t, jsonBackend(nil), nil)

	form := url.Values{"query": {"ASK { ?s ?p ?o }"}}
	resp, err := http.Post(ts.URL+"/sparql", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "miss", resp.Header.Get("X-Cache"))
}

func TestSparql_Options(t *testing.T) {
	ts, _, _ := newTestProxy(t, jsonBackend(nil), nil)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/sparql", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestSparql_QueueFull(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "application/sparql-results+json")
		_, _ = w.Write([]byte(resultJSON))
	})

	ts, _, q := newTestProxy(t, slow, func(cfg *config.Config, qcfg *queue.Config) {
		qcfg.MaxConcurrency = 1
		qcfg.MaxWaiting = 1
	})

	get := func(query string, ch chan<- int) {
		resp, err := http.Get(ts.URL + "/sparql?query=" + url.QueryEscape(query))
		if err != nil {
			ch <- 0
			return
		}
		resp.Body.Close()
		ch <- resp.StatusCode
	}

	first := make(chan int, 1)
	go get("SELECT ?a WHERE { ?a ?p ?o }", first)
	require.Eventually(t, func() bool {
		return len(q.State().Running) == 1
	}, time.Second, 5*time.Millisecond)

	second := make(chan int, 1)
	go get("SELECT ?b WHERE { ?b ?p ?o }", second)
	require.Eventually(t, func() bool {
		return len(q.State().Waiting) == 1
	}, time.Second, 5*time.Millisecond)

	// Third is rejected without waiting.
	resp, err := http.Get(ts.URL + "/sparql?query=" + url.QueryEscape("SELECT ?c WHERE { ?c ?p ?o }"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	release <- struct{}{}
	release <- struct{}{}
	assert.Equal(t, http.StatusOK, <-first)
	assert.Equal(t, http.StatusOK, <-second)
}

func TestSparql_BackendErrorPassthrough(t *testing.T) {
	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream on fire"))
	})
	ts, _, _ := newTestProxy(t, failing, nil)

	resp, err := http.Get(ts.URL + "/sparql?query=" + url.QueryEscape("SELECT ?s WHERE { ?s ?p ?o }"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "upstream on fire", string(body))
}

func TestSparql_Timeout(t *testing.T) {
	stuck := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can observe the client going away;
		// with unread body bytes buffered, r.Context() is never cancelled
		// and Close hangs on this connection.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})
	ts, _, _ := newTestProxy(t, stuck, func(cfg *config.Config, qcfg *queue.Config) {
		qcfg.JobTimeout = 30 * time.Millisecond
	})

	resp, err := http.Get(ts.URL + "/sparql?query=" + url.QueryEscape("SELECT ?s WHERE { ?s ?p ?o }"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
}

func TestJobs_StatusAndNotFound(t *testing.T) {
	ts, _, _ := newTestProxy(t, jsonBackend(nil), nil)

	resp, err := http.Get(ts.URL + "/sparql?query=" + url.QueryEscape("SELECT ?s WHERE { ?s ?p ?o }") + "&token=tok-1")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	status, err := http.Get(ts.URL + "/jobs/tok-1")
	require.NoError(t, err)
	defer status.Body.Close()
	require.Equal(t, http.StatusOK, status.StatusCode)
	body, _ := io.ReadAll(status.Body)
	assert.Contains(t, string(body), `"state":"success"`)

	missing, err := http.Get(ts.URL + "/jobs/no-such-token")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestJobs_CancelByToken(t *testing.T) {
	stuck := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})
	ts, _, q := newTestProxy(t, stuck, nil)

	codeCh := make(chan int, 1)
	go func() {
		resp, err := http.Get(ts.URL + "/sparql?query=" + url.QueryEscape("SELECT ?s WHERE { ?s ?p ?o }") + "&token=tok-3")
		if err != nil {
			codeCh <- 0
			return
		}
		resp.Body.Close()
		codeCh <- resp.StatusCode
	}()
	require.Eventually(t, func() bool {
		return len(q.State().Running) == 1
	}, time.Second, 5*time.Millisecond)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/jobs/tok-3", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, http.StatusServiceUnavailable, <-codeCh, "requester is released with 503")

	status, err := http.Get(ts.URL + "/jobs/tok-3")
	require.NoError(t, err)
	defer status.Body.Close()
	body, _ := io.ReadAll(status.Body)
	assert.Contains(t, string(body), `"state":"cancelled"`)
}

func TestJobs_CancelUnknownToken(t *testing.T) {
	ts, _, _ := newTestProxy(t, jsonBackend(nil), nil)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/jobs/no-such-token", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJobs_SweptJobIsGone(t *testing.T) {
	ts, _, q := newTestProxy(t, jsonBackend(nil), nil)

	resp, err := http.Get(ts.URL + "/sparql?query=" + url.QueryEscape("SELECT ?s WHERE { ?s ?p ?o }") + "&token=tok-2")
	require.NoError(t, err)
	resp.Body.Close()

	q.SweepOldItems(time.Now().Add(time.Hour))

	status, err := http.Get(ts.URL + "/jobs/tok-2")
	require.NoError(t, err)
	defer status.Body.Close()
	assert.Equal(t, http.StatusNotFound, status.StatusCode)
}

func TestAdmin_AuthFlow(t *testing.T) {
	ts, s, _ := newTestProxy(t, jsonBackend(nil), nil)

	// No credentials.
	resp, err := http.Get(ts.URL + "/admin")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Wrong password.
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/admin", nil)
	req.SetBasicAuth("admin", "wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Valid credentials hand out the live-channel cookie.
	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/admin", nil)
	req.SetBasicAuth("admin", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, resp.Cookies(), 1)
	cookie := resp.Cookies()[0]

	authed := httptest.NewRequest(http.MethodGet, "/live", nil)
	authed.AddCookie(cookie)
	assert.True(t, s.AdminAuthorized(authed))

	anon := httptest.NewRequest(http.MethodGet, "/live", nil)
	assert.False(t, s.AdminAuthorized(anon))
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestProxy(t, jsonBackend(nil), nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `"status":"ok"`)
	assert.Contains(t, string(body), `"backend"`)
}
