package api

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// QueryLog appends one JSON line per served request to a file. A nil
// QueryLog is valid and records nothing.
type QueryLog struct {
	f   *os.File
	log zerolog.Logger
}

// OpenQueryLog opens path for appending.
func OpenQueryLog(path string) (*QueryLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open query log: %w", err)
	}
	return &QueryLog{f: f, log: zerolog.New(f)}, nil
}

// Record writes one request line.
func (l *QueryLog) Record(start, done time.Time, ip, query string, cacheHit bool, contentType string, body []byte) {
	if l == nil {
		return
	}
	l.log.Log().
		Time("startedAt", start).
		Time("doneAt", done).
		Int64("elapsedMs", done.Sub(start).Milliseconds()).
		Str("ip", ip).
		Str("query", query).
		Bool("cacheHit", cacheHit).
		Str("contentType", contentType).
		Str("body", string(body)).
		Send()
}

// Close releases the underlying file.
func (l *QueryLog) Close() error {
	if l == nil {
		return nil
	}
	return l.f.Close()
}
