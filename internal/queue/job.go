package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// State is a job's position in its lifecycle. States only advance:
// waiting -> running -> (success | error | cancelled), with waiting ->
// cancelled as the short-circuit for jobs cancelled before starting.
type State string

const (
	StateWaiting   State = "waiting"
	StateRunning   State = "running"
	StateSuccess   State = "success"
	StateError     State = "error"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transition is permitted.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateError || s == StateCancelled
}

// Result is a completed query response.
type Result struct {
	ContentType string
	Body        []byte
}

// Runner executes one query attempt. The context carries the job timeout and
// is cancelled when the job is cancelled.
type Runner interface {
	Run(ctx context.Context) (*Result, error)
}

// RunnerFunc adapts a function to a Runner.
type RunnerFunc func(ctx context.Context) (*Result, error)

func (f RunnerFunc) Run(ctx context.Context) (*Result, error) { return f(ctx) }

// Job is one query attempt owned by a Queue. All mutable fields are guarded
// by the queue's mutex; the queue is the only scheduler.
type Job struct {
	ID    string
	Token string
	Query string
	IP    string

	CreatedAt time.Time
	StartedAt time.Time
	DoneAt    time.Time

	runner Runner

	state  State
	result *Result
	err    error

	cancelRun       context.CancelFunc
	cancelRequested bool

	// done closes exactly once, when state turns terminal.
	done chan struct{}
}

// NewJob creates a waiting job. Token may be empty.
func NewJob(token, query, ip string, runner Runner) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Token:     token,
		Query:     query,
		IP:        ip,
		CreatedAt: time.Now(),
		runner:    runner,
		state:     StateWaiting,
		done:      make(chan struct{}),
	}
}

// Summary is the observer-safe view of a job; result bodies are omitted.
type Summary struct {
	ID        string     `json:"id"`
	Token     string     `json:"token,omitempty"`
	State     State      `json:"state"`
	Query     string     `json:"query"`
	IP        string     `json:"ip,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	DoneAt    *time.Time `json:"doneAt,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// summaryLocked must be called with the queue mutex held.
func (j *Job) summaryLocked() Summary {
	s := Summary{
		ID:        j.ID,
		Token:     j.Token,
		State:     j.state,
		Query:     j.Query,
		IP:        j.IP,
		CreatedAt: j.CreatedAt,
	}
	if !j.StartedAt.IsZero() {
		t := j.StartedAt
		s.StartedAt = &t
	}
	if !j.DoneAt.IsZero() {
		t := j.DoneAt
		s.DoneAt = &t
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	return s
}
