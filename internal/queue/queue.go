// Package queue schedules query jobs: bounded admission, FIFO start order,
// cancellation, timeouts and live state broadcast.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/graphfront/sparql-proxy/internal/proxyerr"
)

// Config bounds the queue. MaxWaiting == 0 means unlimited admission.
type Config struct {
	MaxConcurrency int
	MaxWaiting     int
	JobTimeout     time.Duration
}

// Snapshot is an immutable copy of queue state, emitted on every transition.
type Snapshot struct {
	Waiting []Summary `json:"waiting"`
	Running []Summary `json:"running"`
	Recent  []Summary `json:"recent"`
}

// Queue runs up to MaxConcurrency jobs in parallel, FIFO among waiting ones.
type Queue struct {
	mu      sync.Mutex
	cfg     Config
	waiting []*Job
	running map[string]*Job
	recent  []*Job
	subs    map[int]chan Snapshot
	nextSub int
	log     zerolog.Logger
}

// New creates an empty queue.
func New(cfg Config, log zerolog.Logger) *Queue {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	return &Queue{
		cfg:     cfg,
		running: make(map[string]*Job),
		subs:    make(map[int]chan Snapshot),
		log:     log,
	}
}

// Enqueue admits job and blocks until it reaches a terminal state, returning
// its result. It fails immediately with a queue_full error when the waiting
// list is at capacity. If ctx is cancelled while waiting (the requester went
// away), the job is cancelled.
func (q *Queue) Enqueue(ctx context.Context, job *Job) (*Result, error) {
	q.mu.Lock()
	if q.cfg.MaxWaiting > 0 && len(q.waiting) >= q.cfg.MaxWaiting {
		q.mu.Unlock()
		return nil, proxyerr.New(proxyerr.KindQueueFull, "too many requests are waiting")
	}
	q.waiting = append(q.waiting, job)
	q.log.Debug().Str("job", job.ID).Str("ip", job.IP).Msg("job admitted")
	q.dispatchLocked()
	q.broadcastLocked()
	q.mu.Unlock()

	select {
	case <-job.done:
	case <-ctx.Done():
		q.Cancel(job.ID)
		<-job.done
	}

	q.mu.Lock()
	res, err := job.result, job.err
	q.mu.Unlock()
	return res, err
}

// Cancel moves a waiting job straight to cancelled, or aborts a running one.
// It reports whether a transition was set in motion: cancelling a job that
// is already terminal, unknown, or mid-cancellation returns false.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, job := range q.waiting {
		if job.ID != id {
			continue
		}
		q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
		q.finishLocked(job, nil, proxyerr.New(proxyerr.KindCancelled, "job cancelled"), StateCancelled)
		return true
	}

	if job, ok := q.running[id]; ok {
		if job.cancelRequested {
			return false
		}
		job.cancelRequested = true
		job.cancelRun()
		q.log.Info().Str("job", job.ID).Msg("cancelling running job")
		return true
	}
	return false
}

// CancelByToken cancels the most recent live job carrying token.
func (q *Queue) CancelByToken(token string) bool {
	if token == "" {
		return false
	}
	q.mu.Lock()
	var target *Job
	for _, job := range q.waiting {
		if job.Token == token {
			target = mostRecent(target, job)
		}
	}
	for _, job := range q.running {
		if job.Token == token {
			target = mostRecent(target, job)
		}
	}
	q.mu.Unlock()
	if target == nil {
		return false
	}
	return q.Cancel(target.ID)
}

// JobStatus returns the most recent job for token, or nil.
func (q *Queue) JobStatus(token string) *Summary {
	if token == "" {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	var target *Job
	for _, job := range q.waiting {
		if job.Token == token {
			target = mostRecent(target, job)
		}
	}
	for _, job := range q.running {
		if job.Token == token {
			target = mostRecent(target, job)
		}
	}
	for _, job := range q.recent {
		if job.Token == token {
			target = mostRecent(target, job)
		}
	}
	if target == nil {
		return nil
	}
	s := target.summaryLocked()
	return &s
}

// State returns a snapshot of the queue.
func (q *Queue) State() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// Subscribe registers a state observer. Snapshots are dropped, not queued,
// when the subscriber lags. The returned func unsubscribes.
func (q *Queue) Subscribe() (<-chan Snapshot, func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.nextSub
	q.nextSub++
	ch := make(chan Snapshot, 16)
	q.subs[id] = ch

	return ch, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if _, ok := q.subs[id]; ok {
			delete(q.subs, id)
			close(ch)
		}
	}
}

// SweepOldItems drops terminal jobs finished before threshold.
func (q *Queue) SweepOldItems(threshold time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.recent[:0]
	for _, job := range q.recent {
		if job.DoneAt.Before(threshold) {
			continue
		}
		kept = append(kept, job)
	}
	if len(kept) != len(q.recent) {
		q.log.Debug().Int("dropped", len(q.recent)-len(kept)).Msg("swept old jobs")
		q.recent = kept
		q.broadcastLocked()
	}
}

// StartSweeper runs SweepOldItems every interval until ctx is done.
func (q *Queue) StartSweeper(ctx context.Context, interval, keep time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				q.SweepOldItems(time.Now().Add(-keep))
			}
		}
	}()
}

// ---- internals, all called with q.mu held ----

func (q *Queue) dispatchLocked() {
	for len(q.running) < q.cfg.MaxConcurrency && len(q.waiting) > 0 {
		job := q.waiting[0]
		q.waiting = q.waiting[1:]

		job.state = StateRunning
		job.StartedAt = time.Now()
		q.running[job.ID] = job

		ctx := context.Background()
		var cancel context.CancelFunc
		if q.cfg.JobTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, q.cfg.JobTimeout)
		} else {
			ctx, cancel = context.WithCancel(ctx)
		}
		job.cancelRun = cancel

		q.log.Debug().Str("job", job.ID).Msg("job started")
		go q.run(job, ctx, cancel)
	}
}

func (q *Queue) run(job *Job, ctx context.Context, cancel context.CancelFunc) {
	defer cancel()

	res, err := q.safeRun(job, ctx)

	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.running, job.ID)
	switch {
	case job.cancelRequested:
		q.finishLocked(job, nil, proxyerr.New(proxyerr.KindCancelled, "job cancelled"), StateCancelled)
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		q.finishLocked(job, nil, proxyerr.New(proxyerr.KindTimeout, "job timed out"), StateError)
	case err != nil:
		q.finishLocked(job, nil, err, StateError)
	default:
		q.finishLocked(job, res, nil, StateSuccess)
	}
	q.dispatchLocked()
}

// safeRun shields the scheduler from a panicking runner.
func (q *Queue) safeRun(job *Job, ctx context.Context) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Str("job", job.ID).Interface("panic", r).Msg("job panicked")
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.runner.Run(ctx)
}

func (q *Queue) finishLocked(job *Job, res *Result, err error, state State) {
	job.state = state
	job.result = res
	job.err = err
	job.DoneAt = time.Now()
	q.recent = append(q.recent, job)
	close(job.done)
	jobsTotal.WithLabelValues(string(state)).Inc()
	q.log.Info().
		Str("job", job.ID).
		Str("state", string(state)).
		Dur("elapsed", job.DoneAt.Sub(job.CreatedAt)).
		Msg("job finished")
	q.broadcastLocked()
}

func (q *Queue) snapshotLocked() Snapshot {
	snap := Snapshot{
		Waiting: make([]Summary, 0, len(q.waiting)),
		Running: make([]Summary, 0, len(q.running)),
		Recent:  make([]Summary, 0, len(q.recent)),
	}
	for _, job := range q.waiting {
		snap.Waiting = append(snap.Waiting, job.summaryLocked())
	}
	for _, job := range q.running {
		snap.Running = append(snap.Running, job.summaryLocked())
	}
	sort.Slice(snap.Running, func(i, j int) bool {
		a, b := snap.Running[i], snap.Running[j]
		if !a.StartedAt.Equal(*b.StartedAt) {
			return a.StartedAt.Before(*b.StartedAt)
		}
		return a.ID < b.ID
	})
	for _, job := range q.recent {
		snap.Recent = append(snap.Recent, job.summaryLocked())
	}
	return snap
}

func (q *Queue) broadcastLocked() {
	waitingJobs.Set(float64(len(q.waiting)))
	runningJobs.Set(float64(len(q.running)))

	snap := q.snapshotLocked()
	for _, ch := range q.subs {
		select {
		case ch <- snap:
		default:
			// Slow subscriber; it will catch up on the next transition.
		}
	}
}

func mostRecent(a, b *Job) *Job {
	if a == nil || b.CreatedAt.After(a.CreatedAt) {
		return b
	}
	return a
}
