package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrDuplicateJob is returned when Create is called for an id that is already tracked.
var ErrDuplicateJob = errors.New("job already exists")

// ErrJobTimedOut is reported for a job that stayed pending past the store's deadline.
var ErrJobTimedOut = errors.New("job did not finish in time")

// State is what a poller learns about a job id.
type State string

const (
	StateUnknown State = "unknown"
	StatePending State = "pending"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Snapshot is the outcome of one Poll call.
type Snapshot struct {
	State  State
	Result any
	Err    string
}

type entry struct {
	state      State
	result     any
	err        string
	createdAt  time.Time
	startedAt  time.Time // zero while the job waits in the queue
	finishedAt time.Time
}

// since returns the stamp of the phase the entry is in: queued, running or finished.
func (e *entry) since() time.Time {
	switch {
	case !e.finishedAt.IsZero():
		return e.finishedAt
	case !e.startedAt.IsZero():
		return e.startedAt
	default:
		return e.createdAt
	}
}

// Store maps job ids to pending or terminal outcomes. Terminal outcomes are delivered once.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*entry

	ttl            time.Duration
	pendingTimeout time.Duration
	queueTimeout   time.Duration
	now            func() time.Time
	logger         *zap.Logger
}

type StoreOption func(*Store)

// WithTTL bounds how long any entry may stay in the store before Sweep purges it.
func WithTTL(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithPendingTimeout makes Poll report a job that has been running longer than d as failed.
func WithPendingTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.pendingTimeout = d
		}
	}
}

// WithQueueTimeout makes Poll report a job still waiting for a worker after d as failed.
// The job is dropped and a worker that dequeues it later skips it.
func WithQueueTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.queueTimeout = d
		}
	}
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithStoreLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		jobs:           make(map[string]*entry),
		ttl:            time.Hour,
		pendingTimeout: 15 * time.Minute,
		queueTimeout:   30 * time.Minute,
		now:            time.Now,
		logger:         zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create registers a pending placeholder for id.
func (s *Store) Create(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; ok {
		return ErrDuplicateJob
	}
	s.jobs[id] = &entry{state: StatePending, createdAt: s.now()}
	return nil
}

// Start marks id as picked up by a worker. It reports false when the id is gone or
// already terminal, in which case the work must not run.
func (s *Store) Start(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok || e.state != StatePending {
		return false
	}
	if e.startedAt.IsZero() {
		e.startedAt = s.now()
	}
	return true
}

// Complete records the result of a pending job. It reports false when the id is
// absent or already terminal; the first writer wins.
func (s *Store) Complete(id string, result any) bool {
	return s.finish(id, StateDone, result, "")
}

// Fail records a terminal error for a pending job.
func (s *Store) Fail(id string, err error) bool {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return s.finish(id, StateFailed, nil, msg)
}

func (s *Store) finish(id string, state State, result any, errMsg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		s.logger.Warn("job.finish.missing", zap.String("job_id", id), zap.String("state", string(state)))
		return false
	}
	if e.state != StatePending {
		s.logger.Warn("job.finish.already_terminal",
			zap.String("job_id", id),
			zap.String("state", string(e.state)),
			zap.String("attempted", string(state)),
		)
		return false
	}
	e.state = state
	e.result = result
	e.err = errMsg
	e.finishedAt = s.now()
	return true
}

// Poll reports the state of id. A done or failed snapshot is returned exactly once:
// the entry is removed in the same critical section.
func (s *Store) Poll(id string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return Snapshot{State: StateUnknown}
	}
	if e.state == StatePending {
		limit, phase := s.queueTimeout, "queued"
		if !e.startedAt.IsZero() {
			limit, phase = s.pendingTimeout, "running"
		}
		if limit > 0 && s.now().Sub(e.since()) > limit {
			delete(s.jobs, id)
			s.logger.Warn("job.poll.timed_out", zap.String("job_id", id), zap.String("phase", phase))
			return Snapshot{State: StateFailed, Err: ErrJobTimedOut.Error()}
		}
		return Snapshot{State: StatePending}
	}
	delete(s.jobs, id)
	return Snapshot{State: e.state, Result: e.result, Err: e.err}
}

// Discard drops id regardless of its state.
func (s *Store) Discard(id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}

// Len returns the number of tracked jobs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Sweep purges entries that stayed in their current phase (queued, running or finished)
// longer than the TTL and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.jobs {
		if now.Sub(e.since()) > s.ttl {
			delete(s.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("job.sweep", zap.Int("removed", removed), zap.Int("remaining", len(s.jobs)))
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}
