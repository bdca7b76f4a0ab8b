package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrQueueFull  = errors.New("job queue is full")
	ErrPoolClosed = errors.New("job pool is shutting down")
)

// Task is one unit of background work whose outcome lands in the store under ID.
type Task struct {
	ID  string
	Run func(ctx context.Context) (any, error)
}

// Pool runs tasks on a fixed number of workers and always records a terminal outcome.
type Pool struct {
	store   *Store
	logger  *zap.Logger
	workers int
	timeout time.Duration

	ch   chan Task
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.ch = make(chan Task, n)
		}
	}
}

func WithTaskTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewPool(store *Store, logger *zap.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		store:   store,
		logger:  logger,
		workers: 4,
		timeout: 10 * time.Minute,
		ch:      make(chan Task, 64),
	}
	for _, o := range opts {
		o(p)
	}
	p.start()
	return p
}

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				for task := range p.ch {
					p.execute(workerID, task)
				}
				p.logger.Debug("job.worker.stopped", zap.Int("worker_id", workerID))
			}(i + 1)
		}
	})
}

func (p *Pool) execute(workerID int, task Task) {
	if !p.store.Start(task.ID) {
		p.logger.Warn("job.skipped", zap.Int("worker_id", workerID), zap.String("job_id", task.ID))
		return
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	result, err := p.runSafely(ctx, task)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	if err != nil {
		p.store.Fail(task.ID, err)
		p.logger.Error("job.failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", task.ID),
			zap.Error(err),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
		return
	}
	p.store.Complete(task.ID, result)
	p.logger.Info("job.completed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", task.ID),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
}

func (p *Pool) runSafely(ctx context.Context, task Task) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return task.Run(ctx)
}

// Submit queues task without blocking.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.ch <- task:
		p.logger.Info("job.queued", zap.String("job_id", task.ID), zap.Int("queued", len(p.ch)))
		return nil
	default:
		p.logger.Warn("job.queue_full", zap.String("job_id", task.ID), zap.Int("capacity", cap(p.ch)))
		return ErrQueueFull
	}
}

// Shutdown stops intake and waits for queued work or ctx, whichever comes first.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); p.wg.Wait() }()

	select {
	case <-ctx.Done():
		p.logger.Warn("job.pool.shutdown_interrupted")
	case <-done:
		p.logger.Info("job.pool.drained")
	}
}
