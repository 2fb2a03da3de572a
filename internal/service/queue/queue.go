// Package queue runs download jobs on a fixed pool of workers. The queue is
// owned by whoever creates it: Start launches the workers and Stop waits for
// them and fails anything still pending.
package queue

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vertextoedge/picture-cache/internal/domain"
)

// Order selects which pending job a free worker takes next
type Order int

const (
	// LIFO runs the most recently submitted job first. When the queue is
	// full the oldest pending job is dropped.
	LIFO Order = iota
	// FIFO runs jobs in submission order and rejects submissions when full.
	FIFO
)

// ParseOrder converts "lifo" or "fifo" to an Order
func ParseOrder(s string) (Order, error) {
	switch s {
	case "lifo":
		return LIFO, nil
	case "fifo":
		return FIFO, nil
	default:
		return LIFO, fmt.Errorf("%w: unknown queue order %q", domain.ErrInvalidInput, s)
	}
}

// Config contains queue configuration
type Config struct {
	Workers  int
	Capacity int
	Order    Order
}

// DefaultConfig returns default queue configuration
func DefaultConfig() *Config {
	return &Config{
		Workers:  3,
		Capacity: 64,
		Order:    LIFO,
	}
}

type job struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Queue is a bounded job queue served by a worker pool
type Queue struct {
	config *Config
	logger *zap.Logger

	mu      sync.Mutex
	pending []*job
	ready   chan struct{} // one token per pending job
	running bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new Queue
func New(cfg *Config, logger *zap.Logger) *Queue {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 64
	}

	return &Queue{
		config: cfg,
		logger: logger,
		ready:  make(chan struct{}, cfg.Capacity),
	}
}

// Start launches the workers. Jobs submitted before Start wait for it.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return domain.ErrQueueClosed
	}
	if q.running {
		return fmt.Errorf("queue already running")
	}
	q.running = true
	ctx, q.cancel = context.WithCancel(ctx)

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	q.logger.Info("download queue started",
		zap.Int("workers", q.config.Workers),
		zap.Int("capacity", q.config.Capacity))
	return nil
}

// Stop stops the workers, waits for running jobs and fails pending ones
// with domain.ErrQueueClosed. Stop is idempotent.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Unlock()

	q.wg.Wait()

	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, j := range pending {
		j.done <- domain.ErrQueueClosed
	}
	q.logger.Info("download queue stopped", zap.Int("dropped", len(pending)))
}

// Len returns the number of pending jobs
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Submit enqueues fn. The returned channel receives fn's result, or
// domain.ErrQueueFull / domain.ErrQueueClosed if the job never runs.
func (q *Queue) Submit(ctx context.Context, fn func(ctx context.Context) error) (<-chan error, error) {
	j := &job{ctx: ctx, fn: fn, done: make(chan error, 1)}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, domain.ErrQueueClosed
	}

	if len(q.pending) < q.config.Capacity {
		q.pending = append(q.pending, j)
		q.ready <- struct{}{}
		return j.done, nil
	}

	if q.config.Order == FIFO {
		return nil, domain.ErrQueueFull
	}

	// LIFO: the oldest job makes room; the token count is unchanged.
	dropped := q.pending[0]
	q.pending = append(q.pending[1:], j)
	dropped.done <- domain.ErrQueueFull
	return j.done, nil
}

// Do submits fn and waits for its result or for ctx to end
func (q *Queue) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	done, err := q.Submit(ctx, fn)
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) pop() *job {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.pending)
	if n == 0 {
		return nil
	}
	var j *job
	if q.config.Order == LIFO {
		j = q.pending[n-1]
		q.pending[n-1] = nil
		q.pending = q.pending[:n-1]
	} else {
		j = q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
	}
	return j
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.ready:
		}

		j := q.pop()
		if j == nil {
			continue
		}

		if err := j.ctx.Err(); err != nil {
			j.done <- err
			continue
		}

		err := j.fn(j.ctx)
		if err != nil {
			q.logger.Debug("download job failed", zap.Int("worker", id), zap.Error(err))
		}
		j.done <- err
	}
}
