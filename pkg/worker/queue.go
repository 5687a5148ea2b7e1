// Package worker runs keyed background tasks on a small goroutine pool with
// retries. Tasks sharing a key are coalesced while one is still pending.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNotStarted is returned by Enqueue before Start or after Stop.
	ErrNotStarted = errors.New("worker queue not running")
	// ErrQueueFull is returned when the buffer has no room for another task.
	ErrQueueFull = errors.New("worker queue full")
)

// Task is a queued unit of background work.
type Task struct {
	Key      string
	Kind     string
	Attempt  int
	Enqueued time.Time
}

// Handler processes a task.
type Handler func(context.Context, Task) error

// DoneFunc is told how each task finally ended. err is nil on success and the
// last failure once retries are exhausted.
type DoneFunc func(task Task, err error)

// Config configures worker pool behaviour.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
	OnDone     DoneFunc
}

// Queue is a lightweight in-memory task dispatcher backed by goroutines.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
	onDone     DoneFunc

	tasks   chan Task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	pending map[string]struct{}
	started bool
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		onDone:     cfg.OnDone,
		tasks:      make(chan Task, cfg.BufferSize),
		pending:    make(map[string]struct{}),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.String("queue", q.name), zap.Int("workers", q.workers))
}

// Stop cancels workers and waits for them to exit. Tasks still buffered are
// discarded.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("queue stopped", zap.String("queue", q.name))
}

// Enqueue schedules task. It reports false without error when a task with the
// same key is already waiting, since that run will observe the latest state.
func (q *Queue) Enqueue(task Task) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.started {
		return false, fmt.Errorf("queue %s: %w", q.name, ErrNotStarted)
	}
	if task.Key != "" {
		if _, dup := q.pending[task.Key]; dup {
			return false, nil
		}
	}
	if task.Enqueued.IsZero() {
		task.Enqueued = time.Now().UTC()
	}

	select {
	case q.tasks <- task:
		if task.Key != "" {
			q.pending[task.Key] = struct{}{}
		}
		return true, nil
	default:
		return false, fmt.Errorf("queue %s: %w", q.name, ErrQueueFull)
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case task := <-q.tasks:
			q.release(task)
			err := q.handler(q.ctx, task)
			if err == nil {
				q.done(task, nil)
				continue
			}
			q.handleFailure(task, err)
		}
	}
}

// release lets a new task with the same key in once this one has been picked
// up, so changes made while it runs trigger another pass.
func (q *Queue) release(task Task) {
	if task.Key == "" {
		return
	}
	q.mu.Lock()
	delete(q.pending, task.Key)
	q.mu.Unlock()
}

func (q *Queue) handleFailure(task Task, err error) {
	task.Attempt++
	if task.Attempt > q.maxRetries {
		q.logger.Error("task exceeded retries",
			zap.String("queue", q.name), zap.String("key", task.Key), zap.String("kind", task.Kind), zap.Error(err))
		q.done(task, err)
		return
	}
	q.logger.Warn("task failed, retrying",
		zap.String("queue", q.name), zap.String("key", task.Key), zap.Int("attempt", task.Attempt), zap.Error(err))

	q.wg.Add(1)
	go func(t Task) {
		defer q.wg.Done()
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if _, err := q.Enqueue(t); err != nil {
				q.logger.Error("failed to requeue task", zap.String("queue", q.name), zap.String("key", t.Key), zap.Error(err))
				q.done(t, err)
			}
		}
	}(task)
}

func (q *Queue) done(task Task, err error) {
	if q.onDone != nil {
		q.onDone(task, err)
	}
}
