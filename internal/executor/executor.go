// Package executor runs named, interruptible tasks on a bounded goroutine pool.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"index-coordinator/internal/errs"
	"index-coordinator/pkg/logger"
	"index-coordinator/pkg/pool"
)

// ErrAlreadyStarted is returned when Start is called twice on one handle.
var ErrAlreadyStarted = errors.New("worker already started")

// Task is the unit of work a worker runs. ctx is cancelled on Interrupt.
type Task func(ctx context.Context)

// WorkerHandle controls one acquired worker.
type WorkerHandle interface {
	Name() string
	// Start begins execution. It never waits for the task to finish.
	Start() error
	// Interrupt requests cancellation and returns immediately.
	Interrupt()
}

// Executor hands out workers. Acquire must not block.
type Executor interface {
	Acquire(name string, task Task) (WorkerHandle, error)
}

// PoolExecutor backs workers with a pool.TaskPool.
type PoolExecutor struct {
	pool   *pool.TaskPool
	logger logger.Logger
	mu     sync.Mutex
	closed bool
}

// NewPoolExecutor 创建基于任务池的执行器
func NewPoolExecutor(maxConcurrency int, logger logger.Logger) *PoolExecutor {
	return &PoolExecutor{
		pool:   pool.NewTaskPool(maxConcurrency, logger),
		logger: logger,
	}
}

func (e *PoolExecutor) Acquire(name string, task Task) (WorkerHandle, error) {
	if name == "" {
		return nil, errs.NewMissingParamError("name")
	}
	if task == nil {
		return nil, errs.NewMissingParamError("task")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, pool.ErrPoolClosed
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &poolWorker{
		name:   name,
		task:   task,
		ctx:    ctx,
		cancel: cancel,
		pool:   e.pool,
		logger: e.logger,
	}, nil
}

// Active returns the number of tasks executing right now.
func (e *PoolExecutor) Active() int {
	return e.pool.Active()
}

// Close stops accepting workers and waits for the running ones.
func (e *PoolExecutor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.pool.Close()
	e.pool.Wait()
}

type poolWorker struct {
	name    string
	task    Task
	ctx     context.Context
	cancel  context.CancelFunc
	pool    *pool.TaskPool
	logger  logger.Logger
	started atomic.Bool
}

func (w *poolWorker) Name() string {
	return w.name
}

func (w *poolWorker) Start() error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("%s: %w", w.name, ErrAlreadyStarted)
	}

	// the pool context is never cancelled so the task always runs and can observe w.ctx itself
	err := w.pool.TrySubmit(context.Background(), func(_ context.Context, taskID uint64) {
		w.logger.Debug("worker %s running as task %d", w.name, taskID)
		w.task(w.ctx)
	})
	if err != nil {
		w.cancel()
		return fmt.Errorf("failed to start worker %s: %w", w.name, err)
	}
	return nil
}

func (w *poolWorker) Interrupt() {
	w.logger.Debug("interrupting worker %s", w.name)
	w.cancel()
}
