package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"index-coordinator/pkg/logger"
)

// ErrPoolClosed 定义包级错误变量，用于错误比较
var ErrPoolClosed = errors.New("task pool is closed")

// ErrPoolFull is returned by TrySubmit when the task buffer has no room left.
var ErrPoolFull = errors.New("task pool is full")

// Task 任务类型，接收上下文参数和任务ID
type Task func(ctx context.Context, taskID uint64)

// TaskPool 任务池结构体
type TaskPool struct {
	logger         logger.Logger
	maxConcurrency int            // 最大并发数
	tasks          chan Task      // 任务通道
	wg             sync.WaitGroup // 等待组
	mu             sync.Mutex     // 互斥锁
	closed         bool           // 关闭状态
	taskID         uint64         // 任务ID计数器，使用原子操作确保并发安全
	active         int64          // 正在执行的任务数
}

// NewTaskPool 创建任务池
func NewTaskPool(maxConcurrency int, logger logger.Logger) *TaskPool {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	pool := &TaskPool{
		maxConcurrency: maxConcurrency,
		tasks:          make(chan Task, maxConcurrency*2),
		logger:         logger,
	}

	pool.startWorkers()
	return pool
}

// 启动工作者
func (p *TaskPool) startWorkers() {
	for i := 0; i < p.maxConcurrency; i++ {
		go func(workerID int) {
			p.logger.Debug("pool worker %d started", workerID)
			for task := range p.tasks {
				taskID := atomic.AddUint64(&p.taskID, 1)
				p.run(workerID, taskID, task)
			}
			p.logger.Debug("pool worker %d exited", workerID)
		}(i)
	}
}

// run executes one task; a panicking task must not take the worker down
func (p *TaskPool) run(workerID int, taskID uint64, task Task) {
	atomic.AddInt64(&p.active, 1)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pool worker %d recovered from panic in task %d: %v", workerID, taskID, r)
		}
		atomic.AddInt64(&p.active, -1)
		p.wg.Done()
	}()

	p.logger.Debug("pool worker %d starting task %d", workerID, taskID)
	task(context.Background(), taskID)
	p.logger.Debug("pool worker %d finished task %d", workerID, taskID)
}

// wrap 包装任务：提交后到执行前若ctx已取消则跳过
func (p *TaskPool) wrap(ctx context.Context, task Task) Task {
	return func(_ context.Context, taskID uint64) {
		select {
		case <-ctx.Done():
			p.logger.Info("task %d cancelled before execution: %v", taskID, ctx.Err())
			return
		default:
			task(ctx, taskID)
		}
	}
}

// Submit 提交任务，缓冲区满时阻塞
func (p *TaskPool) Submit(ctx context.Context, task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	p.wg.Add(1)
	p.tasks <- p.wrap(ctx, task)
	return nil
}

// TrySubmit 非阻塞提交任务
func (p *TaskPool) TrySubmit(ctx context.Context, task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	p.wg.Add(1)
	select {
	case p.tasks <- p.wrap(ctx, task):
		return nil
	default:
		p.wg.Done()
		return ErrPoolFull
	}
}

// Active returns the number of tasks currently executing.
func (p *TaskPool) Active() int {
	return int(atomic.LoadInt64(&p.active))
}

// Wait 等待所有任务完成
func (p *TaskPool) Wait() {
	p.wg.Wait()
}

// Close 关闭任务池
func (p *TaskPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		close(p.tasks)
		p.closed = true
		p.logger.Info("task pool closed, total tasks processed: %d", atomic.LoadUint64(&p.taskID))
	}
}
