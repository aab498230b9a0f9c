// job/coordinator_job.go - Coordinator loop job
package job

import (
	"context"
	"sync"

	"index-coordinator/pkg/logger"
)

// Runner is a blocking loop that returns once ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// CoordinatorJob 运行索引协调器主循环
type CoordinatorJob struct {
	runner Runner
	logger logger.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewCoordinatorJob 创建协调器任务
func NewCoordinatorJob(runner Runner, logger logger.Logger) *CoordinatorJob {
	return &CoordinatorJob{
		runner: runner,
		logger: logger,
	}
}

func (j *CoordinatorJob) Name() string {
	return "coordinator"
}

// Start 启动协调器任务
func (j *CoordinatorJob) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		j.logger.Warn("coordinator job already started")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				j.logger.Error("recovered from panic in coordinator job: %v", r)
			}
		}()

		j.logger.Info("coordinator job started")
		if err := j.runner.Run(runCtx); err != nil {
			j.logger.Error("coordinator exited with error: %v", err)
			return
		}
		j.logger.Info("coordinator job finished")
	}()
}

// Stop 停止协调器任务
func (j *CoordinatorJob) Stop() {
	j.logger.Info("stopping coordinator job...")
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
	j.logger.Info("coordinator job stopped")
}
