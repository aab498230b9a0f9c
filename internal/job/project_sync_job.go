package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"index-coordinator/internal/model"
	"index-coordinator/internal/repository"
	"index-coordinator/pkg/logger"
)

// RemoteProjectLister lists project keys known to the remote system.
type RemoteProjectLister interface {
	ListProjectKeys(ctx context.Context) ([]string, error)
}

// ProjectSyncJob 定期把远端项目注册到本地
type ProjectSyncJob struct {
	remote   RemoteProjectLister
	projects repository.ProjectRepository
	logger   logger.Logger
	interval time.Duration
	onAdded  func()
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewProjectSyncJob 创建项目同步任务. onAdded may be nil.
func NewProjectSyncJob(remote RemoteProjectLister, projects repository.ProjectRepository, logger logger.Logger,
	interval time.Duration, onAdded func()) *ProjectSyncJob {
	return &ProjectSyncJob{
		remote:   remote,
		projects: projects,
		logger:   logger,
		interval: interval,
		onAdded:  onAdded,
	}
}

func (j *ProjectSyncJob) Name() string {
	return "project_sync"
}

// Start 启动项目同步任务
func (j *ProjectSyncJob) Start(ctx context.Context) {
	if j.interval <= 0 {
		j.logger.Error("project sync job not started, interval must be positive, got %v", j.interval)
		return
	}
	j.logger.Info("starting project sync job with interval: %v", j.interval)

	ctx, j.cancel = context.WithCancel(ctx)
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				j.logger.Error("recovered from panic in project sync job: %v", r)
			}
		}()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		// 立即执行一次同步
		j.SyncOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.SyncOnce(ctx)
			}
		}
	}()
}

// Stop 停止项目同步任务
func (j *ProjectSyncJob) Stop() {
	j.logger.Info("stopping project sync job...")
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
	j.logger.Info("project sync job stopped")
}

// SyncOnce registers remote projects that are missing locally and returns how many were added.
func (j *ProjectSyncJob) SyncOnce(ctx context.Context) int {
	remoteKeys, err := j.remote.ListProjectKeys(ctx)
	if err != nil {
		j.logger.Error("failed to list remote projects: %v", err)
		return 0
	}

	localKeys, err := j.projects.ListProjectKeys(ctx)
	if err != nil {
		j.logger.Error("failed to list local projects: %v", err)
		return 0
	}
	known := make(map[string]struct{}, len(localKeys))
	for _, key := range localKeys {
		known[key] = struct{}{}
	}

	added := 0
	for _, key := range remoteKeys {
		if _, ok := known[key]; ok {
			continue
		}
		err := j.projects.CreateProject(ctx, &model.Project{ProjectKey: key, ProjectName: key})
		known[key] = struct{}{}
		if err != nil {
			if !errors.Is(err, repository.ErrProjectExists) {
				j.logger.Error("failed to register project %s: %v", key, err)
			}
			continue
		}
		added++
	}

	if added > 0 {
		j.logger.Info("registered %d remote projects", added)
		if j.onAdded != nil {
			j.onAdded()
		}
	}
	return added
}
