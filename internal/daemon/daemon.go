// daemon/daemon.go - 守护进程
package daemon

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"index-coordinator/pkg/logger"
)

// Job is a background task owned by the daemon.
type Job interface {
	Name() string
	Start(ctx context.Context)
	Stop()
}

// Daemon starts and stops the background jobs. It also tells the
// coordinator when the process is shutting down.
type Daemon struct {
	logger  logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	jobs    []Job
	started bool
	closed  atomic.Bool
}

func NewDaemon(logger logger.Logger, jobs ...Job) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		jobs:   jobs,
	}
}

// AddJobs registers jobs before Start. Jobs added afterwards are started right away.
func (d *Daemon) AddJobs(jobs ...Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.jobs = append(d.jobs, jobs...)
	if d.started && !d.closed.Load() {
		for _, job := range jobs {
			d.startJob(job)
		}
	}
}

func (d *Daemon) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}
	d.started = true
	d.logger.Info("daemon started with %d jobs", len(d.jobs))

	for _, job := range d.jobs {
		d.startJob(job)
	}
}

func (d *Daemon) startJob(job Job) {
	d.logger.Info("starting job %s", job.Name())
	job.Start(d.ctx)
}

// IsClosed reports whether Stop has been called.
func (d *Daemon) IsClosed() bool {
	return d.closed.Load()
}

// Stop marks the daemon closed, cancels the shared context and waits for every job.
func (d *Daemon) Stop() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	d.logger.Info("stopping daemon...")
	d.cancel()

	d.mu.Lock()
	jobs := append([]Job(nil), d.jobs...)
	d.mu.Unlock()

	var g errgroup.Group
	for _, job := range jobs {
		g.Go(func() error {
			job.Stop()
			d.logger.Info("job %s stopped", job.Name())
			return nil
		})
	}
	_ = g.Wait()

	d.logger.Info("daemon stopped")
}
