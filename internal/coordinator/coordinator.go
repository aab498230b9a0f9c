// Package coordinator decides which projects need their search index
// refreshed and runs a bounded number of indexing workers at a time.
//
// One goroutine drives Run. Each tick refills the work queue with stale
// projects when it is empty, then hands queued projects to free worker
// slots. Workers call ReportFinished when they are done, which frees their
// slot. The loop polls quickly while there is work and backs off to a slow
// interval when nothing is stale.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"index-coordinator/internal/config"
	"index-coordinator/internal/errs"
	"index-coordinator/internal/executor"
	"index-coordinator/internal/indexer"
	"index-coordinator/internal/metrics"
	"index-coordinator/internal/repository"
	"index-coordinator/pkg/logger"
)

const (
	// PropertyLastIndexUpdateStartDate holds the time the last worker for a project was dispatched.
	PropertyLastIndexUpdateStartDate = "last_index_update_start_date"
	// TaskNamePrefix prefixes the project key to form a worker name.
	TaskNamePrefix = "project_indexer_"
)

var errHostClosed = errors.New("host is closing")

// ProjectLister lists every project key known to the host, in a stable order.
type ProjectLister interface {
	ListProjectKeys(ctx context.Context) ([]string, error)
}

// PropertyStore reads and writes per-project timestamps.
type PropertyStore interface {
	ReadDatetime(ctx context.Context, projectKey, property string) (time.Time, bool, error)
	StoreDatetime(ctx context.Context, projectKey, property string, value time.Time, batch *repository.PropertyBatch) error
}

// Host reports whether the process hosting the coordinator is shutting down.
type Host interface {
	IsClosed() bool
}

// Option configures optional coordinator collaborators.
type Option func(*Coordinator)

// WithClock replaces time.Now for staleness checks and stored timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithMetrics records coordinator activity. A nil value disables recording.
func WithMetrics(m *metrics.CoordinatorMetrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// Coordinator is single-use: once Run returns it cannot be started again.
type Coordinator struct {
	cfg        config.CoordinatorConfig
	lister     ProjectLister
	properties PropertyStore
	host       Host
	executor   executor.Executor
	indexer    indexer.Indexer
	logger     logger.Logger
	metrics    *metrics.CoordinatorMetrics
	now        func() time.Time
	wake       chan struct{}

	// mu guards everything below
	mu      sync.Mutex
	queue   *workQueue
	workers map[string]executor.WorkerHandle
	wait    time.Duration
	started bool
	stopped bool

	// reserved keys are never queued or dispatched. released records the
	// epoch at which a reservation ended, so a refill that listed the key
	// before that point does not bring it back.
	reserved map[string]struct{}
	released map[string]uint64
	epoch    uint64
}

// New validates cfg and wires the collaborators.
func New(cfg config.CoordinatorConfig, lister ProjectLister, properties PropertyStore, host Host,
	exec executor.Executor, idx indexer.Indexer, logger logger.Logger, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case lister == nil:
		return nil, errs.NewMissingParamError("lister")
	case properties == nil:
		return nil, errs.NewMissingParamError("properties")
	case host == nil:
		return nil, errs.NewMissingParamError("host")
	case exec == nil:
		return nil, errs.NewMissingParamError("executor")
	case idx == nil:
		return nil, errs.NewMissingParamError("indexer")
	case logger == nil:
		return nil, errs.NewMissingParamError("logger")
	}

	c := &Coordinator{
		cfg:        cfg,
		lister:     lister,
		properties: properties,
		host:       host,
		executor:   exec,
		indexer:    idx,
		logger:     logger,
		now:        time.Now,
		wake:       make(chan struct{}, 1),
		queue:      newWorkQueue(),
		workers:    make(map[string]executor.WorkerHandle),
		wait:       cfg.WaitQuick(),
		reserved:   make(map[string]struct{}),
		released:   make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// checkCancelled is the single cancellation token: the run context or the host shutting down.
func (c *Coordinator) checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errs.NewCancelledErr(err)
	}
	if c.host.IsClosed() {
		return errs.NewCancelledErr(errHostClosed)
	}
	return nil
}

// IsUpdateNecessary reports whether projectKey is stale. A project that was
// never dispatched is stale, and so is one whose last dispatch is at least
// UpdatePeriod old. The boundary is inclusive.
func (c *Coordinator) IsUpdateNecessary(ctx context.Context, projectKey string) (bool, error) {
	lastStart, ok, err := c.properties.ReadDatetime(ctx, projectKey, PropertyLastIndexUpdateStartDate)
	if err != nil {
		return false, fmt.Errorf("failed to read last update of project %s: %w", projectKey, err)
	}
	if !ok {
		return true, nil
	}
	return c.now().Sub(lastStart) >= c.cfg.UpdatePeriod(), nil
}

// FillQueue appends every stale project to the queue in listing order.
// Projects already queued or running are skipped. On cancellation it stops
// scanning and keeps what was queued so far.
func (c *Coordinator) FillQueue(ctx context.Context) error {
	listedAt := c.beginListing()
	keys, err := c.lister.ListProjectKeys(ctx)
	if err != nil {
		return classify(fmt.Errorf("failed to list projects: %w", err))
	}
	if len(keys) == 0 {
		return nil
	}

	added := 0
	for _, key := range keys {
		if err := c.checkCancelled(ctx); err != nil {
			c.logger.Info("queue refill interrupted after %d projects", added)
			return err
		}
		if c.isBusy(key) {
			continue
		}

		stale, err := c.IsUpdateNecessary(ctx, key)
		if err != nil {
			return classify(err)
		}
		if !stale {
			continue
		}

		c.mu.Lock()
		if c.canQueueLocked(key, listedAt) && c.queue.push(key) {
			added++
		}
		c.mu.Unlock()
	}

	if added > 0 {
		c.logger.Info("queued %d stale projects out of %d", added, len(keys))
	}
	c.recordState(ctx)
	return nil
}

// StartWorkers dispatches queued projects, front first, while worker slots
// are free. Workers dispatched before a failure or cancellation keep running.
func (c *Coordinator) StartWorkers(ctx context.Context) error {
	defer c.recordState(ctx)

	for c.hasDispatchableWork() {
		if err := c.checkCancelled(ctx); err != nil {
			return err
		}

		c.mu.Lock()
		key, _ := c.queue.pop()
		c.mu.Unlock()

		if err := c.dispatch(ctx, key); err != nil {
			return classify(err)
		}
	}
	return nil
}

// dispatch runs one project on a new worker. The slot is held before the
// worker starts so that a fast ReportFinished always finds it.
func (c *Coordinator) dispatch(ctx context.Context, key string) error {
	name := TaskNamePrefix + key
	handle, err := c.executor.Acquire(name, c.newTask(key))
	if err != nil {
		c.logger.Warn("failed to acquire worker for project %s, skipped until next refill: %v", key, err)
		return fmt.Errorf("failed to acquire worker %s: %w", name, err)
	}

	c.mu.Lock()
	if _, blocked := c.reserved[key]; blocked {
		c.mu.Unlock()
		handle.Interrupt()
		c.logger.Info("project %s was reserved while dispatching, worker %s dropped", key, name)
		return nil
	}
	c.workers[key] = handle
	c.mu.Unlock()

	if err := handle.Start(); err != nil {
		c.mu.Lock()
		delete(c.workers, key)
		c.mu.Unlock()
		return fmt.Errorf("failed to start worker %s: %w", name, err)
	}
	c.logger.Info("started worker %s", name)
	c.metrics.RecordDispatched(ctx)

	if err := c.properties.StoreDatetime(ctx, key, PropertyLastIndexUpdateStartDate, c.now(), nil); err != nil {
		return fmt.Errorf("failed to store last update of project %s: %w", key, err)
	}
	return nil
}

// newTask wraps the indexer so that ReportFinished runs exactly once, even
// when the indexer panics.
func (c *Coordinator) newTask(key string) executor.Task {
	return func(ctx context.Context) {
		success := false
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("indexing project %s panicked: %v", key, r)
			}
			c.ReportFinished(key, success)
		}()

		if err := c.indexer.IndexProject(ctx, key); err != nil {
			if errs.IsCancelled(err) {
				c.logger.Info("indexing project %s interrupted: %v", key, err)
			} else {
				c.logger.Error("indexing project %s failed: %v", key, err)
			}
			return
		}
		success = true
	}
}

// ReportFinished frees the slot of projectKey. Unknown keys are ignored.
// success is only logged and counted.
func (c *Coordinator) ReportFinished(projectKey string, success bool) {
	c.mu.Lock()
	_, ok := c.workers[projectKey]
	delete(c.workers, projectKey)
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("finish report for project %s without a running worker ignored", projectKey)
		return
	}

	c.logger.Info("worker for project %s finished, success: %v", projectKey, success)
	ctx := context.Background()
	c.metrics.RecordFinished(ctx, success)
	c.recordState(ctx)
}

// ProcessTick runs one iteration of the loop. An empty queue is refilled
// first; if it stays empty the loop slows down, otherwise workers are
// dispatched and the loop speeds up.
func (c *Coordinator) ProcessTick(ctx context.Context) error {
	_, err := c.processTick(ctx)
	return err
}

func (c *Coordinator) processTick(ctx context.Context) (idle bool, err error) {
	if c.queueLen() == 0 {
		if err := c.FillQueue(ctx); err != nil {
			return false, err
		}
		if c.queueLen() == 0 {
			c.setWait(c.cfg.WaitSlow())
			return true, nil
		}
	}

	if err := c.StartWorkers(ctx); err != nil {
		return false, err
	}
	c.setWait(c.cfg.WaitQuick())
	return false, nil
}

// Run drives the loop until ctx is cancelled, the host closes or a
// collaborator reports cancellation. On exit every running worker is
// interrupted and forgotten without waiting for it. Failed ticks are logged
// and retried after the slow interval.
func (c *Coordinator) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errs.ErrCoordinatorStopped
	}
	c.started = true
	c.mu.Unlock()

	c.logger.Info("coordinator started, update period %s, max workers %d",
		c.cfg.UpdatePeriod(), c.cfg.MaxConcurrentWorkers)

	for {
		if err := c.checkCancelled(ctx); err != nil {
			c.teardown(err)
			return nil
		}

		tickStart := time.Now()
		idle, err := c.processTick(ctx)
		switch {
		case err == nil:
			outcome := metrics.TickDispatched
			if idle {
				outcome = metrics.TickIdle
			}
			c.metrics.RecordTick(ctx, time.Since(tickStart), outcome)
		case errs.IsCancelled(err):
			c.metrics.RecordTick(ctx, time.Since(tickStart), metrics.TickCancelled)
			c.teardown(err)
			return nil
		default:
			c.metrics.RecordTick(ctx, time.Since(tickStart), metrics.TickFailed)
			c.logger.Error("coordinator tick failed: %v", err)
			c.setWait(c.cfg.WaitSlow())
		}

		c.sleep(ctx, c.currentWait())
	}
}

// Wake cuts the current sleep short, e.g. after a project was registered.
func (c *Coordinator) Wake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Coordinator) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-c.wake:
	}
}

func (c *Coordinator) teardown(cause error) {
	c.mu.Lock()
	handles := make([]executor.WorkerHandle, 0, len(c.workers))
	for key, handle := range c.workers {
		handles = append(handles, handle)
		delete(c.workers, key)
	}
	c.stopped = true
	c.mu.Unlock()

	// Interrupt does not block, so this never waits for workers to exit
	for _, handle := range handles {
		handle.Interrupt()
	}
	c.recordState(context.Background())
	c.logger.Info("coordinator stopped (%v), interrupted %d workers", cause, len(handles))
}

// classify turns collaborator errors that mean cancellation into ErrCancelled.
func classify(err error) error {
	if err != nil && errs.IsCancelled(err) && !errors.Is(err, errs.ErrCancelled) {
		return errs.NewCancelledErr(err)
	}
	return err
}

// Reserve keeps projectKey out of the queue and off the workers until the
// returned release is called. It fails when the project is already queued,
// running or reserved. Release is idempotent.
func (c *Coordinator) Reserve(projectKey string) (release func(), ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isBusyLocked(projectKey) {
		return nil, false
	}
	c.reserved[projectKey] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.reserved, projectKey)
			c.epoch++
			c.released[projectKey] = c.epoch
		})
	}, true
}

// beginListing returns the epoch a refill starts at. Releases recorded
// before it are forgotten: the listing that follows already reflects them.
func (c *Coordinator) beginListing() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.released)
	return c.epoch
}

func (c *Coordinator) canQueueLocked(key string, listedAt uint64) bool {
	if c.isBusyLocked(key) {
		return false
	}
	if at, ok := c.released[key]; ok && at > listedAt {
		return false
	}
	return true
}

func (c *Coordinator) isBusy(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isBusyLocked(key)
}

func (c *Coordinator) isBusyLocked(key string) bool {
	_, running := c.workers[key]
	_, reserved := c.reserved[key]
	return running || reserved || c.queue.contains(key)
}

func (c *Coordinator) hasDispatchableWork() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.len() > 0 && len(c.workers) < c.cfg.MaxConcurrentWorkers
}

func (c *Coordinator) queueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.len()
}

func (c *Coordinator) setWait(d time.Duration) {
	c.mu.Lock()
	c.wait = d
	c.mu.Unlock()
}

func (c *Coordinator) currentWait() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wait
}

func (c *Coordinator) recordState(ctx context.Context) {
	c.mu.Lock()
	queued, running := c.queue.len(), len(c.workers)
	c.mu.Unlock()
	c.metrics.RecordState(ctx, queued, running)
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	Queued     []string `json:"queued"`
	Running    []string `json:"running"`
	WaitMillis int64    `json:"waitMillis"`
	MaxWorkers int      `json:"maxWorkers"`
	Started    bool     `json:"started"`
	Stopped    bool     `json:"stopped"`
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	running := make([]string, 0, len(c.workers))
	for key := range c.workers {
		running = append(running, key)
	}
	sort.Strings(running)

	return Status{
		Queued:     c.queue.snapshot(),
		Running:    running,
		WaitMillis: c.wait.Milliseconds(),
		MaxWorkers: c.cfg.MaxConcurrentWorkers,
		Started:    c.started,
		Stopped:    c.stopped,
	}
}

// ProjectState reports whether projectKey is waiting in the queue or running.
func (c *Coordinator) ProjectState(projectKey string) (queued, running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, running = c.workers[projectKey]
	return c.queue.contains(projectKey), running
}
