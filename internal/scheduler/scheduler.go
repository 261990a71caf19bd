package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/hearthd/internal/platform/resources"
)

// Scheduler lifecycle errors
var (
	// ErrAlreadyRunning is returned when Start is called on a running scheduler.
	ErrAlreadyRunning = errors.New("scheduler is already running")

	// ErrAttemptTimeout marks an execution attempt that exceeded the
	// task's wall-clock budget. Treated identically to a handler failure.
	ErrAttemptTimeout = errors.New("task attempt timed out")
)

// Thresholds are the resource ceilings used for admission control and
// self-tuning. A zero DiskIOBytesPerSec disables the disk check.
type Thresholds struct {
	MemoryBytes        int64
	CPUPercent         float64
	NetworkConnections int
	DiskIOBytesPerSec  int64
}

// Config holds the scheduler's capacity, timing, and threshold settings.
type Config struct {
	// MaxQueueSize bounds the queue; a submission to a full queue evicts
	// exactly one lower-value task first.
	MaxQueueSize int

	// MaxConcurrentTasks is the initial concurrency bound.
	MaxConcurrentTasks int

	// ConcurrencyCeiling is the highest value self-tuning may raise the
	// bound to.
	ConcurrencyCeiling int

	// DrainInterval is the period of the drive loop.
	DrainInterval time.Duration

	// OptimizeInterval is the period of the self-tuning pass.
	OptimizeInterval time.Duration

	// RetryBaseDelay and RetryMaxDelay shape the exponential retry backoff.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// DefaultTimeout bounds execution attempts for tasks submitted
	// without an explicit timeout.
	DefaultTimeout time.Duration

	// Thresholds are the admission-control resource ceilings.
	Thresholds Thresholds

	// DeferralWindow is how far pressure deferral pushes low-priority
	// tasks into the future.
	DeferralWindow time.Duration
}

// DefaultConfig returns a Config with reasonable defaults for a
// memory-constrained household device.
func DefaultConfig() Config {
	return Config{
		MaxQueueSize:       100,
		MaxConcurrentTasks: 3,
		ConcurrencyCeiling: 6,
		DrainInterval:      time.Second,
		OptimizeInterval:   30 * time.Second,
		RetryBaseDelay:     2 * time.Second,
		RetryMaxDelay:      5 * time.Minute,
		DefaultTimeout:     time.Minute,
		Thresholds: Thresholds{
			MemoryBytes:        512 << 20,
			CPUPercent:         75,
			NetworkConnections: 20,
		},
		DeferralWindow: 30 * time.Second,
	}
}

// activeTask is one currently-executing task plus its cancellation hook.
type activeTask struct {
	task      *Task
	cancel    context.CancelFunc
	startedAt time.Time
}

// Scheduler admits, orders, executes, and retries background tasks under a
// hard resource budget. Create one with New, register handlers, then Start.
type Scheduler struct {
	cfg      Config
	registry *HandlerRegistry
	provider resources.Provider
	emitter  *SignalEmitter
	logger   *slog.Logger

	// mu serializes queue, active set, bound, and stats against
	// concurrent Submit/Cancel calls interleaving with the drive loop.
	mu      sync.Mutex
	queue   *taskQueue
	active  map[uuid.UUID]*activeTask
	bound   int
	stats   ProcessingStats
	running bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler. The registry supplies per-type handlers, the
// provider supplies resource snapshots, and the emitter receives lifecycle
// signals.
func New(
	cfg Config,
	registry *HandlerRegistry,
	provider resources.Provider,
	emitter *SignalEmitter,
	logger *slog.Logger,
) *Scheduler {
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = DefaultConfig().MaxQueueSize
	}
	if cfg.MaxConcurrentTasks <= 0 {
		cfg.MaxConcurrentTasks = DefaultConfig().MaxConcurrentTasks
	}
	if cfg.ConcurrencyCeiling < cfg.MaxConcurrentTasks {
		cfg.ConcurrencyCeiling = cfg.MaxConcurrentTasks
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = DefaultConfig().DrainInterval
	}
	if cfg.OptimizeInterval <= 0 {
		cfg.OptimizeInterval = DefaultConfig().OptimizeInterval
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultConfig().RetryBaseDelay
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		cfg.RetryMaxDelay = DefaultConfig().RetryMaxDelay
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultConfig().DefaultTimeout
	}
	if cfg.DeferralWindow <= 0 {
		cfg.DeferralWindow = DefaultConfig().DeferralWindow
	}

	s := &Scheduler{
		cfg:      cfg,
		registry: registry,
		provider: provider,
		emitter:  emitter,
		logger:   logger.With("component", "scheduler"),
		queue:    newTaskQueue(),
		active:   make(map[uuid.UUID]*activeTask),
		bound:    cfg.MaxConcurrentTasks,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Start launches the drive loop. Returns ErrAlreadyRunning if the
// scheduler is already started.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	s.running = true

	s.wg.Add(1)
	go s.driveLoop(s.ctx)

	s.logger.Info("scheduler started",
		"drain_interval", s.cfg.DrainInterval,
		"max_queue_size", s.cfg.MaxQueueSize,
		"concurrency_bound", s.bound)
	return nil
}

// Stop cancels the drive loop and every active task's context, then waits
// for in-flight executions to finish. Queued tasks are not durable; they
// are lost unless the caller persisted them externally.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	// Fresh context so the scheduler can be started again.
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

// Submit validates the spec, assigns an id and creation timestamp, and
// inserts the task in priority order. If the queue is full, exactly one
// lower-value task is evicted first. Submit never blocks on resources and
// never reports execution outcomes; observe those via signals and stats.
func (s *Scheduler) Submit(spec TaskSpec) (uuid.UUID, error) {
	if err := spec.Validate(); err != nil {
		return uuid.Nil, fmt.Errorf("invalid task spec: %w", err)
	}

	task := &Task{
		ID:           uuid.New(),
		Type:         spec.Type,
		Priority:     spec.Priority,
		Payload:      spec.Payload,
		CreatedAt:    time.Now().UTC(),
		ScheduledAt:  spec.ScheduledAt,
		MaxRetries:   spec.MaxRetries,
		Timeout:      spec.Timeout,
		Requirements: spec.Requirements,
	}
	if task.Timeout == 0 {
		task.Timeout = s.cfg.DefaultTimeout
	}

	var signals []*Signal

	s.mu.Lock()
	if evicted := s.evictIfFull(); evicted != nil {
		signals = append(signals, evicted)
	}
	s.queue.push(task)
	s.stats.QueuedTotal++
	signals = append(signals, newSignal(SignalQueued, task))
	s.mu.Unlock()

	s.emitAll(signals)
	return task.ID, nil
}

// evictIfFull evicts one lower-value task when the queue is at capacity,
// keeping the queue length bounded across both submission and retry
// reinsertion. Callers hold the mutex; the returned signal, if any, must
// be emitted after unlock.
func (s *Scheduler) evictIfFull() *Signal {
	if s.queue.len() < s.cfg.MaxQueueSize {
		return nil
	}
	victim := s.queue.evictForInsert()
	if victim == nil {
		return nil
	}
	s.stats.Evicted++
	s.logger.Warn("evicted task from full queue",
		"evicted_task_id", victim.ID,
		"evicted_task_type", victim.Type,
		"evicted_priority", victim.Priority.String())
	return newSignal(SignalEvicted, victim)
}

// Cancel removes a queued task or requests cancellation of an active one.
//
// The two cases are deliberately asymmetric: for a queued task, true means
// the task was removed and will never run. For an active task, true means
// the cancellation request was delivered (the task's context is cancelled)
// but execution is cooperative, not preemptive, so the handler may still
// run to completion. False means the id is unknown in either set.
func (s *Scheduler) Cancel(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.queue.remove(id); ok {
		s.logger.Info("cancelled queued task", "task_id", id)
		return true
	}

	if at, ok := s.active[id]; ok {
		at.cancel()
		s.logger.Info("requested cancellation of active task", "task_id", id)
		return true
	}

	return false
}

// Stats returns a copy of the processing counters.
func (s *Scheduler) Stats() ProcessingStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// QueueStatus is a point-in-time view of the queue and active set.
type QueueStatus struct {
	Running          bool             `json:"running"`
	QueueLength      int              `json:"queue_length"`
	DepthByPriority  map[Priority]int `json:"depth_by_priority"`
	ActiveTasks      []uuid.UUID      `json:"active_tasks"`
	ConcurrencyBound int              `json:"concurrency_bound"`
}

// GetQueueStatus returns the current queue depth, active task ids, and
// concurrency bound.
func (s *Scheduler) GetQueueStatus() QueueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]uuid.UUID, 0, len(s.active))
	for id := range s.active {
		active = append(active, id)
	}

	return QueueStatus{
		Running:          s.running,
		QueueLength:      s.queue.len(),
		DepthByPriority:  s.queue.depthByPriority(),
		ActiveTasks:      active,
		ConcurrencyBound: s.bound,
	}
}

// driveLoop drains the queue and runs the self-tuning pass on their
// configured periods until Stop.
func (s *Scheduler) driveLoop(ctx context.Context) {
	defer s.wg.Done()

	drain := time.NewTicker(s.cfg.DrainInterval)
	defer drain.Stop()
	optimize := time.NewTicker(s.cfg.OptimizeInterval)
	defer optimize.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-drain.C:
			s.Drain()
		case <-optimize.C:
			s.Optimize()
		}
	}
}

// Drain reads one resource snapshot and starts due tasks from the queue
// head while the concurrency bound and resource thresholds allow.
//
// Admission is strictly head-of-line: when the head cannot be admitted,
// the cycle stops even if cheaper tasks are queued behind it. That keeps
// the ordering guarantee (tasks are started in strict priority order) at
// the cost of potentially starving cheaper work behind an inadmissible
// expensive task.
func (s *Scheduler) Drain() {
	snapshot, err := s.provider.Snapshot()
	if err != nil {
		// No reading means no budget to admit against; skip this cycle.
		s.logger.Error("resource snapshot failed, skipping drain cycle", "error", err)
		return
	}

	var signals []*Signal
	now := time.Now().UTC()

	s.mu.Lock()
	s.stats.ResourceUtilization = s.utilization(snapshot)

	for len(s.active) < s.bound {
		head := s.queue.peek()
		if head == nil || !head.due(now) {
			break
		}
		if !s.admissible(snapshot, head) {
			break
		}

		task := s.queue.pop()
		ctx, cancel := context.WithCancel(s.ctx)
		s.active[task.ID] = &activeTask{task: task, cancel: cancel, startedAt: now}
		signals = append(signals, newSignal(SignalStarted, task))

		s.wg.Add(1)
		go s.run(ctx, cancel, task)
	}
	s.mu.Unlock()

	s.emitAll(signals)
}

// admissible reports whether starting the task keeps projected usage
// (current reading plus the task's estimate) within the thresholds.
func (s *Scheduler) admissible(snapshot resources.Snapshot, task *Task) bool {
	t := s.cfg.Thresholds

	if snapshot.MemoryUsedBytes+task.Requirements.MemoryBytes > t.MemoryBytes {
		return false
	}
	if task.Requirements.CPUIntensive && snapshot.CPUPercent > t.CPUPercent {
		return false
	}
	if task.Requirements.NetworkRequired && snapshot.NetworkConnections >= t.NetworkConnections {
		return false
	}
	if task.Requirements.DiskIO && t.DiskIOBytesPerSec > 0 &&
		snapshot.DiskIOBytesPerSec > t.DiskIOBytesPerSec {
		return false
	}
	return true
}

// utilization is the highest usage-to-threshold ratio in the snapshot.
func (s *Scheduler) utilization(snapshot resources.Snapshot) float64 {
	t := s.cfg.Thresholds
	util := 0.0
	if t.MemoryBytes > 0 {
		util = float64(snapshot.MemoryUsedBytes) / float64(t.MemoryBytes)
	}
	if t.CPUPercent > 0 {
		if cpu := snapshot.CPUPercent / t.CPUPercent; cpu > util {
			util = cpu
		}
	}
	return util
}

// run executes one attempt of a task, bounded by its timeout, then folds
// the outcome back into the queue or stats.
func (s *Scheduler) run(ctx context.Context, cancel context.CancelFunc, task *Task) {
	defer s.wg.Done()
	defer cancel()

	attemptCtx, attemptCancel := context.WithTimeout(ctx, task.Timeout)
	defer attemptCancel()

	started := time.Now()
	err := s.execute(attemptCtx, task)
	s.finish(task, err, time.Since(started))
}

// execute dispatches to the task's handler and converts a timeout into a
// normal failure. The timed-out handler goroutine is abandoned, not
// killed; handlers are expected to notice context cancellation and wind
// down on their own.
func (s *Scheduler) execute(ctx context.Context, task *Task) error {
	handler, err := s.registry.Lookup(task.Type)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- handler.Execute(ctx, task)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrAttemptTimeout, task.Timeout)
		}
		return ctx.Err()
	}
}

// finish removes the task from the active set and either records
// completion, schedules a retry with capped exponential backoff, or marks
// the task terminally failed once its retry budget is spent. Work that was
// cancelled mid-flight is dropped without a retry; rescheduling it would
// resurrect work the caller already abandoned.
func (s *Scheduler) finish(task *Task, execErr error, duration time.Duration) {
	var signals []*Signal

	s.mu.Lock()
	delete(s.active, task.ID)

	switch {
	case execErr == nil:
		s.stats.recordCompletion(duration)
		signals = append(signals, newSignal(SignalCompleted, task))

	case errors.Is(execErr, context.Canceled):
		s.logger.Info("active task cancelled, dropping without retry",
			"task_id", task.ID,
			"task_type", task.Type,
			"retry_count", task.RetryCount)

	case task.RetryCount < task.MaxRetries:
		task.RetryCount++
		delay := backoffDelay(s.cfg.RetryBaseDelay, s.cfg.RetryMaxDelay, task.RetryCount)
		task.ScheduledAt = time.Now().UTC().Add(delay)
		if evicted := s.evictIfFull(); evicted != nil {
			signals = append(signals, evicted)
		}
		s.queue.push(task)
		s.stats.Retried++

		signal := newSignal(SignalRetryScheduled, task)
		signal.Attempt = task.RetryCount
		signal.Error = execErr.Error()
		signal.NextAttemptAt = task.ScheduledAt
		signals = append(signals, signal)

		s.logger.Warn("task failed, retry scheduled",
			"task_id", task.ID,
			"task_type", task.Type,
			"attempt", task.RetryCount,
			"max_retries", task.MaxRetries,
			"next_attempt_at", task.ScheduledAt,
			"error", execErr)

	default:
		s.stats.Failed++
		signal := newSignal(SignalFailed, task)
		signal.Attempt = task.RetryCount
		signal.Error = execErr.Error()
		signals = append(signals, signal)

		s.logger.Error("task permanently failed",
			"task_id", task.ID,
			"task_type", task.Type,
			"retry_count", task.RetryCount,
			"error", execErr)
	}
	s.mu.Unlock()

	s.emitAll(signals)
}

// Optimize samples resource usage and self-tunes: the concurrency bound
// shrinks by one (floor 1) when memory or CPU exceeds its threshold and
// grows by one (up to the ceiling) when both sit below half their
// thresholds. Above 80% of any configured threshold, every queued task at
// LOW priority or below with no existing deferral is pushed DeferralWindow
// into the future, relieving pressure without discarding work.
func (s *Scheduler) Optimize() {
	snapshot, err := s.provider.Snapshot()
	if err != nil {
		s.logger.Error("resource snapshot failed, skipping optimization", "error", err)
		return
	}

	t := s.cfg.Thresholds
	memOver := snapshot.MemoryUsedBytes > t.MemoryBytes
	cpuOver := snapshot.CPUPercent > t.CPUPercent
	memLow := float64(snapshot.MemoryUsedBytes) < float64(t.MemoryBytes)/2
	cpuLow := snapshot.CPUPercent < t.CPUPercent/2
	pressured := float64(snapshot.MemoryUsedBytes) > 0.8*float64(t.MemoryBytes) ||
		snapshot.CPUPercent > 0.8*t.CPUPercent ||
		float64(snapshot.NetworkConnections) > 0.8*float64(t.NetworkConnections) ||
		(t.DiskIOBytesPerSec > 0 && float64(snapshot.DiskIOBytesPerSec) > 0.8*float64(t.DiskIOBytesPerSec))

	var signals []*Signal

	s.mu.Lock()
	oldBound := s.bound
	if memOver || cpuOver {
		if s.bound > 1 {
			s.bound--
		}
	} else if memLow && cpuLow {
		if s.bound < s.cfg.ConcurrencyCeiling {
			s.bound++
		}
	}

	deferred := 0
	if pressured {
		deferUntil := time.Now().UTC().Add(s.cfg.DeferralWindow)
		s.queue.each(func(task *Task) {
			if task.Priority >= PriorityLow && task.ScheduledAt.IsZero() {
				task.ScheduledAt = deferUntil
				deferred++
			}
		})
		// Ordering fields changed in place; rebuild heap order once.
		if deferred > 0 {
			s.queue.reheap()
		}
	}

	signal := newSignal(SignalOptimizationApplied, nil)
	signal.ConcurrencyBound = s.bound
	signals = append(signals, signal)

	s.logger.Info("optimization applied",
		"old_bound", oldBound,
		"new_bound", s.bound,
		"deferred_tasks", deferred,
		"memory_used_bytes", snapshot.MemoryUsedBytes,
		"cpu_percent", snapshot.CPUPercent)
	s.mu.Unlock()

	s.emitAll(signals)
}

// emitAll delivers signals outside the scheduler mutex so handlers may
// call back into the scheduler without deadlocking.
func (s *Scheduler) emitAll(signals []*Signal) {
	if s.emitter == nil {
		return
	}
	for _, signal := range signals {
		s.emitter.Emit(context.Background(), signal)
	}
}
