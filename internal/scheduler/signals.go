package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SignalKind identifies a task lifecycle transition.
type SignalKind string

// Signal kinds emitted by the scheduler.
const (
	SignalQueued              SignalKind = "queued"
	SignalStarted             SignalKind = "started"
	SignalCompleted           SignalKind = "completed"
	SignalFailed              SignalKind = "failed"
	SignalRetryScheduled      SignalKind = "retry_scheduled"
	SignalEvicted             SignalKind = "evicted"
	SignalOptimizationApplied SignalKind = "optimization_applied"
)

// Signal is a typed notification of a task lifecycle transition, consumed
// by monitoring collaborators. Signals are informational; dropping them
// never affects task processing.
type Signal struct {
	// ID is a unique identifier for this signal.
	ID uuid.UUID `json:"id"`

	// Kind is the lifecycle transition being reported.
	Kind SignalKind `json:"kind"`

	// TaskID identifies the task, except for optimization_applied signals
	// which concern the scheduler itself.
	TaskID uuid.UUID `json:"task_id,omitempty"`

	// TaskType is the task's type, when the signal concerns a task.
	TaskType TaskType `json:"task_type,omitempty"`

	// Priority is the task's priority, when the signal concerns a task.
	Priority Priority `json:"priority"`

	// Attempt is the retry count after the transition, for retry_scheduled
	// and failed signals.
	Attempt int `json:"attempt,omitempty"`

	// Error carries the handler failure message for failed and
	// retry_scheduled signals.
	Error string `json:"error,omitempty"`

	// NextAttemptAt is when a retried task becomes eligible again.
	NextAttemptAt time.Time `json:"next_attempt_at,omitempty"`

	// ConcurrencyBound is the bound after an optimization_applied signal.
	ConcurrencyBound int `json:"concurrency_bound,omitempty"`

	// At is when the transition happened.
	At time.Time `json:"at"`
}

// SignalHandler is implemented by components that consume scheduler signals.
type SignalHandler interface {
	// HandleSignal processes a single signal. Errors are logged by the
	// emitter and do not interrupt delivery to other handlers.
	HandleSignal(ctx context.Context, signal *Signal) error
}

// SignalHandlerFunc adapts a function to the SignalHandler interface.
type SignalHandlerFunc func(ctx context.Context, signal *Signal) error

// HandleSignal calls the wrapped function.
func (f SignalHandlerFunc) HandleSignal(ctx context.Context, signal *Signal) error {
	return f(ctx, signal)
}

// SignalEmitter dispatches signals to registered handlers in registration
// order. Handlers are invoked synchronously; slow handlers slow the
// scheduler, so consumers that do real work should hand off internally.
type SignalEmitter struct {
	handlers []SignalHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewSignalEmitter creates a new SignalEmitter.
func NewSignalEmitter(logger *slog.Logger) *SignalEmitter {
	return &SignalEmitter{
		logger: logger.With("component", "signal_emitter"),
	}
}

// Register adds a handler to receive all subsequent signals.
func (e *SignalEmitter) Register(handler SignalHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered signal handler", "handler_count", len(e.handlers))
}

// Emit delivers the signal to every registered handler. A failing handler
// is logged and skipped; it never stops delivery to the others.
func (e *SignalEmitter) Emit(ctx context.Context, signal *Signal) {
	e.mu.RLock()
	handlers := make([]SignalHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	for i, handler := range handlers {
		if err := handler.HandleSignal(ctx, signal); err != nil {
			e.logger.Error("signal handler failed",
				"error", err,
				"handler_index", i,
				"signal_id", signal.ID,
				"signal_kind", signal.Kind,
				"task_id", signal.TaskID)
		}
	}
}

// newSignal constructs a signal for the given task and kind.
func newSignal(kind SignalKind, task *Task) *Signal {
	signal := &Signal{
		ID:   uuid.New(),
		Kind: kind,
		At:   time.Now().UTC(),
	}
	if task != nil {
		signal.TaskID = task.ID
		signal.TaskType = task.Type
		signal.Priority = task.Priority
	}
	return signal
}
