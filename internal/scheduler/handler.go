package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Handler-related errors
var (
	// ErrNoHandler is returned when a task's type has no registered handler.
	ErrNoHandler = errors.New("no handler registered for task type")

	// ErrHandlerExists is returned when registering a duplicate handler.
	ErrHandlerExists = errors.New("handler already registered for task type")
)

// Handler executes the business logic behind one task type. Handlers are
// opaque to the scheduler: it only cares whether execution returned an
// error within the task's timeout. Handlers must honor context
// cancellation; a timed-out attempt is abandoned, not killed.
type Handler interface {
	Execute(ctx context.Context, task *Task) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, task *Task) error

// Execute calls the wrapped function.
func (f HandlerFunc) Execute(ctx context.Context, task *Task) error {
	return f(ctx, task)
}

// HandlerRegistry maps task types to their handlers. Registration normally
// happens during startup, but the registry is safe for concurrent use so
// the embedding system may add handlers while the scheduler runs.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[TaskType]Handler
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[TaskType]Handler)}
}

// Register associates a handler with a task type.
// Returns ErrHandlerExists if the type already has a handler.
func (r *HandlerRegistry) Register(taskType TaskType, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[taskType]; exists {
		return fmt.Errorf("%w: %s", ErrHandlerExists, taskType)
	}
	r.handlers[taskType] = handler
	return nil
}

// Lookup returns the handler for a task type.
// Returns ErrNoHandler if none is registered.
func (r *HandlerRegistry) Lookup(taskType TaskType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, taskType)
	}
	return handler, nil
}
