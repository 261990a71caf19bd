package scheduler

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Task-specific validation errors
var (
	// ErrTaskTypeEmpty is returned when a task spec has no type.
	ErrTaskTypeEmpty = errors.New("task type cannot be empty")

	// ErrInvalidTaskPriority is returned when a task priority is out of range.
	ErrInvalidTaskPriority = errors.New("invalid task priority")

	// ErrInvalidMaxRetries is returned when a task's retry budget is negative.
	ErrInvalidMaxRetries = errors.New("max retries cannot be negative")

	// ErrInvalidTimeout is returned when a task's timeout is not positive.
	ErrInvalidTimeout = errors.New("task timeout must be positive")
)

// TaskType identifies which registered handler executes a task.
// The scheduler treats the payload behind each type as opaque.
type TaskType string

// Built-in task kinds submitted by the surrounding assistant.
const (
	TaskTypeCalendarSync          TaskType = "calendar_sync"
	TaskTypeReminderDispatch      TaskType = "reminder_dispatch"
	TaskTypeIndexOptimization     TaskType = "index_optimization"
	TaskTypeDataCleanup           TaskType = "data_cleanup"
	TaskTypePerformanceMonitoring TaskType = "performance_monitoring"
	TaskTypeFamilyCoordination    TaskType = "family_coordination"
)

// Priority orders tasks in the queue. Lower values are served first.
type Priority int

// Task priorities, most urgent first.
const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
	PriorityBackground
)

// String returns a human-readable name for the priority.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	case PriorityBackground:
		return "background"
	default:
		return "unknown"
	}
}

// IsValid reports whether the priority is one of the defined values.
func (p Priority) IsValid() bool {
	return p >= PriorityCritical && p <= PriorityBackground
}

// ResourceRequirements is a task's estimated footprint, checked against
// current usage and configured thresholds before the task is started.
type ResourceRequirements struct {
	// MemoryBytes is the estimated additional memory the task needs.
	MemoryBytes int64 `json:"memory_bytes"`

	// CPUIntensive marks tasks that should not start while CPU usage is
	// already above the configured threshold.
	CPUIntensive bool `json:"cpu_intensive"`

	// NetworkRequired marks tasks that open network connections.
	NetworkRequired bool `json:"network_required"`

	// DiskIO marks tasks that perform significant disk I/O.
	DiskIO bool `json:"disk_io"`

	// EstimatedDuration is the expected wall-clock runtime; informational,
	// used for stats, not admission.
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// TaskSpec is what callers hand to Submit. The scheduler assigns the ID and
// creation timestamp itself.
type TaskSpec struct {
	// Type selects the registered handler.
	Type TaskType

	// Priority orders the task in the queue.
	Priority Priority

	// Payload is opaque task data passed through to the handler.
	Payload json.RawMessage

	// ScheduledAt, when non-zero, makes the task ineligible for dequeue
	// until that time. Used for explicit deferral.
	ScheduledAt time.Time

	// MaxRetries is how many times a failing task is retried before being
	// terminally failed.
	MaxRetries int

	// Timeout bounds a single execution attempt. Zero means the
	// scheduler's default attempt timeout applies.
	Timeout time.Duration

	// Requirements is the task's estimated resource footprint.
	Requirements ResourceRequirements
}

// Validate checks the spec before admission to the queue.
func (s *TaskSpec) Validate() error {
	if s.Type == "" {
		return ErrTaskTypeEmpty
	}
	if !s.Priority.IsValid() {
		return ErrInvalidTaskPriority
	}
	if s.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if s.Timeout < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// Task is a unit of queued or executing background work.
// Fields are owned by the scheduler once submitted; handlers receive a copy.
type Task struct {
	ID       uuid.UUID       `json:"id"`
	Type     TaskType        `json:"type"`
	Priority Priority        `json:"priority"`
	Payload  json.RawMessage `json:"payload,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// ScheduledAt is zero for immediately-eligible tasks. Retry backoff
	// and pressure deferral both set it into the future.
	ScheduledAt time.Time `json:"scheduled_at,omitempty"`

	MaxRetries int `json:"max_retries"`

	// RetryCount starts at 0 and never exceeds MaxRetries; when another
	// failure would push it past MaxRetries the task is terminally failed.
	RetryCount int `json:"retry_count"`

	Timeout      time.Duration        `json:"timeout"`
	Requirements ResourceRequirements `json:"requirements"`
}

// due reports whether the task is eligible for dequeue at the given time.
func (t *Task) due(now time.Time) bool {
	return t.ScheduledAt.IsZero() || !t.ScheduledAt.After(now)
}

// orderTime is the priority tie-breaker: scheduled time when set,
// creation time otherwise.
func (t *Task) orderTime() time.Time {
	if !t.ScheduledAt.IsZero() {
		return t.ScheduledAt
	}
	return t.CreatedAt
}
