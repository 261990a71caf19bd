package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/hearthd/internal/scheduler"
)

// SubmitTaskRequest is the payload for submitting a background task.
// Priority defaults to medium when omitted; durations are expressed in
// seconds to keep payloads human-writable.
type SubmitTaskRequest struct {
	Type           string          `json:"type"            validate:"required"`
	Priority       *int            `json:"priority"        validate:"omitempty,min=0,max=4"`
	Payload        json.RawMessage `json:"payload"`
	ScheduledAt    time.Time       `json:"scheduled_at"`
	MaxRetries     int             `json:"max_retries"     validate:"min=0,max=10"`
	TimeoutSeconds int             `json:"timeout_seconds" validate:"min=0"`

	MemoryBytes     int64 `json:"memory_bytes"     validate:"min=0"`
	CPUIntensive    bool  `json:"cpu_intensive"`
	NetworkRequired bool  `json:"network_required"`
	DiskIO          bool  `json:"disk_io"`
}

// SubmitTaskResponse carries the id assigned to an accepted task.
type SubmitTaskResponse struct {
	TaskID uuid.UUID `json:"task_id"`
}

// TaskHandler handles background task HTTP requests.
type TaskHandler struct {
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(sched *scheduler.Scheduler, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		scheduler: sched,
		logger:    logger.With(slog.String("component", "task_handler")),
	}
}

// SubmitTask handles POST /tasks.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}

	priority := scheduler.PriorityMedium
	if req.Priority != nil {
		priority = scheduler.Priority(*req.Priority)
	}

	spec := scheduler.TaskSpec{
		Type:        scheduler.TaskType(req.Type),
		Priority:    priority,
		Payload:     req.Payload,
		ScheduledAt: req.ScheduledAt,
		MaxRetries:  req.MaxRetries,
		Timeout:     time.Duration(req.TimeoutSeconds) * time.Second,
		Requirements: scheduler.ResourceRequirements{
			MemoryBytes:     req.MemoryBytes,
			CPUIntensive:    req.CPUIntensive,
			NetworkRequired: req.NetworkRequired,
			DiskIO:          req.DiskIO,
		},
	}

	taskID, err := h.scheduler.Submit(spec)
	if err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}

	h.logger.Debug("task submitted", "task_id", taskID, "task_type", req.Type)
	respondWithJSON(w, http.StatusAccepted, SubmitTaskResponse{TaskID: taskID})
}

// CancelTask handles DELETE /tasks/{id}. Cancelling an already-running
// task is advisory; the response distinguishes neither case from the
// other, only whether the id was known.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}

	if !h.scheduler.Cancel(id) {
		respondWithError(w, http.StatusNotFound, "Task not found")
		return
	}

	h.logger.Debug("task cancelled", "task_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// GetStats handles GET /scheduler/stats.
func (h *TaskHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.scheduler.Stats())
}

// GetQueueStatus handles GET /scheduler/queue.
func (h *TaskHandler) GetQueueStatus(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.scheduler.GetQueueStatus())
}
