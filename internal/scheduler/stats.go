package scheduler

import "time"

// ProcessingStats are the scheduler's lifetime counters. They are mutated
// only by the scheduler's own drain/execute path and read-only to callers.
type ProcessingStats struct {
	// Processed counts successfully completed tasks.
	Processed uint64 `json:"processed"`

	// QueuedTotal counts all accepted submissions, including later
	// evicted or failed tasks.
	QueuedTotal uint64 `json:"queued_total"`

	// Failed counts terminally failed tasks (retries exhausted).
	Failed uint64 `json:"failed"`

	// Retried counts scheduled retry attempts.
	Retried uint64 `json:"retried"`

	// Evicted counts tasks pushed out of a full queue.
	Evicted uint64 `json:"evicted"`

	// AvgProcessingTime is the running average duration of completed
	// executions.
	AvgProcessingTime time.Duration `json:"avg_processing_time"`

	// ResourceUtilization is the highest usage-to-threshold ratio seen at
	// the most recent drain, 0-1+ (values above 1 mean a threshold is
	// exceeded).
	ResourceUtilization float64 `json:"resource_utilization"`
}

// recordCompletion folds one successful execution into the counters.
func (s *ProcessingStats) recordCompletion(duration time.Duration) {
	s.Processed++
	if s.Processed == 1 {
		s.AvgProcessingTime = duration
		return
	}
	n := time.Duration(s.Processed)
	s.AvgProcessingTime = (s.AvgProcessingTime*(n-1) + duration) / n
}
