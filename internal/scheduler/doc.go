// Package scheduler implements the resource-aware background task
// scheduler: a bounded priority queue drained on a fixed period, admission
// control against configured resource thresholds, per-attempt timeouts,
// exponential backoff retries, and a self-tuning concurrency bound.
//
// A single drive goroutine owns all queue and active-set mutation; task
// bodies run as independent goroutines once admitted. Submit and Cancel are
// safe to call from any goroutine. Lifecycle outcomes are observed through
// typed signals and processing stats, never through errors from Submit.
package scheduler
