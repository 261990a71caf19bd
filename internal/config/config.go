package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Index     IndexConfig     `mapstructure:"index"     validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
// The URL may be empty, in which case the in-memory calendar store is used
// and nothing is persisted across restarts.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,uri"`
}

// SchedulerConfig contains the task scheduler's capacity, timing, and
// resource threshold settings.
type SchedulerConfig struct {
	// MaxQueueSize bounds the number of queued tasks; submitting to a full
	// queue evicts a lower-value task before inserting.
	MaxQueueSize int `mapstructure:"max_queue_size" validate:"required,gt=0"`

	// MaxConcurrentTasks is the initial concurrency bound. The scheduler's
	// optimize pass adjusts the live bound between 1 and ConcurrencyCeiling.
	MaxConcurrentTasks int `mapstructure:"max_concurrent_tasks" validate:"required,gt=0"`

	// ConcurrencyCeiling is the highest value self-tuning may raise the
	// concurrency bound to.
	ConcurrencyCeiling int `mapstructure:"concurrency_ceiling" validate:"required,gtefield=MaxConcurrentTasks"`

	// DrainInterval is how often the scheduler drains the queue.
	DrainInterval time.Duration `mapstructure:"drain_interval" validate:"required,gt=0"`

	// OptimizeInterval is how often the scheduler runs its self-tuning and
	// pressure deferral pass.
	OptimizeInterval time.Duration `mapstructure:"optimize_interval" validate:"required,gt=0"`

	// RetryBaseDelay is the delay before the first retry; each subsequent
	// retry doubles it up to RetryMaxDelay.
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" validate:"required,gt=0"`

	// RetryMaxDelay caps the exponential retry backoff.
	RetryMaxDelay time.Duration `mapstructure:"retry_max_delay" validate:"required,gtefield=RetryBaseDelay"`

	// MemoryThresholdMB is the memory usage ceiling for task admission.
	MemoryThresholdMB int64 `mapstructure:"memory_threshold_mb" validate:"required,gt=0"`

	// CPUThresholdPercent is the CPU usage ceiling for admitting
	// CPU-intensive tasks.
	CPUThresholdPercent float64 `mapstructure:"cpu_threshold_percent" validate:"required,gt=0,lte=100"`

	// MaxNetworkConnections bounds admission of network-requiring tasks.
	MaxNetworkConnections int `mapstructure:"max_network_connections" validate:"required,gt=0"`

	// DeferralWindow is how far into the future low-priority tasks are
	// pushed when resource pressure is high.
	DeferralWindow time.Duration `mapstructure:"deferral_window" validate:"required,gt=0"`
}

// IndexConfig contains the event index and query cache settings.
type IndexConfig struct {
	// CacheCapacity bounds the query result cache; the least-accessed
	// entry is evicted when full.
	CacheCapacity int `mapstructure:"cache_capacity" validate:"required,gt=0"`

	// CacheTTL is how long a cached query result may be served.
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"required,gt=0"`

	// FragmentationThreshold is the empty-bucket ratio above which an
	// optimize pass requests a full rebuild from the calendar store.
	FragmentationThreshold float64 `mapstructure:"fragmentation_threshold" validate:"required,gt=0,lte=1"`
}
