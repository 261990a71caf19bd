package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Empty(t, cfg.Database.URL)

	assert.Equal(t, 100, cfg.Scheduler.MaxQueueSize)
	assert.Equal(t, 3, cfg.Scheduler.MaxConcurrentTasks)
	assert.Equal(t, 6, cfg.Scheduler.ConcurrencyCeiling)
	assert.Equal(t, time.Second, cfg.Scheduler.DrainInterval)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.OptimizeInterval)
	assert.Equal(t, 2*time.Second, cfg.Scheduler.RetryBaseDelay)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.RetryMaxDelay)
	assert.Equal(t, int64(512), cfg.Scheduler.MemoryThresholdMB)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.DeferralWindow)

	assert.Equal(t, 64, cfg.Index.CacheCapacity)
	assert.Equal(t, 5*time.Minute, cfg.Index.CacheTTL)
	assert.InDelta(t, 0.3, cfg.Index.FragmentationThreshold, 1e-9)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("HEARTH_SERVER_PORT", "9090")
	t.Setenv("HEARTH_SERVER_LOG_LEVEL", "debug")
	t.Setenv("HEARTH_SCHEDULER_MAX_QUEUE_SIZE", "25")
	t.Setenv("HEARTH_INDEX_CACHE_CAPACITY", "16")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 25, cfg.Scheduler.MaxQueueSize)
	assert.Equal(t, 16, cfg.Index.CacheCapacity)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "HEARTH_SERVER_PORT", "70000"},
		{"unknown log level", "HEARTH_SERVER_LOG_LEVEL", "verbose"},
		{"zero queue size", "HEARTH_SCHEDULER_MAX_QUEUE_SIZE", "0"},
		{"cpu threshold above 100", "HEARTH_SCHEDULER_CPU_THRESHOLD_PERCENT", "150"},
		{"fragmentation above 1", "HEARTH_INDEX_FRAGMENTATION_THRESHOLD", "1.5"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
