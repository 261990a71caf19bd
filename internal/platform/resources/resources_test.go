package resources

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProvider(t *testing.T) {
	t.Run("serves configured snapshot", func(t *testing.T) {
		provider := NewStaticProvider(Snapshot{
			MemoryUsedBytes:    256 << 20,
			CPUPercent:         40,
			NetworkConnections: 5,
		})

		snapshot, err := provider.Snapshot()
		require.NoError(t, err)
		assert.Equal(t, int64(256<<20), snapshot.MemoryUsedBytes)
		assert.Equal(t, 40.0, snapshot.CPUPercent)
		assert.Equal(t, 5, snapshot.NetworkConnections)
		assert.False(t, snapshot.SampledAt.IsZero())
	})

	t.Run("set replaces readings", func(t *testing.T) {
		provider := NewStaticProvider(Snapshot{CPUPercent: 10})
		provider.Set(Snapshot{CPUPercent: 95})

		snapshot, err := provider.Snapshot()
		require.NoError(t, err)
		assert.Equal(t, 95.0, snapshot.CPUPercent)
	})

	t.Run("set error fails snapshots", func(t *testing.T) {
		provider := NewStaticProvider(Snapshot{})
		sampleErr := errors.New("sampler offline")
		provider.SetError(sampleErr)

		_, err := provider.Snapshot()
		assert.ErrorIs(t, err, sampleErr)
	})
}

func TestSystemProviderCaching(t *testing.T) {
	provider := NewSystemProvider(0)

	first, err := provider.Snapshot()
	require.NoError(t, err)
	assert.Positive(t, first.MemoryUsedBytes)
	assert.False(t, first.SampledAt.IsZero())

	// First disk reading has no previous sample to diff against.
	assert.Zero(t, first.DiskIOBytesPerSec)

	second, err := provider.Snapshot()
	require.NoError(t, err)
	assert.Positive(t, second.MemoryUsedBytes)
}
