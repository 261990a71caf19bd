// Package resources supplies point-in-time resource snapshots for the task
// scheduler's admission control and self-tuning. The system provider reads
// real usage via gopsutil; the static provider serves fixed values for
// tests and for hardware where sampling is unavailable.
package resources

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// Snapshot is a point-in-time reading of the resources the scheduler
// budgets against.
type Snapshot struct {
	// MemoryUsedBytes is the amount of physical memory currently in use.
	MemoryUsedBytes int64

	// CPUPercent is overall CPU utilization, 0-100.
	CPUPercent float64

	// NetworkConnections is the number of open network connections.
	NetworkConnections int

	// DiskIOBytesPerSec is the combined read+write throughput since the
	// previous sample.
	DiskIOBytesPerSec int64

	// SampledAt is when the reading was taken.
	SampledAt time.Time
}

// Provider supplies resource snapshots. Implementations must be safe for
// concurrent use and must not block for long; the scheduler calls Snapshot
// on every drain cycle.
type Provider interface {
	Snapshot() (Snapshot, error)
}

// SystemProvider reads real system usage via gopsutil. Readings are cached
// for a short TTL so frequent drain cycles do not hammer /proc.
type SystemProvider struct {
	mu       sync.Mutex
	cached   Snapshot
	cachedAt time.Time
	cacheTTL time.Duration

	// previous cumulative disk counters, for computing a rate
	prevDiskBytes int64
	prevDiskAt    time.Time
}

// NewSystemProvider creates a SystemProvider with the given cache TTL.
// A zero TTL disables caching.
func NewSystemProvider(cacheTTL time.Duration) *SystemProvider {
	return &SystemProvider{cacheTTL: cacheTTL}
}

// Snapshot returns current system resource usage. Individual probe
// failures degrade to zero readings rather than failing the snapshot;
// only a memory probe failure is treated as fatal since admission control
// is meaningless without it.
func (p *SystemProvider) Snapshot() (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cacheTTL > 0 && !p.cachedAt.IsZero() && time.Since(p.cachedAt) < p.cacheTTL {
		return p.cached, nil
	}

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{
		MemoryUsedBytes: int64(memInfo.Used),
		SampledAt:       time.Now().UTC(),
	}

	// Non-blocking CPU reading: percentage since the previous call.
	cpuPercent, err := cpu.Percent(0, false)
	if err == nil && len(cpuPercent) > 0 {
		snapshot.CPUPercent = cpuPercent[0]
	}

	connections, err := net.Connections("tcp")
	if err == nil {
		snapshot.NetworkConnections = len(connections)
	}

	snapshot.DiskIOBytesPerSec = p.diskRate()

	p.cached = snapshot
	p.cachedAt = snapshot.SampledAt
	return snapshot, nil
}

// diskRate computes combined read+write throughput from the delta of the
// cumulative per-disk counters since the previous sample. The first call
// reports zero because there is no previous sample to diff against.
func (p *SystemProvider) diskRate() int64 {
	counters, err := disk.IOCounters()
	if err != nil {
		return 0
	}

	var total int64
	for _, c := range counters {
		total += int64(c.ReadBytes + c.WriteBytes)
	}

	now := time.Now()
	defer func() {
		p.prevDiskBytes = total
		p.prevDiskAt = now
	}()

	if p.prevDiskAt.IsZero() {
		return 0
	}

	elapsed := now.Sub(p.prevDiskAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return int64(float64(total-p.prevDiskBytes) / elapsed)
}

// StaticProvider serves a fixed snapshot and is intended for tests.
type StaticProvider struct {
	mu       sync.RWMutex
	snapshot Snapshot
	err      error
}

// NewStaticProvider creates a StaticProvider serving the given snapshot.
func NewStaticProvider(snapshot Snapshot) *StaticProvider {
	return &StaticProvider{snapshot: snapshot}
}

// Snapshot returns the configured snapshot, stamped with the current time.
func (p *StaticProvider) Snapshot() (Snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.err != nil {
		return Snapshot{}, p.err
	}

	snapshot := p.snapshot
	snapshot.SampledAt = time.Now().UTC()
	return snapshot, nil
}

// Set replaces the snapshot served by the provider.
func (p *StaticProvider) Set(snapshot Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = snapshot
}

// SetError makes subsequent Snapshot calls fail with err.
func (p *StaticProvider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}
