package memsafe

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Config mirrors memory_safety.rs's MemorySafetyConfig, including its
// exact defaults (leak detection on, 10000 max tracked allocations,
// 60s cleanup interval, auto cleanup on, 500MB pressure threshold,
// weak-ref optimization on).
type Config struct {
	LeakDetectionEnabled    bool
	MaxTrackedAllocations   int
	CleanupInterval         time.Duration
	AutoCleanup             bool
	MemoryPressureThreshold uint64
	WeakRefOptimization     bool
}

// DefaultConfig returns memory_safety.rs's MemorySafetyConfig::default().
func DefaultConfig() Config {
	return Config{
		LeakDetectionEnabled:    true,
		MaxTrackedAllocations:   10000,
		CleanupInterval:         60 * time.Second,
		AutoCleanup:             true,
		MemoryPressureThreshold: 500 * 1024 * 1024,
		WeakRefOptimization:     true,
	}
}

type allocationInfo struct {
	typeName    string
	size        uint64
	allocatedAt time.Time
}

// Tracker records in-flight allocations so leak detection and memory-
// pressure checks can inspect them, mirroring memory_safety.rs's
// MemoryTracker (DashMap<u64, AllocationInfo> becomes sync.Map keyed by
// an atomically-incremented id, the same pattern jsonschema/v2 uses for
// its own concurrent maps).
type Tracker struct {
	cfg         Config
	allocations sync.Map // uint64 -> allocationInfo
	nextID      atomic.Uint64
}

// NewTracker returns a Tracker configured with cfg.
func NewTracker(cfg Config) *Tracker { return &Tracker{cfg: cfg} }

// AllocationGuard releases its tracked allocation when Release is
// called — the explicit analogue of memory_safety.rs's Drop-triggered
// AllocationGuard, since Go has no destructors. A guard from a Tracker
// with leak detection disabled is a no-op.
type AllocationGuard struct {
	id      uint64
	tracked bool
	tracker *Tracker
}

// Release removes the guard's allocation from its tracker. Safe to call
// more than once.
func (g *AllocationGuard) Release() {
	if !g.tracked {
		return
	}
	g.tracker.allocations.Delete(g.id)
	g.tracked = false
}

// TrackAllocation records a new allocation of typeName/size and returns
// a guard that releases it. If leak detection is disabled, returns a
// no-op guard, same as track_allocation's early return.
func (t *Tracker) TrackAllocation(typeName string, size uint64) *AllocationGuard {
	if !t.cfg.LeakDetectionEnabled {
		return &AllocationGuard{}
	}
	id := t.nextID.Add(1)
	t.allocations.Store(id, allocationInfo{typeName: typeName, size: size, allocatedAt: time.Now()})

	if t.countAllocations() > t.cfg.MaxTrackedAllocations {
		t.cleanupOldAllocations()
	}

	guard := &AllocationGuard{id: id, tracked: true, tracker: t}
	// Safety net for a caller that never calls Release: once the guard
	// itself becomes unreachable, drop its allocation entry so it can't
	// outlive the value it was tracking. This does not replace Release,
	// which still runs deterministically when called.
	runtime.AddCleanup(guard, func(id uint64) { t.allocations.Delete(id) }, id)
	return guard
}

func (t *Tracker) countAllocations() int {
	n := 0
	t.allocations.Range(func(_, _ any) bool { n++; return true })
	return n
}

// cleanupOldAllocations drops any allocation older than 5 minutes,
// mirroring cleanup_old_allocations's fixed 300s cutoff.
func (t *Tracker) cleanupOldAllocations() {
	cutoff := time.Now().Add(-5 * time.Minute)
	t.allocations.Range(func(k, v any) bool {
		if v.(allocationInfo).allocatedAt.Before(cutoff) {
			t.allocations.Delete(k)
		}
		return true
	})
}

// Stats summarizes the tracker's current population, mirroring
// MemoryStats.
type Stats struct {
	ActiveAllocations  int
	TotalTrackedBytes  uint64
	AllocationsByType  map[string]int
	OldestAllocationAge time.Duration
	HasAllocations     bool
}

// GetStats mirrors get_stats.
func (t *Tracker) GetStats() Stats {
	stats := Stats{AllocationsByType: map[string]int{}}
	var oldest time.Time
	t.allocations.Range(func(_, v any) bool {
		info := v.(allocationInfo)
		stats.ActiveAllocations++
		stats.TotalTrackedBytes += info.size
		stats.AllocationsByType[info.typeName]++
		if oldest.IsZero() || info.allocatedAt.Before(oldest) {
			oldest = info.allocatedAt
		}
		return true
	})
	if !oldest.IsZero() {
		stats.HasAllocations = true
		stats.OldestAllocationAge = time.Since(oldest)
	}
	return stats
}

// LeakReport describes one allocation that has lived past the leak
// threshold, mirroring LeakReport.
type LeakReport struct {
	TypeName string
	Size     uint64
	Age      time.Duration
}

// DetectLeaks returns every tracked allocation older than 10 minutes,
// mirroring detect_leaks's fixed 600s threshold.
func (t *Tracker) DetectLeaks() []LeakReport {
	const threshold = 10 * time.Minute
	var leaks []LeakReport
	t.allocations.Range(func(_, v any) bool {
		info := v.(allocationInfo)
		if age := time.Since(info.allocatedAt); age > threshold {
			leaks = append(leaks, LeakReport{TypeName: info.typeName, Size: info.size, Age: age})
		}
		return true
	})
	return leaks
}

// CheckPressure reports whether total tracked bytes exceed the
// configured pressure threshold, mirroring MemoryPressureMonitor::
// check_pressure when backed by a Tracker (the teacher/pack offer no
// cross-platform process-RSS library, so the estimate_system_memory_usage
// /proc fallback from the original is intentionally not ported — this
// layer only ever reports pressure from what it itself tracks).
func (t *Tracker) CheckPressure() bool {
	return t.GetStats().TotalTrackedBytes > t.cfg.MemoryPressureThreshold
}
