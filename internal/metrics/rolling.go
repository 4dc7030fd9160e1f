// Package metrics provides query statistics and time-series history.
package metrics

import (
	"math"
	"sort"
	"sync"
)

// DefaultWindowSize is the default rolling window capacity.
const DefaultWindowSize = 500

// Sample is the timing triple recorded for one completed query.
type Sample struct {
	Stage1Ms float64
	Stage2Ms float64
	TotalMs  float64
}

// RollingStats keeps the last N query timing triples in a fixed-capacity
// FIFO window, plus a monotonic query counter that never resets with
// eviction. All methods are safe for concurrent use; no lock is ever held
// across I/O.
type RollingStats struct {
	mu           sync.Mutex
	window       []Sample
	head         int
	size         int
	totalQueries uint64
}

// NewRollingStats creates a rolling stats tracker with the given window
// capacity. Non-positive capacities fall back to the default.
func NewRollingStats(capacity int) *RollingStats {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &RollingStats{
		window: make([]Sample, capacity),
	}
}

// Record appends a timing triple, evicting the oldest sample when the
// window is full.
func (r *RollingStats) Record(stage1Ms, stage2Ms, totalMs float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.window[r.head] = Sample{
		Stage1Ms: stage1Ms,
		Stage2Ms: stage2Ms,
		TotalMs:  totalMs,
	}
	r.head = (r.head + 1) % len(r.window)
	if r.size < len(r.window) {
		r.size++
	}
	r.totalQueries++
}

// Stats is the aggregate summary over the retained window.
type Stats struct {
	// TotalQueries counts every recorded query since process start; it can
	// exceed the window capacity.
	TotalQueries uint64 `json:"total_queries"`

	// WindowSize is the number of samples the aggregates below cover.
	WindowSize int `json:"window_size"`

	AvgTotalMs  float64 `json:"avg_total_ms"`
	P95TotalMs  float64 `json:"p95_total_ms"`
	AvgStage1Ms float64 `json:"avg_stage1_ms"`
	AvgStage2Ms float64 `json:"avg_stage2_ms"`
}

// Snapshot computes aggregates over the currently-retained samples only.
func (r *RollingStats) Snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{
		TotalQueries: r.totalQueries,
		WindowSize:   r.size,
	}

	if r.size == 0 {
		return stats
	}

	totals := make([]float64, 0, r.size)
	var sumTotal, sumStage1, sumStage2 float64
	for i := 0; i < r.size; i++ {
		s := r.window[i]
		totals = append(totals, s.TotalMs)
		sumTotal += s.TotalMs
		sumStage1 += s.Stage1Ms
		sumStage2 += s.Stage2Ms
	}

	stats.AvgTotalMs = sumTotal / float64(r.size)
	stats.AvgStage1Ms = sumStage1 / float64(r.size)
	stats.AvgStage2Ms = sumStage2 / float64(r.size)

	// Nearest-rank p95: ceil(0.95 * count) - 1, clamped to a valid index.
	sort.Float64s(totals)
	rank := int(math.Ceil(0.95*float64(len(totals)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(totals) {
		rank = len(totals) - 1
	}
	stats.P95TotalMs = totals[rank]

	return stats
}
