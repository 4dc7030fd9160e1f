package metrics

import (
	"sync"
	"testing"
)

func TestRollingStats_Empty(t *testing.T) {
	r := NewRollingStats(100)

	stats := r.Snapshot()
	if stats.TotalQueries != 0 || stats.WindowSize != 0 {
		t.Errorf("expected empty stats, got %+v", stats)
	}
	if stats.AvgTotalMs != 0 || stats.P95TotalMs != 0 {
		t.Errorf("expected zero aggregates, got %+v", stats)
	}
}

func TestRollingStats_Averages(t *testing.T) {
	r := NewRollingStats(100)
	r.Record(1, 2, 10)
	r.Record(3, 4, 20)

	stats := r.Snapshot()
	if stats.TotalQueries != 2 || stats.WindowSize != 2 {
		t.Fatalf("expected 2 samples, got %+v", stats)
	}
	if stats.AvgStage1Ms != 2 {
		t.Errorf("expected avg stage1 2, got %v", stats.AvgStage1Ms)
	}
	if stats.AvgStage2Ms != 3 {
		t.Errorf("expected avg stage2 3, got %v", stats.AvgStage2Ms)
	}
	if stats.AvgTotalMs != 15 {
		t.Errorf("expected avg total 15, got %v", stats.AvgTotalMs)
	}
}

func TestRollingStats_EvictionKeepsCounter(t *testing.T) {
	r := NewRollingStats(100)

	// Overfill the window so the first 50 samples get evicted.
	for i := 1; i <= 150; i++ {
		r.Record(0, 0, float64(i))
	}

	stats := r.Snapshot()
	if stats.TotalQueries != 150 {
		t.Errorf("counter must survive eviction, got %d", stats.TotalQueries)
	}
	if stats.WindowSize != 100 {
		t.Errorf("expected full window of 100, got %d", stats.WindowSize)
	}

	// Window now holds totals 51..150, average 100.5.
	if stats.AvgTotalMs != 100.5 {
		t.Errorf("expected avg over surviving samples 100.5, got %v", stats.AvgTotalMs)
	}
}

func TestRollingStats_P95NearestRank(t *testing.T) {
	tests := []struct {
		name    string
		totals  []float64
		wantP95 float64
	}{
		{"single sample", []float64{42}, 42},
		{"two samples", []float64{10, 20}, 20},
		// ceil(0.95*20)-1 = 18, so the 19th smallest of 1..20.
		{"twenty samples", seq(1, 20), 19},
		// ceil(0.95*100)-1 = 94, so the 95th smallest of 1..100.
		{"hundred samples", seq(1, 100), 95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRollingStats(len(tt.totals))
			for _, total := range tt.totals {
				r.Record(0, 0, total)
			}

			if got := r.Snapshot().P95TotalMs; got != tt.wantP95 {
				t.Errorf("expected p95 %v, got %v", tt.wantP95, got)
			}
		})
	}
}

func TestRollingStats_ConcurrentRecord(t *testing.T) {
	r := NewRollingStats(100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Record(1, 1, 3)
			}
		}()
	}
	wg.Wait()

	stats := r.Snapshot()
	if stats.TotalQueries != 1000 {
		t.Errorf("expected 1000 recorded queries, got %d", stats.TotalQueries)
	}
	if stats.WindowSize != 100 {
		t.Errorf("expected full window, got %d", stats.WindowSize)
	}
	if stats.AvgTotalMs != 3 {
		t.Errorf("expected avg 3, got %v", stats.AvgTotalMs)
	}
}

func seq(from, to int) []float64 {
	out := make([]float64, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, float64(i))
	}
	return out
}
