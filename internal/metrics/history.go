package metrics

import (
	"context"
	"sync"
	"time"
)

// DataPoint represents a single time-series data point.
type DataPoint struct {
	Timestamp time.Time
	Value     float64
}

// MetricHistory stores time-series data with automatic bucketing and
// retention, for the ops/stats surface.
type MetricHistory struct {
	mu          sync.Mutex
	buckets     []DataPoint
	bucketSize  time.Duration
	maxBuckets  int
	accumulator float64
	count       int64
	lastBucket  time.Time
	storage     *RedisStorage // Optional Redis backend
	metricName  string
}

// NewMetricHistory creates a new metric history with specified bucket size
// and retention.
func NewMetricHistory(bucketSize time.Duration, maxBuckets int) *MetricHistory {
	return &MetricHistory{
		buckets:    make([]DataPoint, 0, maxBuckets),
		bucketSize: bucketSize,
		maxBuckets: maxBuckets,
		lastBucket: time.Now().Truncate(bucketSize),
	}
}

// NewMetricHistoryWithRedis creates a metric history with Redis persistence.
// Previously persisted points are loaded on startup when available.
func NewMetricHistoryWithRedis(bucketSize time.Duration, maxBuckets int, storage *RedisStorage, metricName string) *MetricHistory {
	h := NewMetricHistory(bucketSize, maxBuckets)
	h.storage = storage
	h.metricName = metricName

	if storage != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		since := time.Now().Add(-time.Duration(maxBuckets) * bucketSize)
		if dataPoints, err := storage.LoadHistory(ctx, metricName, since); err == nil && len(dataPoints) > 0 {
			h.buckets = dataPoints
		}
	}

	return h
}

// Record adds a value to the current bucket.
func (h *MetricHistory) Record(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	currentBucket := time.Now().Truncate(h.bucketSize)
	if currentBucket.After(h.lastBucket) {
		h.finalizeBucket()
		h.lastBucket = currentBucket
	}

	h.accumulator += value
	h.count++
}

// RecordCount increments the count for the current bucket (for rate metrics).
func (h *MetricHistory) RecordCount() {
	h.Record(1)
}

// finalizeBucket saves the current bucket and starts a new one.
// Must be called with lock held.
func (h *MetricHistory) finalizeBucket() {
	if h.count == 0 {
		return
	}

	dp := DataPoint{
		Timestamp: h.lastBucket,
		Value:     h.accumulator / float64(h.count),
	}

	h.buckets = append(h.buckets, dp)

	// Persist outside the caller's path; errors are ignored on purpose.
	if h.storage != nil && h.metricName != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = h.storage.SaveDataPoint(ctx, h.metricName, dp)
		}()
	}

	if len(h.buckets) > h.maxBuckets {
		h.buckets = h.buckets[len(h.buckets)-h.maxBuckets:]
	}

	h.accumulator = 0
	h.count = 0
}

// History returns the retained data points, including any unflushed current
// bucket data.
func (h *MetricHistory) History() []DataPoint {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]DataPoint, len(h.buckets))
	copy(result, h.buckets)

	if h.count > 0 {
		result = append(result, DataPoint{
			Timestamp: h.lastBucket,
			Value:     h.accumulator / float64(h.count),
		})
	}

	return result
}

// TimeSeriesData holds the time-series used by the stats surface.
type TimeSeriesData struct {
	SearchRate    *MetricHistory // Searches per bucket
	SearchLatency *MetricHistory // Average total latency per bucket
	UpsertRate    *MetricHistory // Pages upserted per bucket
}

// NewTimeSeriesData creates the time-series collection, with optional Redis
// persistence when storage is non-nil. Uses 5-minute buckets with one hour
// of retention.
func NewTimeSeriesData(storage *RedisStorage) *TimeSeriesData {
	bucketSize := 5 * time.Minute
	maxBuckets := 12

	if storage == nil {
		return &TimeSeriesData{
			SearchRate:    NewMetricHistory(bucketSize, maxBuckets),
			SearchLatency: NewMetricHistory(bucketSize, maxBuckets),
			UpsertRate:    NewMetricHistory(bucketSize, maxBuckets),
		}
	}

	return &TimeSeriesData{
		SearchRate:    NewMetricHistoryWithRedis(bucketSize, maxBuckets, storage, "search_rate"),
		SearchLatency: NewMetricHistoryWithRedis(bucketSize, maxBuckets, storage, "search_latency"),
		UpsertRate:    NewMetricHistoryWithRedis(bucketSize, maxBuckets, storage, "upsert_rate"),
	}
}

// RecordSearch records one completed search for time-series tracking.
func (t *TimeSeriesData) RecordSearch(latencyMs float64) {
	t.SearchRate.RecordCount()
	t.SearchLatency.Record(latencyMs)
}

// RecordUpsert records an upsert of pageCount pages.
func (t *TimeSeriesData) RecordUpsert(pageCount int) {
	t.UpsertRate.Record(float64(pageCount))
}
