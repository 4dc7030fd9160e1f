package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage provides Redis-backed persistence for metrics history.
type RedisStorage struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStorage creates a new Redis storage backend.
// Returns an error if the connection fails.
func NewRedisStorage(url string) (*RedisStorage, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisStorage{
		client: client,
		prefix: "sight:metrics:",
		ttl:    24 * time.Hour,
	}, nil
}

// SaveDataPoint saves a single data point to Redis.
// Uses a sorted set with the timestamp as score for efficient range queries.
func (rs *RedisStorage) SaveDataPoint(ctx context.Context, metric string, dp DataPoint) error {
	key := rs.prefix + metric

	pipe := rs.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(dp.Timestamp.Unix()),
		Member: fmt.Sprintf("%.2f", dp.Value),
	})

	// Drop points past retention
	minScore := time.Now().Add(-rs.ttl).Unix()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", minScore))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving data point: %w", err)
	}

	return nil
}

// LoadHistory loads historical data points since the given time.
func (rs *RedisStorage) LoadHistory(ctx context.Context, metric string, since time.Time) ([]DataPoint, error) {
	key := rs.prefix + metric

	results, err := rs.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", since.Unix()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	dataPoints := make([]DataPoint, 0, len(results))
	for _, z := range results {
		value, err := strconv.ParseFloat(z.Member.(string), 64)
		if err != nil {
			continue
		}

		dataPoints = append(dataPoints, DataPoint{
			Timestamp: time.Unix(int64(z.Score), 0),
			Value:     value,
		})
	}

	return dataPoints, nil
}

// Close closes the Redis connection.
func (rs *RedisStorage) Close() error {
	return rs.client.Close()
}
