package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"solsignal/internal/alerts/models"
	"solsignal/internal/alerts/ports"
)

var aggregateReadDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "solsignal_aggregate_read_duration_ms",
	Help:    "Latency of aggregate document reads from Redis in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const (
	aggregateKeyPrefix = "solsignal:config:"
	fieldAlertCount    = "systemAlertCount"
	fieldUpdatedAt     = "updatedAt"
)

// RedisAggregateStore keeps the aggregate document in a Redis hash. With a
// backing store it becomes a write-through cache: writes land in the backing
// store first and reads fall back to it on a miss.
type RedisAggregateStore struct {
	client  *redis.Client
	key     string
	backing ports.AggregateStore
	clock   Clock
}

// RedisAggregateOption configures a RedisAggregateStore.
type RedisAggregateOption func(*RedisAggregateStore)

// WithBackingStore makes backing the source of truth.
func WithBackingStore(backing ports.AggregateStore) RedisAggregateOption {
	return func(s *RedisAggregateStore) {
		s.backing = backing
	}
}

// WithRedisClock sets the clock used for updatedAt.
func WithRedisClock(clock Clock) RedisAggregateOption {
	return func(s *RedisAggregateStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewRedisAggregateStore(client *redis.Client, docID string, opts ...RedisAggregateOption) *RedisAggregateStore {
	s := &RedisAggregateStore{
		client: client,
		key:    aggregateKeyPrefix + docID,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisAggregateStore) SetSubscriptionCount(ctx context.Context, count int64) error {
	if s.backing != nil {
		if err := s.backing.SetSubscriptionCount(ctx, count); err != nil {
			return err
		}
	}
	return s.write(ctx, models.AggregateConfig{SystemAlertCount: count, UpdatedAt: s.clock().UTC()})
}

func (s *RedisAggregateStore) Aggregate(ctx context.Context) (models.AggregateConfig, error) {
	start := time.Now()
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	aggregateReadDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	if err != nil {
		return models.AggregateConfig{}, fmt.Errorf("read aggregate: %w", err)
	}

	if len(fields) == 0 {
		if s.backing == nil {
			return models.AggregateConfig{}, nil
		}
		cfg, err := s.backing.Aggregate(ctx)
		if err != nil {
			return models.AggregateConfig{}, err
		}
		if !cfg.UpdatedAt.IsZero() {
			_ = s.write(ctx, cfg)
		}
		return cfg, nil
	}
	return decodeAggregate(fields)
}

func (s *RedisAggregateStore) write(ctx context.Context, cfg models.AggregateConfig) error {
	err := s.client.HSet(ctx, s.key,
		fieldAlertCount, strconv.FormatInt(cfg.SystemAlertCount, 10),
		fieldUpdatedAt, cfg.UpdatedAt.Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("write aggregate: %w", err)
	}
	return nil
}

func decodeAggregate(fields map[string]string) (models.AggregateConfig, error) {
	var cfg models.AggregateConfig
	if raw, ok := fields[fieldAlertCount]; ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return models.AggregateConfig{}, fmt.Errorf("decode %s: %w", fieldAlertCount, err)
		}
		cfg.SystemAlertCount = n
	}
	if raw, ok := fields[fieldUpdatedAt]; ok && raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return models.AggregateConfig{}, fmt.Errorf("decode %s: %w", fieldUpdatedAt, err)
		}
		cfg.UpdatedAt = t.UTC()
	}
	return cfg, nil
}
