package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"solsignal/internal/alerts/format"
	"solsignal/internal/alerts/models"
	"solsignal/internal/lifecycle/metrics"
	"solsignal/internal/providers"
)

const eventTypeHeader = "event-type"

// Producer is the subset of *kgo.Client used by KafkaPublisher.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Fetcher is the subset of *kgo.Client used by Consumer.
type Fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitUncommittedOffsets(ctx context.Context) error
}

// KafkaPublisher is a Handler that forwards lifecycle events to the
// producer's default topic, keyed by subscription so events for one
// subscription stay ordered within a partition.
type KafkaPublisher struct {
	producer Producer
}

func NewKafkaPublisher(producer Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Handle(ctx context.Context, event models.LifecycleEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode lifecycle event %s: %w", event.Key(), err)
	}
	record := &kgo.Record{
		Key:   []byte(event.Subscription.ID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: eventTypeHeader, Value: []byte(event.Type)},
		},
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce lifecycle event %s: %w", event.Key(), err)
	}
	return nil
}

// Consumer feeds lifecycle records from a consumer group into a Handler.
// Offsets are committed after every fetch, including records whose handler
// failed: redelivery belongs to the outbox stage, not the topic.
type Consumer struct {
	fetcher Fetcher
	handler Handler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type ConsumerOption func(*Consumer)

func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithConsumerMetrics(m *metrics.Metrics) ConsumerOption {
	return func(c *Consumer) {
		c.metrics = m
	}
}

func NewConsumer(fetcher Fetcher, handler Handler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		fetcher: fetcher,
		handler: handler,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes until ctx is cancelled or the client is closed.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := c.poll(ctx); err != nil {
			if errors.Is(err, kgo.ErrClientClosed) {
				return nil
			}
			return err
		}
	}
}

func (c *Consumer) poll(ctx context.Context) error {
	fetches := c.fetcher.PollFetches(ctx)
	if fetches.IsClientClosed() {
		return kgo.ErrClientClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fetches.EachError(func(topic string, partition int32, err error) {
		c.logger.ErrorContext(ctx, "lifecycle fetch error",
			"topic", topic,
			"partition", partition,
			"error", err,
		)
	})
	fetches.EachRecord(func(record *kgo.Record) {
		c.handleRecord(ctx, record)
	})

	if err := c.fetcher.CommitUncommittedOffsets(ctx); err != nil {
		c.logger.ErrorContext(ctx, "failed to commit lifecycle offsets", "error", err)
	}
	return nil
}

func (c *Consumer) handleRecord(ctx context.Context, record *kgo.Record) {
	var event models.LifecycleEvent
	if err := json.Unmarshal(record.Value, &event); err != nil || !event.Type.Valid() {
		if c.metrics != nil {
			c.metrics.IncrementUndecodable()
		}
		c.logger.ErrorContext(ctx, "CRITICAL: undecodable lifecycle record",
			"key", string(record.Key),
			"partition", record.Partition,
			"offset", record.Offset,
			"error", err,
		)
		// commit anyway, a malformed record must not block the partition
		return
	}

	if err := c.handler.Handle(ctx, event); err != nil {
		// the offset is committed, so this event will not be seen again
		if c.metrics != nil {
			c.metrics.IncrementFailed(metrics.StageConsumer, string(event.Type))
			c.metrics.IncrementDeadLettered()
		}
		c.logger.ErrorContext(ctx, "CRITICAL: lifecycle event dead-lettered",
			"event", event.Key(),
			"address", format.Shorten(event.Subscription.WalletAddress),
			"partition", record.Partition,
			"offset", record.Offset,
			"category", string(providers.GetCategory(err)),
			"error", err,
		)
		return
	}
	if c.metrics != nil {
		c.metrics.IncrementProcessed(metrics.StageConsumer, string(event.Type))
	}
}
