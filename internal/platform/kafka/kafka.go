// Package kafka builds franz-go clients for the lifecycle event topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// ErrNoBrokers is returned when a client is requested without brokers.
var ErrNoBrokers = errors.New("kafka: no brokers configured")

// NewProducer returns a client whose default produce topic is topic.
// Records are acknowledged by all in-sync replicas.
func NewProducer(ctx context.Context, brokers []string, topic string, opts ...kgo.Opt) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if topic == "" {
		return nil, errors.New("kafka: topic must be set")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(10 * time.Millisecond),
		kgo.RecordRetries(5),
	}
	return newClient(ctx, append(base, opts...))
}

// NewConsumer returns a consumer-group client on topic with auto-commit
// disabled; callers commit after handling each fetch.
func NewConsumer(ctx context.Context, brokers []string, topic, group string, opts ...kgo.Opt) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if topic == "" || group == "" {
		return nil, errors.New("kafka: topic and group must be set")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
	return newClient(ctx, append(base, opts...))
}

func newClient(ctx context.Context, opts []kgo.Opt) (*kgo.Client, error) {
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka: new client: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka: ping: %w", err)
	}
	return client, nil
}
