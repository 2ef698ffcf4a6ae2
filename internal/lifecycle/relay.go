package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"solsignal/internal/alerts/format"
	"solsignal/internal/alerts/models"
	"solsignal/internal/alerts/ports"
	"solsignal/internal/lifecycle/metrics"
	"solsignal/internal/providers"
	id "solsignal/pkg/domain"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 50
	defaultMaxAttempts  = 5
	defaultLease        = 30 * time.Second
)

// Relay polls the outbox and hands each claimed event to its handler. Failed
// events are released for another attempt until maxAttempts is reached, then
// dead-lettered.
type Relay struct {
	outbox       ports.Outbox
	handler      Handler
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	lease        time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

type RelayOption func(*Relay)

func WithPollInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithMaxAttempts(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithLease sets how long a claimed event stays invisible to other relays.
func WithLease(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.lease = d
		}
	}
}

func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithRelayMetrics(m *metrics.Metrics) RelayOption {
	return func(r *Relay) {
		r.metrics = m
	}
}

func NewRelay(outbox ports.Outbox, handler Handler, opts ...RelayOption) (*Relay, error) {
	if outbox == nil {
		return nil, errors.New("outbox is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	r := &Relay{
		outbox:       outbox,
		handler:      handler,
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
		maxAttempts:  defaultMaxAttempts,
		lease:        defaultLease,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run polls until ctx is cancelled. A batch that was full and fully handled
// is followed immediately by another poll.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		n, err := r.ProcessBatch(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "outbox relay batch failed", "error", err)
		}
		if err == nil && n == r.batchSize {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessBatch claims one batch and handles it in outbox order. Once an event
// fails, later events of the same subscription are left for a later batch. It
// returns the number of events handled successfully.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	events, err := r.outbox.Claim(ctx, r.batchSize, r.lease)
	if err != nil {
		return 0, err
	}
	if r.metrics != nil {
		r.metrics.ObserveBatchSize(len(events))
	}

	var done []int64
	blocked := make(map[id.SubscriptionID]struct{})
	for _, event := range events {
		if _, ok := blocked[event.Subscription.ID]; ok {
			r.logger.DebugContext(ctx, "lifecycle event held behind failed event",
				"event", event.Key(),
			)
			continue
		}
		if err := r.handler.Handle(ctx, event); err != nil {
			if !r.fail(ctx, event, err) {
				blocked[event.Subscription.ID] = struct{}{}
			}
			continue
		}
		if r.metrics != nil {
			r.metrics.IncrementProcessed(metrics.StageRelay, string(event.Type))
		}
		done = append(done, event.ID)
	}

	if len(done) > 0 {
		if err := r.outbox.MarkDone(ctx, done); err != nil {
			return 0, err
		}
	}
	return len(done), nil
}

// fail records a handler failure and reports whether the event was dead-lettered.
func (r *Relay) fail(ctx context.Context, event models.LifecycleEvent, cause error) bool {
	attempts := event.Attempts + 1
	dead := attempts >= r.maxAttempts
	if r.metrics != nil {
		r.metrics.IncrementFailed(metrics.StageRelay, string(event.Type))
		if dead {
			r.metrics.IncrementDeadLettered()
		}
	}

	if err := r.outbox.MarkFailed(ctx, event.ID, cause.Error(), dead); err != nil {
		r.logger.ErrorContext(ctx, "failed to record lifecycle event failure",
			"error", err,
			"event", event.Key(),
		)
	}

	if dead {
		r.logger.ErrorContext(ctx, "CRITICAL: lifecycle event dead-lettered",
			"error", cause,
			"event", event.Key(),
			"address", format.Shorten(event.Subscription.WalletAddress),
			"attempts", attempts,
		)
		return true
	}
	r.logger.WarnContext(ctx, "lifecycle event failed, will retry",
		"error", cause,
		"category", string(providers.GetCategory(cause)),
		"retryable", providers.IsRetryable(cause),
		"event", event.Key(),
		"attempts", attempts,
	)
	return false
}
