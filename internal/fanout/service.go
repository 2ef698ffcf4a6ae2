// Package fanout delivers activity events to every subscriber of the
// affected address and records one delivery outcome per attempt.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"solsignal/internal/alerts/format"
	"solsignal/internal/alerts/models"
	"solsignal/internal/alerts/ports"
	"solsignal/internal/fanout/metrics"
	"solsignal/internal/providers"
	id "solsignal/pkg/domain"
	dErrors "solsignal/pkg/domain-errors"
	"solsignal/pkg/requestcontext"
)

// ErrMalformedEvent is returned when an event carries no address. Nothing in
// the batch is sent.
var ErrMalformedEvent = errors.New("malformed activity event")

const defaultConcurrency = 8

// Service fans activity events out to subscribers.
type Service struct {
	lookup      ports.SubscriptionLookup
	transport   ports.Transport
	deliveries  ports.DeliveryLog
	links       format.Links
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithConcurrency bounds the number of in-flight sends.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock sets the clock used to stamp delivery records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a dispatcher.
func New(lookup ports.SubscriptionLookup, transport ports.Transport, deliveries ports.DeliveryLog, links format.Links, opts ...Option) (*Service, error) {
	if lookup == nil {
		return nil, errors.New("subscription lookup is required")
	}
	if transport == nil {
		return nil, errors.New("notification transport is required")
	}
	if deliveries == nil {
		return nil, errors.New("delivery log is required")
	}

	s := &Service{
		lookup:      lookup,
		transport:   transport,
		deliveries:  deliveries,
		links:       links,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
		tracer:      otel.Tracer("solsignal/fanout"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type delivery struct {
	event models.ActivityEvent
	sub   models.Subscription
}

// Dispatch resolves the subscribers of every event and sends one notification
// per (event, subscription) pair. Individual send failures are recorded as
// "fail" records and counted, never returned. Errors are returned only for a
// malformed batch or when subscribers cannot be resolved, in both cases
// before anything is sent. Once sending starts, every pair is attempted and
// recorded even if ctx is cancelled.
func (s *Service) Dispatch(ctx context.Context, events []models.ActivityEvent) (models.DispatchSummary, error) {
	start := time.Now()
	requestID := requestcontext.RequestID(ctx)

	ctx, span := s.tracer.Start(ctx, "fanout.Dispatch", trace.WithAttributes(
		attribute.Int("fanout.events", len(events)),
	))
	defer span.End()

	for i, event := range events {
		if event.Address == "" {
			err := dErrors.Wrap(ErrMalformedEvent, dErrors.CodeValidation, fmt.Sprintf("event %d has no address", i))
			span.SetStatus(codes.Error, "malformed event")
			return models.DispatchSummary{}, err
		}
	}
	if s.metrics != nil {
		s.metrics.IncrementEventsReceived(len(events))
	}

	work, err := s.resolve(ctx, events)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to resolve subscribers",
			"error", err,
			"request_id", requestID,
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve subscribers")
		return models.DispatchSummary{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "subscription store unavailable")
	}

	sendCtx := context.WithoutCancel(ctx)
	var success, fail atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, d := range work {
		g.Go(func() error {
			if s.deliver(sendCtx, d) == models.DeliverySuccess {
				success.Add(1)
			} else {
				fail.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := models.DispatchSummary{
		SuccessCount: int(success.Load()),
		FailCount:    int(fail.Load()),
	}
	span.SetAttributes(
		attribute.Int("fanout.success", summary.SuccessCount),
		attribute.Int("fanout.fail", summary.FailCount),
	)
	if s.metrics != nil {
		s.metrics.ObserveDispatchDuration(time.Since(start))
	}
	s.logger.InfoContext(ctx, "dispatch complete",
		"events", len(events),
		"success_count", summary.SuccessCount,
		"fail_count", summary.FailCount,
		"request_id", requestID,
	)
	return summary, nil
}

// resolve looks up subscribers for every event. Repeated addresses in one
// batch are looked up once.
func (s *Service) resolve(ctx context.Context, events []models.ActivityEvent) ([]delivery, error) {
	cache := make(map[string][]models.Subscription, len(events))
	var work []delivery
	for _, event := range events {
		subs, ok := cache[event.Address]
		if !ok {
			var err error
			subs, err = s.lookup.ListByAddress(ctx, event.Address)
			if err != nil {
				return nil, fmt.Errorf("list subscribers of %s: %w", format.Shorten(event.Address), err)
			}
			cache[event.Address] = subs
		}
		if s.metrics != nil {
			s.metrics.ObserveSubscribers(len(subs))
		}
		if len(subs) == 0 {
			s.logger.DebugContext(ctx, "no subscribers for address",
				"address", format.Shorten(event.Address),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		for _, sub := range subs {
			work = append(work, delivery{event: event, sub: sub})
		}
	}
	return work, nil
}

// deliver sends one notification and appends its delivery record.
func (s *Service) deliver(ctx context.Context, d delivery) models.DeliveryStatus {
	requestID := requestcontext.RequestID(ctx)
	shortAddr := format.Shorten(d.event.Address)

	ctx, span := s.tracer.Start(ctx, "fanout.deliver", trace.WithAttributes(
		attribute.String("subscription.id", d.sub.ID.String()),
		attribute.String("wallet.address", shortAddr),
	))
	defer span.End()

	status := models.DeliverySuccess
	if err := s.transport.SendTemplated(ctx, s.links.Message(d.event, d.sub)); err != nil {
		status = models.DeliveryFail
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		s.logger.WarnContext(ctx, "notification delivery failed",
			"error", err,
			"category", string(providers.GetCategory(err)),
			"address", shortAddr,
			"subscription_id", d.sub.ID.String(),
			"request_id", requestID,
		)
	} else {
		s.logger.DebugContext(ctx, "notification delivered",
			"address", shortAddr,
			"email", d.sub.Email,
			"request_id", requestID,
		)
	}
	if s.metrics != nil {
		s.metrics.IncrementDeliveries(string(status))
	}

	record := models.DeliveryRecord{
		ID:           id.NewDeliveryID(),
		Status:       status,
		CreatedAt:    s.now().UTC(),
		Subscription: d.sub,
	}
	if err := s.deliveries.Append(ctx, record); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementDeliveryRecordErrors()
		}
		s.logger.ErrorContext(ctx, "failed to append delivery record",
			"error", err,
			"status", string(status),
			"subscription_id", d.sub.ID.String(),
			"request_id", requestID,
		)
	}
	return status
}
