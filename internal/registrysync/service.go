// Package registrysync keeps the activity-feed registry and the aggregate
// subscription count in step with subscription lifecycle events.
package registrysync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"solsignal/internal/alerts/format"
	"solsignal/internal/alerts/models"
	"solsignal/internal/alerts/ports"
	"solsignal/internal/registrysync/metrics"
	dErrors "solsignal/pkg/domain-errors"
	"solsignal/pkg/platform/sentinel"
	"solsignal/pkg/requestcontext"
)

// ErrRegistryLink wraps every failed registry add or remove. The lifecycle
// framework decides whether to retry.
var ErrRegistryLink = errors.New("registry link failure")

// Service reacts to subscription creation and deletion.
type Service struct {
	subs      ports.SubscriptionCounter
	registry  ports.Registry
	aggregate ports.AggregateStore
	listID    string

	requireSecrets func() error
	inTx           Transactor
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

// Transactor runs fn in a unit of work whose stores share one transaction.
type Transactor func(ctx context.Context, fn func(ctx context.Context) error) error

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

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithSecretCheck runs check at the start of every invocation. A non-nil
// error aborts the invocation as a configuration error.
func WithSecretCheck(check func() error) Option {
	return func(s *Service) {
		s.requireSecrets = check
	}
}

// WithTransactor makes the count and the aggregate write read and write one
// snapshot.
func WithTransactor(run Transactor) Option {
	return func(s *Service) {
		if run != nil {
			s.inTx = run
		}
	}
}

// New creates a synchronizer for the registry list listID.
func New(subs ports.SubscriptionCounter, registry ports.Registry, aggregate ports.AggregateStore, listID string, opts ...Option) (*Service, error) {
	if subs == nil {
		return nil, errors.New("subscription counter is required")
	}
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if aggregate == nil {
		return nil, errors.New("aggregate store is required")
	}

	s := &Service{
		subs:      subs,
		registry:  registry,
		aggregate: aggregate,
		listID:    listID,
		inTx:      func(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) },
		logger:    slog.Default(),
		tracer:    otel.Tracer("solsignal/registrysync"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handle routes a lifecycle event to the matching operation.
func (s *Service) Handle(ctx context.Context, event models.LifecycleEvent) error {
	switch event.Type {
	case models.SubscriptionCreated:
		return s.OnSubscriptionCreated(ctx, event.Subscription)
	case models.SubscriptionDeleted:
		return s.OnSubscriptionDeleted(ctx, event.Subscription)
	default:
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown lifecycle event type %q", event.Type))
	}
}

// OnSubscriptionCreated registers the subscription's address, rewrites the
// aggregate count from a fresh count and records the list on the
// subscription. A registry failure stops before the other steps.
func (s *Service) OnSubscriptionCreated(ctx context.Context, sub models.Subscription) (err error) {
	ctx, span := s.startSpan(ctx, "registrysync.OnSubscriptionCreated", sub)
	defer func() { endSpan(span, err) }()

	if err := s.checkConfig(ctx); err != nil {
		return err
	}
	requestID := requestcontext.RequestID(ctx)
	addr := format.Shorten(sub.WalletAddress)

	if err := s.registry.AddAddresses(ctx, s.listID, []string{sub.WalletAddress}); err != nil {
		s.recordOp(metrics.OpAdd, metrics.ResultError)
		s.logger.ErrorContext(ctx, "registry add failed",
			"error", err,
			"address", addr,
			"subscription_id", sub.ID.String(),
			"request_id", requestID,
		)
		return fmt.Errorf("%w: add %s: %w", ErrRegistryLink, addr, err)
	}
	s.recordOp(metrics.OpAdd, metrics.ResultOK)

	if err := s.recount(ctx); err != nil {
		return err
	}

	err = s.subs.LinkRegistry(ctx, sub.ID, s.listID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		if s.metrics != nil {
			s.metrics.IncrementLinkMisses()
		}
		s.logger.WarnContext(ctx, "subscription gone before registry link was stored",
			"subscription_id", sub.ID.String(),
			"request_id", requestID,
		)
	case err != nil:
		return fmt.Errorf("link subscription %s to registry: %w", sub.ID, err)
	}

	s.logger.InfoContext(ctx, "subscription registered",
		"address", addr,
		"subscription_id", sub.ID.String(),
		"list_id", s.listID,
		"request_id", requestID,
	)
	return nil
}

// OnSubscriptionDeleted removes the address from the registry unless another
// live subscription still watches it, then rewrites the aggregate count.
func (s *Service) OnSubscriptionDeleted(ctx context.Context, sub models.Subscription) (err error) {
	ctx, span := s.startSpan(ctx, "registrysync.OnSubscriptionDeleted", sub)
	defer func() { endSpan(span, err) }()

	if err := s.checkConfig(ctx); err != nil {
		return err
	}
	requestID := requestcontext.RequestID(ctx)
	addr := format.Shorten(sub.WalletAddress)

	remaining, err := s.subs.CountByAddress(ctx, sub.WalletAddress)
	if err != nil {
		return fmt.Errorf("count subscriptions of %s: %w", addr, err)
	}

	if remaining > 0 {
		if s.metrics != nil {
			s.metrics.IncrementSkippedRemovals()
		}
		s.logger.InfoContext(ctx, "registry removal skipped, address still watched",
			"address", addr,
			"remaining", remaining,
			"subscription_id", sub.ID.String(),
			"request_id", requestID,
		)
	} else {
		listID := s.listID
		if sub.RegistryListID != "" {
			listID = sub.RegistryListID
		}
		if err := s.registry.RemoveAddresses(ctx, listID, []string{sub.WalletAddress}); err != nil {
			s.recordOp(metrics.OpRemove, metrics.ResultError)
			s.logger.ErrorContext(ctx, "registry remove failed",
				"error", err,
				"address", addr,
				"subscription_id", sub.ID.String(),
				"request_id", requestID,
			)
			return fmt.Errorf("%w: remove %s: %w", ErrRegistryLink, addr, err)
		}
		s.recordOp(metrics.OpRemove, metrics.ResultOK)
		s.logger.InfoContext(ctx, "subscription unregistered",
			"address", addr,
			"subscription_id", sub.ID.String(),
			"list_id", listID,
			"request_id", requestID,
		)
	}

	return s.recount(ctx)
}

// recount overwrites the aggregate count with a fresh authoritative count.
// Concurrent invocations may interleave; the last writer wins.
func (s *Service) recount(ctx context.Context) error {
	var count int64
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		if count, err = s.subs.Count(ctx); err != nil {
			return fmt.Errorf("count subscriptions: %w", err)
		}
		if err := s.aggregate.SetSubscriptionCount(ctx, count); err != nil {
			return fmt.Errorf("write aggregate count: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SetSubscriptionCount(count)
	}
	return nil
}

func (s *Service) checkConfig(ctx context.Context) error {
	var err error
	if s.listID == "" {
		err = dErrors.New(dErrors.CodeConfiguration, "HELIUS_WEBHOOK_ID is not set")
	} else if s.requireSecrets != nil {
		err = s.requireSecrets()
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "CRITICAL: registry sync misconfigured",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return err
}

func (s *Service) recordOp(op, result string) {
	if s.metrics != nil {
		s.metrics.IncrementRegistryOp(op, result)
	}
}

func (s *Service) startSpan(ctx context.Context, name string, sub models.Subscription) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("subscription.id", sub.ID.String()),
		attribute.String("wallet.address", format.Shorten(sub.WalletAddress)),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
