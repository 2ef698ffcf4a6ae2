// Package lifecycle delivers subscription lifecycle events from the store's
// outbox to their handler, either directly or through a Kafka topic.
package lifecycle

import (
	"context"

	"solsignal/internal/alerts/models"
)

// Handler processes one lifecycle event. Returning an error leaves retry and
// alerting to the caller.
type Handler interface {
	Handle(ctx context.Context, event models.LifecycleEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event models.LifecycleEvent) error

func (f HandlerFunc) Handle(ctx context.Context, event models.LifecycleEvent) error {
	return f(ctx, event)
}
