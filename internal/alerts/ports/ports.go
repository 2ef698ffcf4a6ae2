// Package ports defines the interfaces shared by the dispatcher and the
// registry synchronizer. Stores and provider adapters implement them.
package ports

import (
	"context"
	"time"

	"solsignal/internal/alerts/models"
	id "solsignal/pkg/domain"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks solsignal/internal/alerts/ports Transport,Registry,DeliveryLog,AggregateStore

// SubscriptionLookup resolves the subscribers of an address.
type SubscriptionLookup interface {
	// ListByAddress returns every subscription whose wallet address equals
	// address exactly. No subscribers is an empty slice, not an error.
	ListByAddress(ctx context.Context, address string) ([]models.Subscription, error)
}

// SubscriptionCounter answers the authoritative counting queries and records
// registry linkage.
type SubscriptionCounter interface {
	// Count returns the number of subscriptions at the time of the call.
	Count(ctx context.Context) (int64, error)

	// CountByAddress returns how many live subscriptions reference address.
	CountByAddress(ctx context.Context, address string) (int64, error)

	// LinkRegistry merges the registry list id onto the subscription.
	// Returns sentinel.ErrNotFound when the subscription no longer exists.
	LinkRegistry(ctx context.Context, subscriptionID id.SubscriptionID, listID string) error
}

// SubscriptionStore is the full subscription collection.
type SubscriptionStore interface {
	SubscriptionLookup
	SubscriptionCounter

	Create(ctx context.Context, sub *models.Subscription) error
	Get(ctx context.Context, subscriptionID id.SubscriptionID) (*models.Subscription, error)
	Delete(ctx context.Context, subscriptionID id.SubscriptionID) error
}

// DeliveryLog is the append-only record of delivery attempts.
type DeliveryLog interface {
	Append(ctx context.Context, record models.DeliveryRecord) error
}

// AggregateStore holds the system-wide configuration document.
type AggregateStore interface {
	// SetSubscriptionCount overwrites systemAlertCount, leaving other fields intact.
	SetSubscriptionCount(ctx context.Context, count int64) error

	// Aggregate reads the current document. A document that was never written
	// reads as the zero value.
	Aggregate(ctx context.Context) (models.AggregateConfig, error)
}

// Transport sends one templated notification.
type Transport interface {
	SendTemplated(ctx context.Context, msg models.TemplatedMessage) error
}

// Registry maintains the address list watched by the activity feed.
type Registry interface {
	AddAddresses(ctx context.Context, listID string, addresses []string) error
	RemoveAddresses(ctx context.Context, listID string, addresses []string) error
}

// Outbox is the durable queue of lifecycle events written by the store.
type Outbox interface {
	// Claim leases up to limit pending events for lease.
	Claim(ctx context.Context, limit int, lease time.Duration) ([]models.LifecycleEvent, error)

	// MarkDone completes events.
	MarkDone(ctx context.Context, eventIDs []int64) error

	// MarkFailed records a failed attempt. dead moves the event out of the
	// pending set for good.
	MarkFailed(ctx context.Context, eventID int64, cause string, dead bool) error
}
