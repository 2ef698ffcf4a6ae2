package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"solsignal/internal/alerts/models"
	id "solsignal/pkg/domain"
	"solsignal/pkg/platform/sentinel"
)

type outboxEntry struct {
	event        models.LifecycleEvent
	claimedUntil time.Time
	processed    bool
	dead         bool
	lastError    string
}

// MemoryOutbox is an in-process ports.Outbox fed by MemorySubscriptionStore.
// Processed entries are dropped; dead entries are kept for inspection.
type MemoryOutbox struct {
	mu      sync.Mutex
	nextID  int64
	entries []*outboxEntry
	byID    map[int64]*outboxEntry
	clock   Clock
}

func NewMemoryOutbox(opts ...MemoryOption) *MemoryOutbox {
	cfg := newMemoryConfig(opts)
	return &MemoryOutbox{clock: cfg.clock, byID: make(map[int64]*outboxEntry)}
}

func (o *MemoryOutbox) append(eventType models.LifecycleEventType, sub models.Subscription, at time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	e := &outboxEntry{event: models.LifecycleEvent{
		ID:           o.nextID,
		Type:         eventType,
		Subscription: sub,
		CreatedAt:    at.UTC(),
	}}
	o.entries = append(o.entries, e)
	o.byID[e.event.ID] = e
}

// Claim leases up to limit pending events in outbox order. Only the oldest
// pending event of each subscription is eligible, so a subscription's events
// are handled strictly in order.
func (o *MemoryOutbox) Claim(_ context.Context, limit int, lease time.Duration) ([]models.LifecycleEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.clock()
	seen := make(map[id.SubscriptionID]struct{})
	var claimed []models.LifecycleEvent
	for _, e := range o.entries {
		if len(claimed) >= limit {
			break
		}
		if e.processed || e.dead {
			continue
		}
		subID := e.event.Subscription.ID
		if _, held := seen[subID]; held {
			continue
		}
		seen[subID] = struct{}{}
		if now.Before(e.claimedUntil) {
			continue
		}
		e.claimedUntil = now.Add(lease)
		claimed = append(claimed, e.event)
	}
	return claimed, nil
}

func (o *MemoryOutbox) MarkDone(_ context.Context, eventIDs []int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, eventID := range eventIDs {
		if e := o.byID[eventID]; e != nil {
			e.processed = true
			delete(o.byID, eventID)
		}
	}
	o.entries = slices.DeleteFunc(o.entries, func(e *outboxEntry) bool { return e.processed })
	return nil
}

func (o *MemoryOutbox) MarkFailed(_ context.Context, eventID int64, cause string, dead bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	e := o.byID[eventID]
	if e == nil {
		return sentinel.ErrNotFound
	}
	e.event.Attempts++
	e.lastError = cause
	e.dead = dead
	e.claimedUntil = time.Time{}
	return nil
}

// Pending counts events that are neither processed nor dead.
func (o *MemoryOutbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, e := range o.entries {
		if !e.processed && !e.dead {
			n++
		}
	}
	return n
}

// Dead returns dead-lettered events.
func (o *MemoryOutbox) Dead() []models.LifecycleEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	var dead []models.LifecycleEvent
	for _, e := range o.entries {
		if e.dead {
			dead = append(dead, e.event)
		}
	}
	return dead
}

// Len reports how many entries are retained.
func (o *MemoryOutbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}
