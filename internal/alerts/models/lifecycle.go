package models

import (
	"fmt"
	"time"
)

// LifecycleEventType names a subscription lifecycle transition.
type LifecycleEventType string

const (
	SubscriptionCreated LifecycleEventType = "created"
	SubscriptionDeleted LifecycleEventType = "deleted"
)

// Valid reports whether t is a known event type.
func (t LifecycleEventType) Valid() bool {
	return t == SubscriptionCreated || t == SubscriptionDeleted
}

// LifecycleEvent is one outbox entry: the transition plus the full
// subscription state (for deletes, the last known state).
type LifecycleEvent struct {
	ID           int64              `json:"id"`
	Type         LifecycleEventType `json:"type"`
	Subscription Subscription       `json:"subscription"`
	CreatedAt    time.Time          `json:"createdAt"`
	Attempts     int                `json:"attempts"`
}

// Key identifies the event for logging and message keys.
func (e LifecycleEvent) Key() string {
	return fmt.Sprintf("%s:%s", e.Type, e.Subscription.ID)
}
