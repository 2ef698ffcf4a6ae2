// Package store implements the alert persistence ports: in-memory stores for
// development and tests, Postgres for production, and a Redis cache for the
// aggregate document.
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

// Clock returns the current time.
type Clock func() time.Time

// MemoryOption configures the in-memory stores.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	clock  Clock
	outbox *MemoryOutbox
}

// WithClock overrides time.Now.
func WithClock(clock Clock) MemoryOption {
	return func(c *memoryConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithOutbox makes Create and Delete emit lifecycle events into outbox, the
// way the Postgres trigger does.
func WithOutbox(outbox *MemoryOutbox) MemoryOption {
	return func(c *memoryConfig) {
		c.outbox = outbox
	}
}

func newMemoryConfig(opts []MemoryOption) memoryConfig {
	cfg := memoryConfig{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// MemorySubscriptionStore is a map-backed ports.SubscriptionStore.
type MemorySubscriptionStore struct {
	mu   sync.RWMutex
	subs map[id.SubscriptionID]models.Subscription
	cfg  memoryConfig
}

func NewMemorySubscriptionStore(opts ...MemoryOption) *MemorySubscriptionStore {
	return &MemorySubscriptionStore{
		subs: make(map[id.SubscriptionID]models.Subscription),
		cfg:  newMemoryConfig(opts),
	}
}

func (s *MemorySubscriptionStore) Create(ctx context.Context, sub *models.Subscription) error {
	if sub.ID.IsNil() {
		sub.ID = id.NewSubscriptionID()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.cfg.clock().UTC()
	}

	s.mu.Lock()
	if _, exists := s.subs[sub.ID]; exists {
		s.mu.Unlock()
		return sentinel.ErrConflict
	}
	s.subs[sub.ID] = *sub
	s.mu.Unlock()

	if s.cfg.outbox != nil {
		s.cfg.outbox.append(models.SubscriptionCreated, *sub, s.cfg.clock())
	}
	return nil
}

func (s *MemorySubscriptionStore) Get(_ context.Context, subscriptionID id.SubscriptionID) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[subscriptionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &sub, nil
}

func (s *MemorySubscriptionStore) Delete(_ context.Context, subscriptionID id.SubscriptionID) error {
	s.mu.Lock()
	sub, ok := s.subs[subscriptionID]
	if !ok {
		s.mu.Unlock()
		return sentinel.ErrNotFound
	}
	delete(s.subs, subscriptionID)
	s.mu.Unlock()

	if s.cfg.outbox != nil {
		s.cfg.outbox.append(models.SubscriptionDeleted, sub, s.cfg.clock())
	}
	return nil
}

// ListByAddress returns matches ordered by creation time.
func (s *MemorySubscriptionStore) ListByAddress(_ context.Context, address string) ([]models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]models.Subscription, 0)
	for _, sub := range s.subs {
		if sub.WalletAddress == address {
			matches = append(matches, sub)
		}
	}
	slices.SortFunc(matches, func(a, b models.Subscription) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID.String() < b.ID.String() {
			return -1
		}
		return 1
	})
	return matches, nil
}

func (s *MemorySubscriptionStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.subs)), nil
}

func (s *MemorySubscriptionStore) CountByAddress(_ context.Context, address string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, sub := range s.subs {
		if sub.WalletAddress == address {
			n++
		}
	}
	return n, nil
}

func (s *MemorySubscriptionStore) LinkRegistry(_ context.Context, subscriptionID id.SubscriptionID, listID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[subscriptionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	sub.RegistryListID = listID
	s.subs[subscriptionID] = sub
	return nil
}

// MemoryDeliveryLog is an append-only slice of delivery records.
type MemoryDeliveryLog struct {
	mu      sync.RWMutex
	records []models.DeliveryRecord
}

func NewMemoryDeliveryLog() *MemoryDeliveryLog {
	return &MemoryDeliveryLog{}
}

func (l *MemoryDeliveryLog) Append(_ context.Context, record models.DeliveryRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return nil
}

// Records returns a copy of every record in append order.
func (l *MemoryDeliveryLog) Records() []models.DeliveryRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.DeliveryRecord{}, l.records...)
}

// MemoryAggregateStore holds the aggregate document in memory.
type MemoryAggregateStore struct {
	mu     sync.RWMutex
	config models.AggregateConfig
	cfg    memoryConfig
}

func NewMemoryAggregateStore(opts ...MemoryOption) *MemoryAggregateStore {
	return &MemoryAggregateStore{cfg: newMemoryConfig(opts)}
}

func (s *MemoryAggregateStore) SetSubscriptionCount(_ context.Context, count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.SystemAlertCount = count
	s.config.UpdatedAt = s.cfg.clock().UTC()
	return nil
}

func (s *MemoryAggregateStore) Aggregate(_ context.Context) (models.AggregateConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config, nil
}
