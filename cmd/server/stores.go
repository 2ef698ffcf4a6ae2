package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"solsignal/internal/alerts/ports"
	"solsignal/internal/alerts/store"
	"solsignal/internal/platform/config"
	"solsignal/internal/platform/postgres"
	"solsignal/internal/platform/redis"
	"solsignal/internal/registrysync"
	"solsignal/pkg/platform/tx"
)

// stores bundles the persistence ports chosen by configuration.
type stores struct {
	subs       ports.SubscriptionStore
	deliveries ports.DeliveryLog
	aggregate  ports.AggregateStore
	outbox     ports.Outbox
	transactor registrysync.Transactor
	health     []func(context.Context) error
	closers    []func() error
}

func (s *stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

func (s *stores) Health(ctx context.Context) error {
	for _, check := range s.health {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// openStores selects Postgres when DATABASE_URL is set and in-memory stores
// otherwise. REDIS_URL fronts the aggregate document with Redis.
func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	s := &stores{}

	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		outbox := store.NewMemoryOutbox()
		s.subs = store.NewMemorySubscriptionStore(store.WithOutbox(outbox))
		s.deliveries = store.NewMemoryDeliveryLog()
		s.aggregate = store.NewMemoryAggregateStore()
		s.outbox = outbox
	} else {
		if err := postgres.Migrate(cfg.DatabaseURL, "up"); err != nil {
			return nil, err
		}
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		s.health = append(s.health, db.PingContext)
		s.subs = store.NewPostgresSubscriptionStore(db)
		s.deliveries = store.NewPostgresDeliveryLog(db)
		s.aggregate = store.NewPostgresAggregateStore(db, cfg.AggregateDocID)
		s.outbox = store.NewPostgresOutbox(db)
		s.transactor = postgresTransactor(db)
		log.Info("postgres stores ready")
	}

	rc, err := redis.New(ctx, redis.DefaultConfig(cfg.RedisURL))
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	if rc != nil {
		s.closers = append(s.closers, rc.Close)
		s.health = append(s.health, rc.Health)
		s.aggregate = store.NewRedisAggregateStore(rc.Client, cfg.AggregateDocID, store.WithBackingStore(s.aggregate))
		log.Info("aggregate document cached in redis")
	}
	return s, nil
}

func postgresTransactor(db *sql.DB) registrysync.Transactor {
	return func(ctx context.Context, fn func(context.Context) error) error {
		return tx.Run(ctx, db, fn)
	}
}
