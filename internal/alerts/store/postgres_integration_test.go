//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"solsignal/internal/alerts/models"
	"solsignal/internal/platform/postgres"
	id "solsignal/pkg/domain"
	"solsignal/pkg/platform/sentinel"
	txcontext "solsignal/pkg/platform/tx"
	"solsignal/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	ctx       context.Context
	pg        *containers.PostgresContainer
	subs      *PostgresSubscriptionStore
	log       *PostgresDeliveryLog
	aggregate *PostgresAggregateStore
	outbox    *PostgresOutbox
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(postgres.Migrate(s.pg.DSN, "up"))

	s.subs = NewPostgresSubscriptionStore(s.pg.DB)
	s.log = NewPostgresDeliveryLog(s.pg.DB)
	s.aggregate = NewPostgresAggregateStore(s.pg.DB, "solsignal")
	s.outbox = NewPostgresOutbox(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx, "alert_events", "sent_alerts", "system_config", "alerts"))
}

func (s *PostgresStoreSuite) create(address, email string) models.Subscription {
	sub := models.Subscription{WalletAddress: address, Email: email, UserID: "user-1"}
	s.Require().NoError(s.subs.Create(s.ctx, &sub))
	return sub
}

func (s *PostgresStoreSuite) TestSubscriptionLifecycle() {
	sub := s.create("Addr1", "a@x.com")
	s.create("Addr1", "b@x.com")
	s.create("addr1", "c@x.com")

	matches, err := s.subs.ListByAddress(s.ctx, "Addr1")
	s.Require().NoError(err)
	s.Len(matches, 2)

	n, err := s.subs.Count(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(3, n)

	byAddr, err := s.subs.CountByAddress(s.ctx, "Addr1")
	s.Require().NoError(err)
	s.EqualValues(2, byAddr)

	s.Require().NoError(s.subs.LinkRegistry(s.ctx, sub.ID, "wh-1"))
	got, err := s.subs.Get(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal("wh-1", got.RegistryListID)
	s.Equal("a@x.com", got.Email)

	dup := sub
	s.ErrorIs(s.subs.Create(s.ctx, &dup), sentinel.ErrConflict)

	s.Require().NoError(s.subs.Delete(s.ctx, sub.ID))
	s.ErrorIs(s.subs.Delete(s.ctx, sub.ID), sentinel.ErrNotFound)
	s.ErrorIs(s.subs.LinkRegistry(s.ctx, sub.ID, "wh-1"), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDeliveryLogAppends() {
	sub := s.create("Addr1", "a@x.com")
	for _, status := range []models.DeliveryStatus{models.DeliverySuccess, models.DeliveryFail} {
		s.Require().NoError(s.log.Append(s.ctx, models.DeliveryRecord{
			ID:           id.NewDeliveryID(),
			Status:       status,
			CreatedAt:    time.Now().UTC(),
			Subscription: sub,
		}))
	}

	var n int
	s.Require().NoError(s.pg.DB.QueryRowContext(s.ctx,
		`SELECT count(*) FROM sent_alerts WHERE alert_id = $1`, sub.ID.String()).Scan(&n))
	s.Equal(2, n)
}

func (s *PostgresStoreSuite) TestAggregateUpsert() {
	cfg, err := s.aggregate.Aggregate(s.ctx)
	s.Require().NoError(err)
	s.Zero(cfg.SystemAlertCount)

	s.Require().NoError(s.aggregate.SetSubscriptionCount(s.ctx, 5))
	s.Require().NoError(s.aggregate.SetSubscriptionCount(s.ctx, 4))

	cfg, err = s.aggregate.Aggregate(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(4, cfg.SystemAlertCount)
	s.False(cfg.UpdatedAt.IsZero())
}

func (s *PostgresStoreSuite) TestTriggerFeedsOutbox() {
	sub := s.create("Addr1", "a@x.com")
	s.Require().NoError(s.subs.LinkRegistry(s.ctx, sub.ID, "wh-1"))
	s.Require().NoError(s.subs.Delete(s.ctx, sub.ID))

	events, err := s.outbox.Claim(s.ctx, 10, time.Minute)
	s.Require().NoError(err)
	s.Require().Len(events, 1, "deletion is held behind the pending creation")
	s.Equal(models.SubscriptionCreated, events[0].Type)
	s.Equal(sub.ID, events[0].Subscription.ID)
	s.Equal("Addr1", events[0].Subscription.WalletAddress)

	again, err := s.outbox.Claim(s.ctx, 10, time.Minute)
	s.Require().NoError(err)
	s.Empty(again)

	s.Require().NoError(s.outbox.MarkFailed(s.ctx, events[0].ID, "registry down", false))
	retry, err := s.outbox.Claim(s.ctx, 10, time.Minute)
	s.Require().NoError(err)
	s.Require().Len(retry, 1)
	s.Equal(models.SubscriptionCreated, retry[0].Type)
	s.Equal(1, retry[0].Attempts)

	s.Require().NoError(s.outbox.MarkDone(s.ctx, []int64{retry[0].ID}))
	deleted, err := s.outbox.Claim(s.ctx, 10, time.Minute)
	s.Require().NoError(err)
	s.Require().Len(deleted, 1)
	s.Equal(models.SubscriptionDeleted, deleted[0].Type)
	s.Equal("wh-1", deleted[0].Subscription.RegistryListID)

	s.Require().NoError(s.outbox.MarkFailed(s.ctx, deleted[0].ID, "registry down", true))
	s.ErrorIs(s.outbox.MarkFailed(s.ctx, 1_000_000, "x", false), sentinel.ErrNotFound)

	var pending int
	s.Require().NoError(s.pg.DB.QueryRowContext(s.ctx,
		`SELECT count(*) FROM alert_events WHERE processed_at IS NULL AND NOT dead`).Scan(&pending))
	s.Zero(pending)
}

func (s *PostgresStoreSuite) TestCreateJoinsContextTransaction() {
	tx, err := s.pg.DB.BeginTx(s.ctx, nil)
	s.Require().NoError(err)
	ctx := txcontext.WithTx(s.ctx, tx)

	sub := models.Subscription{WalletAddress: "Addr9", Email: "z@x.com"}
	s.Require().NoError(s.subs.Create(ctx, &sub))
	s.Require().NoError(tx.Rollback())

	_, err = s.subs.Get(s.ctx, sub.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
