package registrysync

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"solsignal/internal/alerts/models"
	"solsignal/internal/alerts/ports/mocks"
	"solsignal/internal/alerts/store"
	"solsignal/internal/providers"
	"solsignal/internal/registrysync/metrics"
	dErrors "solsignal/pkg/domain-errors"
)

const (
	listID = "webhook-1"
	addr1  = "Addr1111111111111111111111111111111111111111"
	addr2  = "Addr2222222222222222222222222222222222222222"
)

type SyncSuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	subs      *store.MemorySubscriptionStore
	aggregate *store.MemoryAggregateStore
	registry  *mocks.MockRegistry
	metrics   *metrics.Metrics
	service   *Service
}

func TestSyncSuite(t *testing.T) {
	suite.Run(t, new(SyncSuite))
}

func (s *SyncSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.subs = store.NewMemorySubscriptionStore()
	s.aggregate = store.NewMemoryAggregateStore()
	s.registry = mocks.NewMockRegistry(s.ctrl)
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())

	svc, err := New(s.subs, s.registry, s.aggregate, listID, WithMetrics(s.metrics))
	s.Require().NoError(err)
	s.service = svc
}

func (s *SyncSuite) create(address, email string) models.Subscription {
	sub := models.Subscription{WalletAddress: address, Email: email}
	s.Require().NoError(s.subs.Create(s.ctx, &sub))
	return sub
}

func (s *SyncSuite) liveCount() int64 {
	n, err := s.subs.Count(s.ctx)
	s.Require().NoError(err)
	return n
}

func (s *SyncSuite) aggregateCount() int64 {
	agg, err := s.aggregate.Aggregate(s.ctx)
	s.Require().NoError(err)
	return agg.SystemAlertCount
}

// =============================================================================
// Created
// =============================================================================

func (s *SyncSuite) TestCreatedRegistersCountsAndLinks() {
	for range 5 {
		s.create(addr1, "x@x.com")
	}
	sub := s.create(addr2, "new@x.com")

	s.registry.EXPECT().AddAddresses(gomock.Any(), listID, []string{addr2}).Return(nil)

	s.Require().NoError(s.service.OnSubscriptionCreated(s.ctx, sub))

	s.Equal(s.liveCount(), s.aggregateCount())
	stored, err := s.subs.Get(s.ctx, sub.ID)
	s.Require().NoError(err)
	s.Equal(listID, stored.RegistryListID)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.RegistryOps.WithLabelValues(metrics.OpAdd, metrics.ResultOK)))
	s.Equal(float64(s.liveCount()), promtest.ToFloat64(s.metrics.SubscriptionCount))
}

func (s *SyncSuite) TestCreatedRegistryFailureStopsBeforeLinking() {
	sub := s.create(addr1, "a@x.com")
	cause := providers.NewProviderError(providers.ErrorProviderOutage, "helius", "503", nil)
	s.registry.EXPECT().AddAddresses(gomock.Any(), listID, []string{addr1}).Return(cause)

	err := s.service.OnSubscriptionCreated(s.ctx, sub)

	s.Require().Error(err)
	s.ErrorIs(err, ErrRegistryLink)
	var perr *providers.ProviderError
	s.Require().ErrorAs(err, &perr)
	s.Equal(providers.ErrorProviderOutage, perr.Category)

	stored, getErr := s.subs.Get(s.ctx, sub.ID)
	s.Require().NoError(getErr)
	s.Empty(stored.RegistryListID)
	s.Zero(s.aggregateCount())
	s.Equal(1.0, promtest.ToFloat64(s.metrics.RegistryOps.WithLabelValues(metrics.OpAdd, metrics.ResultError)))
}

func (s *SyncSuite) TestCreatedForVanishedSubscriptionIsNotAnError() {
	sub := s.create(addr1, "a@x.com")
	s.Require().NoError(s.subs.Delete(s.ctx, sub.ID))
	s.registry.EXPECT().AddAddresses(gomock.Any(), listID, gomock.Any()).Return(nil)

	s.Require().NoError(s.service.OnSubscriptionCreated(s.ctx, sub))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.LinkMisses))
	s.Zero(s.aggregateCount())
}

func (s *SyncSuite) TestCreatedAggregateWriteFailure() {
	aggregate := mocks.NewMockAggregateStore(s.ctrl)
	svc, err := New(s.subs, s.registry, aggregate, listID)
	s.Require().NoError(err)
	sub := s.create(addr1, "a@x.com")

	s.registry.EXPECT().AddAddresses(gomock.Any(), listID, gomock.Any()).Return(nil)
	aggregate.EXPECT().SetSubscriptionCount(gomock.Any(), int64(1)).Return(errors.New("write failed"))

	err = svc.OnSubscriptionCreated(s.ctx, sub)
	s.Require().Error(err)
	s.NotErrorIs(err, ErrRegistryLink)
}

// =============================================================================
// Deleted
// =============================================================================

func (s *SyncSuite) TestDeletedLastSubscriptionRemovesAddress() {
	sub := s.create(addr1, "a@x.com")
	sub.RegistryListID = listID
	s.create(addr2, "b@x.com")
	s.Require().NoError(s.subs.Delete(s.ctx, sub.ID))

	s.registry.EXPECT().RemoveAddresses(gomock.Any(), listID, []string{addr1}).Return(nil)

	s.Require().NoError(s.service.OnSubscriptionDeleted(s.ctx, sub))
	s.Equal(s.liveCount(), s.aggregateCount())
	s.Equal(int64(1), s.aggregateCount())
}

func (s *SyncSuite) TestDeletedWithSiblingKeepsAddress() {
	sub := s.create(addr1, "a@x.com")
	s.create(addr1, "b@x.com")
	s.Require().NoError(s.subs.Delete(s.ctx, sub.ID))

	// no RemoveAddresses expectation: the mock fails the test if it is called
	s.Require().NoError(s.service.OnSubscriptionDeleted(s.ctx, sub))
	s.Equal(int64(1), s.aggregateCount())
	s.Equal(1.0, promtest.ToFloat64(s.metrics.SkippedRemovals))
}

func (s *SyncSuite) TestDeletedUsesRecordedList() {
	sub := s.create(addr1, "a@x.com")
	sub.RegistryListID = "older-list"
	s.Require().NoError(s.subs.Delete(s.ctx, sub.ID))

	s.registry.EXPECT().RemoveAddresses(gomock.Any(), "older-list", []string{addr1}).Return(nil)
	s.Require().NoError(s.service.OnSubscriptionDeleted(s.ctx, sub))
}

func (s *SyncSuite) TestDeletedRegistryFailure() {
	sub := s.create(addr1, "a@x.com")
	s.Require().NoError(s.subs.Delete(s.ctx, sub.ID))
	s.registry.EXPECT().RemoveAddresses(gomock.Any(), listID, gomock.Any()).Return(errors.New("boom"))

	err := s.service.OnSubscriptionDeleted(s.ctx, sub)
	s.ErrorIs(err, ErrRegistryLink)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.RegistryOps.WithLabelValues(metrics.OpRemove, metrics.ResultError)))
}

// =============================================================================
// Handle and configuration
// =============================================================================

func (s *SyncSuite) TestHandleRoutesByType() {
	sub := s.create(addr1, "a@x.com")
	s.registry.EXPECT().AddAddresses(gomock.Any(), listID, gomock.Any()).Return(nil)
	s.Require().NoError(s.service.Handle(s.ctx, models.LifecycleEvent{Type: models.SubscriptionCreated, Subscription: sub}))

	s.Require().NoError(s.subs.Delete(s.ctx, sub.ID))
	s.registry.EXPECT().RemoveAddresses(gomock.Any(), listID, gomock.Any()).Return(nil)
	s.Require().NoError(s.service.Handle(s.ctx, models.LifecycleEvent{Type: models.SubscriptionDeleted, Subscription: sub}))

	err := s.service.Handle(s.ctx, models.LifecycleEvent{Type: "updated", Subscription: sub})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestMissingConfigurationAbortsBeforeRegistryCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockRegistry(ctrl)
	subs := store.NewMemorySubscriptionStore()
	aggregate := store.NewMemoryAggregateStore()
	sub := models.Subscription{WalletAddress: addr1, Email: "a@x.com"}
	require.NoError(t, subs.Create(context.Background(), &sub))

	t.Run("secret", func(t *testing.T) {
		svc, err := New(subs, registry, aggregate, listID, WithSecretCheck(func() error {
			return dErrors.New(dErrors.CodeConfiguration, "HELIUS_API_KEY is not set")
		}))
		require.NoError(t, err)

		err = svc.OnSubscriptionCreated(context.Background(), sub)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	t.Run("list id", func(t *testing.T) {
		svc, err := New(subs, registry, aggregate, "")
		require.NoError(t, err)

		err = svc.OnSubscriptionDeleted(context.Background(), sub)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	})
}

func TestRecountRunsInTransactor(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockRegistry(ctrl)
	subs := store.NewMemorySubscriptionStore()
	aggregate := store.NewMemoryAggregateStore()
	sub := models.Subscription{WalletAddress: addr1, Email: "a@x.com"}
	require.NoError(t, subs.Create(context.Background(), &sub))

	units := 0
	svc, err := New(subs, registry, aggregate, listID, WithTransactor(func(ctx context.Context, fn func(context.Context) error) error {
		units++
		return fn(ctx)
	}))
	require.NoError(t, err)

	registry.EXPECT().AddAddresses(gomock.Any(), listID, gomock.Any()).Return(nil)
	require.NoError(t, svc.OnSubscriptionCreated(context.Background(), sub))
	assert.Equal(t, 1, units)

	agg, err := aggregate.Aggregate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg.SystemAlertCount)
}
