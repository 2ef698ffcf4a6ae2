package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"solsignal/internal/alerts/format"
	"solsignal/internal/alerts/models"
	"solsignal/internal/alerts/ports/mocks"
	"solsignal/internal/alerts/store"
	"solsignal/internal/fanout"
	"solsignal/internal/platform/config"
	dErrors "solsignal/pkg/domain-errors"
	"solsignal/pkg/testutil"
)

const (
	hookSecret = "hook-secret"
	walletA    = "WalletAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	walletB    = "WalletBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"
)

type IngressSuite struct {
	suite.Suite
	transport  *mocks.MockTransport
	subs       *store.MemorySubscriptionStore
	deliveries *store.MemoryDeliveryLog
	aggregate  *store.MemoryAggregateStore
	secrets    config.Secrets
	router     chi.Router
}

func TestIngressSuite(t *testing.T) {
	suite.Run(t, new(IngressSuite))
}

func (s *IngressSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.transport = mocks.NewMockTransport(ctrl)
	s.subs = store.NewMemorySubscriptionStore()
	s.deliveries = store.NewMemoryDeliveryLog()
	s.aggregate = store.NewMemoryAggregateStore()
	s.secrets = config.Secrets{HeliusAuthHeader: hookSecret, PostmarkAPIKey: "pm-key"}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher, err := fanout.New(s.subs, s.transport, s.deliveries, format.Links{BaseURL: "https://solsignal.xyz"},
		fanout.WithLogger(logger))
	s.Require().NoError(err)

	h := New(dispatcher, s.aggregate, "Authorization", func() (string, error) {
		return s.secrets.IngressSecret()
	}, logger)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *IngressSuite) post(body, secret string) *http.Request {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/transactionupdate", body)
	if secret != "" {
		req.Header.Set("Authorization", secret)
	}
	return req
}

func (s *IngressSuite) subscribe(address, email string) {
	sub := models.Subscription{WalletAddress: address, Email: email}
	s.Require().NoError(s.subs.Create(context.Background(), &sub))
}

// =============================================================================
// Request gating
// =============================================================================

func (s *IngressSuite) TestWrongMethod() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/transactionupdate"))

	s.Equal(http.StatusMethodNotAllowed, rr.Code)
	s.Equal("Method GET not allowed", rr.Body.String())
}

func (s *IngressSuite) TestMissingSecretConfiguration() {
	s.subscribe(walletA, "a@x.com")
	s.secrets.PostmarkAPIKey = ""

	rr := testutil.DoRequest(s.router, s.post(`[{"accountData":[{"account":"`+walletA+`"}],"description":"x"}]`, hookSecret))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, string(dErrors.CodeConfiguration))
	s.Empty(s.deliveries.Records())
}

func (s *IngressSuite) TestWrongSecret() {
	s.subscribe(walletA, "a@x.com")

	rr := testutil.DoRequest(s.router, s.post(`[{"accountData":[{"account":"`+walletA+`"}],"description":"x"}]`, "nope"))

	s.Equal(http.StatusUnauthorized, rr.Code)
	s.Equal("Unauthorized", rr.Body.String())
	s.Empty(s.deliveries.Records())
}

func (s *IngressSuite) TestMissingSecretHeader() {
	rr := testutil.DoRequest(s.router, s.post(`[]`, ""))
	s.Equal(http.StatusUnauthorized, rr.Code)
}

// =============================================================================
// Body validation
// =============================================================================

func (s *IngressSuite) TestMalformedBodies() {
	s.subscribe(walletA, "a@x.com")

	bad := string(dErrors.CodeBadRequest)
	invalid := string(dErrors.CodeValidation)
	cases := []struct {
		name        string
		body        string
		code        string
		description string
	}{
		{"not json", `{`, bad, "body must be a JSON array"},
		{"object not array", `{"accountData":[]}`, bad, "body must be a JSON array"},
		{"missing accountData", `[{"description":"x"}]`, invalid, "element 0: accountData is required"},
		{"missing description", `[{"accountData":[{"account":"` + walletA + `"}]}]`, invalid, "element 0: description is required"},
		{"empty account", `[{"accountData":[{"account":""}],"description":"x"}]`, invalid, "element 0: accountData[0].account is required"},
		{"element not object", `[42]`, bad, "element 0 is not a transaction update"},
		{"later element broken", `[{"accountData":[{"account":"` + walletA + `"}],"description":"x"},{"description":"y"}]`, invalid, "element 1: accountData is required"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			rr := testutil.DoRequest(s.router, s.post(tc.body, hookSecret))
			body := testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, tc.code)
			s.Equal(tc.description, body.ErrorDescription)
		})
	}
	s.Empty(s.deliveries.Records())
}

func (s *IngressSuite) TestBodyTooLarge() {
	body := `[{"accountData":[],"description":"` + strings.Repeat("x", maxBodyBytes) + `"}]`
	rr := testutil.DoRequest(s.router, s.post(body, hookSecret))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
}

// =============================================================================
// Dispatch
// =============================================================================

func (s *IngressSuite) TestDispatchesEveryAccountOfEveryElement() {
	s.subscribe(walletA, "a@x.com")
	s.subscribe(walletB, "b@x.com")

	var (
		mu   sync.Mutex
		sent []models.TemplatedMessage
	)
	s.transport.EXPECT().SendTemplated(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msg models.TemplatedMessage) error {
			mu.Lock()
			defer mu.Unlock()
			sent = append(sent, msg)
			return nil
		}).Times(2)

	body := `[{"accountData":[{"account":"` + walletA + `"}],"description":"first"},` +
		`{"accountData":[{"account":"` + walletB + `"}],"description":"second"}]`
	rr := testutil.DoRequest(s.router, s.post(body, hookSecret))

	s.Equal(http.StatusOK, rr.Code)
	s.Equal("OK", rr.Body.String())
	s.Len(s.deliveries.Records(), 2)

	descriptions := map[string]string{}
	for _, msg := range sent {
		descriptions[msg.To] = msg.Model.TxDescription
	}
	s.Equal(map[string]string{"a@x.com": "first", "b@x.com": "second"}, descriptions)
}

func (s *IngressSuite) TestEmptyArrayIsAccepted() {
	rr := testutil.DoRequest(s.router, s.post(`[]`, hookSecret))
	s.Equal(http.StatusOK, rr.Code)
	s.Empty(s.deliveries.Records())
}

func (s *IngressSuite) TestDeliveryFailureStillReturnsOK() {
	s.subscribe(walletA, "a@x.com")
	s.transport.EXPECT().SendTemplated(gomock.Any(), gomock.Any()).Return(errors.New("smtp down"))

	rr := testutil.DoRequest(s.router, s.post(`[{"accountData":[{"account":"`+walletA+`"}],"description":"x"}]`, hookSecret))

	s.Equal(http.StatusOK, rr.Code)
	records := s.deliveries.Records()
	s.Require().Len(records, 1)
	s.Equal(models.DeliveryFail, records[0].Status)
}

// =============================================================================
// Stats
// =============================================================================

type failingStats struct{}

func (failingStats) Aggregate(context.Context) (models.AggregateConfig, error) {
	return models.AggregateConfig{}, errors.New("redis down")
}

func TestHandleStats(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	noSecret := func() (string, error) { return "", nil }

	testutil.Given(t, "an aggregate document", func(t *testing.T) {
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		agg := store.NewMemoryAggregateStore(store.WithClock(func() time.Time { return now }))
		require.NoError(t, agg.SetSubscriptionCount(context.Background(), 7))

		r := chi.NewRouter()
		New(nil, agg, "Authorization", noSecret, logger).Register(r)

		testutil.When(t, "GET /stats", func(t *testing.T) {
			rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/stats"))

			testutil.Then(t, "the document is returned", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				got := testutil.UnmarshalResponse[models.AggregateConfig](t, rr)
				assert.Equal(t, int64(7), got.SystemAlertCount)
				assert.True(t, now.Equal(got.UpdatedAt))
			})
		})
	})

	testutil.Given(t, "an unavailable aggregate store", func(t *testing.T) {
		r := chi.NewRouter()
		New(nil, failingStats{}, "Authorization", noSecret, logger).Register(r)

		rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/stats"))
		testutil.Then(t, "503 is returned", func(t *testing.T) {
			testutil.AssertStatusAndError(t, rr, http.StatusServiceUnavailable, string(dErrors.CodeUnavailable))
		})
	})
}
