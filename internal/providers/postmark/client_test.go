package postmark

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solsignal/internal/alerts/models"
	"solsignal/internal/providers"
	dErrors "solsignal/pkg/domain-errors"
)

func testMessage() models.TemplatedMessage {
	return models.TemplatedMessage{
		To:            "a@x.com",
		TemplateAlias: "solsignal-transaction-alert",
		Model: models.TemplateModel{
			ShortenedWalletAddress: "7xKX...gAsU",
			WalletAddress:          "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
			TxDescription:          "Transfer 1 SOL",
			Email:                  "a@x.com",
		},
	}
}

func TestSendTemplated_Success(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/email/withTemplate", r.URL.Path)
		assert.Equal(t, "pm-token", r.Header.Get("X-Postmark-Server-Token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ErrorCode":0,"Message":"OK","MessageID":"m-1"}`))
	}))
	defer srv.Close()

	c := NewClient("pm-token", srv.URL, "info@solsignal.xyz", "alert-email-stream")
	require.NoError(t, c.SendTemplated(context.Background(), testMessage()))

	assert.Equal(t, "info@solsignal.xyz", got["From"])
	assert.Equal(t, "a@x.com", got["To"])
	assert.Equal(t, "solsignal-transaction-alert", got["TemplateAlias"])
	assert.Equal(t, "alert-email-stream", got["MessageStream"])
	model, ok := got["TemplateModel"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "7xKX...gAsU", model["shortenedWalletAddress"])
	assert.Equal(t, "Transfer 1 SOL", model["txDescription"])
}

func TestSendTemplated_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		category providers.ErrorCategory
	}{
		{"inactive recipient", http.StatusUnprocessableEntity, `{"ErrorCode":406,"Message":"inactive"}`, providers.ErrorBadData},
		{"invalid recipient", http.StatusUnprocessableEntity, `{"ErrorCode":300,"Message":"invalid"}`, providers.ErrorBadData},
		{"bad token", http.StatusUnauthorized, `{"ErrorCode":10,"Message":"bad token"}`, providers.ErrorAuthentication},
		{"outage", http.StatusServiceUnavailable, `down`, providers.ErrorProviderOutage},
		{"rate limited", http.StatusTooManyRequests, ``, providers.ErrorRateLimited},
		{"garbled success", http.StatusOK, `not json`, providers.ErrorBadData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient("pm-token", srv.URL, "info@solsignal.xyz", "")
			err := c.SendTemplated(context.Background(), testMessage())
			require.Error(t, err)
			assert.Equal(t, tt.category, providers.GetCategory(err))
		})
	}
}

func TestSendTemplated_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient("pm-token", srv.URL, "info@solsignal.xyz", "")
	c.HTTPClient.Timeout = 20 * time.Millisecond

	err := c.SendTemplated(context.Background(), testMessage())
	require.Error(t, err)
	assert.Equal(t, providers.ErrorTimeout, providers.GetCategory(err))
	assert.True(t, providers.IsRetryable(err))
}

func TestSendTemplated_RequiresToken(t *testing.T) {
	c := NewClient("", "", "info@solsignal.xyz", "")
	err := c.SendTemplated(context.Background(), testMessage())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
}

func TestSendTemplated_EmptyRecipient(t *testing.T) {
	c := NewClient("pm-token", "http://unused.invalid", "info@solsignal.xyz", "")
	msg := testMessage()
	msg.To = ""
	err := c.SendTemplated(context.Background(), msg)
	assert.Equal(t, providers.ErrorBadData, providers.GetCategory(err))
}
