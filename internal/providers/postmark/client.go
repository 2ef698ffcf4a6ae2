// Package postmark sends templated alert emails through the Postmark API.
package postmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"solsignal/internal/alerts/models"
	"solsignal/internal/providers"
	dErrors "solsignal/pkg/domain-errors"
)

const (
	providerID     = "postmark"
	defaultBaseURL = "https://api.postmarkapp.com"
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
)

// Postmark error codes for recipients that can never be delivered to.
const (
	errorCodeInvalidEmail    = 300
	errorCodeInactiveAddress = 406
)

// Client implements ports.Transport against POST /email/withTemplate.
type Client struct {
	APIKey        string
	BaseURL       string
	From          string
	MessageStream string
	HTTPClient    *http.Client
}

// NewClient returns a client for the given server token and optional base URL.
func NewClient(apiKey, baseURL, from, messageStream string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		APIKey:        apiKey,
		BaseURL:       baseURL,
		From:          from,
		MessageStream: messageStream,
		HTTPClient:    &http.Client{Timeout: defaultTimeout},
	}
}

type templateRequest struct {
	From          string               `json:"From"`
	To            string               `json:"To"`
	TemplateAlias string               `json:"TemplateAlias"`
	TemplateModel models.TemplateModel `json:"TemplateModel"`
	MessageStream string               `json:"MessageStream,omitempty"`
}

type apiResponse struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID"`
}

// SendTemplated sends one templated email. A missing server token is a
// dErrors.CodeConfiguration error; every other failure is a
// *providers.ProviderError.
func (c *Client) SendTemplated(ctx context.Context, msg models.TemplatedMessage) error {
	if c.APIKey == "" {
		return dErrors.New(dErrors.CodeConfiguration, "postmark: server token not configured")
	}
	if msg.To == "" {
		return providers.NewProviderError(providers.ErrorBadData, providerID, "recipient is empty", nil)
	}

	raw, err := json.Marshal(templateRequest{
		From:          c.From,
		To:            msg.To,
		TemplateAlias: msg.TemplateAlias,
		TemplateModel: msg.Model,
		MessageStream: c.MessageStream,
	})
	if err != nil {
		return providers.NewProviderError(providers.ErrorInternal, providerID, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/email/withTemplate", bytes.NewReader(raw))
	if err != nil {
		return providers.NewProviderError(providers.ErrorInternal, providerID, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return providers.FromTransport(providerID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return providers.FromTransport(providerID, err)
	}

	var decoded apiResponse
	decodeErr := json.Unmarshal(body, &decoded)

	if resp.StatusCode == http.StatusOK {
		if decodeErr != nil {
			return providers.NewProviderError(providers.ErrorBadData, providerID, "decode response", decodeErr)
		}
		if decoded.ErrorCode != 0 {
			return codeError(decoded)
		}
		return nil
	}

	if decodeErr == nil && decoded.ErrorCode != 0 && resp.StatusCode == http.StatusUnprocessableEntity {
		return codeError(decoded)
	}
	return providers.FromStatus(providerID, resp.StatusCode, body)
}

func codeError(resp apiResponse) *providers.ProviderError {
	category := providers.ErrorContractMismatch
	switch resp.ErrorCode {
	case errorCodeInvalidEmail, errorCodeInactiveAddress:
		category = providers.ErrorBadData
	case 10:
		category = providers.ErrorAuthentication
	}
	return providers.NewProviderError(category, providerID, fmt.Sprintf("error code %d: %s", resp.ErrorCode, resp.Message), nil)
}
