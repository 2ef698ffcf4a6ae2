// Package helius maintains the account address list of a Helius webhook,
// the activity feed that calls the transaction update ingress.
package helius

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"solsignal/internal/providers"
	dErrors "solsignal/pkg/domain-errors"
	"solsignal/pkg/platform/strings"
)

const (
	providerID     = "helius"
	defaultBaseURL = "https://api.helius.xyz"
	defaultTimeout = 15 * time.Second
	maxBody        = 1 << 20
)

// Client implements ports.Registry by editing webhook account addresses.
// Edits are read-modify-write on the whole list, so concurrent calls through
// one Client are serialized.
type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client

	mu sync.Mutex
}

// NewClient returns a client for the given API key and optional base URL.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Webhook is the subset of the Helius webhook resource this client edits.
// Fields it does not touch round-trip unchanged.
type Webhook struct {
	WebhookID        string   `json:"webhookID,omitempty"`
	Wallet           string   `json:"wallet,omitempty"`
	WebhookURL       string   `json:"webhookURL"`
	TransactionTypes []string `json:"transactionTypes"`
	AccountAddresses []string `json:"accountAddresses"`
	WebhookType      string   `json:"webhookType"`
	AuthHeader       string   `json:"authHeader,omitempty"`
	TxnStatus        string   `json:"txnStatus,omitempty"`
	Encoding         string   `json:"encoding,omitempty"`
}

type editRequest struct {
	WebhookURL       string   `json:"webhookURL"`
	TransactionTypes []string `json:"transactionTypes"`
	AccountAddresses []string `json:"accountAddresses"`
	WebhookType      string   `json:"webhookType"`
	AuthHeader       string   `json:"authHeader,omitempty"`
	TxnStatus        string   `json:"txnStatus,omitempty"`
	Encoding         string   `json:"encoding,omitempty"`
}

// AddAddresses appends addresses to the webhook list, skipping ones already present.
func (c *Client) AddAddresses(ctx context.Context, listID string, addresses []string) error {
	return c.edit(ctx, listID, func(current []string) []string {
		return strings.Dedupe(append(slices.Clone(current), addresses...))
	})
}

// RemoveAddresses removes every exact occurrence of addresses from the list.
func (c *Client) RemoveAddresses(ctx context.Context, listID string, addresses []string) error {
	return c.edit(ctx, listID, func(current []string) []string {
		return strings.Without(current, addresses)
	})
}

func (c *Client) edit(ctx context.Context, listID string, change func([]string) []string) error {
	if c.APIKey == "" {
		return dErrors.New(dErrors.CodeConfiguration, "helius: API key not configured")
	}
	if listID == "" {
		return dErrors.New(dErrors.CodeConfiguration, "helius: webhook id not configured")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	hook, err := c.Get(ctx, listID)
	if err != nil {
		return err
	}
	updated := change(hook.AccountAddresses)
	if slices.Equal(updated, hook.AccountAddresses) {
		return nil
	}
	if updated == nil {
		updated = []string{}
	}

	body, err := json.Marshal(editRequest{
		WebhookURL:       hook.WebhookURL,
		TransactionTypes: hook.TransactionTypes,
		AccountAddresses: updated,
		WebhookType:      hook.WebhookType,
		AuthHeader:       hook.AuthHeader,
		TxnStatus:        hook.TxnStatus,
		Encoding:         hook.Encoding,
	})
	if err != nil {
		return providers.NewProviderError(providers.ErrorInternal, providerID, "encode webhook", err)
	}
	_, err = c.do(ctx, http.MethodPut, listID, body)
	return err
}

// Get fetches the webhook resource.
func (c *Client) Get(ctx context.Context, listID string) (*Webhook, error) {
	raw, err := c.do(ctx, http.MethodGet, listID, nil)
	if err != nil {
		return nil, err
	}
	var hook Webhook
	if err := json.Unmarshal(raw, &hook); err != nil {
		return nil, providers.NewProviderError(providers.ErrorBadData, providerID, "decode webhook", err)
	}
	return &hook, nil
}

func (c *Client) do(ctx context.Context, method, listID string, body []byte) ([]byte, error) {
	endpoint := c.BaseURL + "/v0/webhooks/" + url.PathEscape(listID) + "?api-key=" + url.QueryEscape(c.APIKey)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, providers.NewProviderError(providers.ErrorInternal, providerID, "build request", redact(err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, providers.FromTransport(providerID, redact(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, providers.FromTransport(providerID, redact(err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, providers.FromStatus(providerID, resp.StatusCode, raw)
	}
	return raw, nil
}

// redact strips the query string (which carries the API key) from URL errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if u, parseErr := url.Parse(urlErr.URL); parseErr == nil {
			u.RawQuery = ""
			urlErr.URL = u.String()
		} else {
			urlErr.URL = "[redacted]"
		}
	}
	return err
}
