// Package providers holds the failure taxonomy shared by the outbound
// provider adapters (notification transport and activity-feed registry).
package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorCategory defines the normalized failure taxonomy
type ErrorCategory string

const (
	// ErrorTimeout indicates the provider took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the request or response payload was rejected or malformed
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorAuthentication indicates credential or permission issues
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorProviderOutage indicates the provider is unavailable
	ErrorProviderOutage ErrorCategory = "provider_outage"

	// ErrorContractMismatch indicates an unexpected response shape or status
	ErrorContractMismatch ErrorCategory = "contract_mismatch"

	// ErrorNotFound indicates the addressed resource doesn't exist
	ErrorNotFound ErrorCategory = "not_found"

	// ErrorRateLimited indicates too many requests
	ErrorRateLimited ErrorCategory = "rate_limited"

	ErrorInternal ErrorCategory = "internal"
)

// ProviderError wraps provider failures with normalized categorization
type ProviderError struct {
	Category   ErrorCategory
	ProviderID string
	Message    string
	StatusCode int
	Underlying error
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.ProviderID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.ProviderID, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// NewProviderError creates a new normalized provider error
func NewProviderError(category ErrorCategory, providerID, message string, underlying error) *ProviderError {
	retryable := category == ErrorTimeout ||
		category == ErrorProviderOutage ||
		category == ErrorRateLimited

	return &ProviderError{
		Category:   category,
		ProviderID: providerID,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// FromStatus categorizes a non-success HTTP status. body is included in the
// message, truncated.
func FromStatus(providerID string, status int, body []byte) *ProviderError {
	var category ErrorCategory
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		category = ErrorAuthentication
	case status == http.StatusNotFound:
		category = ErrorNotFound
	case status == http.StatusTooManyRequests:
		category = ErrorRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		category = ErrorTimeout
	case status >= 500:
		category = ErrorProviderOutage
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		category = ErrorBadData
	default:
		category = ErrorContractMismatch
	}
	const maxBody = 512
	if len(body) > maxBody {
		body = body[:maxBody]
	}
	pe := NewProviderError(category, providerID, fmt.Sprintf("status %d: %s", status, body), nil)
	pe.StatusCode = status
	return pe
}

// FromTransport categorizes an error returned by the HTTP client itself.
func FromTransport(providerID string, err error) *ProviderError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewProviderError(ErrorTimeout, providerID, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewProviderError(ErrorInternal, providerID, "request canceled", err)
	}
	return NewProviderError(ErrorProviderOutage, providerID, "request failed", err)
}

// IsRetryable checks if an error is worth retrying
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error
func GetCategory(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}
