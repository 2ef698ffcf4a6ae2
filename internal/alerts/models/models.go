// Package models holds the alert domain types shared by the dispatcher, the
// registry synchronizer and their stores.
package models

import (
	"encoding/json"
	"time"

	id "solsignal/pkg/domain"
)

// Subscription is a user's request to be notified about one wallet address.
// WalletAddress is matched exactly; RegistryListID stays empty until the
// synchronizer has registered the address.
type Subscription struct {
	ID             id.SubscriptionID `json:"id"`
	WalletAddress  string            `json:"walletAddress"`
	Email          string            `json:"email"`
	UserID         string            `json:"userId,omitempty"`
	RegistryListID string            `json:"webhookID,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

// ActivityEvent is one on-chain occurrence touching one address.
type ActivityEvent struct {
	Address     string          `json:"address"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// DeliveryStatus is the outcome of one notification attempt.
type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFail    DeliveryStatus = "fail"
)

// DeliveryRecord is the append-only audit entry for one (event, subscription)
// attempt. Subscription is a copy taken at send time.
type DeliveryRecord struct {
	ID           id.DeliveryID  `json:"id"`
	Status       DeliveryStatus `json:"status"`
	CreatedAt    time.Time      `json:"createdAt"`
	Subscription Subscription   `json:"alert"`
}

// AggregateConfig is the single system-wide configuration document.
type AggregateConfig struct {
	SystemAlertCount int64     `json:"systemAlertCount"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// DispatchSummary counts outcomes of one dispatch call.
type DispatchSummary struct {
	SuccessCount int `json:"successCount"`
	FailCount    int `json:"failCount"`
}

// Total is the number of delivery attempts made.
func (s DispatchSummary) Total() int {
	return s.SuccessCount + s.FailCount
}

// TemplatedMessage is one outbound notification: a destination, a template
// identifier and the model rendered into it.
type TemplatedMessage struct {
	To            string
	TemplateAlias string
	Model         TemplateModel
}

// TemplateModel carries the values rendered into the alert template.
type TemplateModel struct {
	ShortenedWalletAddress string `json:"shortenedWalletAddress"`
	WalletAddress          string `json:"walletAddress"`
	TxDescription          string `json:"txDescription"`
	AlertURL               string `json:"alertUrl"`
	LoginURL               string `json:"loginUrl"`
	Email                  string `json:"email"`
	SupportEmail           string `json:"supportEmail"`
}
