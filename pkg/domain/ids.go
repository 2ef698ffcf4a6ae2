// Package domain holds typed identifiers shared across packages.
//
// IDs are UUIDs underneath but distinct types so a DeliveryID can never be
// passed where a SubscriptionID is expected.
package domain

import (
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "solsignal/pkg/domain-errors"
)

// SubscriptionID identifies an alert subscription record.
type SubscriptionID uuid.UUID

// DeliveryID identifies an append-only delivery record.
type DeliveryID uuid.UUID

// NewSubscriptionID returns a fresh random SubscriptionID.
func NewSubscriptionID() SubscriptionID { return SubscriptionID(uuid.New()) }

// NewDeliveryID returns a fresh random DeliveryID.
func NewDeliveryID() DeliveryID { return DeliveryID(uuid.New()) }

func (id SubscriptionID) String() string { return uuid.UUID(id).String() }
func (id SubscriptionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id DeliveryID) String() string { return uuid.UUID(id).String() }
func (id DeliveryID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// ParseSubscriptionID parses a canonical, non-nil UUID string.
func ParseSubscriptionID(s string) (SubscriptionID, error) {
	u, err := parseUUID(s, "subscription_id")
	return SubscriptionID(u), err
}

// ParseDeliveryID parses a canonical, non-nil UUID string.
func ParseDeliveryID(s string) (DeliveryID, error) {
	u, err := parseUUID(s, "delivery_id")
	return DeliveryID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	if len(s) != 36 || !utf8.ValidString(s) {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, field+" must be a canonical UUID")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeValidation, field+" must be a canonical UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, field+" must not be the nil UUID")
	}
	return u, nil
}

// MarshalText renders the canonical UUID form so IDs encode as JSON strings.
func (id SubscriptionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

// UnmarshalText accepts any form uuid.Parse accepts, including the nil UUID
// (absent optional fields decode to it).
func (id *SubscriptionID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "subscription_id must be a UUID")
	}
	*id = SubscriptionID(u)
	return nil
}

func (id DeliveryID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *DeliveryID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "delivery_id must be a UUID")
	}
	*id = DeliveryID(u)
	return nil
}
