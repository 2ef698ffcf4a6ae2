package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "solsignal/pkg/domain-errors"
)

// TestParseSubscriptionID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseSubscriptionID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseSubscriptionID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseSubscriptionID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseSubscriptionID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseSubscriptionID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, SubscriptionID(valid), id)
		assert.Equal(t, valid.String(), id.String())
	})
}

func TestParseID_BoundaryInputs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE alerts;--", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"URN form", "urn:uuid:550e8400-e29b-41d4-a716-446655440000", true},
		{"Braced form", "{550e8400-e29b-41d4-a716-446655440000}", true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errSub := ParseSubscriptionID(tt.input)
			_, errDelivery := ParseDeliveryID(tt.input)
			if tt.wantErr {
				require.Error(t, errSub)
				require.Error(t, errDelivery)
				assert.True(t, dErrors.HasCode(errSub, dErrors.CodeValidation))
				return
			}
			require.NoError(t, errSub)
			require.NoError(t, errDelivery)
		})
	}
}

func TestNewIDs_AreNotNil(t *testing.T) {
	assert.False(t, NewSubscriptionID().IsNil())
	assert.False(t, NewDeliveryID().IsNil())
	assert.True(t, SubscriptionID{}.IsNil())
}

func TestSubscriptionID_JSON(t *testing.T) {
	original := NewSubscriptionID()

	raw, err := json.Marshal(struct {
		ID SubscriptionID `json:"id"`
	}{original})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+original.String()+`"}`, string(raw))

	var decoded struct {
		ID SubscriptionID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, original, decoded.ID)

	err = json.Unmarshal([]byte(`{"id":"not-a-uuid"}`), &decoded)
	require.Error(t, err)
}
