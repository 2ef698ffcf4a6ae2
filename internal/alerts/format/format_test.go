package format

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"solsignal/internal/alerts/models"
	id "solsignal/pkg/domain"
)

func TestShorten(t *testing.T) {
	tests := []struct {
		name     string
		address  string
		expected string
	}{
		{"solana address", "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", "7xKX...gAsU"},
		{"exactly twelve runes", "ABCDEFGHIJKL", "ABCD...IJKL"},
		{"eleven runes unchanged", "ABCDEFGHIJK", "ABCDEFGHIJK"},
		{"short unchanged", "Addr1", "Addr1"},
		{"empty", "", ""},
		{"multibyte runes", "ααααβββββγγγγ", "αααα...γγγγ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Shorten(tt.address))
		})
	}
}

func TestShortenIsDeterministic(t *testing.T) {
	addr := "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	assert.Equal(t, Shorten(addr), Shorten(addr))
}

func TestMessage(t *testing.T) {
	links := Links{
		BaseURL:       "https://solsignal.xyz/",
		SupportEmail:  "support@solsignal.xyz",
		TemplateAlias: "solsignal-transaction-alert",
	}
	sub := models.Subscription{ID: id.NewSubscriptionID(), WalletAddress: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", Email: "a@x.com"}
	event := models.ActivityEvent{Address: sub.WalletAddress, Description: "Transfer 1 SOL"}

	msg := links.Message(event, sub)

	assert.Equal(t, "a@x.com", msg.To)
	assert.Equal(t, "solsignal-transaction-alert", msg.TemplateAlias)
	assert.Equal(t, models.TemplateModel{
		ShortenedWalletAddress: "7xKX...gAsU",
		WalletAddress:          sub.WalletAddress,
		TxDescription:          "Transfer 1 SOL",
		AlertURL:               "https://solsignal.xyz/alerts/" + sub.ID.String(),
		LoginURL:               "https://solsignal.xyz/login",
		Email:                  "a@x.com",
		SupportEmail:           "support@solsignal.xyz",
	}, msg.Model)
}
