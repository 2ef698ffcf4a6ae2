// Package format renders the human-facing pieces of an alert: the shortened
// address and the template model sent to the notification transport.
package format

import (
	"strings"
	"unicode/utf8"

	"solsignal/internal/alerts/models"
)

const (
	shortPrefix = 4
	shortSuffix = 4
	ellipsis    = "..."
)

// Shorten returns the display form of address: its first four and last four
// runes around "...". Addresses too short to gain anything are returned as is.
// The result is for display only and never used as a key.
func Shorten(address string) string {
	n := utf8.RuneCountInString(address)
	if n <= shortPrefix+shortSuffix+len(ellipsis) {
		return address
	}
	runes := []rune(address)
	return string(runes[:shortPrefix]) + ellipsis + string(runes[n-shortSuffix:])
}

// Links configures the URLs and contacts rendered into every alert.
type Links struct {
	BaseURL       string
	SupportEmail  string
	TemplateAlias string
}

// AlertURL is the management page of one subscription.
func (l Links) AlertURL(sub models.Subscription) string {
	return l.base() + "/alerts/" + sub.ID.String()
}

// LoginURL is the sign-in page.
func (l Links) LoginURL() string {
	return l.base() + "/login"
}

func (l Links) base() string {
	return strings.TrimRight(l.BaseURL, "/")
}

// Message builds the templated notification for one subscriber of event.
func (l Links) Message(event models.ActivityEvent, sub models.Subscription) models.TemplatedMessage {
	return models.TemplatedMessage{
		To:            sub.Email,
		TemplateAlias: l.TemplateAlias,
		Model: models.TemplateModel{
			ShortenedWalletAddress: Shorten(event.Address),
			WalletAddress:          event.Address,
			TxDescription:          event.Description,
			AlertURL:               l.AlertURL(sub),
			LoginURL:               l.LoginURL(),
			Email:                  sub.Email,
			SupportEmail:           l.SupportEmail,
		},
	}
}
