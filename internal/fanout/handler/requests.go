package handler

import (
	"encoding/json"
	"fmt"

	"solsignal/internal/alerts/models"
	dErrors "solsignal/pkg/domain-errors"
)

// TransactionUpdate is one element of the webhook body.
type TransactionUpdate struct {
	AccountData []AccountData `json:"accountData"`
	Description *string       `json:"description"`
}

// AccountData names one account touched by the transaction.
type AccountData struct {
	Account string `json:"account"`
}

// Validate checks one element. index is its position in the body, used in
// messages.
func (u *TransactionUpdate) Validate(index int) error {
	if u.AccountData == nil {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("element %d: accountData is required", index))
	}
	if u.Description == nil {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("element %d: description is required", index))
	}
	for j, data := range u.AccountData {
		if data.Account == "" {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("element %d: accountData[%d].account is required", index, j))
		}
	}
	return nil
}

// parseEvents decodes the webhook body into activity events, one per account
// of every element. Each event keeps the raw element as its metadata.
func parseEvents(body []byte) ([]models.ActivityEvent, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(body, &elements); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "body must be a JSON array")
	}

	var events []models.ActivityEvent
	for i, raw := range elements {
		var update TransactionUpdate
		if err := json.Unmarshal(raw, &update); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, fmt.Sprintf("element %d is not a transaction update", i))
		}
		if err := update.Validate(i); err != nil {
			return nil, err
		}
		for _, data := range update.AccountData {
			events = append(events, models.ActivityEvent{
				Address:     data.Account,
				Description: *update.Description,
				Metadata:    raw,
			})
		}
	}
	return events, nil
}
