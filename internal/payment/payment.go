// Package payment talks to the external payment gateway.
package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// Intent is the gateway's payment intent as far as the store cares.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

// Succeeded reports whether the gateway has taken the money.
func (i *Intent) Succeeded() bool { return i.Status == "succeeded" }

// IntentRequest sizes a new intent. Amount is in minor units.
type IntentRequest struct {
	Amount       int64
	Currency     string
	ReceiptEmail string
	Metadata     map[string]string
	// ServerConfirm disables redirect-based payment methods so the intent can be
	// confirmed without a browser round trip.
	ServerConfirm bool
}

// Gateway creates and confirms payment intents.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	Confirm(ctx context.Context, intentID, paymentMethodID string) (*Intent, error)
}

// GatewayError carries the gateway's own message to the caller.
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *GatewayError) Unwrap() error { return domain.ErrGateway }

// MinorUnits converts a major-unit amount to minor units, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
