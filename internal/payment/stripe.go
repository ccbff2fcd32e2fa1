package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"

	"tickio/internal/logger"
	"tickio/internal/models"
)

// StripeGateway charges synchronously through Stripe payment intents. The
// caller supplies a payment method in metadata under "payment_method";
// without one the intent cannot confirm and the charge reports failure.
type StripeGateway struct {
	Currency string
	Logger   *logger.Logger
}

func NewStripeGateway(secretKey, currency string, log *logger.Logger) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{Currency: currency, Logger: log}
}

func (g *StripeGateway) Charge(ctx context.Context, amount decimal.Decimal, purchaser models.OwnerRef, metadata map[string]string) (bool, string, error) {
	amountInCents := amount.Mul(decimal.NewFromInt(100)).IntPart()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountInCents),
		Currency: stripe.String(g.Currency),
		Confirm:  stripe.Bool(true),
	}
	params.Context = ctx
	if pm, ok := metadata["payment_method"]; ok {
		params.PaymentMethod = stripe.String(pm)
	}
	for k, v := range metadata {
		if k == "payment_method" {
			continue
		}
		params.AddMetadata(k, v)
	}
	params.AddMetadata("purchaser", purchaser.Key())

	intent, err := paymentintent.New(params)
	if err != nil {
		g.Logger.Error("PAYMENT", fmt.Sprintf("Stripe charge failed: %v", err))
		return false, "", err
	}

	succeeded := intent.Status == stripe.PaymentIntentStatusSucceeded
	if !succeeded {
		g.Logger.Warn("PAYMENT", fmt.Sprintf("Payment intent %s finished with status %s", intent.ID, intent.Status))
	}
	return succeeded, intent.ID, nil
}
