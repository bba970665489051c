package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/metinatakli/seat-reservation-system/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
)

// Currencies Stripe charges in whole units.
var zeroDecimalCurrencies = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {}, "krw": {}, "mga": {},
	"pyg": {}, "rwf": {}, "ugx": {}, "vnd": {}, "vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
}

// StripeGateway charges a saved payment method through a confirmed PaymentIntent.
type StripeGateway struct {
	currency      string
	paymentMethod string
}

func NewStripeGateway(secretKey, currency, paymentMethod string) *StripeGateway {
	stripe.Key = secretKey

	return &StripeGateway{
		currency:      strings.ToLower(currency),
		paymentMethod: paymentMethod,
	}
}

func toMinorUnits(amount decimal.Decimal, currency string) int64 {
	if _, ok := zeroDecimalCurrencies[currency]; ok {
		return amount.Round(0).IntPart()
	}

	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (g *StripeGateway) Charge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(toMinorUnits(req.Amount, g.currency)),
		Currency:           stripe.String(g.currency),
		PaymentMethod:      stripe.String(g.paymentMethod),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
		Description:        stripe.String(fmt.Sprintf("Seat reservation %s", req.Reference)),
		Metadata: map[string]string{
			"reservation_no": req.Reference,
			"party_id":       strconv.FormatInt(req.PartyID, 10),
			"pay_method":     string(req.Method),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.Reference)

	intent, err := paymentintent.New(params)
	if err != nil {
		if isDeclined(err) {
			var stripeErr *stripe.Error
			errors.As(err, &stripeErr)
			return nil, fmt.Errorf("%w: %s", domain.ErrPaymentFailed, stripeErr.Msg)
		}

		return nil, fmt.Errorf("create payment intent %s: %w", req.Reference, err)
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("%w: payment intent %s is %s", domain.ErrPaymentFailed, intent.ID, intent.Status)
	}

	return &domain.ChargeResult{
		TransactionRef: intent.ID,
		ApprovedAt:     time.Unix(intent.Created, 0).UTC(),
	}, nil
}

// isDeclined reports whether Stripe rejected the charge outright. Network
// failures, rate limits and server errors leave the outcome unknown.
func isDeclined(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}

	if stripeErr.Type == stripe.ErrorTypeCard {
		return true
	}

	status := stripeErr.HTTPStatusCode

	return status >= 400 && status < 500 && status != 409 && status != 429
}

func (g *StripeGateway) Refund(ctx context.Context, transactionRef string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(transactionRef),
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + transactionRef)

	_, err := refund.New(params)
	if err != nil {
		return fmt.Errorf("refund payment intent %s: %w", transactionRef, err)
	}

	return nil
}
