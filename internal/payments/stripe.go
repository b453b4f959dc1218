package payments

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/example/train-booking/internal/models"
)

// StripeClient holds ticket fares with manual-capture PaymentIntents: the
// hold is captured once the backend confirms the order and cancelled
// otherwise.
type StripeClient struct {
	Currency string
}

// NewStripeClient sets the stripe API key used by the package-level client.
func NewStripeClient(apiKey, currency string) *StripeClient {
	stripe.Key = apiKey
	if currency == "" {
		currency = string(stripe.CurrencyEUR)
	}
	return &StripeClient{Currency: currency}
}

// Hold creates a PaymentIntent with capture_method=manual for the fare of
// order. It returns the PaymentIntent ID on success.
func (s *StripeClient) Hold(ctx context.Context, amount int64, order models.Order) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(s.Currency),
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())
	params.AddMetadata("ride_id", strconv.Itoa(order.RideID))
	params.AddMetadata("seat", strconv.Itoa(order.Seat))
	params.AddMetadata("station_start", strconv.Itoa(order.StationStart))
	params.AddMetadata("station_end", strconv.Itoa(order.StationEnd))
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// Capture finalizes a previously-held PaymentIntent.
func (s *StripeClient) Capture(ctx context.Context, paymentIntentID string) error {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	_, err := paymentintent.Capture(paymentIntentID, params)
	return err
}

// Cancel releases the hold on a PaymentIntent.
func (s *StripeClient) Cancel(ctx context.Context, paymentIntentID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	_, err := paymentintent.Cancel(paymentIntentID, params)
	return err
}
