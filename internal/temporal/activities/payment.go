package activities

import (
	"context"
	"errors"
	"fmt"

	"tour-booking-system/internal/models"
	"tour-booking-system/internal/payments"
	"tour-booking-system/internal/pricing"

	"go.temporal.io/sdk/temporal"
)

type PaymentActivities struct {
	Provider *payments.Client
}

func NewPaymentActivities(provider *payments.Client) *PaymentActivities {
	return &PaymentActivities{Provider: provider}
}

// CreateIntent initializes a pending charge for the draft total. Safe to
// retry: an orphaned intent is never confirmed.
func (a *PaymentActivities) CreateIntent(ctx context.Context, input models.CheckoutInput) (*payments.Intent, error) {
	req := payments.IntentRequest{
		Amount:      pricing.ToCents(input.Total),
		Currency:    "usd",
		Email:       input.Customer.Email,
		Description: fmt.Sprintf("%s on %s %s", input.TourName, input.Date, input.TimeOfDay),
		Metadata: map[string]string{
			"tour_id":    input.TourID,
			"party_size": fmt.Sprintf("%d", input.PartySize),
		},
	}

	intent, err := a.Provider.CreateIntent(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}
	return intent, nil
}

// ConfirmPayment settles the intent and returns the provider payment id.
// A decline is permanent: the customer must act, automatic retries would
// just re-charge a card the provider already refused.
func (a *PaymentActivities) ConfirmPayment(ctx context.Context, intentID string) (string, error) {
	conf, err := a.Provider.Confirm(ctx, intentID)
	if err != nil {
		if errors.Is(err, payments.ErrPaymentDeclined) {
			return "", temporal.NewNonRetryableApplicationError(
				err.Error(),
				"PaymentDeclined",
				err,
			)
		}
		return "", fmt.Errorf("failed to confirm payment: %w", err)
	}
	return conf.PaymentID, nil
}
