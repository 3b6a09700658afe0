package activities

import (
	"context"
	"fmt"

	"tour-booking-system/internal/mailer"
	"tour-booking-system/internal/models"

	"github.com/google/uuid"
)

type EmailActivities struct {
	Mailer *mailer.Client
}

func NewEmailActivities(m *mailer.Client) *EmailActivities {
	return &EmailActivities{Mailer: m}
}

// SendConfirmation dispatches the booking confirmation email. The manage
// token lets the customer open their booking without an account.
func (a *EmailActivities) SendConfirmation(ctx context.Context, input models.CheckoutInput, reference string) error {
	msg := mailer.Confirmation{
		Reference:   reference,
		FirstName:   input.Customer.FirstName,
		LastName:    input.Customer.LastName,
		Email:       input.Customer.Email,
		TourName:    input.TourName,
		Date:        input.Date,
		TimeOfDay:   input.TimeOfDay,
		PartySize:   input.PartySize,
		Subtotal:    input.Subtotal,
		Discount:    input.DiscountAmount,
		Total:       input.Total,
		ManageToken: uuid.New().String(),
	}

	if err := a.Mailer.SendConfirmation(ctx, msg); err != nil {
		return fmt.Errorf("failed to send confirmation email: %w", err)
	}
	return nil
}
