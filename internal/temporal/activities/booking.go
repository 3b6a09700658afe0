package activities

import (
	"context"
	"errors"
	"fmt"

	"tour-booking-system/internal/database"
	"tour-booking-system/internal/models"

	"go.temporal.io/sdk/temporal"
)

type BookingActivities struct {
	DB *database.DB
}

func NewBookingActivities(db *database.DB) *BookingActivities {
	return &BookingActivities{DB: db}
}

// CreatedBooking is the subset of a booking the workflow needs after creation
type CreatedBooking struct {
	BookingID string `json:"bookingId"`
	Reference string `json:"reference"`
}

// CreateBooking runs the transactional booking insert. Capacity exhaustion
// is a permanent condition: the customer has to pick another time, retrying
// the same request cannot succeed.
func (a *BookingActivities) CreateBooking(ctx context.Context, input models.CheckoutInput) (*CreatedBooking, error) {
	booking, err := a.DB.CreateBooking(ctx, &input)
	if err != nil {
		if errors.Is(err, database.ErrInsufficientCapacity) {
			return nil, temporal.NewNonRetryableApplicationError(
				"the selected time no longer has enough slots",
				"InsufficientCapacity",
				err,
			)
		}
		if errors.Is(err, database.ErrTourNotFound) {
			return nil, temporal.NewNonRetryableApplicationError(
				err.Error(),
				"TourNotFound",
				err,
			)
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	return &CreatedBooking{BookingID: booking.BookingID, Reference: booking.Reference}, nil
}

// GetBooking loads an existing booking for an idempotent re-submit
func (a *BookingActivities) GetBooking(ctx context.Context, bookingID string) (*CreatedBooking, error) {
	booking, err := a.DB.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, database.ErrBookingNotFound) {
			return nil, temporal.NewNonRetryableApplicationError(
				err.Error(),
				"BookingNotFound",
				err,
			)
		}
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	return &CreatedBooking{BookingID: booking.BookingID, Reference: booking.Reference}, nil
}

// MarkBookingPaid confirms the booking and attaches the provider payment id
func (a *BookingActivities) MarkBookingPaid(ctx context.Context, bookingID, paymentID string) error {
	err := a.DB.MarkBookingPaid(ctx, bookingID, paymentID)
	if err != nil {
		if errors.Is(err, database.ErrBookingNotFound) {
			return temporal.NewNonRetryableApplicationError(
				err.Error(),
				"BookingNotFound",
				err,
			)
		}
		return fmt.Errorf("failed to mark booking paid: %w", err)
	}
	return nil
}

// ConfirmBooking confirms a booking that is settled outside the payment
// provider (on-site payment).
func (a *BookingActivities) ConfirmBooking(ctx context.Context, bookingID string) error {
	err := a.DB.UpdateBookingStatus(ctx, bookingID, models.BookingConfirmed)
	if err != nil {
		if errors.Is(err, database.ErrBookingNotFound) {
			return temporal.NewNonRetryableApplicationError(
				err.Error(),
				"BookingNotFound",
				err,
			)
		}
		return fmt.Errorf("failed to confirm booking: %w", err)
	}
	return nil
}
