package workflows

import (
	"time"

	"tour-booking-system/internal/models"
	"tour-booking-system/internal/payments"
	"tour-booking-system/internal/temporal/activities"

	"go.temporal.io/sdk/workflow"
)

// CheckoutWorkflow runs the submission sequence for an assembled booking
// draft. The ordering is load-bearing: the booking record must exist before
// the charge is confirmed, because the provider's webhook metadata links back
// to the booking id. A charge is never attempted when booking creation fails.
func CheckoutWorkflow(ctx workflow.Context, input models.CheckoutInput) (*models.CheckoutResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("CheckoutWorkflow started", "sessionID", input.SessionID, "tourID", input.TourID)

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
	}
	activityCtx := workflow.WithActivityOptions(ctx, activityOptions)

	var bookingActivities *activities.BookingActivities
	result := &models.CheckoutResult{}

	// Step 1: create the booking record, or reuse the one a previous attempt
	// already created so a re-submit never duplicates it.
	var created activities.CreatedBooking
	if input.ExistingBookingID != "" {
		err := workflow.ExecuteActivity(activityCtx, bookingActivities.GetBooking,
			input.ExistingBookingID).Get(ctx, &created)
		if err != nil {
			logger.Error("Failed to load existing booking", "error", err)
			result.Message = "booking could not be loaded"
			return result, nil
		}
	} else {
		err := workflow.ExecuteActivity(activityCtx, bookingActivities.CreateBooking,
			input).Get(ctx, &created)
		if err != nil {
			logger.Error("Booking creation failed, payment not attempted", "error", err)
			result.Message = "booking could not be created"
			return result, nil
		}
	}

	result.BookingID = created.BookingID
	result.Reference = created.Reference

	// Step 2: confirm payment, only now that the booking exists.
	if input.Total > 0 && input.PaymentMethod == models.PaymentCard {
		intentID := input.PaymentIntentID
		if intentID == "" {
			var paymentActivities *activities.PaymentActivities
			var intent payments.Intent
			err := workflow.ExecuteActivity(activityCtx, paymentActivities.CreateIntent,
				input).Get(ctx, &intent)
			if err != nil {
				logger.Error("Failed to create payment intent", "error", err)
				result.Message = "payment could not be initialized"
				return result, nil
			}
			intentID = intent.IntentID
		}

		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: created.BookingID + "-payment",
		})

		var paymentID string
		err := workflow.ExecuteChildWorkflow(childCtx, PaymentConfirmationWorkflow,
			intentID).Get(ctx, &paymentID)
		if err != nil {
			// Booking stays in its pending unpaid status for manual
			// reconciliation; the caller decides whether to retry.
			logger.Error("Payment confirmation failed", "bookingID", created.BookingID, "error", err)
			result.Message = "payment failed: " + err.Error()
			return result, nil
		}

		result.PaymentID = paymentID

		err = workflow.ExecuteActivity(activityCtx, bookingActivities.MarkBookingPaid,
			created.BookingID, paymentID).Get(ctx, nil)
		if err != nil {
			logger.Error("Failed to mark booking paid", "bookingID", created.BookingID, "error", err)
			result.Message = "payment succeeded but booking status update failed"
			return result, nil
		}
	} else {
		err := workflow.ExecuteActivity(activityCtx, bookingActivities.ConfirmBooking,
			created.BookingID).Get(ctx, nil)
		if err != nil {
			logger.Error("Failed to confirm booking", "bookingID", created.BookingID, "error", err)
			result.Message = "booking could not be confirmed"
			return result, nil
		}
	}

	result.Success = true

	// Step 3: confirmation email. Failure is logged and reported as a
	// secondary notice, never rolled into the booking/payment outcome.
	var emailActivities *activities.EmailActivities
	err := workflow.ExecuteActivity(activityCtx, emailActivities.SendConfirmation,
		input, created.Reference).Get(ctx, nil)
	if err != nil {
		logger.Error("Confirmation email failed", "bookingID", created.BookingID, "error", err)
		result.EmailSent = false
	} else {
		result.EmailSent = true
	}

	logger.Info("CheckoutWorkflow completed", "bookingID", created.BookingID, "paymentID", result.PaymentID)
	return result, nil
}
