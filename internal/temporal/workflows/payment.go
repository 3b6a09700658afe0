package workflows

import (
	"fmt"
	"time"

	"tour-booking-system/internal/temporal/activities"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// PaymentConfirmationWorkflow settles a previously initialized payment
// intent. Confirmation runs exactly once: a declined or failed charge is
// surfaced to the customer, never retried automatically.
func PaymentConfirmationWorkflow(ctx workflow.Context, intentID string) (string, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("PaymentConfirmationWorkflow started", "intentID", intentID)

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	var paymentActivities *activities.PaymentActivities
	var paymentID string

	err := workflow.ExecuteActivity(ctx, paymentActivities.ConfirmPayment, intentID).Get(ctx, &paymentID)
	if err != nil {
		logger.Error("Payment confirmation failed", "intentID", intentID, "error", err)
		return "", fmt.Errorf("payment confirmation failed: %w", err)
	}

	logger.Info("Payment confirmed", "intentID", intentID, "paymentID", paymentID)
	return paymentID, nil
}
