package workflows

import (
	"testing"

	"tour-booking-system/internal/models"
	"tour-booking-system/internal/payments"
	"tour-booking-system/internal/temporal/activities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

func cardInput() models.CheckoutInput {
	return models.CheckoutInput{
		SessionID: "sess-1",
		Customer: models.Customer{
			FirstName: "Maya",
			LastName:  "Santos",
			Email:     "maya@example.com",
			Phone:     "+31612345678",
		},
		TourID:        "t-flat",
		TourName:      "Harbor Walk",
		Date:          "2026-09-04",
		TimeOfDay:     "10:00",
		PartySize:     2,
		Subtotal:      100,
		Total:         100,
		PaymentMethod: models.PaymentCard,
	}
}

func newCheckoutEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(CheckoutWorkflow)
	env.RegisterWorkflow(PaymentConfirmationWorkflow)
	return env
}

func checkoutResult(t *testing.T, env *testsuite.TestWorkflowEnvironment) models.CheckoutResult {
	t.Helper()
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var result models.CheckoutResult
	require.NoError(t, env.GetWorkflowResult(&result))
	return result
}

func TestCheckoutWorkflowCardSuccess(t *testing.T) {
	env := newCheckoutEnv(t)
	var bookingActs *activities.BookingActivities
	var paymentActs *activities.PaymentActivities
	var emailActs *activities.EmailActivities

	env.OnActivity(bookingActs.CreateBooking, mock.Anything, mock.Anything).
		Return(&activities.CreatedBooking{BookingID: "b1", Reference: "TB-ABC1234567"}, nil)
	env.OnActivity(paymentActs.CreateIntent, mock.Anything, mock.Anything).
		Return(&payments.Intent{IntentID: "pi_1"}, nil)
	env.OnActivity(paymentActs.ConfirmPayment, mock.Anything, "pi_1").
		Return("pay_1", nil)
	env.OnActivity(bookingActs.MarkBookingPaid, mock.Anything, "b1", "pay_1").
		Return(nil)
	env.OnActivity(emailActs.SendConfirmation, mock.Anything, mock.Anything, "TB-ABC1234567").
		Return(nil)

	env.ExecuteWorkflow(CheckoutWorkflow, cardInput())

	result := checkoutResult(t, env)
	assert.True(t, result.Success)
	assert.Equal(t, "b1", result.BookingID)
	assert.Equal(t, "TB-ABC1234567", result.Reference)
	assert.Equal(t, "pay_1", result.PaymentID)
	assert.True(t, result.EmailSent)
	env.AssertExpectations(t)
}

func TestCheckoutWorkflowUsesPreInitializedIntent(t *testing.T) {
	env := newCheckoutEnv(t)
	var bookingActs *activities.BookingActivities
	var paymentActs *activities.PaymentActivities
	var emailActs *activities.EmailActivities

	input := cardInput()
	input.PaymentIntentID = "pi_pre"

	env.OnActivity(bookingActs.CreateBooking, mock.Anything, mock.Anything).
		Return(&activities.CreatedBooking{BookingID: "b1", Reference: "TB-ABC1234567"}, nil)
	env.OnActivity(paymentActs.ConfirmPayment, mock.Anything, "pi_pre").
		Return("pay_1", nil)
	env.OnActivity(bookingActs.MarkBookingPaid, mock.Anything, "b1", "pay_1").
		Return(nil)
	env.OnActivity(emailActs.SendConfirmation, mock.Anything, mock.Anything, mock.Anything).
		Return(nil)

	env.ExecuteWorkflow(CheckoutWorkflow, input)

	result := checkoutResult(t, env)
	assert.True(t, result.Success)
	env.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything)
	env.AssertExpectations(t)
}

func TestCheckoutWorkflowBookingFailureSkipsPayment(t *testing.T) {
	env := newCheckoutEnv(t)
	var bookingActs *activities.BookingActivities

	env.OnActivity(bookingActs.CreateBooking, mock.Anything, mock.Anything).
		Return(nil, temporal.NewNonRetryableApplicationError(
			"the selected time no longer has enough slots", "InsufficientCapacity", nil))

	env.ExecuteWorkflow(CheckoutWorkflow, cardInput())

	result := checkoutResult(t, env)
	assert.False(t, result.Success)
	assert.Empty(t, result.BookingID)
	assert.Equal(t, "booking could not be created", result.Message)
	env.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything)
	env.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything)
}

func TestCheckoutWorkflowPaymentDeclined(t *testing.T) {
	env := newCheckoutEnv(t)
	var bookingActs *activities.BookingActivities
	var paymentActs *activities.PaymentActivities

	env.OnActivity(bookingActs.CreateBooking, mock.Anything, mock.Anything).
		Return(&activities.CreatedBooking{BookingID: "b1", Reference: "TB-ABC1234567"}, nil)
	env.OnActivity(paymentActs.CreateIntent, mock.Anything, mock.Anything).
		Return(&payments.Intent{IntentID: "pi_1"}, nil)
	env.OnActivity(paymentActs.ConfirmPayment, mock.Anything, "pi_1").
		Return("", temporal.NewNonRetryableApplicationError(
			"payment was declined", "PaymentDeclined", nil))

	env.ExecuteWorkflow(CheckoutWorkflow, cardInput())

	// the booking id survives so the caller can retry against the same record
	result := checkoutResult(t, env)
	assert.False(t, result.Success)
	assert.Equal(t, "b1", result.BookingID)
	assert.Equal(t, "TB-ABC1234567", result.Reference)
	assert.Contains(t, result.Message, "payment failed")
	env.AssertNotCalled(t, "MarkBookingPaid", mock.Anything, mock.Anything, mock.Anything)
	env.AssertNotCalled(t, "SendConfirmation", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckoutWorkflowReusesExistingBooking(t *testing.T) {
	env := newCheckoutEnv(t)
	var bookingActs *activities.BookingActivities
	var paymentActs *activities.PaymentActivities
	var emailActs *activities.EmailActivities

	input := cardInput()
	input.ExistingBookingID = "b1"
	input.PaymentIntentID = "pi_pre"

	env.OnActivity(bookingActs.GetBooking, mock.Anything, "b1").
		Return(&activities.CreatedBooking{BookingID: "b1", Reference: "TB-ABC1234567"}, nil)
	env.OnActivity(paymentActs.ConfirmPayment, mock.Anything, "pi_pre").
		Return("pay_2", nil)
	env.OnActivity(bookingActs.MarkBookingPaid, mock.Anything, "b1", "pay_2").
		Return(nil)
	env.OnActivity(emailActs.SendConfirmation, mock.Anything, mock.Anything, mock.Anything).
		Return(nil)

	env.ExecuteWorkflow(CheckoutWorkflow, input)

	result := checkoutResult(t, env)
	assert.True(t, result.Success)
	assert.Equal(t, "b1", result.BookingID)
	env.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
	env.AssertExpectations(t)
}

func TestCheckoutWorkflowOnSitePayment(t *testing.T) {
	env := newCheckoutEnv(t)
	var bookingActs *activities.BookingActivities
	var emailActs *activities.EmailActivities

	input := cardInput()
	input.PaymentMethod = models.PaymentOnSite

	env.OnActivity(bookingActs.CreateBooking, mock.Anything, mock.Anything).
		Return(&activities.CreatedBooking{BookingID: "b1", Reference: "TB-ABC1234567"}, nil)
	env.OnActivity(bookingActs.ConfirmBooking, mock.Anything, "b1").
		Return(nil)
	env.OnActivity(emailActs.SendConfirmation, mock.Anything, mock.Anything, mock.Anything).
		Return(nil)

	env.ExecuteWorkflow(CheckoutWorkflow, input)

	result := checkoutResult(t, env)
	assert.True(t, result.Success)
	assert.Empty(t, result.PaymentID)
	env.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything)
	env.AssertExpectations(t)
}

func TestCheckoutWorkflowZeroTotalSkipsPayment(t *testing.T) {
	env := newCheckoutEnv(t)
	var bookingActs *activities.BookingActivities
	var emailActs *activities.EmailActivities

	input := cardInput()
	input.DiscountAmount = 100
	input.Total = 0

	env.OnActivity(bookingActs.CreateBooking, mock.Anything, mock.Anything).
		Return(&activities.CreatedBooking{BookingID: "b1", Reference: "TB-ABC1234567"}, nil)
	env.OnActivity(bookingActs.ConfirmBooking, mock.Anything, "b1").
		Return(nil)
	env.OnActivity(emailActs.SendConfirmation, mock.Anything, mock.Anything, mock.Anything).
		Return(nil)

	env.ExecuteWorkflow(CheckoutWorkflow, input)

	result := checkoutResult(t, env)
	assert.True(t, result.Success)
	env.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything)
	env.AssertExpectations(t)
}

func TestCheckoutWorkflowEmailFailureIsNonFatal(t *testing.T) {
	env := newCheckoutEnv(t)
	var bookingActs *activities.BookingActivities
	var emailActs *activities.EmailActivities

	input := cardInput()
	input.PaymentMethod = models.PaymentOnSite

	env.OnActivity(bookingActs.CreateBooking, mock.Anything, mock.Anything).
		Return(&activities.CreatedBooking{BookingID: "b1", Reference: "TB-ABC1234567"}, nil)
	env.OnActivity(bookingActs.ConfirmBooking, mock.Anything, "b1").
		Return(nil)
	env.OnActivity(emailActs.SendConfirmation, mock.Anything, mock.Anything, mock.Anything).
		Return(temporal.NewNonRetryableApplicationError("mail gateway unreachable", "EmailFailed", nil))

	env.ExecuteWorkflow(CheckoutWorkflow, input)

	result := checkoutResult(t, env)
	assert.True(t, result.Success)
	assert.False(t, result.EmailSent)
	env.AssertExpectations(t)
}

func TestPaymentConfirmationWorkflow(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaymentConfirmationWorkflow)
	var paymentActs *activities.PaymentActivities

	env.OnActivity(paymentActs.ConfirmPayment, mock.Anything, "pi_1").
		Return("pay_1", nil)

	env.ExecuteWorkflow(PaymentConfirmationWorkflow, "pi_1")

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var paymentID string
	require.NoError(t, env.GetWorkflowResult(&paymentID))
	assert.Equal(t, "pay_1", paymentID)
}
