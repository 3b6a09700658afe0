package wizard

import (
	"context"
	"errors"
	"testing"

	"tour-booking-system/internal/models"
	"tour-booking-system/internal/promo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatTour() *models.Tour {
	return &models.Tour{
		TourID:         "t-flat",
		Name:           "Harbor Walk",
		Rate:           50,
		GroupSizeLimit: 10,
		Weekdays:       []string{"Mon", "Wed", "Fri"},
		Times:          []string{"10:00", "14:00"},
	}
}

func tieredTour() *models.Tour {
	return &models.Tour{
		TourID:         "t-tiered",
		Name:           "Cave Dive",
		GroupSizeLimit: 8,
		Weekdays:       []string{"Sat"},
		Times:          []string{"09:00"},
		SlotTypes: []models.SlotType{
			{Name: "adult", Price: 40},
			{Name: "child", Price: 20},
		},
		SlotFields: []models.SlotField{
			{Name: "name", Kind: models.FieldText, Required: true},
		},
	}
}

func testCatalog() []models.Product {
	return []models.Product{
		{ProductID: "p-photos", Name: "Photo Package", Price: 25},
		{ProductID: "p-lunch", Name: "Lunch Box", Price: 15},
	}
}

type fakeAvailability struct {
	remaining int
	err       error
	calls     int
}

func (f *fakeAvailability) RemainingSlots(_ context.Context, _, _, _ string) (int, error) {
	f.calls++
	return f.remaining, f.err
}

type fakePromos struct {
	res          promo.Result
	err          error
	calls        int
	lastSubtotal float64
}

func (f *fakePromos) Validate(_ context.Context, code string, subtotal float64) (promo.Result, error) {
	f.calls++
	f.lastSubtotal = subtotal
	if f.err != nil {
		return promo.Result{}, f.err
	}
	res := f.res
	res.Code = code
	res.Subtotal = subtotal
	return res, nil
}

type fakeSubmitter struct {
	result    models.CheckoutResult
	err       error
	calls     int
	lastInput models.CheckoutInput
	inFlight  func() // runs mid-submit, simulating concurrent session traffic
}

func (f *fakeSubmitter) Submit(_ context.Context, input models.CheckoutInput) (models.CheckoutResult, error) {
	f.calls++
	f.lastInput = input
	if f.inFlight != nil {
		f.inFlight()
	}
	return f.result, f.err
}

func validCustomer() models.Customer {
	return models.Customer{
		FirstName: "Maya",
		LastName:  "Santos",
		Email:     "maya@example.com",
		Phone:     "+31 6 1234 5678",
	}
}

func TestNewEntrySteps(t *testing.T) {
	cases := []struct {
		name string
		opts Options
		want Step
	}{
		{"blank session", Options{SessionID: "s1"}, StepSelectTour},
		{"tour preselected", Options{SessionID: "s1", Tour: flatTour()}, StepSelectDateTime},
		{"full prefill", Options{SessionID: "s1", Tour: flatTour(), Date: "2026-09-04", TimeOfDay: "10:00"}, StepReview},
		{"additional booking", Options{SessionID: "s1", Tour: flatTour(), BaseReference: "TB-ABC1234567"}, StepIntro},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := New(tc.opts)
			assert.Equal(t, tc.want, c.Snapshot().Step)
		})
	}
}

func TestNewPartySizeDefaults(t *testing.T) {
	flat := New(Options{SessionID: "s1", Tour: flatTour()})
	assert.Equal(t, 1, flat.Snapshot().PartySize)

	tiered := New(Options{SessionID: "s2", Tour: tieredTour()})
	assert.Equal(t, 0, tiered.Snapshot().PartySize)
}

func TestAdvanceGating(t *testing.T) {
	c := New(Options{SessionID: "s1"})

	assert.False(t, c.Advance(), "no tour selected yet")

	c.ChangeTour(flatTour())
	require.True(t, c.Advance())
	assert.Equal(t, StepSelectDateTime, c.Snapshot().Step)

	assert.False(t, c.Advance(), "date and time missing")

	c.ChangeDate("2026-09-04")
	assert.False(t, c.Advance(), "time still missing")

	c.SelectTime("10:00")
	require.True(t, c.Advance())
	assert.Equal(t, StepReview, c.Snapshot().Step)

	assert.False(t, c.Advance(), "review advances only through submit")
}

func TestRetreatClosesAtFirstStep(t *testing.T) {
	c := New(Options{SessionID: "s1"})
	assert.True(t, c.Retreat())

	c.ChangeTour(flatTour())
	c.Advance()
	assert.False(t, c.Retreat())
	assert.Equal(t, StepSelectTour, c.Snapshot().Step)
	assert.True(t, c.Retreat())
}

func TestRetreatAdditionalModeClosesAtIntro(t *testing.T) {
	c := New(Options{SessionID: "s1", BaseReference: "TB-ABC1234567"})
	assert.True(t, c.Retreat())

	require.True(t, c.Advance())
	assert.False(t, c.Retreat())
	assert.Equal(t, StepIntro, c.Snapshot().Step)
}

func TestDirtyTracking(t *testing.T) {
	c := New(Options{SessionID: "s1"})
	assert.False(t, c.Dirty())

	c.ChangeTour(flatTour())
	assert.True(t, c.Dirty())
}

func TestChangeTourResetsDownstream(t *testing.T) {
	c := New(Options{SessionID: "s1", Tour: flatTour(), Catalog: testCatalog()})
	gen := c.ChangeDate("2026-09-04")
	c.ApplyRemainingSlots(gen, 6)
	gen = c.SelectTime("10:00")
	c.ApplyRemainingSlots(gen, 6)
	c.Advance()
	c.IncreasePartySize()
	c.SetProductQuantity("p-lunch", 2)
	applyConfirmedPromo(t, c)

	c.ChangeTour(tieredTour())

	st := c.Snapshot()
	assert.Equal(t, StepSelectDateTime, st.Step)
	assert.Empty(t, st.Date)
	assert.Empty(t, st.TimeOfDay)
	assert.Equal(t, RemainingUnknown, st.RemainingSlots)
	assert.Equal(t, 0, st.PartySize)
	assert.Empty(t, st.Products)
	assert.Nil(t, st.Promo.Applied)
	assert.Zero(t, st.Promo.Estimate)
	assert.Zero(t, st.Subtotal)
}

// applyConfirmedPromo applies a confirmed discount directly, standing in for
// a completed validation round trip.
func applyConfirmedPromo(t *testing.T, c *Controller) {
	t.Helper()
	gen, subtotal := c.RequestPromoValidation("TEST10")
	ok := c.ApplyPromoResult(gen, promo.Result{
		PromoID:        "pr-test",
		Code:           "TEST10",
		Subtotal:       subtotal,
		DiscountAmount: 10,
		FinalAmount:    subtotal - 10,
	}, nil)
	require.True(t, ok)
}

func TestChangeDateResetsSelectionAndOccupancy(t *testing.T) {
	c := New(Options{SessionID: "s1", Tour: flatTour(), Catalog: testCatalog()})
	gen := c.ChangeDate("2026-09-04")
	c.ApplyRemainingSlots(gen, 5)
	gen = c.SelectTime("10:00")
	c.ApplyRemainingSlots(gen, 5)
	c.IncreasePartySize()
	c.IncreasePartySize()
	c.SetProductQuantity("p-photos", 1)

	c.ChangeDate("2026-09-07")

	st := c.Snapshot()
	assert.Empty(t, st.TimeOfDay)
	assert.Equal(t, RemainingUnknown, st.RemainingSlots)
	assert.Equal(t, 1, st.PartySize)
	assert.Empty(t, st.Products)
}

func TestApplyRemainingSlotsDropsStaleGeneration(t *testing.T) {
	c := New(Options{SessionID: "s1", Tour: flatTour()})
	c.ChangeDate("2026-09-04")
	stale := c.SelectTime("10:00")
	fresh := c.SelectTime("14:00")

	assert.False(t, c.ApplyRemainingSlots(stale, 2))
	assert.Equal(t, RemainingUnknown, c.Snapshot().RemainingSlots)

	assert.True(t, c.ApplyRemainingSlots(fresh, 7))
	assert.Equal(t, 7, c.Snapshot().RemainingSlots)
}

func TestApplyRemainingSlotsClampsPartySize(t *testing.T) {
	c := New(Options{SessionID: "s1", Tour: flatTour()})
	c.ChangeDate("2026-09-04")
	gen := c.SelectTime("10:00")
	c.ApplyRemainingSlots(gen, 10)
	for i := 0; i < 4; i++ {
		c.IncreasePartySize()
	}
	require.Equal(t, 5, c.Snapshot().PartySize)

	gen = c.SelectTime("14:00")
	c.ApplyRemainingSlots(gen, 2)
	assert.Equal(t, 2, c.Snapshot().PartySize)
}

func TestApplyRemainingSlotsTruncatesSlots(t *testing.T) {
	c := New(Options{SessionID: "s1", Tour: tieredTour()})
	c.ChangeDate("2026-09-05")
	gen := c.SelectTime("09:00")
	c.ApplyRemainingSlots(gen, 5)
	require.NoError(t, c.AddSlot("adult"))
	require.NoError(t, c.AddSlot("adult"))
	require.NoError(t, c.AddSlot("child"))

	gen = c.SelectTime("09:00")
	c.ApplyRemainingSlots(gen, 1)

	st := c.Snapshot()
	assert.Equal(t, 1, st.PartySize)
	require.Len(t, st.SlotDetails, 1)
	assert.Equal(t, "adult", st.SlotDetails[0].Type)
}

func TestRefreshAvailability(t *testing.T) {
	avail := &fakeAvailability{remaining: 4}
	c := New(Options{SessionID: "s1", Tour: flatTour(), Availability: avail})
	c.ChangeDate("2026-09-04")
	c.SelectTime("10:00")

	require.NoError(t, c.RefreshAvailability(context.Background()))
	assert.Equal(t, 4, c.Snapshot().RemainingSlots)
	assert.Equal(t, 1, avail.calls)
}

func TestRefreshAvailabilityNoSelectionIsNoop(t *testing.T) {
	avail := &fakeAvailability{remaining: 4}
	c := New(Options{SessionID: "s1", Tour: flatTour(), Availability: avail})

	require.NoError(t, c.RefreshAvailability(context.Background()))
	assert.Zero(t, avail.calls)
}

func TestRefreshAvailabilityErrorKeepsUnknown(t *testing.T) {
	avail := &fakeAvailability{err: errors.New("backend down")}
	c := New(Options{SessionID: "s1", Tour: flatTour(), Availability: avail})
	c.ChangeDate("2026-09-04")
	c.SelectTime("10:00")

	assert.Error(t, c.RefreshAvailability(context.Background()))
	assert.Equal(t, RemainingUnknown, c.Snapshot().RemainingSlots)
}

func TestPartySizeBounds(t *testing.T) {
	c := New(Options{SessionID: "s1", Tour: flatTour()})
	c.ChangeDate("2026-09-04")
	gen := c.SelectTime("10:00")
	c.ApplyRemainingSlots(gen, 2)

	c.IncreasePartySize()
	c.IncreasePartySize() // over remaining, no-op
	assert.Equal(t, 2, c.Snapshot().PartySize)

	c.DecreasePartySize()
	c.DecreasePartySize()
	c.DecreasePartySize() // below zero, no-op
	assert.Equal(t, 0, c.Snapshot().PartySize)
}

func TestIncreasePartySizeNoopAtZeroRemaining(t *testing.T) {
	c := New(Options{SessionID: "s1", Tour: flatTour()})
	gen := c.ChangeDate("2026-09-04")
	c.ApplyRemainingSlots(gen, 0)
	gen = c.SelectTime("10:00")
	c.ApplyRemainingSlots(gen, 0)

	c.IncreasePartySize()
	assert.Equal(t, 0, c.Snapshot().PartySize)
}

func TestIncreasePartySizeHonorsGroupLimit(t *testing.T) {
	tour := flatTour()
	tour.GroupSizeLimit = 2
	c := New(Options{SessionID: "s1", Tour: tour})

	c.IncreasePartySize()
	c.IncreasePartySize()
	assert.Equal(t, 2, c.Snapshot().PartySize)
}

func TestAddSlotSnapshotsPrice(t *testing.T) {
	tour := tieredTour()
	c := New(Options{SessionID: "s1", Tour: tour})
	require.NoError(t, c.AddSlot("adult"))

	// a definition change after selection must not move the charged price
	tour.SlotTypes[0].Price = 99

	st := c.Snapshot()
	require.Len(t, st.SlotDetails, 1)
	assert.Equal(t, 40.0, st.SlotDetails[0].Price)
	assert.Equal(t, 40.0, st.Subtotal)
}

func TestAddSlotErrors(t *testing.T) {
	c := New(Options{SessionID: "s1", Tour: flatTour()})
	assert.Error(t, c.AddSlot("adult"), "flat-rate tour has no slot types")

	c = New(Options{SessionID: "s2", Tour: tieredTour()})
	assert.Error(t, c.AddSlot("infant"), "unknown slot type")

	gen := c.ChangeDate("2026-09-05")
	c.ApplyRemainingSlots(gen, 1)
	require.NoError(t, c.AddSlot("adult"))
	assert.Error(t, c.AddSlot("adult"), "no remaining slots")
}

func TestRemoveSlot(t *testing.T) {
	c := New(Options{SessionID: "s1", Tour: tieredTour()})
	require.NoError(t, c.AddSlot("adult"))
	require.NoError(t, c.AddSlot("child"))

	c.RemoveSlot(0)
	st := c.Snapshot()
	require.Len(t, st.SlotDetails, 1)
	assert.Equal(t, "child", st.SlotDetails[0].Type)

	c.RemoveSlot(5) // out of range, no-op
	assert.Len(t, c.Snapshot().SlotDetails, 1)
}

func TestSetSlotField(t *testing.T) {
	c := New(Options{SessionID: "s1", Tour: tieredTour()})
	require.NoError(t, c.AddSlot("adult"))

	require.NoError(t, c.SetSlotField(0, "name", "Maya"))
	assert.Equal(t, "Maya", c.Snapshot().SlotDetails[0].Fields["name"])

	assert.Error(t, c.SetSlotField(3, "name", "x"))
}

func TestSetProductQuantity(t *testing.T) {
	c := New(Options{SessionID: "s1", Tour: flatTour(), Catalog: testCatalog()})

	c.SetProductQuantity("p-lunch", 2)
	st := c.Snapshot()
	assert.Equal(t, []string{"p-lunch"}, st.Products)
	assert.Equal(t, 2, st.Quantities["p-lunch"])

	c.SetProductQuantity("p-lunch", 3)
	assert.Equal(t, 3, c.Snapshot().Quantities["p-lunch"])

	c.SetProductQuantity("p-lunch", 0)
	st = c.Snapshot()
	assert.Empty(t, st.Products)
	assert.NotContains(t, st.Quantities, "p-lunch")
}

func TestSubtotalFlatRateParty(t *testing.T) {
	c := New(Options{SessionID: "s1", Tour: flatTour()})
	c.IncreasePartySize()
	c.IncreasePartySize()

	assert.Equal(t, 150.0, c.Snapshot().Subtotal)
}

func TestSubtotalTieredSlots(t *testing.T) {
	c := New(Options{SessionID: "s1", Tour: tieredTour()})
	require.NoError(t, c.AddSlot("adult"))
	require.NoError(t, c.AddSlot("adult"))
	require.NoError(t, c.AddSlot("child"))

	assert.Equal(t, 100.0, c.Snapshot().Subtotal)
}

func TestSubtotalWithProducts(t *testing.T) {
	c := New(Options{SessionID: "s1", Tour: flatTour(), Catalog: testCatalog()})
	c.IncreasePartySize()
	c.IncreasePartySize()
	c.SetProductQuantity("p-lunch", 2)

	assert.Equal(t, 180.0, c.Snapshot().Subtotal)
}

func TestPromoAppliedReducesTotal(t *testing.T) {
	promos := &fakePromos{res: promo.Result{PromoID: "pr1", DiscountAmount: 20}}
	c := New(Options{SessionID: "s1", Tour: flatTour(), Promos: promos})
	c.IncreasePartySize() // subtotal 100

	c.ValidatePromo(context.Background(), "SAVE20")

	st := c.Snapshot()
	require.NotNil(t, st.Promo.Applied)
	assert.Equal(t, 100.0, promos.lastSubtotal)
	assert.Equal(t, 100.0, st.Subtotal)
	assert.Equal(t, 80.0, st.Total)
	assert.Empty(t, st.Promo.Notice)
}

func TestPromoFailureDegradesToNoDiscount(t *testing.T) {
	promos := &fakePromos{err: promo.ErrExpired}
	c := New(Options{SessionID: "s1", Tour: flatTour(), Promos: promos})
	c.IncreasePartySize()

	c.ValidatePromo(context.Background(), "OLD")

	st := c.Snapshot()
	assert.Nil(t, st.Promo.Applied)
	assert.Zero(t, st.Promo.Estimate)
	assert.Equal(t, st.Subtotal, st.Total)
	assert.Contains(t, st.Promo.Notice, "expired")
}

func TestApplyPromoResultDropsStaleGeneration(t *testing.T) {
	c := New(Options{SessionID: "s1", Tour: flatTour()})
	c.IncreasePartySize()

	stale, _ := c.RequestPromoValidation("FIRST")
	fresh, subtotal := c.RequestPromoValidation("SECOND")

	ok := c.ApplyPromoResult(stale, promo.Result{Code: "FIRST", Subtotal: subtotal, DiscountAmount: 50}, nil)
	assert.False(t, ok)
	assert.Nil(t, c.Snapshot().Promo.Applied)

	ok = c.ApplyPromoResult(fresh, promo.Result{Code: "SECOND", Subtotal: subtotal, DiscountAmount: 10}, nil)
	assert.True(t, ok)
	require.NotNil(t, c.Snapshot().Promo.Applied)
	assert.Equal(t, "SECOND", c.Snapshot().Promo.Applied.Code)
}

func TestAppliedPromoIgnoredAfterSubtotalDrift(t *testing.T) {
	promos := &fakePromos{res: promo.Result{PromoID: "pr1", DiscountAmount: 20}}
	c := New(Options{SessionID: "s1", Tour: flatTour(), Promos: promos})
	c.IncreasePartySize() // subtotal 100
	c.ValidatePromo(context.Background(), "SAVE20")

	c.IncreasePartySize() // subtotal 150, applied promo no longer matches

	st := c.Snapshot()
	assert.Equal(t, 150.0, st.Subtotal)
	// estimate still shows for display, but the applied amount is stale
	assert.Equal(t, 100.0, st.Promo.Applied.Subtotal)
}

func TestClearPromo(t *testing.T) {
	promos := &fakePromos{res: promo.Result{PromoID: "pr1", DiscountAmount: 20}}
	c := New(Options{SessionID: "s1", Tour: flatTour(), Promos: promos})
	c.IncreasePartySize()
	c.ValidatePromo(context.Background(), "SAVE20")

	c.ClearPromo()

	st := c.Snapshot()
	assert.Nil(t, st.Promo.Applied)
	assert.Empty(t, st.Promo.Code)
	assert.Equal(t, st.Subtotal, st.Total)
}

func TestSelectionChangeClearsPromoNotice(t *testing.T) {
	promos := &fakePromos{err: promo.ErrExpired}
	c := New(Options{SessionID: "s1", Tour: flatTour(), Promos: promos})
	c.IncreasePartySize()
	c.ValidatePromo(context.Background(), "OLD")
	require.NotEmpty(t, c.Snapshot().Promo.Notice)

	c.ChangeDate("2026-09-04")
	assert.Equal(t, PromoState{}, c.Snapshot().Promo)

	c.ValidatePromo(context.Background(), "OLD")
	require.NotEmpty(t, c.Snapshot().Promo.Notice)

	c.ChangeTour(tieredTour())
	assert.Equal(t, PromoState{}, c.Snapshot().Promo)
}

func TestSessionStaysResponsiveDuringSubmit(t *testing.T) {
	sub := &fakeSubmitter{result: models.CheckoutResult{Success: true, BookingID: "b1"}}
	c := reviewReadySession(sub, nil)

	var midSubmit State
	sub.inFlight = func() {
		midSubmit = c.Snapshot()
	}

	_, _, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StepReview, midSubmit.Step)
	assert.Equal(t, 50.0, midSubmit.Subtotal)
}

func reviewReadySession(sub *fakeSubmitter, promos *fakePromos) *Controller {
	opts := Options{
		SessionID: "sess-1",
		Tour:      flatTour(),
		Date:      "2026-09-04",
		TimeOfDay: "10:00",
		Catalog:   testCatalog(),
		Submitter: sub,
	}
	if promos != nil {
		opts.Promos = promos
	}
	c := New(opts)
	c.SetCustomer(validCustomer())
	c.SetPaymentMethod(models.PaymentCard)
	return c
}

func TestSubmitValidationFailureBlocksWithoutSideEffects(t *testing.T) {
	sub := &fakeSubmitter{}
	c := New(Options{
		SessionID: "sess-1",
		Tour:      flatTour(),
		Date:      "2026-09-04",
		TimeOfDay: "10:00",
		Submitter: sub,
	})
	c.SetCustomer(models.Customer{FirstName: "Maya", Email: "not-an-email", Phone: "123"})
	c.DecreasePartySize() // nothing selected

	result, verrs, err := c.Submit(context.Background())

	require.NoError(t, err)
	require.True(t, verrs.Any())
	assert.Contains(t, verrs.PersonalInfo, "last name is required")
	assert.Contains(t, verrs.PersonalInfo, "email address is not valid")
	assert.Contains(t, verrs.PersonalInfo, "phone number is too short")
	assert.Contains(t, verrs.Slots, "select at least one slot or product")
	assert.Contains(t, verrs.Payment, "select a payment method")
	assert.Zero(t, sub.calls)
	assert.Empty(t, result.BookingID)
	assert.Equal(t, StepReview, c.Snapshot().Step)
}

func TestSubmitBlockedWithoutTour(t *testing.T) {
	sub := &fakeSubmitter{}
	c := New(Options{SessionID: "sess-1", Catalog: testCatalog(), Submitter: sub})
	c.SetProductQuantity("p-lunch", 1)
	c.SetCustomer(validCustomer())
	c.SetPaymentMethod(models.PaymentCard)

	result, verrs, err := c.Submit(context.Background())

	require.NoError(t, err)
	require.True(t, verrs.Any())
	assert.Contains(t, verrs.Slots, "select a tour")
	assert.Zero(t, sub.calls)
	assert.Empty(t, result.BookingID)
}

func TestSubmitBlockedWithoutDateOrTime(t *testing.T) {
	sub := &fakeSubmitter{}
	c := New(Options{SessionID: "sess-1", Tour: flatTour(), Submitter: sub})
	c.SetCustomer(validCustomer())
	c.SetPaymentMethod(models.PaymentOnSite)

	_, verrs, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.True(t, verrs.Any())
	assert.Contains(t, verrs.Slots, "select a date")

	c.ChangeDate("2026-09-04")
	_, verrs, err = c.Submit(context.Background())
	require.NoError(t, err)
	require.True(t, verrs.Any())
	assert.Contains(t, verrs.Slots, "select a time")
	assert.Zero(t, sub.calls)
}

func TestSubmitPartyOverCapacityBlocked(t *testing.T) {
	sub := &fakeSubmitter{}
	c := reviewReadySession(sub, nil)
	gen := c.SelectTime("10:00")
	c.ApplyRemainingSlots(gen, 3)
	c.IncreasePartySize()
	c.IncreasePartySize()
	gen = c.SelectTime("10:00")
	c.ApplyRemainingSlots(gen, 1)

	// capacity applied after selection clamps, but a direct overrun is
	// caught again at submit
	c.mu.Lock()
	c.partySize = 4
	c.mu.Unlock()

	_, verrs, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.True(t, verrs.Any())
	assert.Contains(t, verrs.Slots[0], "remaining")
	assert.Zero(t, sub.calls)
}

func TestSubmitMissingSlotFieldBlocked(t *testing.T) {
	sub := &fakeSubmitter{}
	c := New(Options{
		SessionID: "sess-1",
		Tour:      tieredTour(),
		Date:      "2026-09-05",
		TimeOfDay: "09:00",
		Submitter: sub,
	})
	c.SetCustomer(validCustomer())
	c.SetPaymentMethod(models.PaymentOnSite)
	require.NoError(t, c.AddSlot("adult"))

	_, verrs, err := c.Submit(context.Background())
	require.NoError(t, err)
	require.True(t, verrs.Any())
	assert.Contains(t, verrs.Slots[0], "name")
	assert.Zero(t, sub.calls)
}

func TestSubmitSuccess(t *testing.T) {
	sub := &fakeSubmitter{result: models.CheckoutResult{
		Success:   true,
		BookingID: "b1",
		Reference: "TB-ABC1234567",
		PaymentID: "pay_1",
		EmailSent: true,
	}}
	c := reviewReadySession(sub, nil)

	result, verrs, err := c.Submit(context.Background())

	require.NoError(t, err)
	assert.False(t, verrs.Any())
	assert.Equal(t, "b1", result.BookingID)

	st := c.Snapshot()
	assert.Equal(t, StepComplete, st.Step)
	assert.Equal(t, "TB-ABC1234567", st.Reference)
	assert.Equal(t, "pay_1", st.PaymentID)

	in := sub.lastInput
	assert.Equal(t, "sess-1", in.SessionID)
	assert.Equal(t, "t-flat", in.TourID)
	assert.Equal(t, 1, in.PartySize)
	assert.Equal(t, 50.0, in.Subtotal)
	assert.Equal(t, 50.0, in.Total)
	assert.Equal(t, models.PaymentCard, in.PaymentMethod)
}

func TestSubmitCarriesProductLinesWithUnitPrices(t *testing.T) {
	sub := &fakeSubmitter{result: models.CheckoutResult{Success: true, BookingID: "b1"}}
	c := reviewReadySession(sub, nil)
	c.SetProductQuantity("p-photos", 1)
	c.SetProductQuantity("p-lunch", 2)

	_, _, err := c.Submit(context.Background())
	require.NoError(t, err)

	require.Len(t, sub.lastInput.Products, 2)
	assert.Equal(t, models.ProductLine{ProductID: "p-photos", Quantity: 1, UnitPrice: 25}, sub.lastInput.Products[0])
	assert.Equal(t, models.ProductLine{ProductID: "p-lunch", Quantity: 2, UnitPrice: 15}, sub.lastInput.Products[1])
	assert.Equal(t, 105.0, sub.lastInput.Subtotal)
}

func TestSubmitFailureRemembersBookingForRetry(t *testing.T) {
	sub := &fakeSubmitter{
		result: models.CheckoutResult{BookingID: "b1", Reference: "TB-ABC1234567"},
		err:    errors.New("payment declined"),
	}
	c := reviewReadySession(sub, nil)

	result, verrs, err := c.Submit(context.Background())
	require.Error(t, err)
	assert.Nil(t, verrs)
	assert.Equal(t, "b1", result.BookingID)
	assert.NotEqual(t, StepComplete, c.Snapshot().Step)

	// retry reuses the created booking instead of creating a duplicate
	sub.result = models.CheckoutResult{Success: true, BookingID: "b1", Reference: "TB-ABC1234567"}
	sub.err = nil

	_, _, err = c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sub.calls)
	assert.Equal(t, "b1", sub.lastInput.ExistingBookingID)
	assert.Equal(t, StepComplete, c.Snapshot().Step)
}

func TestSubmitSuccessWithoutBookingIDIsError(t *testing.T) {
	sub := &fakeSubmitter{result: models.CheckoutResult{Success: true}}
	c := reviewReadySession(sub, nil)

	_, _, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrMissingBookingID)
	assert.NotEqual(t, StepComplete, c.Snapshot().Step)
}

func TestSubmitRevalidatesPromoOnDrift(t *testing.T) {
	promos := &fakePromos{res: promo.Result{PromoID: "pr1", DiscountAmount: 20}}
	sub := &fakeSubmitter{result: models.CheckoutResult{Success: true, BookingID: "b1"}}
	c := reviewReadySession(sub, promos)
	c.ValidatePromo(context.Background(), "SAVE20") // validated against 50

	c.IncreasePartySize() // subtotal now 100, applied promo stale

	_, _, err := c.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, promos.calls)
	assert.Equal(t, 100.0, promos.lastSubtotal)
	assert.Equal(t, 20.0, sub.lastInput.DiscountAmount)
	assert.Equal(t, 80.0, sub.lastInput.Total)
	assert.Equal(t, "pr1", sub.lastInput.PromoID)
}

func TestSubmitPromoRevalidationFailureDegrades(t *testing.T) {
	promos := &fakePromos{res: promo.Result{PromoID: "pr1", DiscountAmount: 20}}
	sub := &fakeSubmitter{result: models.CheckoutResult{Success: true, BookingID: "b1"}}
	c := reviewReadySession(sub, promos)
	c.ValidatePromo(context.Background(), "SAVE20")

	c.IncreasePartySize()
	promos.err = promo.ErrMinSubtotal

	_, _, err := c.Submit(context.Background())
	require.NoError(t, err)

	assert.Zero(t, sub.lastInput.DiscountAmount)
	assert.Empty(t, sub.lastInput.PromoID)
	assert.Equal(t, sub.lastInput.Subtotal, sub.lastInput.Total)
	assert.Contains(t, c.Snapshot().Promo.Notice, "minimum")
}

func TestSubmitAdditionalModeCarriesBaseReference(t *testing.T) {
	sub := &fakeSubmitter{result: models.CheckoutResult{Success: true, BookingID: "b2", Reference: "TB-ABC1234567"}}
	c := New(Options{
		SessionID:     "sess-2",
		Tour:          flatTour(),
		BaseReference: "TB-ABC1234567",
		CreatedBy:     "maya@example.com",
		Submitter:     sub,
	})
	c.Advance()
	c.Advance()
	c.ChangeDate("2026-09-07")
	c.SelectTime("14:00")
	c.Advance()
	c.SetCustomer(validCustomer())
	c.SetPaymentMethod(models.PaymentOnSite)

	_, _, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "TB-ABC1234567", sub.lastInput.BaseReference)
	assert.Equal(t, "maya@example.com", sub.lastInput.CreatedBy)
}

func TestSubmitCarriesPaymentIntent(t *testing.T) {
	sub := &fakeSubmitter{result: models.CheckoutResult{Success: true, BookingID: "b1"}}
	c := reviewReadySession(sub, nil)
	c.SetPaymentIntent("pi_123")

	_, _, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pi_123", sub.lastInput.PaymentIntentID)
}
