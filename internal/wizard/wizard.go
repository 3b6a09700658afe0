// Package wizard implements the checkout session state machine: step
// transitions, draft aggregation, and submission. All state is owned by the
// Controller and handed out only as snapshots; collaborators are injected as
// interfaces so a session is constructible without a live backend.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tour-booking-system/internal/models"
	"tour-booking-system/internal/pricing"
	"tour-booking-system/internal/promo"
)

// Step is a checkout wizard step
type Step int

const (
	StepIntro Step = iota // additional-booking mode only
	StepSelectTour
	StepSelectDateTime
	StepReview
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepIntro:
		return "intro"
	case StepSelectTour:
		return "select_tour"
	case StepSelectDateTime:
		return "select_datetime"
	case StepReview:
		return "review"
	case StepComplete:
		return "complete"
	}
	return "unknown"
}

// ErrMissingBookingID is returned when the checkout reports success without a
// booking identifier; treated as a hard failure.
var ErrMissingBookingID = errors.New("checkout succeeded without a booking id")

// RemainingUnknown marks a schedule instance whose capacity has not been
// fetched yet.
const RemainingUnknown = -1

// AppliedPromo is a server-confirmed discount, valid only for the exact
// subtotal it was validated against.
type AppliedPromo struct {
	PromoID        string  `json:"promoId"`
	Code           string  `json:"code"`
	DiscountAmount float64 `json:"discountAmount"`
	Subtotal       float64 `json:"subtotal"`
}

// PromoState carries the entered code, a display-only estimate, and the
// authoritative applied discount. Only Applied ever gates a charge.
type PromoState struct {
	Code     string        `json:"code,omitempty"`
	Estimate float64       `json:"estimate"`
	Applied  *AppliedPromo `json:"applied,omitempty"`
	Notice   string        `json:"notice,omitempty"`
}

// AvailabilityService reads advisory capacity for schedule instances
type AvailabilityService interface {
	RemainingSlots(ctx context.Context, tourID, date, timeOfDay string) (int, error)
}

// PromoValidator is the trusted remote discount validator
type PromoValidator interface {
	Validate(ctx context.Context, code string, subtotal float64) (promo.Result, error)
}

// Submitter runs the checkout sequence for an assembled draft
type Submitter interface {
	Submit(ctx context.Context, input models.CheckoutInput) (models.CheckoutResult, error)
}

// State is a read-only snapshot of a session
type State struct {
	SessionID      string              `json:"sessionId"`
	Step           Step                `json:"-"`
	StepName       string              `json:"step"`
	AdditionalMode bool                `json:"additionalMode,omitempty"`
	BaseReference  string              `json:"baseReference,omitempty"`
	Tour           *models.Tour        `json:"tour,omitempty"`
	Date           string              `json:"date,omitempty"`
	TimeOfDay      string              `json:"time,omitempty"`
	RemainingSlots int                 `json:"remainingSlots"`
	PartySize      int                 `json:"partySize"`
	SlotDetails    []models.SlotDetail `json:"slotDetails,omitempty"`
	Products       []string            `json:"products,omitempty"`
	Quantities     map[string]int      `json:"quantities,omitempty"`
	Customer       models.Customer     `json:"customer"`
	PaymentMethod  string              `json:"paymentMethod,omitempty"`
	Promo          PromoState          `json:"promo"`
	Subtotal       float64             `json:"subtotal"`
	Total          float64             `json:"total"`
	BookingID      string              `json:"bookingId,omitempty"`
	Reference      string              `json:"reference,omitempty"`
	PaymentID      string              `json:"paymentId,omitempty"`
}

// Options configures a new session. A prefilled tour/date/time short-circuits
// entry to the review step; tour alone starts at date selection.
type Options struct {
	SessionID     string
	Tour          *models.Tour
	Date          string
	TimeOfDay     string
	BaseReference string // non-empty switches to additional-booking mode
	CreatedBy     string
	Catalog       []models.Product

	Availability AvailabilityService
	Promos       PromoValidator
	Submitter    Submitter
}

// Controller owns all wizard state for one checkout session
type Controller struct {
	mu sync.Mutex

	sessionID      string
	step           Step
	additionalMode bool
	baseReference  string
	createdBy      string
	catalog        []models.Product

	tour           *models.Tour
	date           string
	timeOfDay      string
	remainingSlots int
	partySize      int // flat-rate tours only; custom tours derive from slots
	slots          []models.SlotDetail
	products       []string
	quantities     map[string]int
	customer       models.Customer
	paymentMethod  string
	paymentIntent  string

	promoState PromoState

	existingBookingID string
	reference         string
	paymentID         string

	availGen uint64
	promoGen uint64
	dirty    bool

	availability AvailabilityService
	promos       PromoValidator
	submitter    Submitter
}

func New(opts Options) *Controller {
	c := &Controller{
		sessionID:      opts.SessionID,
		additionalMode: opts.BaseReference != "",
		baseReference:  opts.BaseReference,
		createdBy:      opts.CreatedBy,
		catalog:        opts.Catalog,
		remainingSlots: RemainingUnknown,
		quantities:     make(map[string]int),
		availability:   opts.Availability,
		promos:         opts.Promos,
		submitter:      opts.Submitter,
	}

	if opts.Tour != nil {
		c.tour = opts.Tour
		c.partySize = minPartySize(opts.Tour)
		c.date = opts.Date
		c.timeOfDay = opts.TimeOfDay
	}

	switch {
	case c.additionalMode:
		c.step = StepIntro
	case c.tour != nil && c.date != "" && c.timeOfDay != "":
		c.step = StepReview
	case c.tour != nil:
		c.step = StepSelectDateTime
	default:
		c.step = StepSelectTour
	}

	return c
}

func minPartySize(t *models.Tour) int {
	if t != nil && t.HasSlotTypes() {
		return 0
	}
	return 1
}

// effectivePartySize is the derived party size: slot count for custom-type
// tours, the standalone counter otherwise.
func (c *Controller) effectivePartySize() int {
	if c.tour != nil && c.tour.HasSlotTypes() {
		return len(c.slots)
	}
	return c.partySize
}

func (c *Controller) subtotalLocked() float64 {
	return pricing.Subtotal(c.tour, c.slots, c.partySize, c.products, c.quantities, c.catalog)
}

// displayDiscountLocked prefers the authoritative discount when it is still
// tied to the current subtotal, falling back to the estimate for display.
func (c *Controller) displayDiscountLocked(subtotal float64) float64 {
	if c.promoState.Applied != nil && c.promoState.Applied.Subtotal == subtotal {
		return c.promoState.Applied.DiscountAmount
	}
	return c.promoState.Estimate
}

// Snapshot returns a copy of the session state with computed totals
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	subtotal := c.subtotalLocked()
	discount := c.displayDiscountLocked(subtotal)

	st := State{
		SessionID:      c.sessionID,
		Step:           c.step,
		StepName:       c.step.String(),
		AdditionalMode: c.additionalMode,
		BaseReference:  c.baseReference,
		Tour:           c.tour,
		Date:           c.date,
		TimeOfDay:      c.timeOfDay,
		RemainingSlots: c.remainingSlots,
		PartySize:      c.effectivePartySize(),
		SlotDetails:    append([]models.SlotDetail(nil), c.slots...),
		Products:       append([]string(nil), c.products...),
		Quantities:     make(map[string]int, len(c.quantities)),
		Customer:       c.customer,
		PaymentMethod:  c.paymentMethod,
		Promo:          c.promoState,
		Subtotal:       subtotal,
		Total:          pricing.Total(subtotal, discount),
		BookingID:      c.existingBookingID,
		Reference:      c.reference,
		PaymentID:      c.paymentID,
	}
	for k, v := range c.quantities {
		st.Quantities[k] = v
	}
	if c.promoState.Applied != nil {
		applied := *c.promoState.Applied
		st.Promo.Applied = &applied
	}
	return st
}

// Dirty reports whether anything beyond the entry step has happened; callers
// use it to decide whether closing needs a confirmation prompt.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

func (c *Controller) firstStep() Step {
	if c.additionalMode {
		return StepIntro
	}
	return StepSelectTour
}

// Advance moves forward one step when the current step's required fields are
// present. No-op otherwise.
func (c *Controller) Advance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.step {
	case StepIntro:
		c.step = StepSelectTour
	case StepSelectTour:
		if c.tour == nil {
			return false
		}
		c.step = StepSelectDateTime
	case StepSelectDateTime:
		if c.date == "" || c.timeOfDay == "" {
			return false
		}
		c.step = StepReview
	default:
		// Review advances only through Submit; Complete is terminal
		return false
	}

	c.dirty = true
	return true
}

// Retreat moves back one step. At the first step it reports that the wizard
// should close instead.
func (c *Controller) Retreat() (closed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step == c.firstStep() {
		return true
	}

	switch c.step {
	case StepSelectTour:
		c.step = StepIntro
	case StepSelectDateTime:
		c.step = StepSelectTour
	case StepReview:
		c.step = StepSelectDateTime
	case StepComplete:
		// terminal, nothing to go back to
	}
	return false
}

// ChangeTour replaces the tour selection and clears everything downstream:
// schedule, party size, slot details, products, and any applied promo. A
// session past date selection is forced back to it.
func (c *Controller) ChangeTour(t *models.Tour) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tour = t
	c.date = ""
	c.timeOfDay = ""
	c.remainingSlots = RemainingUnknown
	c.partySize = minPartySize(t)
	c.slots = nil
	c.products = nil
	c.quantities = make(map[string]int)
	c.promoState = PromoState{}
	c.availGen++
	c.dirty = true

	if c.step > StepSelectDateTime && c.step != StepComplete {
		c.step = StepSelectDateTime
	}
}

// ChangeDate clears the selected time and occupancy-dependent fields and
// bumps the availability generation. The returned generation must accompany
// the follow-up ApplyRemainingSlots call.
func (c *Controller) ChangeDate(date string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.date = date
	c.timeOfDay = ""
	c.remainingSlots = RemainingUnknown
	c.partySize = minPartySize(c.tour)
	c.slots = nil
	c.products = nil
	c.quantities = make(map[string]int)
	c.promoState = PromoState{}
	c.availGen++
	c.dirty = true

	return c.availGen
}

// SelectTime picks a time of day and returns the generation for the
// remaining-slots refetch.
func (c *Controller) SelectTime(timeOfDay string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timeOfDay = timeOfDay
	c.remainingSlots = RemainingUnknown
	c.availGen++
	c.dirty = true

	return c.availGen
}

// ApplyRemainingSlots records a fetched capacity count. A response fetched
// for a selection that is no longer current is ignored (last write wins by
// selection identity). Party size is clamped so it never exceeds capacity.
func (c *Controller) ApplyRemainingSlots(gen uint64, remaining int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.availGen {
		return false
	}

	c.remainingSlots = remaining
	if c.tour != nil && c.tour.HasSlotTypes() {
		if len(c.slots) > remaining {
			c.slots = c.slots[:remaining]
		}
	} else if c.partySize > remaining {
		c.partySize = remaining
	}
	return true
}

// RefreshAvailability runs the fetch half of the generation-guarded update
// against the configured availability service.
func (c *Controller) RefreshAvailability(ctx context.Context) error {
	c.mu.Lock()
	if c.availability == nil || c.tour == nil || c.date == "" || c.timeOfDay == "" {
		c.mu.Unlock()
		return nil
	}
	gen := c.availGen
	tourID, date, timeOfDay := c.tour.TourID, c.date, c.timeOfDay
	c.mu.Unlock()

	remaining, err := c.availability.RemainingSlots(ctx, tourID, date, timeOfDay)
	if err != nil {
		return err
	}
	c.ApplyRemainingSlots(gen, remaining)
	return nil
}

// IncreasePartySize grows the party by one on flat-rate tours, bounded by
// remaining capacity and the group size limit. No-op when full.
func (c *Controller) IncreasePartySize() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tour == nil || c.tour.HasSlotTypes() {
		return
	}
	if c.remainingSlots != RemainingUnknown && c.partySize >= c.remainingSlots {
		return
	}
	if c.tour.GroupSizeLimit > 0 && c.partySize >= c.tour.GroupSizeLimit {
		return
	}
	c.partySize++
	c.dirty = true
}

// DecreasePartySize shrinks the party by one, floored at zero
func (c *Controller) DecreasePartySize() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tour == nil || c.tour.HasSlotTypes() {
		return
	}
	if c.partySize > 0 {
		c.partySize--
		c.dirty = true
	}
}

// AddSlot appends a seat of the named type with its price snapshotted from
// the current definition.
func (c *Controller) AddSlot(typeName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tour == nil || !c.tour.HasSlotTypes() {
		return errors.New("tour does not use custom slot types")
	}
	st, ok := c.tour.SlotTypeByName(typeName)
	if !ok {
		return fmt.Errorf("unknown slot type %q", typeName)
	}
	if c.remainingSlots != RemainingUnknown && len(c.slots) >= c.remainingSlots {
		return fmt.Errorf("no remaining slots")
	}
	if c.tour.GroupSizeLimit > 0 && len(c.slots) >= c.tour.GroupSizeLimit {
		return fmt.Errorf("group size limit reached")
	}

	c.slots = append(c.slots, models.SlotDetail{Type: st.Name, Price: st.Price})
	c.dirty = true
	return nil
}

// RemoveSlot drops the i-th seat
func (c *Controller) RemoveSlot(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i < 0 || i >= len(c.slots) {
		return
	}
	c.slots = append(c.slots[:i], c.slots[i+1:]...)
	c.dirty = true
}

// SetSlotField records a custom field value on the i-th seat
func (c *Controller) SetSlotField(i int, name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i < 0 || i >= len(c.slots) {
		return fmt.Errorf("no slot at index %d", i)
	}
	if c.slots[i].Fields == nil {
		c.slots[i].Fields = make(map[string]string)
	}
	c.slots[i].Fields[name] = value
	c.dirty = true
	return nil
}

// SetProductQuantity adds or updates a product selection. A quantity below 1
// removes the product and its quantity entry together.
func (c *Controller) SetProductQuantity(productID string, qty int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if qty < 1 {
		for i, id := range c.products {
			if id == productID {
				c.products = append(c.products[:i], c.products[i+1:]...)
				break
			}
		}
		delete(c.quantities, productID)
		c.dirty = true
		return
	}

	found := false
	for _, id := range c.products {
		if id == productID {
			found = true
			break
		}
	}
	if !found {
		c.products = append(c.products, productID)
	}
	c.quantities[productID] = qty
	c.dirty = true
}

func (c *Controller) SetCustomer(cust models.Customer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customer = cust
	c.dirty = true
}

func (c *Controller) SetPaymentMethod(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paymentMethod = method
	c.dirty = true
}

// SetPaymentIntent records a pre-initialized payment intent id so the
// checkout confirms it instead of creating a new one.
func (c *Controller) SetPaymentIntent(intentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paymentIntent = intentID
}

// RequestPromoValidation stages a code for validation and returns the
// generation plus the subtotal to validate against. Rapid re-requests bump
// the generation so only the last completed validation lands.
func (c *Controller) RequestPromoValidation(code string) (gen uint64, subtotal float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.promoState.Code = code
	c.promoGen++
	return c.promoGen, c.subtotalLocked()
}

// ApplyPromoResult records the validator's answer. Failures clear the
// applied promo and degrade to no discount; stale generations are dropped.
func (c *Controller) ApplyPromoResult(gen uint64, res promo.Result, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.promoGen {
		return false
	}

	if err != nil {
		c.promoState.Applied = nil
		c.promoState.Estimate = 0
		c.promoState.Notice = err.Error()
		return true
	}

	c.promoState.Applied = &AppliedPromo{
		PromoID:        res.PromoID,
		Code:           res.Code,
		DiscountAmount: res.DiscountAmount,
		Subtotal:       res.Subtotal,
	}
	c.promoState.Estimate = res.DiscountAmount
	c.promoState.Notice = ""
	return true
}

// ValidatePromo runs the full round trip against the configured validator.
func (c *Controller) ValidatePromo(ctx context.Context, code string) {
	if c.promos == nil {
		return
	}
	gen, subtotal := c.RequestPromoValidation(code)
	res, err := c.promos.Validate(ctx, code, subtotal)
	c.ApplyPromoResult(gen, res, err)
}

// ClearPromo removes the entered code and any applied discount
func (c *Controller) ClearPromo() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.promoState = PromoState{}
}

// Submit validates the draft, reconciles the promo against the exact
// subtotal being charged, and runs the checkout sequence. Validation
// failures block submission with no side effects. The lock is released
// around the remote calls so snapshots and commands stay responsive while
// a checkout is in flight; the draft is validated again when the input is
// assembled. A booking id returned by a failed checkout is remembered so a
// retry reuses it instead of creating a duplicate.
func (c *Controller) Submit(ctx context.Context) (models.CheckoutResult, *ValidationErrors, error) {
	c.mu.Lock()
	subtotal := c.subtotalLocked()
	if verrs := c.validateForPayment(); verrs.Any() {
		c.mu.Unlock()
		return models.CheckoutResult{}, verrs, nil
	}

	revalidateCode := ""
	if c.promoState.Applied != nil && c.promoState.Applied.Subtotal != subtotal && c.promos != nil {
		revalidateCode = c.promoState.Applied.Code
	}
	c.mu.Unlock()

	// Promo reconciliation: the applied discount must be tied to the exact
	// subtotal being charged. Revalidate on drift; failures degrade to no
	// discount rather than blocking checkout.
	if revalidateCode != "" {
		res, err := c.promos.Validate(ctx, revalidateCode, subtotal)
		c.mu.Lock()
		if err != nil {
			c.promoState.Applied = nil
			c.promoState.Estimate = 0
			c.promoState.Notice = err.Error()
		} else {
			c.promoState.Applied = &AppliedPromo{
				PromoID:        res.PromoID,
				Code:           res.Code,
				DiscountAmount: res.DiscountAmount,
				Subtotal:       res.Subtotal,
			}
			c.promoState.Estimate = res.DiscountAmount
			c.promoState.Notice = ""
		}
		c.mu.Unlock()
	}

	// Assemble the input from current state: a command may have landed while
	// the promo round trip ran, so the draft is re-validated here.
	c.mu.Lock()
	subtotal = c.subtotalLocked()
	if verrs := c.validateForPayment(); verrs.Any() {
		c.mu.Unlock()
		return models.CheckoutResult{}, verrs, nil
	}

	var discount float64
	var promoID, promoCode string
	if a := c.promoState.Applied; a != nil && a.Subtotal == subtotal {
		discount = a.DiscountAmount
		promoID = a.PromoID
		promoCode = a.Code
	}

	input := models.CheckoutInput{
		SessionID:         c.sessionID,
		ExistingBookingID: c.existingBookingID,
		Customer:          c.customer,
		TourID:            c.tour.TourID,
		TourName:          c.tour.Name,
		Date:              c.date,
		TimeOfDay:         c.timeOfDay,
		PartySize:         c.effectivePartySize(),
		SlotDetails:       append([]models.SlotDetail(nil), c.slots...),
		Subtotal:          subtotal,
		DiscountAmount:    discount,
		Total:             pricing.Total(subtotal, discount),
		PromoID:           promoID,
		PromoCode:         promoCode,
		PaymentMethod:     c.paymentMethod,
		PaymentIntentID:   c.paymentIntent,
		CreatedBy:         c.createdBy,
		BaseReference:     c.baseReference,
	}
	for _, id := range c.products {
		line := models.ProductLine{ProductID: id, Quantity: c.quantities[id]}
		if line.Quantity < 1 {
			line.Quantity = 1
		}
		for _, p := range c.catalog {
			if p.ProductID == id {
				line.UnitPrice = p.Price
				break
			}
		}
		input.Products = append(input.Products, line)
	}
	c.mu.Unlock()

	result, err := c.submitter.Submit(ctx, input)

	c.mu.Lock()
	defer c.mu.Unlock()

	if result.BookingID != "" {
		// Remember the created booking even on failure so a retry confirms
		// payment against it instead of creating a duplicate.
		c.existingBookingID = result.BookingID
		c.reference = result.Reference
	}
	if err != nil {
		return result, nil, err
	}
	if result.BookingID == "" {
		return result, nil, ErrMissingBookingID
	}

	c.paymentID = result.PaymentID
	c.step = StepComplete
	return result, nil, nil
}
