package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tour-booking-system/internal/availability"
	"tour-booking-system/internal/database"
	"tour-booking-system/internal/models"
	"tour-booking-system/internal/payments"
	"tour-booking-system/internal/pricing"
	"tour-booking-system/internal/promo"
	"tour-booking-system/internal/wizard"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const sessionTTL = 2 * time.Hour

type Handler struct {
	DB           *database.DB
	Availability *availability.Service
	Promos       *promo.Service
	Payments     *payments.Client
	Checkout     *CheckoutClient

	sessions *sessionStore
}

func NewHandler(db *database.DB, avail *availability.Service, promos *promo.Service,
	payClient *payments.Client, checkout *CheckoutClient) *Handler {
	return &Handler{
		DB:           db,
		Availability: avail,
		Promos:       promos,
		Payments:     payClient,
		Checkout:     checkout,
		sessions:     newSessionStore(sessionTTL),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Health check endpoint
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// ListTours returns the tour catalog
func (h *Handler) ListTours(w http.ResponseWriter, r *http.Request) {
	tours, err := h.DB.ListTours(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list tours: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, tours)
}

// GetTour returns one tour with its parsed pricing configuration
func (h *Handler) GetTour(w http.ResponseWriter, r *http.Request) {
	tourID := mux.Vars(r)["tourId"]

	tour, err := h.DB.GetTour(r.Context(), tourID)
	if err != nil {
		if errors.Is(err, database.ErrTourNotFound) {
			writeError(w, http.StatusNotFound, "tour not found")
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get tour: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, tour)
}

// ListProducts returns the add-on product catalog
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.DB.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list products: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// GetRemainingSlots returns advisory capacity for an exact schedule instance
func (h *Handler) GetRemainingSlots(w http.ResponseWriter, r *http.Request) {
	tourID := mux.Vars(r)["tourId"]
	date := r.URL.Query().Get("date")
	timeOfDay := r.URL.Query().Get("time")

	if date == "" || timeOfDay == "" {
		writeError(w, http.StatusBadRequest, "date and time are required")
		return
	}

	remaining, err := h.Availability.RemainingSlots(r.Context(), tourID, date, timeOfDay)
	if err != nil {
		if errors.Is(err, database.ErrTourNotFound) {
			writeError(w, http.StatusNotFound, "tour not found")
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get availability: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, models.RemainingSlotsResponse{
		TourID:         tourID,
		Date:           date,
		TimeOfDay:      timeOfDay,
		RemainingSlots: remaining,
	})
}

// FullyBookedDates returns the subset of candidate dates with no capacity left
func (h *Handler) FullyBookedDates(w http.ResponseWriter, r *http.Request) {
	tourID := mux.Vars(r)["tourId"]

	var req models.FullyBookedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	dates, err := h.Availability.FullyBookedDates(r.Context(), tourID, req.Dates)
	if err != nil {
		if errors.Is(err, database.ErrTourNotFound) {
			writeError(w, http.StatusNotFound, "tour not found")
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to check dates: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, models.FullyBookedResponse{TourID: tourID, Dates: dates})
}

// ValidatePromo validates a code against a proposed subtotal. Failures
// degrade to no discount with the unmodified subtotal, never an error status.
func (h *Handler) ValidatePromo(w http.ResponseWriter, r *http.Request) {
	var req models.ValidatePromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	result, err := h.Promos.Validate(r.Context(), req.Code, req.TotalAmount)
	if err != nil {
		writeJSON(w, http.StatusOK, models.ValidatePromoResponse{
			Success:  false,
			Subtotal: req.TotalAmount,
			Total:    req.TotalAmount,
			Message:  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, models.ValidatePromoResponse{
		Success:        true,
		Subtotal:       result.Subtotal,
		DiscountAmount: result.DiscountAmount,
		Total:          result.FinalAmount,
	})
}

// CreateSession opens a checkout session. A base reference switches to
// additional-booking mode prefilled from the existing reservation; a known
// tour (and optionally date/time) short-circuits entry past the early steps.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	catalog, err := h.DB.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load products: %v", err))
		return
	}

	opts := wizard.Options{
		SessionID:     uuid.New().String(),
		BaseReference: req.BaseReference,
		CreatedBy:     req.CreatedBy,
		Catalog:       catalog,
		Availability:  h.Availability,
		Promos:        h.Promos,
		Submitter:     h.Checkout,
	}

	tourID := req.TourID
	if req.BaseReference != "" {
		base, err := h.DB.GetBookingByReference(r.Context(), req.BaseReference)
		if err != nil {
			if errors.Is(err, database.ErrBookingNotFound) {
				writeError(w, http.StatusNotFound, "booking reference not found")
				return
			}
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load booking: %v", err))
			return
		}
		tourID = base.TourID
		opts.Date = base.Date
		opts.TimeOfDay = base.TimeOfDay
	} else {
		opts.Date = req.Date
		opts.TimeOfDay = req.TimeOfDay
	}

	if tourID != "" {
		tour, err := h.DB.GetTour(r.Context(), tourID)
		if err != nil {
			if errors.Is(err, database.ErrTourNotFound) {
				writeError(w, http.StatusNotFound, "tour not found")
				return
			}
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load tour: %v", err))
			return
		}
		opts.Tour = tour
	}

	ctrl := wizard.New(opts)
	h.sessions.Put(opts.SessionID, ctrl)

	// Prefilled sessions get an initial capacity read; failure leaves the
	// count unknown in the snapshot.
	_ = ctrl.RefreshAvailability(r.Context())

	writeJSON(w, http.StatusCreated, ctrl.Snapshot())
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*wizard.Controller, bool) {
	id := mux.Vars(r)["sessionId"]
	ctrl, ok := h.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return ctrl, true
}

// GetSession returns the current session snapshot
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// AdvanceSession moves the wizard forward when the step is complete
func (h *Handler) AdvanceSession(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	ctrl.Advance()
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// RetreatSession moves back one step; at the first step it reports that the
// wizard should close, with Dirty driving the confirm prompt.
func (h *Handler) RetreatSession(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	closed := ctrl.Retreat()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"closed":   closed,
		"dirty":    ctrl.Dirty(),
		"snapshot": ctrl.Snapshot(),
	})
}

// SelectTour replaces the session's tour and resets downstream state
func (h *Handler) SelectTour(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		TourID string `json:"tourId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	tour, err := h.DB.GetTour(r.Context(), req.TourID)
	if err != nil {
		if errors.Is(err, database.ErrTourNotFound) {
			writeError(w, http.StatusNotFound, "tour not found")
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load tour: %v", err))
		return
	}

	ctrl.ChangeTour(tour)
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// SelectDate picks a calendar date, invalidating the previous time selection
func (h *Handler) SelectDate(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ctrl.ChangeDate(req.Date)
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// SelectTime picks a time of day and refetches remaining capacity. A stale
// response for a superseded selection is dropped by the controller.
func (h *Handler) SelectTime(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		TimeOfDay string `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ctrl.SelectTime(req.TimeOfDay)
	if err := ctrl.RefreshAvailability(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("failed to fetch availability: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// AdjustParty grows or shrinks the party on flat-rate tours
func (h *Handler) AdjustParty(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Action string `json:"action"` // increase | decrease
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	switch req.Action {
	case "increase":
		ctrl.IncreasePartySize()
	case "decrease":
		ctrl.DecreasePartySize()
	default:
		writeError(w, http.StatusBadRequest, "action must be increase or decrease")
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// AddSlot adds a seat of a named slot type
func (h *Handler) AddSlot(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if err := ctrl.AddSlot(req.Type); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// RemoveSlot drops a seat by index
func (h *Handler) RemoveSlot(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ctrl.RemoveSlot(req.Index)
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// SetSlotField records a custom field value on a seat
func (h *Handler) SetSlotField(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Index int    `json:"index"`
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if err := ctrl.SetSlotField(req.Index, req.Name, req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// SetProduct sets an add-on quantity; zero removes the selection
func (h *Handler) SetProduct(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ctrl.SetProductQuantity(req.ProductID, req.Quantity)
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// SetCustomer records the customer's contact details
func (h *Handler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	var cust models.Customer
	if err := json.NewDecoder(r.Body).Decode(&cust); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ctrl.SetCustomer(cust)
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// SetPaymentMethod records the chosen payment method
func (h *Handler) SetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ctrl.SetPaymentMethod(req.Method)
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// CreatePaymentIntent initializes a pending charge for the current total and
// attaches it to the session so checkout confirms it after the booking lands.
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	snap := ctrl.Snapshot()
	if snap.Tour == nil {
		writeError(w, http.StatusBadRequest, "no tour selected")
		return
	}
	if snap.Total <= 0 {
		writeError(w, http.StatusBadRequest, "nothing to charge")
		return
	}

	intent, err := h.Payments.CreateIntent(r.Context(), payments.IntentRequest{
		Amount:      pricing.ToCents(snap.Total),
		Currency:    "usd",
		Email:       snap.Customer.Email,
		Description: fmt.Sprintf("%s on %s %s", snap.Tour.Name, snap.Date, snap.TimeOfDay),
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("failed to create payment intent: %v", err))
		return
	}

	ctrl.SetPaymentIntent(intent.IntentID)
	writeJSON(w, http.StatusOK, intent)
}

// ApplyPromo validates a code for the session's current subtotal
func (h *Handler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if req.Code == "" {
		ctrl.ClearPromo()
	} else {
		ctrl.ValidatePromo(r.Context(), req.Code)
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// SubmitSession runs the checkout sequence for the assembled draft
func (h *Handler) SubmitSession(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	result, verrs, err := ctrl.Submit(r.Context())
	if verrs.Any() {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "validation failed",
			"errors": verrs,
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":     err.Error(),
			"bookingId": result.BookingID,
			"reference": result.Reference,
		})
		return
	}

	snap := ctrl.Snapshot()
	h.Availability.Invalidate(r.Context(), snap.Tour.TourID, snap.Date, snap.TimeOfDay)

	writeJSON(w, http.StatusOK, result)
}

// DeleteSession discards a session and its draft state
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(mux.Vars(r)["sessionId"])
	writeJSON(w, http.StatusOK, map[string]string{"message": "session closed"})
}
