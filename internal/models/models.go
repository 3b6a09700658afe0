package models

import "time"

// Booking statuses
const (
	BookingPending       = "PENDING"
	BookingConfirmed     = "CONFIRMED"
	BookingPaymentFailed = "PAYMENT_FAILED"
	BookingCancelled     = "CANCELLED"
)

// Payment method tags
const (
	PaymentCard   = "card"
	PaymentOnSite = "on_site"
)

// Tour represents a bookable tour and its pricing configuration
type Tour struct {
	TourID         string      `json:"tourId" db:"tour_id"`
	Name           string      `json:"name" db:"name"`
	Rate           float64     `json:"rate" db:"rate"`
	GroupSizeLimit int         `json:"groupSizeLimit" db:"group_size_limit"`
	Weekdays       []string    `json:"weekdays"`
	Times          []string    `json:"times"` // HH:mm, tour-local
	SlotTypes      []SlotType  `json:"slotTypes,omitempty"`
	SlotFields     []SlotField `json:"slotFields,omitempty"`
}

// HasSlotTypes reports whether the tour prices per named slot type
// instead of a flat per-person rate.
func (t *Tour) HasSlotTypes() bool {
	return len(t.SlotTypes) > 0
}

func (t *Tour) SlotTypeByName(name string) (SlotType, bool) {
	for _, st := range t.SlotTypes {
		if st.Name == name {
			return st, true
		}
	}
	return SlotType{}, false
}

func (t *Tour) RunsOn(weekday string) bool {
	for _, w := range t.Weekdays {
		if w == weekday {
			return true
		}
	}
	return false
}

// SlotType is a named pricing tier (e.g. adult/child)
type SlotType struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// SlotDetail is one purchased seat. Price is a point-in-time snapshot copied
// from the matching slot type at selection time, never recomputed later.
type SlotDetail struct {
	Type   string            `json:"type"` // empty for flat-rate tours
	Price  float64           `json:"price"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Product is an add-on sold alongside a booking
type Product struct {
	ProductID string  `json:"productId" db:"product_id"`
	Name      string  `json:"name" db:"name"`
	Price     float64 `json:"price" db:"price"`
}

// ProductLine is a charged product with its quantity and unit price
type ProductLine struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type Customer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Promo discount kinds
const (
	DiscountPercent = "percent"
	DiscountFixed   = "fixed"
)

// Promo is a discount code as stored; validity is decided by the promo
// service, never by callers.
type Promo struct {
	PromoID       string     `json:"promoId" db:"promo_id"`
	Code          string     `json:"code" db:"code"`
	DiscountType  string     `json:"discountType" db:"discount_type"`
	DiscountValue float64    `json:"discountValue" db:"discount_value"`
	MinSubtotal   float64    `json:"minSubtotal" db:"min_subtotal"`
	StartsAt      *time.Time `json:"startsAt,omitempty" db:"starts_at"`
	EndsAt        *time.Time `json:"endsAt,omitempty" db:"ends_at"`
	UsageLimit    int        `json:"usageLimit" db:"usage_limit"` // 0 = unlimited
	UsedCount     int        `json:"usedCount" db:"used_count"`
	Active        bool       `json:"active" db:"active"`
}

// Booking is the persisted booking record
type Booking struct {
	BookingID      string    `json:"bookingId" db:"booking_id"`
	Reference      string    `json:"reference" db:"reference"`
	TourID         string    `json:"tourId" db:"tour_id"`
	Date           string    `json:"date" db:"tour_date"` // ISO date
	TimeOfDay      string    `json:"time" db:"tour_time"` // HH:mm
	PartySize      int       `json:"partySize" db:"party_size"`
	Status         string    `json:"status" db:"status"`
	Customer       Customer  `json:"customer"`
	Subtotal       float64   `json:"subtotal" db:"subtotal"`
	DiscountAmount float64   `json:"discountAmount" db:"discount_amount"`
	Total          float64   `json:"total" db:"total"`
	PaymentMethod  string    `json:"paymentMethod" db:"payment_method"`
	PaymentID      *string   `json:"paymentId,omitempty" db:"payment_id"`
	PromoID        *string   `json:"promoId,omitempty" db:"promo_id"`
	CreatedBy      string    `json:"createdBy,omitempty" db:"created_by"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// CheckoutInput is the checkout workflow input: the assembled booking draft
// at submission time.
type CheckoutInput struct {
	SessionID         string        `json:"sessionId"`
	ExistingBookingID string        `json:"existingBookingId,omitempty"`
	Customer          Customer      `json:"customer"`
	TourID            string        `json:"tourId"`
	TourName          string        `json:"tourName"`
	Date              string        `json:"date"`
	TimeOfDay         string        `json:"time"`
	PartySize         int           `json:"partySize"`
	SlotDetails       []SlotDetail  `json:"slotDetails,omitempty"`
	Products          []ProductLine `json:"products,omitempty"`
	Subtotal          float64       `json:"subtotal"`
	DiscountAmount    float64       `json:"discountAmount"`
	Total             float64       `json:"total"`
	PromoID           string        `json:"promoId,omitempty"`
	PromoCode         string        `json:"promoCode,omitempty"`
	PaymentMethod     string        `json:"paymentMethod"`
	PaymentIntentID   string        `json:"paymentIntentId,omitempty"`
	CreatedBy         string        `json:"createdBy,omitempty"`
	BaseReference     string        `json:"baseReference,omitempty"` // additional-booking mode
}

// CheckoutResult is the checkout workflow output. BookingID is set whenever a
// booking record exists, including on payment failure, so callers can retry
// without creating duplicates.
type CheckoutResult struct {
	Success   bool   `json:"success"`
	BookingID string `json:"bookingId"`
	Reference string `json:"reference"`
	PaymentID string `json:"paymentId,omitempty"`
	EmailSent bool   `json:"emailSent"`
	Message   string `json:"message,omitempty"`
}

// API request/response models

type CreateSessionRequest struct {
	TourID        string `json:"tourId,omitempty"`
	Date          string `json:"date,omitempty"`
	TimeOfDay     string `json:"time,omitempty"`
	BaseReference string `json:"baseReference,omitempty"` // non-empty switches to additional-booking mode
	CreatedBy     string `json:"createdBy,omitempty"`
}

type ValidatePromoRequest struct {
	Code        string  `json:"code"`
	TotalAmount float64 `json:"totalAmount"`
}

type ValidatePromoResponse struct {
	Success        bool    `json:"success"`
	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discountAmount"`
	Total          float64 `json:"total"`
	Message        string  `json:"message,omitempty"`
}

type FullyBookedRequest struct {
	Dates []string `json:"dates"`
}

type FullyBookedResponse struct {
	TourID string   `json:"tourId"`
	Dates  []string `json:"dates"`
}

type RemainingSlotsResponse struct {
	TourID         string `json:"tourId"`
	Date           string `json:"date"`
	TimeOfDay      string `json:"time"`
	RemainingSlots int    `json:"remainingSlots"`
}
