package api

import (
	"github.com/gorilla/mux"
)

func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	// Apply middleware
	r.Use(CORSMiddleware)
	r.Use(LoggingMiddleware)

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(JSONMiddleware)

	// Health check
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// Catalog routes
	api.HandleFunc("/tours", h.ListTours).Methods("GET")
	api.HandleFunc("/tours/{tourId}", h.GetTour).Methods("GET")
	api.HandleFunc("/products", h.ListProducts).Methods("GET")

	// Availability routes
	api.HandleFunc("/tours/{tourId}/availability", h.GetRemainingSlots).Methods("GET")
	api.HandleFunc("/tours/{tourId}/fully-booked", h.FullyBookedDates).Methods("POST")

	// Promo validation
	api.HandleFunc("/promos/validate", h.ValidatePromo).Methods("POST")

	// Checkout session routes
	api.HandleFunc("/checkout/sessions", h.CreateSession).Methods("POST")
	api.HandleFunc("/checkout/sessions/{sessionId}", h.GetSession).Methods("GET")
	api.HandleFunc("/checkout/sessions/{sessionId}", h.DeleteSession).Methods("DELETE")
	api.HandleFunc("/checkout/sessions/{sessionId}/advance", h.AdvanceSession).Methods("POST")
	api.HandleFunc("/checkout/sessions/{sessionId}/retreat", h.RetreatSession).Methods("POST")
	api.HandleFunc("/checkout/sessions/{sessionId}/tour", h.SelectTour).Methods("POST")
	api.HandleFunc("/checkout/sessions/{sessionId}/date", h.SelectDate).Methods("POST")
	api.HandleFunc("/checkout/sessions/{sessionId}/time", h.SelectTime).Methods("POST")
	api.HandleFunc("/checkout/sessions/{sessionId}/party", h.AdjustParty).Methods("POST")
	api.HandleFunc("/checkout/sessions/{sessionId}/slots", h.AddSlot).Methods("POST")
	api.HandleFunc("/checkout/sessions/{sessionId}/slots/remove", h.RemoveSlot).Methods("POST")
	api.HandleFunc("/checkout/sessions/{sessionId}/slots/field", h.SetSlotField).Methods("POST")
	api.HandleFunc("/checkout/sessions/{sessionId}/products", h.SetProduct).Methods("POST")
	api.HandleFunc("/checkout/sessions/{sessionId}/customer", h.SetCustomer).Methods("POST")
	api.HandleFunc("/checkout/sessions/{sessionId}/payment-method", h.SetPaymentMethod).Methods("POST")
	api.HandleFunc("/checkout/sessions/{sessionId}/payment-intent", h.CreatePaymentIntent).Methods("POST")
	api.HandleFunc("/checkout/sessions/{sessionId}/promo", h.ApplyPromo).Methods("POST")
	api.HandleFunc("/checkout/sessions/{sessionId}/submit", h.SubmitSession).Methods("POST")

	return r
}
