// Package pricing holds the pure price computations for a booking draft.
// No I/O: totals computed here are advisory until the promo service and the
// booking transaction confirm them.
package pricing

import (
	"math"

	"tour-booking-system/internal/models"
)

// Round2 rounds to 2 decimal places, half-up on the cent boundary. Working on
// the scaled integer avoids float drift accumulating across line items.
func Round2(amount float64) float64 {
	return math.Floor(amount*100+0.5) / 100
}

// ToCents converts an amount to minor currency units for the payment provider.
func ToCents(amount float64) int64 {
	return int64(math.Floor(amount*100 + 0.5))
}

// Subtotal computes the slot portion plus the product portion of a draft.
// When the tour defines custom slot types the snapshotted per-slot prices are
// summed; otherwise the flat rate times the party size applies. Only product
// ids present in selected are charged; a missing quantity means 1.
func Subtotal(tour *models.Tour, slots []models.SlotDetail, partySize int, selected []string, quantities map[string]int, catalog []models.Product) float64 {
	var sum float64

	if tour != nil {
		if tour.HasSlotTypes() {
			for _, s := range slots {
				sum += s.Price
			}
		} else {
			sum += tour.Rate * float64(partySize)
		}
	}

	prices := make(map[string]float64, len(catalog))
	for _, p := range catalog {
		prices[p.ProductID] = p.Price
	}

	for _, id := range selected {
		price, ok := prices[id]
		if !ok {
			continue
		}
		qty := quantities[id]
		if qty < 1 {
			qty = 1
		}
		sum += price * float64(qty)
	}

	return Round2(sum)
}

// Total applies a discount for display. The charged total always comes from
// the promo service response, never from this value.
func Total(subtotal, discount float64) float64 {
	total := Round2(subtotal - discount)
	if total < 0 {
		return 0
	}
	return total
}
