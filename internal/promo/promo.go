// Package promo is the trusted discount validator. Discounts shown anywhere
// else are estimates; only a Result produced here may gate a charge.
package promo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tour-booking-system/internal/database"
	"tour-booking-system/internal/models"
	"tour-booking-system/internal/pricing"
)

// Validation failure reasons surfaced to the customer
var (
	ErrUnknownCode   = errors.New("promo code not found")
	ErrInactive      = errors.New("promo code is not active")
	ErrNotStarted    = errors.New("promo code is not yet valid")
	ErrExpired       = errors.New("promo code has expired")
	ErrUsageLimit    = errors.New("promo code has reached its usage limit")
	ErrMinSubtotal   = errors.New("order total is below the promo minimum")
	ErrEmptySubtotal = errors.New("nothing to discount")
)

// Result is a server-confirmed discount tied to the exact subtotal it was
// validated against.
type Result struct {
	PromoID        string  `json:"promoId"`
	Code           string  `json:"code"`
	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discountAmount"`
	FinalAmount    float64 `json:"finalAmount"`
}

// Evaluate checks a promo against a subtotal and computes the discount.
// Pure: usable in tests without a database.
func Evaluate(p *models.Promo, subtotal float64, now time.Time) (Result, error) {
	if subtotal <= 0 {
		return Result{}, ErrEmptySubtotal
	}
	if !p.Active {
		return Result{}, ErrInactive
	}
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return Result{}, ErrNotStarted
	}
	if p.EndsAt != nil && now.After(*p.EndsAt) {
		return Result{}, ErrExpired
	}
	if p.UsageLimit > 0 && p.UsedCount >= p.UsageLimit {
		return Result{}, ErrUsageLimit
	}
	if subtotal < p.MinSubtotal {
		return Result{}, ErrMinSubtotal
	}

	var discount float64
	switch p.DiscountType {
	case models.DiscountPercent:
		discount = subtotal * p.DiscountValue / 100
	case models.DiscountFixed:
		discount = p.DiscountValue
	default:
		return Result{}, fmt.Errorf("unknown discount type %q", p.DiscountType)
	}

	discount = pricing.Round2(discount)
	if discount > subtotal {
		discount = subtotal
	}

	return Result{
		PromoID:        p.PromoID,
		Code:           p.Code,
		Subtotal:       subtotal,
		DiscountAmount: discount,
		FinalAmount:    pricing.Round2(subtotal - discount),
	}, nil
}

// Service validates promo codes against stored promos
type Service struct {
	DB *database.DB
}

func NewService(db *database.DB) *Service {
	return &Service{DB: db}
}

// Validate looks up a code and evaluates it against the proposed subtotal.
func (s *Service) Validate(ctx context.Context, code string, subtotal float64) (Result, error) {
	p, err := s.DB.GetPromoByCode(ctx, code)
	if err != nil {
		if errors.Is(err, database.ErrPromoNotFound) {
			return Result{}, ErrUnknownCode
		}
		return Result{}, fmt.Errorf("failed to look up promo: %w", err)
	}

	return Evaluate(p, subtotal, time.Now())
}
