// Package availability serves remaining-capacity reads for the booking flow.
// Numbers are advisory for UX only; the booking transaction re-checks under
// lock, so staleness between independent calls is acceptable.
package availability

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"tour-booking-system/internal/database"

	"github.com/go-redis/redis/v8"
)

const cacheTTL = 30 * time.Second

type Service struct {
	DB    *database.DB
	Cache *redis.Client // optional
}

func NewService(db *database.DB, cache *redis.Client) *Service {
	return &Service{DB: db, Cache: cache}
}

// RemainingSlots returns bookable capacity for an exact schedule instance.
// Reads through the cache when one is configured; cache failures fall back
// to the database.
func (s *Service) RemainingSlots(ctx context.Context, tourID, date, timeOfDay string) (int, error) {
	key := fmt.Sprintf("slots:%s:%s:%s", tourID, date, timeOfDay)

	if s.Cache != nil {
		if val, err := s.Cache.Get(ctx, key).Result(); err == nil {
			if n, err := strconv.Atoi(val); err == nil {
				return n, nil
			}
		}
	}

	remaining, err := s.DB.RemainingSlots(ctx, tourID, date, timeOfDay)
	if err != nil {
		return 0, err
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, key, remaining, cacheTTL).Err(); err != nil {
			log.Printf("availability cache set failed: %v", err)
		}
	}

	return remaining, nil
}

// FullyBookedDates returns the subset of candidate dates with no capacity
// left in any time slot; used to grey out calendar cells in one round trip.
func (s *Service) FullyBookedDates(ctx context.Context, tourID string, dates []string) ([]string, error) {
	return s.DB.FullyBookedDates(ctx, tourID, dates)
}

// Invalidate drops the cached count for a schedule instance, called after a
// booking lands so the next advisory read is fresh.
func (s *Service) Invalidate(ctx context.Context, tourID, date, timeOfDay string) {
	if s.Cache == nil {
		return
	}
	key := fmt.Sprintf("slots:%s:%s:%s", tourID, date, timeOfDay)
	if err := s.Cache.Del(ctx, key).Err(); err != nil {
		log.Printf("availability cache invalidate failed: %v", err)
	}
}
