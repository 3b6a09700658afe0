package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"tour-booking-system/internal/models"

	"github.com/google/uuid"
)

// GetTour retrieves a tour with its parsed availability and pricing config
func (db *DB) GetTour(ctx context.Context, tourID string) (*models.Tour, error) {
	query := `
		SELECT tour_id, name, rate, group_size_limit, weekdays, times, slot_types, slot_fields
		FROM tours
		WHERE tour_id = ?
	`

	var (
		tour                models.Tour
		weekdays, times     string
		slotTypes, slotFlds sql.NullString
	)
	err := db.QueryRowContext(ctx, query, tourID).Scan(
		&tour.TourID, &tour.Name, &tour.Rate, &tour.GroupSizeLimit,
		&weekdays, &times, &slotTypes, &slotFlds,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTourNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tour: %w", err)
	}

	tour.Weekdays = splitCSV(weekdays)
	tour.Times = splitCSV(times)

	if tour.SlotTypes, err = models.ParseSlotTypes(slotTypes.String); err != nil {
		return nil, fmt.Errorf("tour %s: %w", tourID, err)
	}
	if tour.SlotFields, err = models.ParseSlotFields(slotFlds.String); err != nil {
		return nil, fmt.Errorf("tour %s: %w", tourID, err)
	}

	return &tour, nil
}

// ListTours retrieves all tours
func (db *DB) ListTours(ctx context.Context) ([]models.Tour, error) {
	query := `
		SELECT tour_id, name, rate, group_size_limit, weekdays, times, slot_types, slot_fields
		FROM tours
		ORDER BY name
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tours: %w", err)
	}
	defer rows.Close()

	var tours []models.Tour
	for rows.Next() {
		var (
			tour                models.Tour
			weekdays, times     string
			slotTypes, slotFlds sql.NullString
		)
		err := rows.Scan(&tour.TourID, &tour.Name, &tour.Rate, &tour.GroupSizeLimit,
			&weekdays, &times, &slotTypes, &slotFlds)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tour: %w", err)
		}

		tour.Weekdays = splitCSV(weekdays)
		tour.Times = splitCSV(times)
		if tour.SlotTypes, err = models.ParseSlotTypes(slotTypes.String); err != nil {
			return nil, fmt.Errorf("tour %s: %w", tour.TourID, err)
		}
		if tour.SlotFields, err = models.ParseSlotFields(slotFlds.String); err != nil {
			return nil, fmt.Errorf("tour %s: %w", tour.TourID, err)
		}

		tours = append(tours, tour)
	}

	return tours, rows.Err()
}

// ListProducts retrieves the add-on product catalog
func (db *DB) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := db.QueryContext(ctx, `SELECT product_id, name, price FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ProductID, &p.Name, &p.Price); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

// GetPromoByCode retrieves a promo by its code
func (db *DB) GetPromoByCode(ctx context.Context, code string) (*models.Promo, error) {
	query := `
		SELECT promo_id, code, discount_type, discount_value, min_subtotal,
		       starts_at, ends_at, usage_limit, used_count, active
		FROM promos
		WHERE code = ?
	`

	var p models.Promo
	var startsAt, endsAt sql.NullTime
	err := db.QueryRowContext(ctx, query, code).Scan(
		&p.PromoID, &p.Code, &p.DiscountType, &p.DiscountValue, &p.MinSubtotal,
		&startsAt, &endsAt, &p.UsageLimit, &p.UsedCount, &p.Active,
	)
	if err == sql.ErrNoRows {
		return nil, ErrPromoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get promo: %w", err)
	}

	if startsAt.Valid {
		p.StartsAt = &startsAt.Time
	}
	if endsAt.Valid {
		p.EndsAt = &endsAt.Time
	}

	return &p, nil
}

// bookedPartySize sums confirmed and pending party sizes for one schedule
// instance. Runs inside the caller's transaction when one is provided.
func bookedPartySize(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}, tourID, date, timeOfDay string) (int, error) {
	query := `
		SELECT COALESCE(SUM(party_size), 0)
		FROM bookings
		WHERE tour_id = ? AND tour_date = ? AND tour_time = ?
		  AND status IN (?, ?)
	`

	var booked int
	err := q.QueryRowContext(ctx, query, tourID, date, timeOfDay,
		models.BookingPending, models.BookingConfirmed).Scan(&booked)
	if err != nil {
		return 0, fmt.Errorf("failed to sum booked slots: %w", err)
	}
	return booked, nil
}

// RemainingSlots returns the bookable capacity for an exact (tour, date, time)
// triple. Advisory between calls: the booking transaction re-checks under lock.
func (db *DB) RemainingSlots(ctx context.Context, tourID, date, timeOfDay string) (int, error) {
	tour, err := db.GetTour(ctx, tourID)
	if err != nil {
		return 0, err
	}

	booked, err := bookedPartySize(ctx, db, tourID, date, timeOfDay)
	if err != nil {
		return 0, err
	}

	remaining := tour.GroupSizeLimit - booked
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// FullyBookedDates returns the subset of candidate dates with zero remaining
// capacity across every time slot of the tour, in one aggregate query.
func (db *DB) FullyBookedDates(ctx context.Context, tourID string, dates []string) ([]string, error) {
	if len(dates) == 0 {
		return nil, nil
	}

	tour, err := db.GetTour(ctx, tourID)
	if err != nil {
		return nil, err
	}
	if len(tour.Times) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(dates))
	placeholders = placeholders[:len(placeholders)-1]

	query := fmt.Sprintf(`
		SELECT tour_date, tour_time, COALESCE(SUM(party_size), 0)
		FROM bookings
		WHERE tour_id = ? AND tour_date IN (%s) AND status IN (?, ?)
		GROUP BY tour_date, tour_time
	`, placeholders)

	args := make([]interface{}, 0, len(dates)+3)
	args = append(args, tourID)
	for _, d := range dates {
		args = append(args, d)
	}
	args = append(args, models.BookingPending, models.BookingConfirmed)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query booked dates: %w", err)
	}
	defer rows.Close()

	booked := make(map[string]map[string]int, len(dates))
	for rows.Next() {
		var date, timeOfDay string
		var sum int
		if err := rows.Scan(&date, &timeOfDay, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan booked date: %w", err)
		}
		if booked[date] == nil {
			booked[date] = make(map[string]int, len(tour.Times))
		}
		booked[date][timeOfDay] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var full []string
	for _, date := range dates {
		allFull := true
		for _, t := range tour.Times {
			if tour.GroupSizeLimit-booked[date][t] > 0 {
				allFull = false
				break
			}
		}
		if allFull {
			full = append(full, date)
		}
	}

	return full, nil
}

// CreateBooking inserts a booking with its slot details and product lines in
// one transaction. The tour row is locked so the capacity re-check and the
// insert are atomic against concurrent bookers; this is the final arbiter
// behind the advisory RemainingSlots numbers.
func (db *DB) CreateBooking(ctx context.Context, input *models.CheckoutInput) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var groupSizeLimit int
	err = tx.QueryRowContext(ctx,
		`SELECT group_size_limit FROM tours WHERE tour_id = ? FOR UPDATE`,
		input.TourID).Scan(&groupSizeLimit)
	if err == sql.ErrNoRows {
		return nil, ErrTourNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock tour: %w", err)
	}

	if input.PartySize > 0 {
		booked, err := bookedPartySize(ctx, tx, input.TourID, input.Date, input.TimeOfDay)
		if err != nil {
			return nil, err
		}
		if groupSizeLimit-booked < input.PartySize {
			return nil, ErrInsufficientCapacity
		}
	}

	booking := &models.Booking{
		BookingID:      uuid.New().String(),
		Reference:      input.BaseReference,
		TourID:         input.TourID,
		Date:           input.Date,
		TimeOfDay:      input.TimeOfDay,
		PartySize:      input.PartySize,
		Status:         models.BookingPending,
		Customer:       input.Customer,
		Subtotal:       input.Subtotal,
		DiscountAmount: input.DiscountAmount,
		Total:          input.Total,
		PaymentMethod:  input.PaymentMethod,
		CreatedBy:      input.CreatedBy,
	}
	if booking.Reference == "" {
		booking.Reference = newReference()
	}
	if input.PromoID != "" {
		booking.PromoID = &input.PromoID
	}

	slotDetails, err := json.Marshal(input.SlotDetails)
	if err != nil {
		return nil, fmt.Errorf("failed to encode slot details: %w", err)
	}

	insertBooking := `
		INSERT INTO bookings (booking_id, reference, tour_id, tour_date, tour_time, party_size,
		                      status, first_name, last_name, email, phone,
		                      subtotal, discount_amount, total, payment_method, promo_id,
		                      slot_details, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, insertBooking,
		booking.BookingID, booking.Reference, booking.TourID, booking.Date, booking.TimeOfDay,
		booking.PartySize, booking.Status,
		booking.Customer.FirstName, booking.Customer.LastName, booking.Customer.Email, booking.Customer.Phone,
		booking.Subtotal, booking.DiscountAmount, booking.Total, booking.PaymentMethod,
		booking.PromoID, string(slotDetails), booking.CreatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert booking: %w", err)
	}

	for _, line := range input.Products {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO booking_products (booking_id, product_id, quantity, unit_price)
			VALUES (?, ?, ?, ?)
		`, booking.BookingID, line.ProductID, line.Quantity, line.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("failed to insert product line: %w", err)
		}
	}

	if input.PromoID != "" {
		_, err = tx.ExecContext(ctx,
			`UPDATE promos SET used_count = used_count + 1 WHERE promo_id = ?`,
			input.PromoID)
		if err != nil {
			return nil, fmt.Errorf("failed to record promo usage: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit booking: %w", err)
	}

	return booking, nil
}

// UpdateBookingStatus updates a booking's status
func (db *DB) UpdateBookingStatus(ctx context.Context, bookingID, status string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = NOW() WHERE booking_id = ?`,
		status, bookingID)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrBookingNotFound
	}

	return nil
}

// MarkBookingPaid confirms a booking and records the provider payment id
func (db *DB) MarkBookingPaid(ctx context.Context, bookingID, paymentID string) error {
	result, err := db.ExecContext(ctx, `
		UPDATE bookings
		SET status = ?, payment_id = ?, updated_at = NOW()
		WHERE booking_id = ?
	`, models.BookingConfirmed, paymentID, bookingID)
	if err != nil {
		return fmt.Errorf("failed to mark booking paid: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrBookingNotFound
	}

	return nil
}

// GetBooking retrieves a booking by ID
func (db *DB) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	return db.getBookingWhere(ctx, "booking_id = ?", bookingID)
}

// GetBookingByReference retrieves the most recent booking carrying a
// reference number; used to prefill additional-booking sessions.
func (db *DB) GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error) {
	return db.getBookingWhere(ctx, "reference = ? ORDER BY created_at DESC LIMIT 1", reference)
}

func (db *DB) getBookingWhere(ctx context.Context, where string, arg interface{}) (*models.Booking, error) {
	query := fmt.Sprintf(`
		SELECT booking_id, reference, tour_id, tour_date, tour_time, party_size, status,
		       first_name, last_name, email, phone,
		       subtotal, discount_amount, total, payment_method, payment_id, promo_id,
		       created_by, created_at, updated_at
		FROM bookings
		WHERE %s
	`, where)

	var b models.Booking
	var paymentID, promoID, createdBy sql.NullString
	err := db.QueryRowContext(ctx, query, arg).Scan(
		&b.BookingID, &b.Reference, &b.TourID, &b.Date, &b.TimeOfDay, &b.PartySize, &b.Status,
		&b.Customer.FirstName, &b.Customer.LastName, &b.Customer.Email, &b.Customer.Phone,
		&b.Subtotal, &b.DiscountAmount, &b.Total, &b.PaymentMethod, &paymentID, &promoID,
		&createdBy, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	if paymentID.Valid {
		b.PaymentID = &paymentID.String
	}
	if promoID.Valid {
		b.PromoID = &promoID.String
	}
	b.CreatedBy = createdBy.String

	return &b, nil
}

// newReference builds a short human-sharable booking reference
func newReference() string {
	id := uuid.New().String()
	return "TB-" + strings.ToUpper(strings.ReplaceAll(id, "-", "")[:10])
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
